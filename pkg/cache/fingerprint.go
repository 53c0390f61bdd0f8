package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ethpandaops/statsql/pkg/rendering"
)

// fingerprintDomain keeps result keys apart from any other hash in the system
const fingerprintDomain = "statsql/query/v1"

// Fingerprint derives the cache key of a query from its cache name, its
// normalized SQL and its parameters. Queries that differ only in whitespace,
// comments or keyword case share a fingerprint.
func Fingerprint(name, sql string, params []any) (string, error) {
	if params == nil {
		params = []any{}
	}

	encoded, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(name))
	h.Write([]byte{0x00})
	h.Write([]byte(rendering.CleanSQL(sql)))
	h.Write([]byte{0x00})
	h.Write(encoded)

	return hex.EncodeToString(h.Sum(nil)), nil
}
