package redshift

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Result holds the rows of one query keyed by column name. Columns keeps the
// select order so rows can also be read positionally.
type Result struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	// Cached is set when the rows were served from the result cache
	Cached bool `json:"-"`
}

// Len returns the number of rows
func (r *Result) Len() int {
	return len(r.Rows)
}

// Tuples returns the rows as positional values in column order
func (r *Result) Tuples() [][]any {
	out := make([][]any, len(r.Rows))

	for i, row := range r.Rows {
		tuple := make([]any, len(r.Columns))
		for j, col := range r.Columns {
			tuple[j] = row[col]
		}

		out[i] = tuple
	}

	return out
}

func encodeResult(r *Result) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	return data, nil
}

// decodeResult keeps numbers as json.Number so large integers and decimals
// survive the round trip.
func decodeResult(data []byte) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var r Result
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}

	if r.Rows == nil {
		r.Rows = []map[string]any{}
	}

	return &r, nil
}
