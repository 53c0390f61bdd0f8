package redshift

import (
	"fmt"
	"strconv"
	"strings"
)

// BindParams rewrites the %s placeholders of generated SQL into the $n
// positional form the wire protocol expects. A literal percent sign is
// written as %% and comes out as %. The number of placeholders must equal
// the number of params.
func BindParams(sql string, params []any) (string, error) {
	var (
		b strings.Builder
		n int
	)

	b.Grow(len(sql) + len(params))

	for i := 0; i < len(sql); i++ {
		if sql[i] != '%' || i+1 == len(sql) {
			b.WriteByte(sql[i])
			continue
		}

		switch sql[i+1] {
		case 's':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			i++
		case '%':
			b.WriteByte('%')
			i++
		default:
			b.WriteByte(sql[i])
		}
	}

	if n != len(params) {
		return "", fmt.Errorf("%w: %d placeholders, %d params", ErrParamCountMismatch, n, len(params))
	}

	return b.String(), nil
}
