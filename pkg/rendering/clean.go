package rendering

import "strings"

//nolint:gochecknoglobals // keyword table
var sqlKeywords = map[string]bool{
	"ALL": true, "AND": true, "AS": true, "ASC": true, "BETWEEN": true,
	"BY": true, "CASE": true, "CREATE": true, "CROSS": true, "DESC": true,
	"DISTINCT": true, "DROP": true, "ELSE": true, "END": true, "EXISTS": true,
	"FALSE": true, "FROM": true, "FULL": true, "GROUP": true, "HAVING": true,
	"IF": true, "ILIKE": true, "IN": true, "INNER": true, "INSERT": true,
	"INTO": true, "IS": true, "JOIN": true, "LEFT": true, "LIKE": true,
	"LIMIT": true, "NOT": true, "NULL": true, "OFFSET": true, "ON": true,
	"OR": true, "ORDER": true, "OUTER": true, "OVER": true, "PARTITION": true,
	"RIGHT": true, "SELECT": true, "TABLE": true, "TEMP": true, "TEMPORARY": true,
	"THEN": true, "TRUE": true, "UNION": true, "VALUES": true, "WHEN": true,
	"WHERE": true, "WITH": true,
}

// CleanSQL normalizes generated SQL: comments are removed, whitespace runs
// collapse to one space (none after "(" or before ")" and ","), and keywords
// are upper-cased. String literals and quoted identifiers are copied
// verbatim. CleanSQL(CleanSQL(s)) == CleanSQL(s).
func CleanSQL(sql string) string {
	var (
		out   strings.Builder
		space bool
		last  byte
	)

	out.Grow(len(sql))

	emit := func(token string) {
		if space && out.Len() > 0 && last != '(' && token[0] != ')' && token[0] != ',' {
			out.WriteByte(' ')
		}

		space = false
		out.WriteString(token)
		last = token[len(token)-1]
	}

	for i := 0; i < len(sql); {
		ch := sql[i]

		switch {
		case isSpace(ch):
			space = true
			i++
		case ch == '-' && i+1 < len(sql) && sql[i+1] == '-':
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql) - i
			}

			space = true
			i += end
		case ch == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
			} else {
				i += end + 4
			}

			space = true
		case ch == '\'' || ch == '"':
			end := quotedEnd(sql, i)
			emit(sql[i:end])
			i = end
		case isWordByte(ch):
			end := i
			for end < len(sql) && isWordByte(sql[end]) {
				end++
			}

			word := sql[i:end]
			if upper := strings.ToUpper(word); sqlKeywords[upper] && last != '.' {
				word = upper
			}

			emit(word)
			i = end
		default:
			emit(sql[i : i+1])
			i++
		}
	}

	return out.String()
}

// quotedEnd returns the index just past the literal opening at start. A
// doubled quote character is an escaped quote, and inside string literals a
// backslash escapes the byte after it. An unterminated literal runs to the
// end of the input.
func quotedEnd(sql string, start int) int {
	quote := sql[start]

	for i := start + 1; i < len(sql); i++ {
		if quote == '\'' && sql[i] == '\\' {
			i++
			continue
		}

		if sql[i] != quote {
			continue
		}

		if i+1 < len(sql) && sql[i+1] == quote {
			i++
			continue
		}

		return i + 1
	}

	return len(sql)
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

func isWordByte(ch byte) bool {
	return ch == '_' || ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}
