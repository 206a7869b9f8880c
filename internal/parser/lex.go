package parser

import "strings"

// splitTopLevel splits s on sep, honoring single-quoted spans (where sep is
// never a separator, `\'` escapes a literal quote) and `[...]` bracket
// nesting (where sep is never a separator either, so an `in=[a,b,c]` value
// list or a `name[0|h,s]` select element survives a comma/ampersand split
// untouched).
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	var cur strings.Builder
	inQuotes := false
	escaped := false
	depth := 0

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			cur.WriteByte(c)
			escaped = false
			continue
		}

		switch {
		case c == '\\' && inQuotes:
			cur.WriteByte(c)
			escaped = true
		case c == '\'':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case inQuotes:
			cur.WriteByte(c)
		case c == '[':
			depth++
			cur.WriteByte(c)
		case c == ']':
			if depth > 0 {
				depth--
			}
			cur.WriteByte(c)
		case c == sep && depth == 0:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	parts = append(parts, cur.String())
	return parts
}

// splitAmpersand splits a full query string into clause bodies.
func splitAmpersand(query string) []string {
	if query == "" {
		return nil
	}
	return splitTopLevel(query, '&')
}

// splitComma splits a clause body into comma-joined terms.
func splitComma(body string) []string {
	if body == "" {
		return nil
	}
	return splitTopLevel(body, ',')
}

// unquote strips surrounding single quotes from a value, undoubling escaped
// quotes (`\'` -> `'`) inside. Returns the raw input unchanged if it isn't
// quoted.
func unquote(s string) string {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return s
	}
	inner := s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) && inner[i+1] == '\'' {
			b.WriteByte('\'')
			i++
			continue
		}
		b.WriteByte(inner[i])
	}
	return b.String()
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\''
}
