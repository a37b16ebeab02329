package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnboundParameter is returned when a statement references a named
// parameter that was never bound.
var ErrUnboundParameter = errors.New("unbound query parameter")

// RewriteNamed converts @name placeholders in text into positional $n
// placeholders and returns the values in positional order. A name used
// several times maps to a single position. Placeholders inside quoted
// literals, quoted identifiers, dollar-quoted bodies and comments are left
// untouched.
func RewriteNamed(text string, params []Param) (string, []any, error) {
	values := make(map[string]any, len(params))
	for _, p := range params {
		values[p.Name] = p.Value
	}

	var (
		b         strings.Builder
		args      []any
		positions = make(map[string]int)
	)
	b.Grow(len(text))

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\'' || c == '"':
			end := skipQuoted(text, i, c, c == '\'' && isEscapeString(text, i))
			b.WriteString(text[i:end])
			i = end
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				end = len(text)
			} else {
				end += i
			}
			b.WriteString(text[i:end])
			i = end
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				end = len(text)
			} else {
				end += i + 4
			}
			b.WriteString(text[i:end])
			i = end
		case c == '$':
			end := skipDollarQuoted(text, i)
			b.WriteString(text[i:end])
			i = end
		case c == '@' && i+1 < len(text) && text[i+1] == '@':
			// @@ is the text search match operator.
			b.WriteString("@@")
			i += 2
		case c == '@' && i+1 < len(text) && isIdentStart(text[i+1]):
			j := i + 1
			for j < len(text) && isIdentPart(text[j]) {
				j++
			}
			name := text[i+1 : j]
			pos, seen := positions[name]
			if !seen {
				v, ok := values[name]
				if !ok {
					return "", nil, fmt.Errorf("%w: %s", ErrUnboundParameter, name)
				}
				args = append(args, v)
				pos = len(args)
				positions[name] = pos
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(pos))
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), args, nil
}

// skipQuoted returns the index just past the quoted run starting at i.
// A doubled quote character is an escaped quote; with backslash set a
// backslash escapes the next character as in E'...' strings.
func skipQuoted(text string, i int, q byte, backslash bool) int {
	j := i + 1
	for j < len(text) {
		if backslash && text[j] == '\\' {
			j += 2
			continue
		}
		if text[j] == q {
			if j+1 < len(text) && text[j+1] == q {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return len(text)
}

// isEscapeString reports whether the quote at i opens a PostgreSQL E'...'
// escape string.
func isEscapeString(text string, i int) bool {
	if i == 0 || (text[i-1] != 'E' && text[i-1] != 'e') {
		return false
	}
	return i == 1 || !isIdentPart(text[i-2])
}

// skipDollarQuoted returns the index just past a $tag$...$tag$ body starting
// at i, or i+1 when text[i] does not open one.
func skipDollarQuoted(text string, i int) int {
	j := i + 1
	for j < len(text) && isIdentPart(text[j]) && !(text[j] >= '0' && text[j] <= '9' && j == i+1) {
		j++
	}
	if j >= len(text) || text[j] != '$' {
		return i + 1
	}
	tag := text[i : j+1]
	end := strings.Index(text[j+1:], tag)
	if end < 0 {
		return len(text)
	}
	return j + 1 + end + len(tag)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
