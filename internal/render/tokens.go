package render

import (
	"fmt"
	"strings"
)

// RenderError is returned when a template cannot be rendered.
type RenderError struct {
	Message string
	Offset  int
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Message, e.Offset)
}

// substitute replaces every {TOKEN} in src with lookup(TOKEN).
//
// With markup set, anything between '<' and '>' is copied through untouched
// and ignored for token scanning. Markup that falls inside a token is kept
// in place and the value is inserted where the token opened, so tokens split
// across XML runs still produce well-formed output.
func substitute(src string, markup bool, lookup func(name string) string) (string, error) {
	out := make([]byte, 0, len(src))
	var (
		inTag   bool
		inToken bool
		openAt  int
		mark    int
		name    strings.Builder
	)
	for i := 0; i < len(src); i++ {
		c := src[i]
		if markup {
			if inTag {
				out = append(out, c)
				inTag = c != '>'
				continue
			}
			if c == '<' {
				inTag = true
				out = append(out, c)
				continue
			}
		}
		switch {
		case c == '{' && inToken:
			return "", &RenderError{Message: "Unclosed tag", Offset: openAt}
		case c == '{':
			inToken = true
			openAt = i
			mark = len(out)
			name.Reset()
		case c == '}' && !inToken:
			return "", &RenderError{Message: "Unopened tag", Offset: i}
		case c == '}':
			inToken = false
			v := lookup(strings.TrimSpace(name.String()))
			tail := append([]byte(nil), out[mark:]...)
			out = append(append(out[:mark], v...), tail...)
		case inToken:
			name.WriteByte(c)
		default:
			out = append(out, c)
		}
	}
	if inToken {
		return "", &RenderError{Message: "Unclosed tag", Offset: openAt}
	}
	return string(out), nil
}

// valuesLookup resolves names from values, unknown names render empty.
func valuesLookup(values map[string]string, escape func(string) string) func(string) string {
	return func(name string) string {
		v := values[name]
		if escape != nil {
			return escape(v)
		}
		return v
	}
}
