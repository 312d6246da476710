// Package sqltext provides lexical SQL helpers: identifier validation,
// statement splitting, table reference extraction and query guards.
//
// Nothing in this package parses SQL properly. Everything is a scan or a
// regex over the raw text, which is good enough for the repair tooling it
// backs but must never be the only line of defense for execution.
package sqltext

import (
	"fmt"
	"strings"
	"unicode"
)

// MaxIdentifierLength matches the Snowflake identifier limit.
const MaxIdentifierLength = 255

// InvalidIdentifierError reports an identifier that failed validation.
type InvalidIdentifierError struct {
	Name   string
	Reason string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q: %s", e.Name, e.Reason)
}

// suspicious substrings rejected regardless of quoting. The allow-list scan
// below already blocks these for unquoted parts; checking the whole input
// covers quoted segments too.
var suspiciousFragments = []string{";", "--", "/*", "*/", "union ", " or ", " and "}

// ValidateIdentifier validates a possibly dotted, possibly quoted identifier
// and returns a fully quoted, injection-safe form suitable for interpolation
// into statements such as USE DATABASE or DESCRIBE TABLE.
//
// Each dot-delimited part is validated independently: quoted parts may
// contain anything except control characters, unquoted parts must match
// [A-Za-z0-9_$]. Dots inside quoted parts are literal. Every part is
// re-quoted on output with internal double quotes escaped as "".
func ValidateIdentifier(raw string) (string, error) {
	if raw == "" {
		return "", &InvalidIdentifierError{Name: raw, Reason: "empty"}
	}
	if len(raw) > MaxIdentifierLength {
		return "", &InvalidIdentifierError{Name: raw, Reason: "exceeds 255 characters"}
	}
	for _, r := range raw {
		if unicode.IsControl(r) {
			return "", &InvalidIdentifierError{Name: raw, Reason: "contains control characters"}
		}
	}

	lowered := strings.ToLower(raw)
	for _, frag := range suspiciousFragments {
		if strings.Contains(lowered, frag) {
			return "", &InvalidIdentifierError{Name: raw, Reason: fmt.Sprintf("contains suspicious sequence %q", strings.TrimSpace(frag))}
		}
	}

	parts, err := splitIdentifierParts(raw)
	if err != nil {
		return "", err
	}

	quoted := make([]string, 0, len(parts))
	for _, part := range parts {
		q, err := quoteIdentifierPart(raw, part)
		if err != nil {
			return "", err
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, "."), nil
}

// splitIdentifierParts splits on dots that are not inside a quoted segment.
func splitIdentifierParts(raw string) ([]string, error) {
	var parts []string
	var current strings.Builder
	inQuotes := false

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '"':
			// "" inside a quoted segment is an escaped quote, not a close.
			if inQuotes && i+1 < len(raw) && raw[i+1] == '"' {
				current.WriteString(`""`)
				i++
				continue
			}
			inQuotes = !inQuotes
			current.WriteByte(c)
		case c == '.' && !inQuotes:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	if inQuotes {
		return nil, &InvalidIdentifierError{Name: raw, Reason: "unterminated quote"}
	}
	parts = append(parts, current.String())
	return parts, nil
}

// quoteIdentifierPart validates one dot-delimited part and returns it quoted.
func quoteIdentifierPart(raw, part string) (string, error) {
	if part == "" {
		return "", &InvalidIdentifierError{Name: raw, Reason: "empty identifier part"}
	}

	if strings.HasPrefix(part, `"`) && strings.HasSuffix(part, `"`) && len(part) >= 2 {
		// Already quoted: keep the inner text as-is, it was escaped on input.
		return part, nil
	}

	for _, r := range part {
		if !isIdentifierRune(r) {
			return "", &InvalidIdentifierError{
				Name:   raw,
				Reason: fmt.Sprintf("character %q not allowed in unquoted identifier", r),
			}
		}
	}
	return `"` + strings.ReplaceAll(part, `"`, `""`) + `"`, nil
}

func isIdentifierRune(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '$'
}
