package suggest

import (
	"regexp"
	"strings"
)

// Placeholder is a template token found in SQL that the user still needs to
// fill in before the query can run.
type Placeholder struct {
	Text string
	Kind string // guid, table, date, name or value
}

// Template token shapes seen in the dictionary's example queries.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<[A-Za-z_][A-Za-z0-9_ -]*>`),
	regexp.MustCompile(`'YOUR_[A-Z0-9_]+'`),
	regexp.MustCompile(`\$\{[^}]+\}`),
	// :bind, but not the :: cast operator.
	regexp.MustCompile(`(?:^|[^:\w]):([A-Za-z_][A-Za-z0-9_]*)\b`),
}

// FindPlaceholders scans sql for unfilled template tokens. Each token is
// classified by a keyword heuristic so the guidance can say what belongs
// there.
func FindPlaceholders(sql string) []Placeholder {
	var out []Placeholder
	seen := map[string]bool{}
	for i, re := range placeholderPatterns {
		for _, m := range re.FindAllStringSubmatch(sql, -1) {
			text := m[0]
			if i == len(placeholderPatterns)-1 {
				text = ":" + m[1]
			}
			if seen[text] {
				continue
			}
			seen[text] = true
			out = append(out, Placeholder{Text: text, Kind: classifyPlaceholder(text)})
		}
	}
	return out
}

func classifyPlaceholder(text string) string {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "GUID") || strings.Contains(upper, "ID"):
		return "guid"
	case strings.Contains(upper, "TABLE"):
		return "table"
	case strings.Contains(upper, "DATE") || strings.Contains(upper, "TIME"):
		return "date"
	case strings.Contains(upper, "NAME"):
		return "name"
	default:
		return "value"
	}
}
