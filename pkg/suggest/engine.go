package suggest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Type classifies a suggestion.
type Type string

const (
	TypeTableSwap  Type = "table_swap"
	TypeColumnSwap Type = "column_swap"
	TypeSyntaxFix  Type = "syntax_fix"
	TypeRewrite    Type = "rewrite"
	TypeInfo       Type = "info"
)

// Suggestion is one ranked repair recommendation. Actionable suggestions
// carry rewritten SQL ready to run; info suggestions are guidance only.
// Suggestions are never auto-applied.
type Suggestion struct {
	Type        Type    `json:"type"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Table       string  `json:"table,omitempty"`
	SQL         string  `json:"sql,omitempty"`
	Confidence  float64 `json:"confidence"`
	Actionable  bool    `json:"actionable"`
}

// MaxSuggestions caps the returned list.
const MaxSuggestions = 8

// Candidates scoring below this are not worth showing.
const minConfidence = 0.4

// Engine ranks repair suggestions against a schema snapshot.
type Engine struct {
	schema *SchemaCache
	max    int
}

func NewEngine(schema *SchemaCache) *Engine {
	return &Engine{schema: schema, max: MaxSuggestions}
}

var (
	objectNotExistRe = regexp.MustCompile(`(?i)(?:Object|Table) '([^']+)' does not exist`)
	invalidIdentRe   = regexp.MustCompile(`(?i)invalid identifier '"?([A-Za-z0-9_$.]+)"?'`)
	syntaxErrorRe    = regexp.MustCompile(`(?i)syntax error`)
	syntaxNearRe     = regexp.MustCompile(`(?i)near '([^']+)'`)
	trailingCommaRe  = regexp.MustCompile(`,(\s*)(?i:FROM)\b`)
)

// FromError computes ranked suggestions for a failed query. It is a pure
// function of the SQL, the error text and the current schema snapshot.
func (e *Engine) FromError(sqlText, errorMessage string) []Suggestion {
	var out []Suggestion

	failingTable := ""
	switch {
	case objectNotExistRe.MatchString(errorMessage):
		failingTable = lastNamePart(objectNotExistRe.FindStringSubmatch(errorMessage)[1])
		out = append(out, e.tableSuggestions(sqlText, failingTable)...)
	case invalidIdentRe.MatchString(errorMessage):
		column := lastNamePart(invalidIdentRe.FindStringSubmatch(errorMessage)[1])
		out = append(out, e.columnSuggestions(sqlText, column)...)
	case syntaxErrorRe.MatchString(errorMessage):
		out = append(out, syntaxSuggestions(sqlText, errorMessage)...)
	}

	for _, ph := range FindPlaceholders(sqlText) {
		out = append(out, Suggestion{
			Type:        TypeInfo,
			Title:       fmt.Sprintf("Replace the placeholder %s", ph.Text),
			Description: fmt.Sprintf("The query still contains the template token %s; substitute a real %s before running it.", ph.Text, ph.Kind),
			Confidence:  0.9,
		})
	}

	out = e.verify(out, failingTable)
	rank(out)
	if len(out) > e.max {
		out = out[:e.max]
	}
	return out
}

// tableSuggestions proposes replacements for a table the warehouse rejected.
// The failing table never suggests itself, even on a perfect self-match.
func (e *Engine) tableSuggestions(sqlText, failing string) []Suggestion {
	var out []Suggestion
	for _, table := range e.schema.Tables() {
		if strings.EqualFold(table, failing) {
			continue
		}
		score := CompareNames(failing, table)
		if score < 0.5 {
			if ed := EditSimilarity(strings.ToUpper(failing), strings.ToUpper(table)); ed > score {
				score = ed
			}
		}
		if score < minConfidence {
			continue
		}
		out = append(out, Suggestion{
			Type:        TypeTableSwap,
			Title:       fmt.Sprintf("Use %s instead of %s", table, failing),
			Description: fmt.Sprintf("%s does not exist here; %s is the closest table in the current schema.", failing, table),
			Table:       table,
			SQL:         replaceWord(sqlText, failing, table),
			Confidence:  score,
			Actionable:  true,
		})
	}
	return out
}

// columnSuggestions proposes near-miss column names from cached tables.
func (e *Engine) columnSuggestions(sqlText, failing string) []Suggestion {
	var out []Suggestion
	for _, table := range e.schema.Tables() {
		cols, ok := e.schema.Columns(table)
		if !ok {
			continue
		}
		for _, col := range cols {
			if strings.EqualFold(col, failing) {
				// The exact column exists on another table; the table
				// reference is the likelier culprit.
				out = append(out, Suggestion{
					Type:        TypeInfo,
					Title:       fmt.Sprintf("Column %s exists on %s", col, table),
					Description: fmt.Sprintf("No such column on the queried table, but %s has %s. Check the table reference.", table, col),
					Table:       table,
					Confidence:  0.7,
				})
				continue
			}
			score := CompareNames(failing, col)
			if ed := EditSimilarity(strings.ToUpper(failing), strings.ToUpper(col)); ed > score {
				score = ed
			}
			if score < 0.6 {
				continue
			}
			out = append(out, Suggestion{
				Type:        TypeColumnSwap,
				Title:       fmt.Sprintf("Did you mean %s?", col),
				Description: fmt.Sprintf("%s is not a column; %s on %s is the closest name.", failing, col, table),
				Table:       table,
				SQL:         replaceWord(sqlText, failing, col),
				Confidence:  score,
				Actionable:  true,
			})
		}
	}
	return out
}

func syntaxSuggestions(sqlText, errorMessage string) []Suggestion {
	var out []Suggestion
	if trailingCommaRe.MatchString(sqlText) {
		out = append(out, Suggestion{
			Type:        TypeSyntaxFix,
			Title:       "Remove the trailing comma before FROM",
			Description: "A comma directly before FROM is a syntax error.",
			SQL:         trailingCommaRe.ReplaceAllString(sqlText, "${1}FROM"),
			Confidence:  0.8,
			Actionable:  true,
		})
	}
	desc := "The statement did not compile. Check keywords and clause order near the reported position."
	if m := syntaxNearRe.FindStringSubmatch(errorMessage); m != nil {
		desc = fmt.Sprintf("The statement did not compile near %q. Check the text around that token.", m[1])
	}
	out = append(out, Suggestion{
		Type:        TypeInfo,
		Title:       "Syntax error",
		Description: desc,
		Confidence:  0.5,
	})
	return out
}

// verify drops suggestions that reference tables absent from the snapshot
// or that point back at the failing table, and removes duplicates keeping
// the first occurrence.
func (e *Engine) verify(in []Suggestion, failingTable string) []Suggestion {
	seen := map[string]bool{}
	out := in[:0]
	for _, s := range in {
		if s.Table != "" {
			if strings.EqualFold(s.Table, failingTable) || !e.schema.Has(s.Table) {
				continue
			}
		}
		key := string(s.Type) + "|" + strings.ToUpper(s.Table) + "|" + s.Title
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// rank orders actionable fixes before guidance, descending confidence
// within each tier.
func rank(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Actionable != s[j].Actionable {
			return s[i].Actionable
		}
		return s[i].Confidence > s[j].Confidence
	})
}

func lastNamePart(name string) string {
	name = strings.ReplaceAll(name, `"`, "")
	parts := strings.Split(name, ".")
	return parts[len(parts)-1]
}

// replaceWord substitutes whole-word occurrences of old, case-insensitively.
func replaceWord(text, old, repl string) string {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(old) + `\b`)
	if err != nil {
		return text
	}
	return re.ReplaceAllString(text, repl)
}
