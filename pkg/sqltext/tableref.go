package sqltext

import (
	"regexp"
	"strings"
)

// TableRef is one table reference found in a SQL text. Database and Schema
// are empty when the reference is partial.
type TableRef struct {
	Database string
	Schema   string
	Table    string
}

// String returns the reference in its most qualified available form.
func (r TableRef) String() string {
	switch {
	case r.Database != "" && r.Schema != "":
		return r.Database + "." + r.Schema + "." + r.Table
	case r.Schema != "":
		return r.Schema + "." + r.Table
	default:
		return r.Table
	}
}

// Resolve fills in missing database/schema from defaults.
func (r TableRef) Resolve(defaultDB, defaultSchema string) TableRef {
	if r.Database == "" {
		r.Database = defaultDB
	}
	if r.Schema == "" {
		r.Schema = defaultSchema
	}
	return r
}

// RefExtractor finds table references in SQL text. The only implementation
// today is regex-based and heuristic; the interface exists so a real parser
// can replace it without touching callers.
type RefExtractor interface {
	ExtractTableRefs(sql string) []TableRef
}

// RegexExtractor extracts table references with layered regexes: fully
// qualified db.schema.table first, then schema.table after FROM/JOIN, then
// bare names after FROM/JOIN. Matches consumed by an earlier layer are not
// reported again.
type RegexExtractor struct{}

var (
	ident       = `[A-Za-z_][A-Za-z0-9_$]*`
	fqTableRe   = regexp.MustCompile(`\b(` + ident + `)\.(` + ident + `)\.(` + ident + `)\b`)
	twoPartRe   = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+(` + ident + `)\.(` + ident + `)\b`)
	bareTableRe = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+(` + ident + `)\b`)
)

// sqlKeywords are skipped when they appear where a bare table name would.
var sqlKeywords = map[string]bool{
	"SELECT": true, "WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true,
	"LIMIT": true, "UNION": true, "JOIN": true, "ON": true, "AS": true,
	"AND": true, "OR": true, "NOT": true, "IN": true, "EXISTS": true,
	"VALUES": true, "DUAL": true, "LATERAL": true, "TABLE": true,
}

// ExtractTableRefs implements RefExtractor.
func (RegexExtractor) ExtractTableRefs(sql string) []TableRef {
	text := StripComments(sql)

	var refs []TableRef
	seen := map[string]bool{}
	add := func(ref TableRef) {
		key := strings.ToUpper(ref.Table)
		if seen[key] {
			return
		}
		seen[key] = true
		refs = append(refs, ref)
	}

	for _, m := range fqTableRe.FindAllStringSubmatch(text, -1) {
		add(TableRef{Database: m[1], Schema: m[2], Table: m[3]})
	}
	// Mask fully qualified matches so partial layers don't re-capture their
	// components. The filler is deliberately not whitespace: FROM followed
	// by a masked region must not slide onto the next word (an alias).
	text = fqTableRe.ReplaceAllStringFunc(text, mask)

	for _, m := range twoPartRe.FindAllStringSubmatch(text, -1) {
		add(TableRef{Schema: m[1], Table: m[2]})
	}
	text = twoPartRe.ReplaceAllStringFunc(text, mask)

	for _, m := range bareTableRe.FindAllStringSubmatch(text, -1) {
		if sqlKeywords[strings.ToUpper(m[1])] {
			continue
		}
		add(TableRef{Table: m[1]})
	}

	return refs
}

func mask(s string) string {
	return strings.Repeat("#", len(s))
}
