package suggest

import (
	"strings"
	"unicode"
)

// connectorPrefixes are ingestion-source prefixes commonly stuck on entity
// table names. They carry no semantic weight when comparing names.
var connectorPrefixes = []string{"DBT", "ATLAS", "POWERBI", "TABLEAU", "FIVETRAN", "AIRFLOW"}

// decompose splits an identifier into semantic parts: the _ENTITY suffix and
// any connector prefix are dropped, the rest is split on underscores and
// capital-letter boundaries.
func decompose(name string) []string {
	// Case is only folded at the end; capital boundaries in camelCase names
	// carry the part structure.
	n := name
	if strings.HasSuffix(strings.ToUpper(n), "_ENTITY") {
		n = n[:len(n)-len("_ENTITY")]
	}
	upper := strings.ToUpper(n)
	for _, p := range connectorPrefixes {
		if strings.HasPrefix(upper, p+"_") {
			n = n[len(p)+1:]
			break
		}
	}

	var parts []string
	for _, seg := range strings.Split(n, "_") {
		parts = append(parts, splitCapitalBoundaries(seg)...)
	}
	return parts
}

func splitCapitalBoundaries(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	start := 0
	runes := []rune(s)
	for i := 1; i < len(runes); i++ {
		if unicode.IsUpper(runes[i]) && unicode.IsLower(runes[i-1]) {
			parts = append(parts, strings.ToUpper(string(runes[start:i])))
			start = i
		}
	}
	parts = append(parts, strings.ToUpper(string(runes[start:])))
	return parts
}

// CompareNames scores how plausibly candidate stands in for target: shared
// first part is worth 0.4, the fraction of shared parts up to 0.5, and a
// length-ratio bonus up to 0.1. The result is capped at 1.0.
func CompareNames(target, candidate string) float64 {
	tp := decompose(target)
	cp := decompose(candidate)
	if len(tp) == 0 || len(cp) == 0 {
		return 0
	}

	score := 0.0
	if tp[0] == cp[0] {
		score += 0.4
	}

	set := make(map[string]bool, len(tp))
	for _, p := range tp {
		set[p] = true
	}
	shared := 0
	for _, p := range cp {
		if set[p] {
			shared++
		}
	}
	longer := len(tp)
	if len(cp) > longer {
		longer = len(cp)
	}
	score += 0.5 * float64(shared) / float64(longer)

	lt, lc := float64(len(target)), float64(len(candidate))
	if lt > 0 && lc > 0 {
		ratio := lt / lc
		if ratio > 1 {
			ratio = 1 / ratio
		}
		score += 0.1 * ratio
	}

	if score > 1 {
		score = 1
	}
	return score
}
