package sqltext

import (
	"regexp"
	"strings"
)

var (
	stringLiteralRe = regexp.MustCompile(`'(?:[^']|'')*'`)
	limitRe         = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
)

// selectLikePrefixes are the statement-leading keywords the console is
// willing to run. Everything that mutates data or metadata is refused.
var selectLikePrefixes = []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "USE"}

var blockedPrefixes = []string{
	"DROP", "DELETE", "TRUNCATE", "INSERT", "UPDATE", "MERGE",
	"CREATE", "ALTER", "GRANT", "REVOKE", "CALL", "PUT", "GET", "REMOVE",
}

// IsSelectLike reports whether a single statement reads rather than writes.
// A WITH-led common table expression counts as a select.
func IsSelectLike(stmt string) bool {
	upper := strings.ToUpper(strings.TrimSpace(StripComments(stmt)))
	for _, p := range selectLikePrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

// IsQueryAllowed reports whether every statement in the blob is select-like.
// Destructive keywords inside string literals do not count: the check runs
// per split statement, after literal-aware splitting.
func IsQueryAllowed(sql string) bool {
	stmts := SplitStatements(sql)
	if len(stmts) == 0 {
		return false
	}
	for _, stmt := range stmts {
		masked := stringLiteralRe.ReplaceAllString(stmt, "''")
		upper := strings.ToUpper(strings.TrimSpace(masked))
		for _, p := range blockedPrefixes {
			if strings.HasPrefix(upper, p+" ") || upper == p {
				return false
			}
		}
		if !IsSelectLike(stmt) {
			return false
		}
	}
	return true
}

// HasLimit reports whether the statement carries a LIMIT clause outside of
// comments and string literals.
func HasLimit(sql string) bool {
	text := StripComments(sql)
	text = stringLiteralRe.ReplaceAllString(text, "''")
	return limitRe.MatchString(text)
}

// RedactLiterals replaces every string literal with '***'. Query history is
// persisted; literals may carry tokens or PII and never should be.
func RedactLiterals(sql string) string {
	return stringLiteralRe.ReplaceAllString(sql, "'***'")
}
