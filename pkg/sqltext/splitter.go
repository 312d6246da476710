package sqltext

import (
	"regexp"
	"strings"
)

var (
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentRe  = regexp.MustCompile(`(?m)--.*$`)
)

// StripComments removes /* block */ and -- line comments.
//
// Known limitation: comment markers inside string literals are also
// stripped. Callers that need literal fidelity (the splitter) strip
// comments first and rely on the remaining text scanning quotes correctly.
func StripComments(sql string) string {
	sql = blockCommentRe.ReplaceAllString(sql, "")
	return lineCommentRe.ReplaceAllString(sql, "")
}

// SplitStatements breaks a SQL blob into individual statements. Semicolons
// inside string literals or comments are not statement boundaries. A
// trailing statement without a closing semicolon is included. Never fails:
// malformed input degrades to best-effort splitting.
func SplitStatements(sql string) []string {
	sql = StripComments(sql)

	var statements []string
	var current strings.Builder
	inString := false
	var stringChar byte

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case (c == '\'' || c == '"') && !inString:
			inString = true
			stringChar = c
			current.WriteByte(c)
		case inString && c == stringChar:
			inString = false
			current.WriteByte(c)
		case c == ';' && !inString:
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()

	return statements
}

// CountStatements reports how many statements SplitStatements would return.
// The executor uses this to choose single vs multi-statement mode.
func CountStatements(sql string) int {
	return len(SplitStatements(sql))
}
