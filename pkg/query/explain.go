package query

import (
	"fmt"
	"strings"

	"github.com/blastrain/vitess-sqlparser/sqlparser"

	"github.com/lakedict/lakedict/pkg/sqltext"
)

// Explanation is a plain-English breakdown of what a query does.
type Explanation struct {
	Steps           []string `json:"steps"`
	Summary         string   `json:"summary"`
	TablesUsed      []string `json:"tables_used"`
	ColumnsSelected []string `json:"columns_selected"`
}

// Explain describes the first statement of sqlText. It parses the statement
// when it can and falls back to the heuristic extractor when the dialect
// defeats the parser, so it never fails outright.
func (s *Service) Explain(sqlText string) *Explanation {
	stmts := sqltext.SplitStatements(sqlText)
	if len(stmts) == 0 {
		return &Explanation{Steps: []string{}, Summary: "Empty query", TablesUsed: []string{}, ColumnsSelected: []string{}}
	}
	first := stmts[0]

	stmt, err := sqlparser.Parse(first)
	if err == nil {
		if sel, ok := stmt.(*sqlparser.Select); ok {
			return explainSelect(sel, len(stmts))
		}
	}
	return s.explainHeuristic(first, len(stmts))
}

func explainSelect(sel *sqlparser.Select, stmtCount int) *Explanation {
	ex := &Explanation{Steps: []string{}, TablesUsed: []string{}, ColumnsSelected: []string{}}

	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		if tn, ok := node.(sqlparser.TableName); ok {
			name := tn.Name.String()
			if name == "" {
				return true, nil
			}
			if q := tn.Qualifier.String(); q != "" {
				name = q + "." + name
			}
			ex.TablesUsed = appendUnique(ex.TablesUsed, name)
		}
		return true, nil
	}, sel.From)

	for _, e := range sel.SelectExprs {
		switch expr := e.(type) {
		case *sqlparser.StarExpr:
			ex.ColumnsSelected = append(ex.ColumnsSelected, "*")
		case *sqlparser.AliasedExpr:
			ex.ColumnsSelected = append(ex.ColumnsSelected, sqlparser.String(expr.Expr))
		}
	}

	if len(ex.TablesUsed) > 0 {
		ex.Steps = append(ex.Steps, "Read from "+strings.Join(ex.TablesUsed, ", "))
	}
	if len(sel.From) > 1 || strings.Contains(strings.ToUpper(sqlparser.String(sel.From)), " JOIN ") {
		ex.Steps = append(ex.Steps, "Combine rows across the joined tables")
	}
	if sel.Where != nil {
		ex.Steps = append(ex.Steps, "Keep rows where "+sqlparser.String(sel.Where.Expr))
	}
	if len(sel.GroupBy) > 0 {
		ex.Steps = append(ex.Steps, "Group rows by "+strings.TrimPrefix(sqlparser.String(sel.GroupBy), " group by "))
	}
	if sel.Having != nil {
		ex.Steps = append(ex.Steps, "Keep groups where "+sqlparser.String(sel.Having.Expr))
	}
	if len(sel.OrderBy) > 0 {
		ex.Steps = append(ex.Steps, "Sort the output by "+strings.TrimPrefix(sqlparser.String(sel.OrderBy), " order by "))
	}
	if sel.Limit != nil {
		ex.Steps = append(ex.Steps, "Return at most "+sqlparser.String(sel.Limit.Rowcount)+" rows")
	}
	ex.Steps = append(ex.Steps, fmt.Sprintf("Output %d column(s)", len(ex.ColumnsSelected)))

	ex.Summary = summarize(ex.TablesUsed, len(ex.ColumnsSelected), sel.Where != nil, stmtCount)
	return ex
}

// explainHeuristic covers statements the parser cannot handle, using the
// same regex extraction preflight relies on.
func (s *Service) explainHeuristic(stmt string, stmtCount int) *Explanation {
	ex := &Explanation{Steps: []string{}, TablesUsed: []string{}, ColumnsSelected: []string{}}

	for _, ref := range s.extractor.ExtractTableRefs(stmt) {
		ex.TablesUsed = appendUnique(ex.TablesUsed, ref.String())
	}
	ex.ColumnsSelected = heuristicColumns(stmt)

	if len(ex.TablesUsed) > 0 {
		ex.Steps = append(ex.Steps, "Read from "+strings.Join(ex.TablesUsed, ", "))
	}
	upper := strings.ToUpper(stmt)
	if strings.Contains(upper, " WHERE ") {
		ex.Steps = append(ex.Steps, "Filter rows with the WHERE clause")
	}
	if strings.Contains(upper, " GROUP BY ") {
		ex.Steps = append(ex.Steps, "Group and aggregate rows")
	}
	if strings.Contains(upper, " ORDER BY ") {
		ex.Steps = append(ex.Steps, "Sort the output")
	}
	if sqltext.HasLimit(stmt) {
		ex.Steps = append(ex.Steps, "Limit the number of returned rows")
	}
	ex.Summary = summarize(ex.TablesUsed, len(ex.ColumnsSelected), strings.Contains(upper, " WHERE "), stmtCount)
	return ex
}

func heuristicColumns(stmt string) []string {
	upper := strings.ToUpper(stmt)
	start := strings.Index(upper, "SELECT")
	end := strings.Index(upper, " FROM ")
	if start < 0 || end <= start {
		return []string{}
	}
	list := stmt[start+len("SELECT") : end]
	var cols []string
	depth := 0
	field := strings.Builder{}
	flush := func() {
		if c := strings.TrimSpace(field.String()); c != "" {
			cols = append(cols, c)
		}
		field.Reset()
	}
	for _, r := range list {
		switch {
		case r == '(':
			depth++
			field.WriteRune(r)
		case r == ')':
			depth--
			field.WriteRune(r)
		case r == ',' && depth == 0:
			flush()
		default:
			field.WriteRune(r)
		}
	}
	flush()
	if cols == nil {
		return []string{}
	}
	return cols
}

func summarize(tables []string, columns int, filtered bool, stmtCount int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Selects %d column(s)", columns))
	if len(tables) > 0 {
		b.WriteString(" from " + strings.Join(tables, ", "))
	}
	if filtered {
		b.WriteString(" with a row filter")
	}
	if stmtCount > 1 {
		b.WriteString(fmt.Sprintf("; first of %d statements", stmtCount))
	}
	b.WriteString(".")
	return b.String()
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return list
		}
	}
	return append(list, s)
}
