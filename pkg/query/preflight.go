package query

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/lakedict/lakedict/pkg/session"
	"github.com/lakedict/lakedict/pkg/snowflake"
	"github.com/lakedict/lakedict/pkg/sqltext"
)

// Relevance a candidate must reach before it is proposed. A missing table
// accepts weaker matches than an empty one, where the sibling is usually a
// near-identical name.
const (
	missingThreshold = 0.5
	emptyThreshold   = 0.6

	maxSuggestionsPerTable = 3
	defaultSampleRows      = 5
)

// TableCheck is the outcome of probing one referenced table.
type TableCheck struct {
	Table    string   `json:"table"`
	Exists   bool     `json:"exists"`
	RowCount int64    `json:"row_count"`
	Columns  []string `json:"columns,omitempty"`
}

// TableSuggestion proposes a replacement for a missing or empty table.
type TableSuggestion struct {
	Table          string  `json:"table"`
	SuggestedTable string  `json:"suggested_table"`
	Reason         string  `json:"reason"`
	RelevanceScore float64 `json:"relevance_score"`
	RowCount       int64   `json:"row_count"`
}

// PreflightResult aggregates the per-table checks for one query.
type PreflightResult struct {
	Valid          bool              `json:"valid"`
	TablesChecked  []TableCheck      `json:"tables_checked"`
	Issues         []string          `json:"issues"`
	Suggestions    []TableSuggestion `json:"suggestions"`
	SuggestedQuery string            `json:"suggested_query,omitempty"`
}

// Preflight probes every table the query references for existence and row
// count, and proposes replacements for the ones that fail. The checks run
// live against the warehouse; only the schema listing is cached, and
// refresh forces it to be re-read.
func (s *Service) Preflight(ctx context.Context, sess *session.Session, sqlText, defaultDB, defaultSchema string, refresh bool) (*PreflightResult, error) {
	release := sess.Acquire()
	defer release()
	return s.preflight(ctx, sess, sqlText, defaultDB, defaultSchema, refresh)
}

func (s *Service) preflight(ctx context.Context, sess *session.Session, sqlText, defaultDB, defaultSchema string, refresh bool) (*PreflightResult, error) {
	if defaultDB == "" {
		defaultDB = sess.Database
	}
	if defaultSchema == "" {
		defaultSchema = sess.Schema
	}

	out := &PreflightResult{
		Valid:         true,
		TablesChecked: []TableCheck{},
		Issues:        []string{},
		Suggestions:   []TableSuggestion{},
	}
	conn := sess.Conn()
	scope := cacheScope(sess)
	rewritten := sqlText

	for _, ref := range s.extractor.ExtractTableRefs(sqlText) {
		resolved := ref.Resolve(defaultDB, defaultSchema)
		check := TableCheck{Table: resolved.String()}

		exists, cols, err := s.disc.DescribeTable(ctx, conn, resolved.Database, resolved.Schema, resolved.Table)
		if err != nil {
			return nil, err
		}
		check.Exists = exists
		check.Columns = cols

		threshold := 0.0
		switch {
		case !exists:
			out.Valid = false
			out.Issues = append(out.Issues, fmt.Sprintf("Table %s does not exist", resolved.String()))
			threshold = missingThreshold
		default:
			n, err := s.disc.RowCount(ctx, conn, resolved.Database, resolved.Schema, resolved.Table)
			if err != nil {
				if snowflake.KindOf(err) == snowflake.KindNetwork {
					return nil, err
				}
				out.Issues = append(out.Issues, fmt.Sprintf("Could not count rows in %s", resolved.String()))
			}
			check.RowCount = n
			if n == 0 {
				out.Issues = append(out.Issues, fmt.Sprintf("Table %s is empty", resolved.String()))
				threshold = emptyThreshold
			}
		}
		out.TablesChecked = append(out.TablesChecked, check)

		if threshold == 0 {
			continue
		}
		candidates, err := s.disc.FindSimilar(ctx, conn, scope, resolved.Database, resolved.Schema, resolved.Table, refresh)
		refresh = false // one refresh per call is enough; later tables reuse it
		if err != nil {
			s.logger.Debug().Err(err).Str("table", resolved.String()).Msg("similar-table search failed")
			continue
		}
		added := 0
		for _, cand := range candidates {
			if cand.Score < threshold || added >= maxSuggestionsPerTable {
				break
			}
			out.Suggestions = append(out.Suggestions, TableSuggestion{
				Table:          resolved.String(),
				SuggestedTable: cand.Name,
				Reason:         cand.Reason,
				RelevanceScore: cand.Score,
				RowCount:       cand.RowCount,
			})
			added++
		}
		if len(candidates) > 0 && candidates[0].Score >= threshold {
			replacement := sqltext.TableRef{
				Database: resolved.Database,
				Schema:   resolved.Schema,
				Table:    candidates[0].Name,
			}
			rewritten = replaceTableRef(rewritten, ref, replacement)
		}
	}

	if rewritten != sqlText {
		out.SuggestedQuery = rewritten
	}
	return out, nil
}

// replaceTableRef substitutes the reference as it appeared in the query text
// with the fully qualified replacement.
func replaceTableRef(sqlText string, old sqltext.TableRef, repl sqltext.TableRef) string {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(old.String()) + `\b`)
	if err != nil {
		return sqlText
	}
	return re.ReplaceAllString(sqlText, repl.String())
}

func cacheScope(sess *session.Session) string {
	return strings.Join([]string{sess.Account, sess.User, sess.Role}, ":")
}

// BatchResult is the outcome of validating one query of a batch.
type BatchResult struct {
	Status         string       `json:"status"` // success, empty or error
	RowCount       int          `json:"row_count"`
	Columns        []ColumnMeta `json:"columns,omitempty"`
	SampleData     [][]Value    `json:"sample_data,omitempty"`
	Error          string       `json:"error,omitempty"`
	SuggestedQuery string       `json:"suggested_query,omitempty"`
}

// BatchSummary counts batch outcomes.
type BatchSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Empty     int `json:"empty"`
	Failed    int `json:"failed"`
}

// ValidateBatch executes every query with a small row cap and returns sample
// rows plus repair suggestions for the ones that failed or came back empty.
// Unlike Preflight this consumes warehouse compute for each query.
func (s *Service) ValidateBatch(ctx context.Context, sess *session.Session, queries []string, defaultDB, defaultSchema string) ([]BatchResult, BatchSummary, error) {
	release := sess.Acquire()
	defer release()

	conn := sess.Conn()
	results := make([]BatchResult, 0, len(queries))
	summary := BatchSummary{Total: len(queries)}

	for _, q := range queries {
		qctx, cancel := context.WithTimeout(ctx, s.defaultTimeout)
		cols, data, _, err := s.runSingle(qctx, conn, q, defaultSampleRows)
		cancel()

		var br BatchResult
		switch {
		case err != nil:
			if kind := snowflake.KindOf(err); kind == snowflake.KindNetwork {
				return nil, BatchSummary{}, err
			}
			br = BatchResult{Status: "error", Error: err.Error()}
			summary.Failed++
		case len(data) == 0:
			br = BatchResult{Status: "empty", Columns: cols}
			summary.Empty++
		default:
			br = BatchResult{Status: "success", RowCount: len(data), Columns: cols, SampleData: data}
			summary.Succeeded++
		}

		if br.Status != "success" {
			if pf, perr := s.preflight(ctx, sess, q, defaultDB, defaultSchema, false); perr == nil {
				br.SuggestedQuery = pf.SuggestedQuery
			}
		}
		results = append(results, br)
	}
	return results, summary, nil
}
