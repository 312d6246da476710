// Package discovery enumerates tables in a warehouse schema and finds
// plausible alternatives for missing or empty ones. Listings are served
// through an injected TTL cache; callers can bypass it with refresh.
package discovery

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakedict/lakedict/pkg/cache"
	"github.com/lakedict/lakedict/pkg/snowflake"
	"github.com/lakedict/lakedict/pkg/sqltext"
)

// DefaultTimeout bounds each catalog call against the warehouse.
const DefaultTimeout = 15 * time.Second

// TableInfo is one table in a schema listing.
type TableInfo struct {
	Name     string `json:"name"`
	RowCount int64  `json:"row_count"`
}

// Candidate is a scored replacement for a missing or empty table.
type Candidate struct {
	Name     string
	Score    float64
	RowCount int64
	Reason   string
}

// Service answers existence, row-count and similar-table questions for one
// warehouse. The cache is scoped by the caller-supplied scope key so two
// identities with different privileges never share listings.
type Service struct {
	cache   *cache.TTL[[]TableInfo]
	names   *cache.TTL[[]string]
	columns *cache.TTL[[]Column]
	timeout time.Duration
	logger  zerolog.Logger
}

func New(c *cache.TTL[[]TableInfo], timeout time.Duration, logger zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		cache:   c,
		names:   cache.NewTTL[[]string](CatalogTTL, 256),
		columns: cache.NewTTL[[]Column](CatalogTTL, 512),
		timeout: timeout,
		logger:  logger,
	}
}

// ListTables returns the tables in database.schema with approximate row
// counts. refresh bypasses the cache for this call and repopulates it.
func (s *Service) ListTables(ctx context.Context, db snowflake.DB, scope, database, schema string, refresh bool) ([]TableInfo, error) {
	key := scope + "|" + strings.ToUpper(database) + "." + strings.ToUpper(schema)
	if !refresh && s.cache != nil {
		if tables, ok := s.cache.Get(key); ok {
			return tables, nil
		}
	}

	dbIdent, err := sqltext.ValidateIdentifier(database)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// INFORMATION_SCHEMA carries row counts in the same scan; SHOW TABLES
	// would need a second pass to get them as typed values.
	q := fmt.Sprintf(
		`SELECT table_name, COALESCE(row_count, 0) FROM %s.INFORMATION_SCHEMA.TABLES WHERE table_schema = ? AND table_type = 'BASE TABLE' ORDER BY table_name`,
		dbIdent)
	rows, err := db.QueryContext(ctx, q, strings.ToUpper(schema))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Name, &t.RowCount); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(key, tables)
	}
	return tables, nil
}

// DescribeTable returns the table's column names, or exists=false when the
// warehouse reports the object missing. Other failures are returned as-is.
func (s *Service) DescribeTable(ctx context.Context, db snowflake.DB, database, schema, table string) (exists bool, columns []string, err error) {
	fq, err := qualifiedName(database, schema, table)
	if err != nil {
		return false, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := db.QueryContext(ctx, "DESCRIBE TABLE "+fq)
	if err != nil {
		if snowflake.KindOf(err) == snowflake.KindObjectNotFound {
			return false, nil, nil
		}
		return false, nil, err
	}
	defer rows.Close()

	columns, err = scanFirstColumn(rows)
	if err != nil {
		return false, nil, err
	}
	return true, columns, nil
}

// RowCount returns the table's row count.
func (s *Service) RowCount(ctx context.Context, db snowflake.DB, database, schema, table string) (int64, error) {
	fq, err := qualifiedName(database, schema, table)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var n int64
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s LIMIT 1", fq))
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, rows.Err()
	}
	if err := rows.Scan(&n); err != nil {
		return 0, err
	}
	return n, rows.Err()
}

// FindSimilar lists the schema and scores every table with data against
// target. Empty tables and the target itself never appear in the result.
// Candidates come back sorted by score, row count breaking ties. refresh
// bypasses the cached schema listing.
func (s *Service) FindSimilar(ctx context.Context, db snowflake.DB, scope, database, schema, target string, refresh bool) ([]Candidate, error) {
	tables, err := s.ListTables(ctx, db, scope, database, schema, refresh)
	if err != nil {
		return nil, err
	}

	upper := strings.ToUpper(target)
	var out []Candidate
	for _, t := range tables {
		if t.RowCount == 0 || strings.ToUpper(t.Name) == upper {
			continue
		}
		score, reason := ScoreName(target, t.Name)
		if score <= 0 {
			continue
		}
		out = append(out, Candidate{Name: t.Name, Score: score, RowCount: t.RowCount, Reason: reason})
	}
	sortCandidates(out)
	return out, nil
}

// ScoreName rates candidate as a replacement for target. Names are compared
// after stripping the _ENTITY suffix and underscores.
func ScoreName(target, candidate string) (float64, string) {
	t := normalizeName(target)
	c := normalizeName(candidate)

	switch {
	case t == c:
		return 1.0, "same name"
	case strings.Contains(c, t) || strings.Contains(t, c):
		return 0.8, "name contains " + strings.ToUpper(target)
	case len(t) >= 4 && len(c) >= 4 && t[:4] == c[:4]:
		return 0.6, "shares prefix with " + strings.ToUpper(target)
	case strings.HasSuffix(strings.ToUpper(candidate), "_ENTITY"):
		return 0.3, "entity table with data"
	default:
		return 0, ""
	}
}

// normalizeName strips underscores first so TABLE_ENTITY and TABLEENTITY
// reduce to the same form before the suffix comes off.
func normalizeName(name string) string {
	n := strings.ReplaceAll(strings.ToUpper(name), "_", "")
	return strings.TrimSuffix(n, "ENTITY")
}

func sortCandidates(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].RowCount > cs[j].RowCount
	})
}

func qualifiedName(database, schema, table string) (string, error) {
	raw := table
	if schema != "" {
		raw = schema + "." + raw
	}
	if database != "" {
		if schema == "" {
			return "", &sqltext.InvalidIdentifierError{Name: database + ".." + table, Reason: "database given without schema"}
		}
		raw = database + "." + raw
	}
	return sqltext.ValidateIdentifier(raw)
}

// scanFirstColumn reads the first column of every row as a string, sized to
// whatever column set the statement returned.
func scanFirstColumn(rows *sql.Rows) ([]string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	var out []string
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		switch v := vals[0].(type) {
		case string:
			out = append(out, v)
		case []byte:
			out = append(out, string(v))
		default:
			out = append(out, fmt.Sprintf("%v", v))
		}
	}
	return out, rows.Err()
}
