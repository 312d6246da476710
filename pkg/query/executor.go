package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	sf "github.com/snowflakedb/gosnowflake"

	"github.com/lakedict/lakedict/pkg/discovery"
	"github.com/lakedict/lakedict/pkg/session"
	"github.com/lakedict/lakedict/pkg/snowflake"
	"github.com/lakedict/lakedict/pkg/sqltext"
)

const (
	DefaultRowLimit       = 10000
	DefaultTimeout        = 5 * time.Minute
	MaxTimeout            = 30 * time.Minute
	DefaultResultCapacity = 50
	DefaultPageSize       = 100
)

var (
	// ErrNotFound means no result is stored under the query ID.
	ErrNotFound = errors.New("query result not found")
	// ErrStillRunning means results were requested before completion.
	ErrStillRunning = errors.New("query is still running")
)

// FailedError carries the stored failure when results are requested for a
// query that did not succeed.
type FailedError struct {
	Status  Status
	Message string
	Kind    snowflake.Kind
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("query %s: %s", strings.ToLower(string(e.Status)), e.Message)
}

// Options adjusts one execution. Zero values fall back to service defaults.
type Options struct {
	Warehouse string
	Database  string
	Schema    string
	Timeout   time.Duration
	RowLimit  int
}

// Service executes SQL on session connections and stores the outcomes for
// later status polls and paginated retrieval. Execution is synchronous
// within the caller's request; the stored result is a cache, not a job.
type Service struct {
	registry       *registry
	extractor      sqltext.RefExtractor
	disc           *discovery.Service
	logger         zerolog.Logger
	defaultTimeout time.Duration
	rowLimit       int
	now            func() time.Time
}

// NewService builds the orchestrator. resultCapacity bounds per-session
// stored results, rowLimit bounds rows fetched per query. disc backs the
// preflight checks and may be nil when preflight is not used.
func NewService(resultCapacity, rowLimit int, defaultTimeout time.Duration, disc *discovery.Service, logger zerolog.Logger) *Service {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Service{
		registry:       newRegistry(resultCapacity),
		extractor:      sqltext.RegexExtractor{},
		disc:           disc,
		logger:         logger,
		defaultTimeout: defaultTimeout,
		rowLimit:       rowLimit,
		now:            time.Now,
	}
}

// Execute runs sqlText on the session's connection and returns the stored
// result. SQL failures are a normal outcome recorded on the result, not an
// error; the returned result is always non-nil.
func (s *Service) Execute(ctx context.Context, sess *session.Session, sqlText string, opts Options) *Result {
	release := sess.Acquire()
	defer release()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	rowLimit := opts.RowLimit
	if rowLimit <= 0 || rowLimit > s.rowLimit {
		rowLimit = s.rowLimit
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := newResult(uuid.NewString(), sess.ID, sqlText, cancel, s.now())
	s.registry.forSession(sess.ID).put(res)

	conn := sess.Conn()
	if err := s.prepareSession(execCtx, conn, res.QueryID, timeout, opts); err != nil {
		s.fail(res, err)
		return res
	}

	idCh := make(chan string, 1)
	execCtx = sf.WithQueryIDChan(execCtx, idCh)

	count := sqltext.CountStatements(sqlText)
	var (
		cols      []ColumnMeta
		data      [][]Value
		truncated bool
		err       error
	)
	if count > 1 {
		cols, data, truncated, err = s.runMulti(execCtx, conn, sqlText, count, rowLimit)
	} else {
		cols, data, truncated, err = s.runSingle(execCtx, conn, sqlText, rowLimit)
	}

	select {
	case id := <-idCh:
		res.setNativeQueryID(id)
	default:
	}

	if err != nil {
		s.fail(res, err)
		return res
	}

	res.setSuccess(s.now(), cols, data, truncated)
	s.logger.Debug().
		Str("session_id", sess.ID).
		Str("query_id", res.QueryID).
		Int("rows", len(data)).
		Int("statements", count).
		Msg("query executed")
	return res
}

// prepareSession applies per-request context and the server-side statement
// timeout on the pinned connection before the query runs.
func (s *Service) prepareSession(ctx context.Context, conn snowflake.DB, queryID string, timeout time.Duration, opts Options) error {
	use := []struct{ verb, name string }{
		{"USE WAREHOUSE", opts.Warehouse},
		{"USE DATABASE", opts.Database},
		{"USE SCHEMA", opts.Schema},
	}
	for _, u := range use {
		if u.name == "" {
			continue
		}
		ident, err := sqltext.ValidateIdentifier(u.name)
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, u.verb+" "+ident); err != nil {
			return err
		}
	}

	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("ALTER SESSION SET STATEMENT_TIMEOUT_IN_SECONDS = %d", secs)); err != nil {
		return err
	}
	// Tag for correlation in the warehouse's own query history. The query ID
	// is a generated UUID, safe to inline.
	_, err := conn.ExecContext(ctx, fmt.Sprintf("ALTER SESSION SET QUERY_TAG = 'lakedict:%s'", queryID))
	return err
}

func (s *Service) runSingle(ctx context.Context, conn snowflake.DB, sqlText string, rowLimit int) ([]ColumnMeta, [][]Value, bool, error) {
	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()
	return scanResultSet(rows, rowLimit)
}

// runMulti executes a statement batch and keeps the last result set that
// actually returned rows, so a script ending in a non-SELECT does not blank
// out an earlier SELECT's output. When no set has rows, the last one wins.
func (s *Service) runMulti(ctx context.Context, conn snowflake.DB, sqlText string, count, rowLimit int) ([]ColumnMeta, [][]Value, bool, error) {
	mctx, err := sf.WithMultiStatement(ctx, count)
	if err != nil {
		return nil, nil, false, err
	}
	rows, err := conn.QueryContext(mctx, sqlText)
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	var (
		lastCols, keptCols         []ColumnMeta
		lastData, keptData         [][]Value
		lastTrunc, keptTrunc, kept bool
	)
	for {
		cols, data, trunc, err := scanResultSet(rows, rowLimit)
		if err != nil {
			return nil, nil, false, err
		}
		lastCols, lastData, lastTrunc = cols, data, trunc
		if len(data) > 0 {
			keptCols, keptData, keptTrunc, kept = cols, data, trunc, true
		}
		if !rows.NextResultSet() {
			break
		}
	}
	if !kept {
		keptCols, keptData, keptTrunc = lastCols, lastData, lastTrunc
	}
	return keptCols, keptData, keptTrunc, rows.Err()
}

func scanResultSet(rows *sql.Rows, rowLimit int) ([]ColumnMeta, [][]Value, bool, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, nil, false, err
	}
	cols := make([]ColumnMeta, len(names))
	for i, n := range names {
		cols[i] = ColumnMeta{Name: n}
	}
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			if i < len(cols) {
				cols[i].Type = ct.DatabaseTypeName()
			}
		}
	}

	var data [][]Value
	truncated := false
	raw := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if len(data) >= rowLimit {
			truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, false, err
		}
		row := make([]Value, len(names))
		for i, v := range raw {
			row[i] = FromDriver(v)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, false, err
	}
	return cols, data, truncated, nil
}

// fail records a terminal failure classified from the driver error. A result
// already cancelled locally keeps its CANCELLED status.
func (s *Service) fail(res *Result, err error) {
	kind := snowflake.KindOf(err)
	status := StatusFailed
	switch kind {
	case snowflake.KindTimeout:
		status = StatusTimeout
	case snowflake.KindCancelled:
		status = StatusCancelled
	}
	if nativeID := snowflake.QueryID(err); nativeID != "" {
		res.setNativeQueryID(nativeID)
	}
	if res.setFailure(s.now(), status, err.Error(), kind) {
		s.logger.Debug().
			Str("query_id", res.QueryID).
			Str("kind", kind.String()).
			Msg("query failed")
	}
}

// Status returns the stored result for a query.
func (s *Service) Status(sessionID, queryID string) (*Result, error) {
	store, ok := s.registry.lookup(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	res, ok := store.get(queryID)
	if !ok {
		return nil, ErrNotFound
	}
	return res, nil
}

// ResultPage is one page of a stored result's rows.
type ResultPage struct {
	Columns   []ColumnMeta
	Rows      [][]Value
	TotalRows int
	Page      int
	PageSize  int
	HasMore   bool
}

// Results paginates a successful result's rows.
func (s *Service) Results(sessionID, queryID string, page, pageSize int) (*ResultPage, error) {
	res, err := s.Status(sessionID, queryID)
	if err != nil {
		return nil, err
	}
	switch st := res.Status(); st {
	case StatusRunning:
		return nil, ErrStillRunning
	case StatusSuccess:
	default:
		return nil, &FailedError{Status: st, Message: res.ErrorMessage, Kind: res.ErrorKind}
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := len(res.Rows)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return &ResultPage{
		Columns:   res.Columns,
		Rows:      res.Rows[start:end],
		TotalRows: total,
		Page:      page,
		PageSize:  pageSize,
		HasMore:   end < total,
	}, nil
}

// Cancel marks the stored result cancelled. Local state is authoritative:
// the marking cancels the execution context, which the driver turns into a
// warehouse-side abort of the running statement. No statement is issued on
// the session's connection, so cancellation works while it is busy.
func (s *Service) Cancel(sessionID, queryID string) (bool, error) {
	res, err := s.Status(sessionID, queryID)
	if err != nil {
		return false, err
	}
	marked := res.requestCancel(s.now())
	if marked {
		s.logger.Debug().Str("query_id", queryID).Msg("cancellation requested")
	}
	return marked, nil
}

// ResultCount reports how many results a session currently holds.
func (s *Service) ResultCount(sessionID string) int {
	store, ok := s.registry.lookup(sessionID)
	if !ok {
		return 0
	}
	return store.len()
}

// DropSession releases every result the session accumulated. Wire this to
// the session manager's removal hook.
func (s *Service) DropSession(sessionID string) {
	s.registry.drop(sessionID)
}
