package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lakedict/lakedict/pkg/discovery"
	"github.com/lakedict/lakedict/pkg/history"
	"github.com/lakedict/lakedict/pkg/query"
	"github.com/lakedict/lakedict/pkg/session"
	"github.com/lakedict/lakedict/pkg/snowflake"
	"github.com/lakedict/lakedict/pkg/sqltext"
	"github.com/lakedict/lakedict/pkg/suggest"
	"github.com/lakedict/lakedict/server/apierror"
	"github.com/lakedict/lakedict/server/types"
)

const defaultHistoryLimit = 50

// QueryHandler handles query execution, validation and repair requests.
type QueryHandler struct {
	mgr       *session.Manager
	svc       *query.Service
	disc      *discovery.Service
	engine    *suggest.Engine
	schema    *suggest.SchemaCache
	hist      *history.Store
	extractor sqltext.RefExtractor
	logger    zerolog.Logger
}

// NewQueryHandler creates a query handler. hist may be nil when history is
// disabled.
func NewQueryHandler(mgr *session.Manager, svc *query.Service, disc *discovery.Service, schema *suggest.SchemaCache, hist *history.Store, logger zerolog.Logger) *QueryHandler {
	return &QueryHandler{
		mgr:       mgr,
		svc:       svc,
		disc:      disc,
		engine:    suggest.NewEngine(schema),
		schema:    schema,
		hist:      hist,
		extractor: sqltext.RegexExtractor{},
		logger:    logger,
	}
}

// Execute runs SQL synchronously on the caller's session. SQL failures
// come back as 200 with status FAILED; only infrastructure problems map to
// error status codes.
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req types.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, apierror.InvalidInput("invalid request body"))
		return
	}
	sqlText := strings.TrimSpace(req.SQL)
	if sqlText == "" {
		sendError(w, apierror.InvalidInput("sql is required"))
		return
	}
	if !sqltext.IsQueryAllowed(sqlText) {
		sendError(w, apierror.InvalidInput("statement type not allowed"))
		return
	}

	sess := requireSession(w, r, h.mgr)
	if sess == nil {
		return
	}

	res := h.svc.Execute(r.Context(), sess, sqlText, query.Options{
		Warehouse: req.Warehouse,
		Database:  req.Database,
		Schema:    req.Schema,
		Timeout:   time.Duration(req.TimeoutSeconds) * time.Second,
		RowLimit:  req.RowLimit,
	})
	h.record(r, sess, res)

	status := res.Status()
	switch {
	case status == query.StatusTimeout:
		sendError(w, apierror.StatementTimeout(res.ErrorMessage))
		return
	case status == query.StatusFailed && res.ErrorKind == snowflake.KindNetwork:
		sendError(w, apierror.WarehouseUnreachable(res.ErrorMessage))
		return
	case status == query.StatusFailed && res.ErrorKind == snowflake.KindAuth:
		sendError(w, apierror.SessionNotFound())
		return
	}

	writeJSON(w, http.StatusOK, types.ExecuteResponse{
		QueryID:         res.QueryID,
		Status:          string(status),
		ExecutionTimeMS: res.Duration(time.Now()).Milliseconds(),
		RowCount:        res.RowCount,
		Truncated:       res.Truncated,
		Message:         res.ErrorMessage,
	})
}

// QueryStatus polls one stored result. Served from memory, so it stays
// responsive while the session's connection is busy executing.
func (h *QueryHandler) QueryStatus(w http.ResponseWriter, r *http.Request) {
	sess := peekSession(w, r, h.mgr)
	if sess == nil {
		return
	}
	queryID := chi.URLParam(r, "queryID")

	res, err := h.svc.Status(sess.ID, queryID)
	if err != nil {
		sendError(w, apierror.QueryNotFound(queryID))
		return
	}
	writeJSON(w, http.StatusOK, types.QueryStatusResponse{
		QueryID:         res.QueryID,
		Status:          string(res.Status()),
		RowCount:        res.RowCount,
		ExecutionTimeMS: res.Duration(time.Now()).Milliseconds(),
		ErrorMessage:    res.ErrorMessage,
	})
}

// QueryResults returns one page of a successful result.
func (h *QueryHandler) QueryResults(w http.ResponseWriter, r *http.Request) {
	sess := peekSession(w, r, h.mgr)
	if sess == nil {
		return
	}
	queryID := chi.URLParam(r, "queryID")
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", query.DefaultPageSize)

	res, err := h.svc.Results(sess.ID, queryID, page, pageSize)
	if err != nil {
		var failed *query.FailedError
		switch {
		case errors.Is(err, query.ErrNotFound):
			sendError(w, apierror.QueryNotFound(queryID))
		case errors.Is(err, query.ErrStillRunning):
			sendError(w, apierror.QueryStillRunning(queryID))
		case errors.As(err, &failed):
			sendError(w, apierror.InvalidInput(failed.Error()))
		default:
			sendError(w, apierror.Internal(requestID(r)))
		}
		return
	}
	writeJSON(w, http.StatusOK, types.ResultsResponse{
		Columns:   res.Columns,
		Rows:      res.Rows,
		TotalRows: res.TotalRows,
		Page:      res.Page,
		PageSize:  res.PageSize,
		HasMore:   res.HasMore,
	})
}

// CancelQuery marks a stored result cancelled. The marking is local and
// immediate; the driver delivers the warehouse-side abort through the
// execution context.
func (h *QueryHandler) CancelQuery(w http.ResponseWriter, r *http.Request) {
	sess := peekSession(w, r, h.mgr)
	if sess == nil {
		return
	}
	queryID := chi.URLParam(r, "queryID")

	marked, err := h.svc.Cancel(sess.ID, queryID)
	if err != nil {
		sendError(w, apierror.QueryNotFound(queryID))
		return
	}
	msg := "cancellation requested"
	if !marked {
		msg = "query already completed"
	}
	writeJSON(w, http.StatusOK, types.CancelResponse{Message: msg})
}

// Preflight checks every referenced table for existence and rows without
// running the query.
func (h *QueryHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	var req types.PreflightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, apierror.InvalidInput("invalid request body"))
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		sendError(w, apierror.InvalidInput("sql is required"))
		return
	}
	sess := requireSession(w, r, h.mgr)
	if sess == nil {
		return
	}

	res, err := h.svc.Preflight(r.Context(), sess, req.SQL, req.Database, req.Schema, req.Refresh)
	if err != nil {
		h.logger.Warn().Err(err).Msg("preflight failed")
		sendError(w, apierror.FromKind(snowflake.KindOf(err), err.Error(), requestID(r)))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ValidateBatch runs every query with a small row cap and reports sample
// rows plus repair suggestions.
func (h *QueryHandler) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req types.ValidateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, apierror.InvalidInput("invalid request body"))
		return
	}
	if len(req.Queries) == 0 {
		sendError(w, apierror.InvalidInput("queries is required"))
		return
	}
	sess := requireSession(w, r, h.mgr)
	if sess == nil {
		return
	}

	results, summary, err := h.svc.ValidateBatch(r.Context(), sess, req.Queries, req.Database, req.Schema)
	if err != nil {
		sendError(w, apierror.FromKind(snowflake.KindOf(err), err.Error(), requestID(r)))
		return
	}
	writeJSON(w, http.StatusOK, types.ValidateBatchResponse{Results: results, Summary: summary})
}

// Explain returns a plain-language breakdown of the first statement and,
// when requested, runs it too.
func (h *QueryHandler) Explain(w http.ResponseWriter, r *http.Request) {
	var req types.ExplainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, apierror.InvalidInput("invalid request body"))
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		sendError(w, apierror.InvalidInput("sql is required"))
		return
	}

	ex := h.svc.Explain(req.SQL)
	resp := types.ExplainResponse{
		Steps:           ex.Steps,
		Summary:         ex.Summary,
		TablesUsed:      ex.TablesUsed,
		ColumnsSelected: ex.ColumnsSelected,
	}

	if req.Execute {
		sess := requireSession(w, r, h.mgr)
		if sess == nil {
			return
		}
		res := h.svc.Execute(r.Context(), sess, req.SQL, query.Options{})
		h.record(r, sess, res)
		resp.Execution = &types.ExecuteResponse{
			QueryID:         res.QueryID,
			Status:          string(res.Status()),
			ExecutionTimeMS: res.Duration(time.Now()).Milliseconds(),
			RowCount:        res.RowCount,
			Truncated:       res.Truncated,
			Message:         res.ErrorMessage,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Suggest computes ranked repair suggestions for a failed query. The schema
// snapshot is refreshed from the catalog for the tables the query touches
// before the engine runs.
func (h *QueryHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req types.SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, apierror.InvalidInput("invalid request body"))
		return
	}
	if strings.TrimSpace(req.ErrorMessage) == "" {
		sendError(w, apierror.InvalidInput("error_message is required"))
		return
	}
	sess := requireSession(w, r, h.mgr)
	if sess == nil {
		return
	}

	h.refreshSchema(r, sess, req.SQL)
	suggestions := h.engine.FromError(req.SQL, req.ErrorMessage)
	writeJSON(w, http.StatusOK, types.SuggestResponse{Suggestions: suggestions})
}

// refreshSchema seeds the suggestion engine's snapshot from the catalog:
// table names for the session's schema, columns only for the tables the
// failing query references. Catalog errors degrade to whatever snapshot is
// already cached.
func (h *QueryHandler) refreshSchema(r *http.Request, sess *session.Session, sqlText string) {
	if h.disc == nil || sess.Database == "" || sess.Schema == "" {
		return
	}
	ctx := r.Context()
	scope := cacheScope(sess)

	tables, err := h.disc.ListTables(ctx, sess.Conn(), scope, sess.Database, sess.Schema, false)
	if err != nil {
		h.logger.Debug().Err(err).Msg("schema snapshot listing failed")
		return
	}
	for _, t := range tables {
		if !h.schema.Has(t.Name) {
			h.schema.Put(t.Name, nil)
		}
	}

	for _, ref := range h.extractor.ExtractTableRefs(sqlText) {
		resolved := ref.Resolve(sess.Database, sess.Schema)
		cols, err := h.disc.ListColumns(ctx, sess.Conn(), scope, resolved.Database, resolved.Schema, resolved.Table, false)
		if err != nil || len(cols) == 0 {
			continue
		}
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		h.schema.Put(resolved.Table, names)
	}
}

// History lists past executions, newest first.
func (h *QueryHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.hist == nil {
		writeJSON(w, http.StatusOK, types.HistoryResponse{Items: []history.Entry{}})
		return
	}
	limit := queryInt(r, "limit", defaultHistoryLimit)
	offset := queryInt(r, "offset", 0)
	status := r.URL.Query().Get("status")

	items, total, err := h.hist.List(r.Context(), limit, offset, status)
	if err != nil {
		h.logger.Error().Err(err).Msg("history listing failed")
		sendError(w, apierror.Internal(requestID(r)))
		return
	}
	if items == nil {
		items = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, types.HistoryResponse{Items: items, Total: total})
}

// ClearHistory drops every persisted history entry.
func (h *QueryHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if h.hist == nil {
		writeJSON(w, http.StatusOK, types.HistoryClearedResponse{Message: "history disabled"})
		return
	}
	n, err := h.hist.Clear(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("history clear failed")
		sendError(w, apierror.Internal(requestID(r)))
		return
	}
	writeJSON(w, http.StatusOK, types.HistoryClearedResponse{Cleared: n, Message: "history cleared"})
}

// record persists one execution outcome. History failures never affect the
// response.
func (h *QueryHandler) record(r *http.Request, sess *session.Session, res *query.Result) {
	if h.hist == nil {
		return
	}
	err := h.hist.Add(r.Context(), history.Entry{
		User:         sess.User,
		SQL:          res.SQL,
		Status:       string(res.Status()),
		RowCount:     res.RowCount,
		DurationMs:   res.Duration(time.Now()).Milliseconds(),
		ErrorMessage: res.ErrorMessage,
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("history write failed")
	}
}
