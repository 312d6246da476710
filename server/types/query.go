package types

import (
	"github.com/lakedict/lakedict/pkg/history"
	"github.com/lakedict/lakedict/pkg/query"
	"github.com/lakedict/lakedict/pkg/suggest"
)

// Query API Types

type ExecuteRequest struct {
	SQL string `json:"sql"`
	// Context overrides for this execution only.
	Warehouse string `json:"warehouse,omitempty"`
	Database  string `json:"database,omitempty"`
	Schema    string `json:"schema,omitempty"`
	// TimeoutSeconds of zero means the server default.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
	RowLimit       int `json:"row_limit,omitempty"`
}

type ExecuteResponse struct {
	QueryID         string `json:"query_id"`
	Status          string `json:"status"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
	RowCount        int    `json:"row_count"`
	Truncated       bool   `json:"truncated,omitempty"`
	Message         string `json:"message,omitempty"`
}

type QueryStatusResponse struct {
	QueryID         string `json:"query_id"`
	Status          string `json:"status"`
	RowCount        int    `json:"row_count"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

type ResultsResponse struct {
	Columns   []query.ColumnMeta `json:"columns"`
	Rows      [][]query.Value    `json:"rows"`
	TotalRows int                `json:"total_rows"`
	Page      int                `json:"page"`
	PageSize  int                `json:"page_size"`
	HasMore   bool               `json:"has_more"`
}

type CancelResponse struct {
	Message string `json:"message"`
}

// Preflight and Validation Types

type PreflightRequest struct {
	SQL      string `json:"sql"`
	Database string `json:"database,omitempty"`
	Schema   string `json:"schema,omitempty"`
	Refresh  bool   `json:"refresh,omitempty"`
}

type ValidateBatchRequest struct {
	Queries  []string `json:"queries"`
	Database string   `json:"database,omitempty"`
	Schema   string   `json:"schema,omitempty"`
}

type ValidateBatchResponse struct {
	Results []query.BatchResult `json:"results"`
	Summary query.BatchSummary  `json:"summary"`
}

// Explain Types

type ExplainRequest struct {
	SQL string `json:"sql"`
	// Execute additionally runs the statement and attaches the outcome.
	Execute bool `json:"execute,omitempty"`
}

type ExplainResponse struct {
	Steps           []string         `json:"steps"`
	Summary         string           `json:"summary"`
	TablesUsed      []string         `json:"tables_used"`
	ColumnsSelected []string         `json:"columns_selected"`
	Execution       *ExecuteResponse `json:"execution,omitempty"`
}

// Suggestion Types

type SuggestRequest struct {
	SQL          string `json:"sql"`
	ErrorMessage string `json:"error_message"`
}

type SuggestResponse struct {
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

// History Types

type HistoryResponse struct {
	Items []history.Entry `json:"items"`
	Total int             `json:"total"`
}

type HistoryClearedResponse struct {
	Cleared int64  `json:"cleared"`
	Message string `json:"message"`
}
