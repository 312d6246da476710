package query

import (
	"context"
	"sync"
	"time"

	"github.com/lakedict/lakedict/pkg/snowflake"
)

// Status is the lifecycle state of a submitted query.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusTimeout   Status = "TIMEOUT"
)

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool { return s != StatusRunning }

// Result holds one query's outcome. A result is created RUNNING and moves
// exactly once to a terminal status; terminal results never change again.
type Result struct {
	mu sync.Mutex

	QueryID   string
	SessionID string
	SQL       string

	status        Status
	Columns       []ColumnMeta
	Rows          [][]Value
	RowCount      int
	Truncated     bool
	StartedAt     time.Time
	CompletedAt   time.Time
	ErrorMessage  string
	ErrorKind     snowflake.Kind
	NativeQueryID string

	cancel context.CancelFunc
}

func newResult(queryID, sessionID, sql string, cancel context.CancelFunc, now time.Time) *Result {
	return &Result{
		QueryID:   queryID,
		SessionID: sessionID,
		SQL:       sql,
		status:    StatusRunning,
		StartedAt: now,
		cancel:    cancel,
	}
}

// Status returns the current lifecycle state.
func (r *Result) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Duration returns elapsed execution time, live for running queries.
func (r *Result) Duration(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

func (r *Result) setNativeQueryID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.NativeQueryID = id
}

// complete moves the result to a terminal status. It reports false when the
// result already reached one, in which case nothing is modified.
func (r *Result) complete(now time.Time, fn func(*Result)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return false
	}
	fn(r)
	r.CompletedAt = now
	r.cancel = nil
	return true
}

func (r *Result) setSuccess(now time.Time, cols []ColumnMeta, rows [][]Value, truncated bool) bool {
	return r.complete(now, func(r *Result) {
		r.status = StatusSuccess
		r.Columns = cols
		r.Rows = rows
		r.RowCount = len(rows)
		r.Truncated = truncated
	})
}

func (r *Result) setFailure(now time.Time, status Status, msg string, kind snowflake.Kind) bool {
	return r.complete(now, func(r *Result) {
		r.status = status
		r.ErrorMessage = msg
		r.ErrorKind = kind
	})
}

// requestCancel marks the result cancelled and stops the in-flight context.
// Returns false when the result is already terminal.
func (r *Result) requestCancel(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return false
	}
	r.status = StatusCancelled
	r.ErrorMessage = "cancelled by user"
	r.ErrorKind = snowflake.KindCancelled
	r.CompletedAt = now
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	return true
}
