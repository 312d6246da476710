// Package apierror defines the API error taxonomy and its HTTP mapping.
//
// SQL failures are deliberately NOT in this taxonomy: a query that fails to
// compile or references a missing table is a normal, user-correctable
// outcome returned as 200 with a FAILED status. Errors here cover everything
// else: bad input, dead sessions, unreachable warehouse, internal faults.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/lakedict/lakedict/pkg/snowflake"
)

// Code identifies one error class.
type Code string

const (
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeAuthenticationFailed Code = "AUTHENTICATION_FAILED"
	CodeSessionNotFound      Code = "SESSION_NOT_FOUND"
	CodeQueryNotFound        Code = "QUERY_NOT_FOUND"
	CodeQueryStillRunning    Code = "QUERY_STILL_RUNNING"
	CodeWarehouseUnreachable Code = "WAREHOUSE_UNREACHABLE"
	CodeStatementTimeout     Code = "STATEMENT_TIMEOUT"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// Error is the JSON error body every non-2xx response carries.
type Error struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// HTTPStatus maps the error class to its status code.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeAuthenticationFailed, CodeSessionNotFound:
		return http.StatusUnauthorized
	case CodeQueryNotFound:
		return http.StatusNotFound
	case CodeQueryStillRunning:
		return http.StatusConflict
	case CodeWarehouseUnreachable:
		return http.StatusServiceUnavailable
	case CodeStatementTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// Write sends the error as JSON with its mapped status.
func (e *Error) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]*Error{"error": e})
}

func InvalidInput(message string) *Error {
	return &Error{Code: CodeInvalidInput, Message: message}
}

func AuthenticationFailed(message string) *Error {
	return &Error{Code: CodeAuthenticationFailed, Message: message}
}

// SessionNotFound is the uniform reconnect prompt. Idle expiry, probe
// failure and backend restart are deliberately indistinguishable here.
func SessionNotFound() *Error {
	return &Error{Code: CodeSessionNotFound, Message: "Session not found or expired; please reconnect"}
}

func QueryNotFound(queryID string) *Error {
	return &Error{Code: CodeQueryNotFound, Message: fmt.Sprintf("No results for query %s", queryID)}
}

func QueryStillRunning(queryID string) *Error {
	return &Error{Code: CodeQueryStillRunning, Message: fmt.Sprintf("Query %s is still running", queryID)}
}

func WarehouseUnreachable(message string) *Error {
	return &Error{Code: CodeWarehouseUnreachable, Message: message}
}

func StatementTimeout(message string) *Error {
	return &Error{Code: CodeStatementTimeout, Message: message}
}

// Internal hides details from the client; the request ID correlates the
// response with the server log line carrying the real error.
func Internal(requestID string) *Error {
	return &Error{Code: CodeInternal, Message: "Internal server error", RequestID: requestID}
}

// FromKind maps a classified driver error onto the HTTP taxonomy. Only
// infrastructure and auth kinds belong here; SQL error kinds go through the
// 200+FAILED path and fall back to Internal if they reach this.
func FromKind(kind snowflake.Kind, message, requestID string) *Error {
	switch kind {
	case snowflake.KindAuth:
		return AuthenticationFailed(message)
	case snowflake.KindNetwork:
		return WarehouseUnreachable(message)
	case snowflake.KindTimeout:
		return StatementTimeout(message)
	default:
		return Internal(requestID)
	}
}
