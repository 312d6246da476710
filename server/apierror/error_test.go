package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lakedict/lakedict/pkg/snowflake"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"InvalidInput", InvalidInput("empty sql"), http.StatusBadRequest},
		{"AuthFailed", AuthenticationFailed("bad token"), http.StatusUnauthorized},
		{"SessionNotFound", SessionNotFound(), http.StatusUnauthorized},
		{"QueryNotFound", QueryNotFound("q1"), http.StatusNotFound},
		{"StillRunning", QueryStillRunning("q1"), http.StatusConflict},
		{"Unreachable", WarehouseUnreachable("no route"), http.StatusServiceUnavailable},
		{"Timeout", StatementTimeout("exceeded"), http.StatusGatewayTimeout},
		{"Internal", Internal("req-1"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFromKind(t *testing.T) {
	tests := []struct {
		name string
		kind snowflake.Kind
		want Code
	}{
		{"Auth", snowflake.KindAuth, CodeAuthenticationFailed},
		{"Network", snowflake.KindNetwork, CodeWarehouseUnreachable},
		{"Timeout", snowflake.KindTimeout, CodeStatementTimeout},
		{"SQLKindFallsToInternal", snowflake.KindSyntax, CodeInternal},
		{"Other", snowflake.KindOther, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromKind(tt.kind, "boom", "req-1")
			if got.Code != tt.want {
				t.Errorf("FromKind(%v).Code = %s, want %s", tt.kind, got.Code, tt.want)
			}
		})
	}
}

func TestInternalHidesDetails(t *testing.T) {
	err := Internal("req-42")
	if err.Message != "Internal server error" {
		t.Errorf("internal error leaks details: %q", err.Message)
	}
	if err.RequestID != "req-42" {
		t.Errorf("request ID = %q", err.RequestID)
	}
}

func TestIsMatchesByCode(t *testing.T) {
	if !errors.Is(SessionNotFound(), SessionNotFound()) {
		t.Error("same code should match")
	}
	if errors.Is(SessionNotFound(), Internal("x")) {
		t.Error("different codes should not match")
	}
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	SessionNotFound().Write(rec)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Error *Error `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Error == nil || body.Error.Code != CodeSessionNotFound {
		t.Errorf("body = %+v", body)
	}
}
