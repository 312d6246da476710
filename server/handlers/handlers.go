// Package handlers implements the HTTP API on top of the session registry,
// the query service and the catalog discovery service.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/lakedict/lakedict/pkg/session"
	"github.com/lakedict/lakedict/server/apierror"
)

// SessionHeader carries the session ID on every session-bearing endpoint.
const SessionHeader = "X-Session-ID"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, err *apierror.Error) {
	err.Write(w)
}

// requireSession resolves the X-Session-ID header into a live session. A
// nil return means the error response has already been written.
func requireSession(w http.ResponseWriter, r *http.Request, mgr *session.Manager) *session.Session {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		sendError(w, apierror.InvalidInput("missing "+SessionHeader+" header"))
		return nil
	}
	sess := mgr.Get(r.Context(), id)
	if sess == nil {
		sendError(w, apierror.SessionNotFound())
		return nil
	}
	return sess
}

// peekSession resolves the header without probing or touching the session.
// Status polls and cancellation go through here so they stay responsive
// while a statement holds the session's connection, and so polling never
// keeps an abandoned session alive.
func peekSession(w http.ResponseWriter, r *http.Request, mgr *session.Manager) *session.Session {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		sendError(w, apierror.InvalidInput("missing "+SessionHeader+" header"))
		return nil
	}
	sess := mgr.Peek(id)
	if sess == nil {
		sendError(w, apierror.SessionNotFound())
		return nil
	}
	return sess
}

// cacheScope keys catalog caches by identity so two users with different
// privileges never share listings.
func cacheScope(s *session.Session) string {
	return strings.Join([]string{s.Account, s.User, s.Role}, ":")
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// queryInt reads an integer query parameter, falling back to def when the
// parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryBool(r *http.Request, name string) bool {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
