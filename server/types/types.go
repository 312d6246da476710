// Package types provides the JSON request/response shapes of the HTTP API.
package types

// Session API Types

// ConnectRequest carries warehouse credentials. Fields left empty fall back
// to the server's configured defaults. AuthType selects password, token or
// sso (external browser) authentication; when empty it is inferred from
// whichever credential is present.
type ConnectRequest struct {
	Account   string `json:"account,omitempty"`
	User      string `json:"user,omitempty"`
	Password  string `json:"password,omitempty"`
	Token     string `json:"token,omitempty"`
	AuthType  string `json:"auth_type,omitempty"`
	Role      string `json:"role,omitempty"`
	Warehouse string `json:"warehouse,omitempty"`
	Database  string `json:"database,omitempty"`
	Schema    string `json:"schema,omitempty"`
}

type ConnectResponse struct {
	Connected bool   `json:"connected"`
	SessionID string `json:"session_id"`
	User      string `json:"user"`
	Role      string `json:"role"`
	Warehouse string `json:"warehouse"`
	Database  string `json:"database"`
	Schema    string `json:"schema_name,omitempty"`
}

type SessionStatusResponse struct {
	Valid       bool    `json:"valid"`
	User        string  `json:"user"`
	Role        string  `json:"role"`
	Warehouse   string  `json:"warehouse"`
	Database    string  `json:"database"`
	Schema      string  `json:"schema_name,omitempty"`
	IdleSeconds float64 `json:"idle_seconds"`
}

type DisconnectResponse struct {
	Disconnected bool   `json:"disconnected"`
	Message      string `json:"message"`
}

// SessionsResponse reports registry-level counters for operators.
type SessionsResponse struct {
	ActiveSessions int `json:"active_sessions"`
	StoredResults  int `json:"stored_results"`
}

// Metadata API Types

type DatabaseInfo struct {
	Name string `json:"name"`
}

type SchemaInfo struct {
	Name string `json:"name"`
}

type TableInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind,omitempty"`
	RowCount int64  `json:"row_count"`
}

type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Health and Root Types

// HealthResponse carries the restart-detection token: a client seeing a new
// ServerInstanceID knows its session IDs are stale.
type HealthResponse struct {
	Status           string `json:"status"`
	ServerInstanceID string `json:"serverInstanceId"`
	StartedAt        string `json:"startedAt"`
}

type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Docs    string `json:"docs,omitempty"`
}
