// Package session provides the registry of live warehouse sessions. Each
// session exclusively owns one driver connection; the registry tracks idle
// time and purges abandoned or dead sessions in the background.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/lakedict/lakedict/pkg/snowflake"
)

// Session wraps one live warehouse connection with identity and usage
// tracking. The connection is exclusively owned by this session; the
// driver connection is not safe for concurrent statements, so execution
// against it is serialized through Acquire.
type Session struct {
	ID        string
	User      string
	Account   string
	Warehouse string
	Database  string
	Schema    string
	Role      string

	CreatedAt  time.Time
	LastUsed   time.Time
	QueryCount int

	conn   snowflake.DB
	execMu sync.Mutex
}

// New wraps conn in a session with the given ID. Most callers go through
// Manager.Create, which generates the ID and registers the session.
func New(id string, conn snowflake.DB) *Session {
	now := time.Now()
	return &Session{ID: id, CreatedAt: now, LastUsed: now, conn: conn}
}

// Conn returns the underlying connection.
func (s *Session) Conn() snowflake.DB {
	return s.conn
}

// Acquire serializes statement execution on this session's connection.
// Returns the release func. Two concurrent requests on the same session ID
// queue rather than corrupting driver state.
func (s *Session) Acquire() func() {
	s.execMu.Lock()
	return s.execMu.Unlock
}

// TryAcquire takes the execution lock without blocking. ok is false when a
// statement is already running on this session, in which case the connection
// is known to be alive and must not be probed: the pinned connection would
// park the probe behind the running statement.
func (s *Session) TryAcquire() (release func(), ok bool) {
	if !s.execMu.TryLock() {
		return nil, false
	}
	return s.execMu.Unlock, true
}

// Probe runs a cheap liveness check against the connection. When the probe
// deadline expires, the deadline is the error: drivers differ in how they
// surface a cancelled statement.
func (s *Session) Probe(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := s.conn.QueryContext(ctx, "SELECT 1")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return rows.Close()
}
