package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lakedict/lakedict/pkg/snowflake"
)

// Defaults used when the corresponding Manager option is zero.
const (
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultProbeTimeout  = 5 * time.Second
	DefaultSweepInterval = time.Minute
)

// Identity is the caller-supplied identity stored on a new session.
type Identity struct {
	User      string
	Account   string
	Warehouse string
	Database  string
	Schema    string
	Role      string
}

// Info is a read-only snapshot of one session for the stats surface.
type Info struct {
	ID          string    `json:"session_id"`
	User        string    `json:"user"`
	Warehouse   string    `json:"warehouse"`
	Database    string    `json:"database"`
	Schema      string    `json:"schema_name"`
	Role        string    `json:"role"`
	QueryCount  int       `json:"query_count"`
	IdleSeconds float64   `json:"idle_seconds"`
	CreatedAt   time.Time `json:"created_at"`
}

// Manager is the mutex-guarded session registry. The mutex protects only
// the map and session bookkeeping fields; it is never held across driver
// I/O (liveness probes run outside the lock).
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	idleTimeout  time.Duration
	probeTimeout time.Duration
	onRemove     []func(sessionID string)
	logger       zerolog.Logger
	now          func() time.Time
}

// NewManager creates a session registry. Zero durations fall back to the
// package defaults.
func NewManager(idleTimeout, probeTimeout time.Duration, logger zerolog.Logger) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Manager{
		sessions:     make(map[string]*Session),
		idleTimeout:  idleTimeout,
		probeTimeout: probeTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

// OnRemove registers a hook invoked whenever a session is removed, whether
// explicitly or by expiry. Dependent state (result stores, scoped caches)
// is released through these hooks.
func (m *Manager) OnRemove(fn func(sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRemove = append(m.onRemove, fn)
}

// Create registers a new session owning conn and returns its opaque ID.
// The connection itself is not touched.
func (m *Manager) Create(conn snowflake.DB, id Identity) string {
	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		User:      id.User,
		Account:   id.Account,
		Warehouse: id.Warehouse,
		Database:  id.Database,
		Schema:    id.Schema,
		Role:      id.Role,
		CreatedAt: now,
		LastUsed:  now,
		conn:      conn,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info().Str("session_id", s.ID).Str("user", s.User).Msg("session created")
	return s.ID
}

// Get returns the session for id, or nil when the session is unknown, has
// been idle past the threshold, or its connection is dead. Expired and dead
// sessions are purged as a side effect; the caller cannot distinguish the
// causes and should prompt for reconnection. On success the session is
// touched.
//
// A session busy with a statement skips the liveness probe: the running
// statement itself proves the connection alive, and a probe would block
// behind it for the whole statement duration. A probe that times out is
// likewise inconclusive, not proof of death.
func (m *Manager) Get(ctx context.Context, id string) *Session {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if m.now().Sub(s.LastUsed) > m.idleTimeout {
		m.removeLocked(id, "idle timeout")
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if release, idle := s.TryAcquire(); idle {
		err := s.Probe(ctx, m.probeTimeout)
		release()
		if err != nil {
			switch snowflake.KindOf(err) {
			case snowflake.KindTimeout, snowflake.KindCancelled:
				m.logger.Debug().Str("session_id", id).Err(err).Msg("liveness probe inconclusive")
			default:
				m.logger.Warn().Str("session_id", id).Err(err).Msg("liveness probe failed")
				m.Remove(id)
				return nil
			}
		}
	}

	m.mu.Lock()
	s.LastUsed = m.now()
	s.QueryCount++
	m.mu.Unlock()
	return s
}

// Peek returns the session without probing it or counting the access as
// use. Idle-expired sessions are purged and reported as absent. Status
// checks go through Peek so polling never keeps a session alive.
func (m *Manager) Peek(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	if m.now().Sub(s.LastUsed) > m.idleTimeout {
		m.removeLocked(id, "idle timeout")
		return nil
	}
	return s
}

// Remove closes a session's connection and drops it from the registry.
// Idempotent: removing an unknown ID returns false.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	if ok {
		m.removeLocked(id, "removed")
	}
	m.mu.Unlock()
	return ok
}

// removeLocked must be called with m.mu held.
func (m *Manager) removeLocked(id, reason string) {
	s := m.sessions[id]
	delete(m.sessions, id)
	if err := s.conn.Close(); err != nil {
		m.logger.Warn().Str("session_id", id).Err(err).Msg("closing session connection")
	}
	m.logger.Info().Str("session_id", id).Str("reason", reason).Msg("session closed")
	for _, fn := range m.onRemove {
		fn(id)
	}
}

// Sweep purges every session idle past the threshold and returns the count.
// Runs independently of Get so abandoned sessions release their connections
// even when nobody asks for them again.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastUsed) > m.idleTimeout {
			m.removeLocked(id, "idle timeout (sweep)")
			removed++
		}
	}
	return removed
}

// Start runs the background sweep until ctx is cancelled.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					m.logger.Info().Int("purged", n).Msg("session sweep")
				}
			}
		}
	}()
}

// Count reports the number of active sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Stats returns a snapshot of every active session.
func (m *Manager) Stats() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, Info{
			ID:          s.ID,
			User:        s.User,
			Warehouse:   s.Warehouse,
			Database:    s.Database,
			Schema:      s.Schema,
			Role:        s.Role,
			QueryCount:  s.QueryCount,
			IdleSeconds: now.Sub(s.LastUsed).Seconds(),
			CreatedAt:   s.CreatedAt,
		})
	}
	return infos
}
