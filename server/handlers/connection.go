package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakedict/lakedict/pkg/config"
	"github.com/lakedict/lakedict/pkg/query"
	"github.com/lakedict/lakedict/pkg/session"
	"github.com/lakedict/lakedict/pkg/snowflake"
	"github.com/lakedict/lakedict/server/apierror"
	"github.com/lakedict/lakedict/server/types"
)

const connectTimeout = 30 * time.Second

// ConnectionHandler handles session lifecycle requests.
type ConnectionHandler struct {
	mgr      *session.Manager
	querySvc *query.Service
	defaults config.SnowflakeConfig
	probe    time.Duration
	logger   zerolog.Logger
}

// NewConnectionHandler creates a connection handler. defaults fill in
// request fields the client leaves empty; credentials are never defaulted.
func NewConnectionHandler(mgr *session.Manager, querySvc *query.Service, defaults config.SnowflakeConfig, probe time.Duration, logger zerolog.Logger) *ConnectionHandler {
	if probe <= 0 {
		probe = session.DefaultProbeTimeout
	}
	return &ConnectionHandler{mgr: mgr, querySvc: querySvc, defaults: defaults, probe: probe, logger: logger}
}

// Connect opens a dedicated warehouse connection and registers a session
// for it.
func (h *ConnectionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req types.ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, apierror.InvalidInput("invalid request body"))
		return
	}

	cfg := snowflake.Config{
		Account:   firstNonEmpty(req.Account, h.defaults.Account),
		User:      firstNonEmpty(req.User, h.defaults.User),
		Password:  req.Password,
		Token:     req.Token,
		Role:      firstNonEmpty(req.Role, h.defaults.Role),
		Warehouse: firstNonEmpty(req.Warehouse, h.defaults.Warehouse),
		Database:  firstNonEmpty(req.Database, h.defaults.Database),
		Schema:    firstNonEmpty(req.Schema, h.defaults.Schema),
	}
	if cfg.Account == "" || cfg.User == "" {
		sendError(w, apierror.InvalidInput("account and user are required"))
		return
	}
	switch strings.ToLower(strings.TrimSpace(req.AuthType)) {
	case "":
		switch {
		case cfg.Token != "":
			cfg.AuthType = snowflake.AuthToken
		case cfg.Password != "":
			cfg.AuthType = snowflake.AuthPassword
		default:
			sendError(w, apierror.InvalidInput("password or token is required"))
			return
		}
	case string(snowflake.AuthToken):
		if cfg.Token == "" {
			sendError(w, apierror.InvalidInput("token auth selected but no token provided"))
			return
		}
		cfg.AuthType = snowflake.AuthToken
	case string(snowflake.AuthPassword):
		if cfg.Password == "" {
			sendError(w, apierror.InvalidInput("password auth selected but no password provided"))
			return
		}
		cfg.AuthType = snowflake.AuthPassword
	case string(snowflake.AuthSSO), "externalbrowser":
		// External browser auth carries no credential in the request.
		cfg.AuthType = snowflake.AuthSSO
	default:
		sendError(w, apierror.InvalidInput("unknown auth_type "+strconv.Quote(req.AuthType)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), connectTimeout)
	defer cancel()

	conn, err := snowflake.Connect(ctx, cfg)
	if err != nil {
		h.logger.Warn().Str("user", cfg.User).Err(err).Msg("connect failed")
		switch snowflake.KindOf(err) {
		case snowflake.KindNetwork:
			sendError(w, apierror.WarehouseUnreachable("warehouse unreachable: "+err.Error()))
		case snowflake.KindTimeout:
			sendError(w, apierror.StatementTimeout("connection attempt timed out"))
		default:
			sendError(w, apierror.AuthenticationFailed(err.Error()))
		}
		return
	}

	ident, err := snowflake.CurrentIdentity(ctx, conn)
	if err != nil {
		_ = conn.Close()
		h.logger.Error().Err(err).Msg("identity query failed")
		sendError(w, apierror.FromKind(snowflake.KindOf(err), err.Error(), requestID(r)))
		return
	}

	id := h.mgr.Create(conn, session.Identity{
		User:      firstNonEmpty(ident.User, cfg.User),
		Account:   cfg.Account,
		Warehouse: firstNonEmpty(ident.Warehouse, cfg.Warehouse),
		Database:  firstNonEmpty(ident.Database, cfg.Database),
		Schema:    firstNonEmpty(ident.Schema, cfg.Schema),
		Role:      firstNonEmpty(ident.Role, cfg.Role),
	})

	writeJSON(w, http.StatusOK, types.ConnectResponse{
		Connected: true,
		SessionID: id,
		User:      firstNonEmpty(ident.User, cfg.User),
		Role:      firstNonEmpty(ident.Role, cfg.Role),
		Warehouse: firstNonEmpty(ident.Warehouse, cfg.Warehouse),
		Database:  firstNonEmpty(ident.Database, cfg.Database),
		Schema:    firstNonEmpty(ident.Schema, cfg.Schema),
	})
}

// SessionStatus reports liveness and identity without counting as use.
// A dead connection on a reachable warehouse reads as an expired session;
// an unreachable warehouse is reported distinctly so the client can retry
// instead of reconnecting.
func (h *ConnectionHandler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		sendError(w, apierror.InvalidInput("missing "+SessionHeader+" header"))
		return
	}
	sess := h.mgr.Peek(id)
	if sess == nil {
		sendError(w, apierror.SessionNotFound())
		return
	}

	// A busy session is mid-statement and therefore alive; probing it would
	// block behind the statement on the pinned connection.
	if release, idle := sess.TryAcquire(); idle {
		err := sess.Probe(r.Context(), h.probe)
		release()
		switch {
		case err == nil:
		case snowflake.KindOf(err) == snowflake.KindNetwork:
			sendError(w, apierror.WarehouseUnreachable("warehouse unreachable"))
			return
		case snowflake.KindOf(err) == snowflake.KindTimeout:
			// Inconclusive: the warehouse is slow, not provably gone.
		default:
			h.mgr.Remove(id)
			sendError(w, apierror.SessionNotFound())
			return
		}
	}

	writeJSON(w, http.StatusOK, types.SessionStatusResponse{
		Valid:       true,
		User:        sess.User,
		Role:        sess.Role,
		Warehouse:   sess.Warehouse,
		Database:    sess.Database,
		Schema:      sess.Schema,
		IdleSeconds: time.Since(sess.LastUsed).Seconds(),
	})
}

// Disconnect closes the session's connection and releases its results.
// Disconnecting an unknown session is not an error.
func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		sendError(w, apierror.InvalidInput("missing "+SessionHeader+" header"))
		return
	}
	h.mgr.Remove(id)
	writeJSON(w, http.StatusOK, types.DisconnectResponse{
		Disconnected: true,
		Message:      "session closed",
	})
}

// Sessions reports registry-level counters plus a per-session snapshot.
func (h *ConnectionHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	infos := h.mgr.Stats()
	stored := 0
	for _, info := range infos {
		stored += h.querySvc.ResultCount(info.ID)
	}
	writeJSON(w, http.StatusOK, struct {
		types.SessionsResponse
		Sessions []session.Info `json:"sessions"`
	}{
		SessionsResponse: types.SessionsResponse{
			ActiveSessions: len(infos),
			StoredResults:  stored,
		},
		Sessions: infos,
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
