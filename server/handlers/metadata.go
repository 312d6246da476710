package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/lakedict/lakedict/pkg/discovery"
	"github.com/lakedict/lakedict/pkg/session"
	"github.com/lakedict/lakedict/pkg/snowflake"
	"github.com/lakedict/lakedict/server/apierror"
	"github.com/lakedict/lakedict/server/types"
)

// MetadataHandler serves catalog listings. Permission failures degrade to
// an empty list so browsing stays usable when parts of the catalog are
// locked down.
type MetadataHandler struct {
	mgr    *session.Manager
	disc   *discovery.Service
	logger zerolog.Logger
}

func NewMetadataHandler(mgr *session.Manager, disc *discovery.Service, logger zerolog.Logger) *MetadataHandler {
	return &MetadataHandler{mgr: mgr, disc: disc, logger: logger}
}

// Databases lists the databases visible to the session.
func (h *MetadataHandler) Databases(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r, h.mgr)
	if sess == nil {
		return
	}

	names, err := h.disc.ListDatabases(r.Context(), sess.Conn(), cacheScope(sess), queryBool(r, "refresh"))
	if err != nil {
		if h.degraded(w, r, err, "databases") {
			return
		}
		writeJSON(w, http.StatusOK, []types.DatabaseInfo{})
		return
	}

	out := make([]types.DatabaseInfo, len(names))
	for i, n := range names {
		out[i] = types.DatabaseInfo{Name: n}
	}
	writeJSON(w, http.StatusOK, out)
}

// Schemas lists the schemas of one database. The database query parameter
// falls back to the session's current database.
func (h *MetadataHandler) Schemas(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r, h.mgr)
	if sess == nil {
		return
	}
	database := firstNonEmpty(r.URL.Query().Get("database"), sess.Database)
	if database == "" {
		sendError(w, apierror.InvalidInput("database is required"))
		return
	}

	names, err := h.disc.ListSchemas(r.Context(), sess.Conn(), cacheScope(sess), database, queryBool(r, "refresh"))
	if err != nil {
		if h.degraded(w, r, err, "schemas") {
			return
		}
		writeJSON(w, http.StatusOK, []types.SchemaInfo{})
		return
	}

	out := make([]types.SchemaInfo, len(names))
	for i, n := range names {
		out[i] = types.SchemaInfo{Name: n}
	}
	writeJSON(w, http.StatusOK, out)
}

// Tables lists the tables of one schema with approximate row counts.
func (h *MetadataHandler) Tables(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r, h.mgr)
	if sess == nil {
		return
	}
	database := firstNonEmpty(r.URL.Query().Get("database"), sess.Database)
	schema := firstNonEmpty(r.URL.Query().Get("schema"), sess.Schema)
	if database == "" || schema == "" {
		sendError(w, apierror.InvalidInput("database and schema are required"))
		return
	}

	tables, err := h.disc.ListTables(r.Context(), sess.Conn(), cacheScope(sess), database, schema, queryBool(r, "refresh"))
	if err != nil {
		if h.degraded(w, r, err, "tables") {
			return
		}
		writeJSON(w, http.StatusOK, []types.TableInfo{})
		return
	}

	out := make([]types.TableInfo, len(tables))
	for i, t := range tables {
		out[i] = types.TableInfo{Name: t.Name, Kind: "TABLE", RowCount: t.RowCount}
	}
	writeJSON(w, http.StatusOK, out)
}

// Columns lists the columns of one table in ordinal order.
func (h *MetadataHandler) Columns(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r, h.mgr)
	if sess == nil {
		return
	}
	database := firstNonEmpty(r.URL.Query().Get("database"), sess.Database)
	schema := firstNonEmpty(r.URL.Query().Get("schema"), sess.Schema)
	table := r.URL.Query().Get("table")
	if database == "" || schema == "" || table == "" {
		sendError(w, apierror.InvalidInput("database, schema and table are required"))
		return
	}

	cols, err := h.disc.ListColumns(r.Context(), sess.Conn(), cacheScope(sess), database, schema, table, queryBool(r, "refresh"))
	if err != nil {
		if h.degraded(w, r, err, "columns") {
			return
		}
		writeJSON(w, http.StatusOK, []types.ColumnInfo{})
		return
	}

	out := make([]types.ColumnInfo, len(cols))
	for i, c := range cols {
		out[i] = types.ColumnInfo{Name: c.Name, Type: c.Type, Nullable: c.Nullable}
	}
	writeJSON(w, http.StatusOK, out)
}

// degraded writes a non-degradable error response and reports whether it
// did. Permission and missing-object failures return false so the caller
// falls back to an empty list; infrastructure failures are surfaced.
func (h *MetadataHandler) degraded(w http.ResponseWriter, r *http.Request, err error, what string) bool {
	kind := snowflake.KindOf(err)
	switch kind {
	case snowflake.KindPermission, snowflake.KindObjectNotFound:
		h.logger.Debug().Err(err).Str("listing", what).Msg("catalog listing degraded to empty")
		return false
	case snowflake.KindNetwork, snowflake.KindTimeout, snowflake.KindAuth:
		sendError(w, apierror.FromKind(kind, err.Error(), requestID(r)))
		return true
	default:
		// Bad identifiers and other input-shaped failures.
		sendError(w, apierror.InvalidInput(err.Error()))
		return true
	}
}
