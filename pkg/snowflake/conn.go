// Package snowflake wraps the gosnowflake driver behind a small connection
// type and a typed error classification, so nothing above this layer ever
// branches on driver error message text.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sf "github.com/snowflakedb/gosnowflake"
)

// DB is the subset of database operations a session needs from its live
// connection. *Conn implements it; tests substitute a sqlmock-backed *sql.DB.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PingContext(ctx context.Context) error
	Close() error
}

// AuthType selects how credentials are presented to Snowflake.
type AuthType string

const (
	AuthPassword AuthType = "password"
	AuthToken    AuthType = "token" // personal access token via OAuth
	AuthSSO      AuthType = "sso"   // external browser
)

// Config carries everything needed to open one warehouse connection.
type Config struct {
	Account   string
	User      string
	Password  string
	Token     string
	AuthType  AuthType
	Warehouse string
	Database  string
	Schema    string
	Role      string

	LoginTimeout time.Duration
}

// DSN builds a gosnowflake connection string from the config.
func (c Config) DSN() (string, error) {
	if c.Account == "" || c.User == "" {
		return "", fmt.Errorf("snowflake: account and user are required")
	}

	sfCfg := &sf.Config{
		Account:   c.Account,
		User:      c.User,
		Warehouse: c.Warehouse,
		Database:  c.Database,
		Schema:    c.Schema,
		Role:      c.Role,
	}
	if c.LoginTimeout > 0 {
		sfCfg.LoginTimeout = c.LoginTimeout
	}

	switch c.AuthType {
	case AuthToken:
		if c.Token == "" {
			return "", fmt.Errorf("snowflake: token auth selected but no token provided")
		}
		sfCfg.Authenticator = sf.AuthTypeOAuth
		sfCfg.Token = c.Token
	case AuthSSO:
		sfCfg.Authenticator = sf.AuthTypeExternalBrowser
	case AuthPassword, "":
		if c.Password == "" {
			return "", fmt.Errorf("snowflake: password auth selected but no password provided")
		}
		sfCfg.Password = c.Password
	default:
		return "", fmt.Errorf("snowflake: unknown auth type %q", c.AuthType)
	}

	return sf.DSN(sfCfg)
}

// Conn is one live warehouse connection. It pins a single *sql.Conn out of
// its own *sql.DB pool: session state (USE DATABASE, ALTER SESSION, query
// tags) is connection-scoped in Snowflake, so the pool must never swap the
// underlying connection between statements.
type Conn struct {
	db   *sql.DB
	conn *sql.Conn
}

// Connect opens and verifies a dedicated connection.
func Connect(ctx context.Context, cfg Config) (*Conn, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, err
	}

	return &Conn{db: db, conn: conn}, nil
}

// QueryContext runs a query on the pinned connection.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

// ExecContext runs a statement on the pinned connection.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

// PingContext verifies the connection is alive.
func (c *Conn) PingContext(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

// Close releases the pinned connection and its pool.
func (c *Conn) Close() error {
	connErr := c.conn.Close()
	dbErr := c.db.Close()
	if connErr != nil {
		return connErr
	}
	return dbErr
}

// Identity is the warehouse-reported identity of a connection.
type Identity struct {
	User      string
	Warehouse string
	Database  string
	Schema    string
	Role      string
}

// CurrentIdentity asks the warehouse who the connection actually is. The
// response is authoritative over whatever the client asked for: roles and
// default warehouses can be rewritten server-side.
func CurrentIdentity(ctx context.Context, db DB) (Identity, error) {
	row, err := db.QueryContext(ctx,
		"SELECT CURRENT_USER(), CURRENT_WAREHOUSE(), CURRENT_DATABASE(), CURRENT_SCHEMA(), CURRENT_ROLE()")
	if err != nil {
		return Identity{}, err
	}
	defer func() { _ = row.Close() }()

	var id Identity
	if !row.Next() {
		if err := row.Err(); err != nil {
			return Identity{}, err
		}
		return Identity{}, fmt.Errorf("snowflake: identity query returned no rows")
	}
	var user, wh, db_, schema, role sql.NullString
	if err := row.Scan(&user, &wh, &db_, &schema, &role); err != nil {
		return Identity{}, err
	}
	id.User = user.String
	id.Warehouse = wh.String
	id.Database = db_.String
	id.Schema = schema.String
	id.Role = role.String
	return id, row.Err()
}
