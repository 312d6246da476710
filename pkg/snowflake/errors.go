package snowflake

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	sf "github.com/snowflakedb/gosnowflake"
)

// Kind is the coarse classification of a driver error. Callers branch on
// Kind, never on message text, which is fragile across driver versions.
type Kind int

const (
	// KindOther is anything not recognized below.
	KindOther Kind = iota
	// KindAuth covers bad credentials, expired tokens and dead sessions.
	KindAuth
	// KindObjectNotFound covers missing databases, schemas and tables.
	KindObjectNotFound
	// KindPermission covers insufficient-privilege failures.
	KindPermission
	// KindSyntax covers SQL compilation errors.
	KindSyntax
	// KindNetwork covers unreachable-warehouse conditions.
	KindNetwork
	// KindTimeout covers statement timeouts and deadline expiry.
	KindTimeout
	// KindCancelled covers queries cancelled on the server.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindObjectNotFound:
		return "object_not_found"
	case KindPermission:
		return "permission"
	case KindSyntax:
		return "syntax"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	default:
		return "other"
	}
}

// Snowflake error numbers this layer recognizes.
const (
	errSQLCompilation      = 1003
	errQueryCancelled      = 604
	errStatementTimeout    = 630
	errObjectNotFound      = 2003
	errObjectNotFoundDDL   = 2043
	errInsufficientPrivs   = 3001
	errCannotPerform       = 90105
	errAuthFailedLow       = 390100
	errAuthFailedHigh      = 390199
	errSessionExpiredToken = 390114
)

// KindOf classifies an error from the driver layer.
func KindOf(err error) Kind {
	if err == nil {
		return KindOther
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, driver.ErrBadConn) {
		return KindNetwork
	}

	var sfErr *sf.SnowflakeError
	if errors.As(err, &sfErr) {
		switch {
		case sfErr.Number >= errAuthFailedLow && sfErr.Number <= errAuthFailedHigh:
			return KindAuth
		case sfErr.Number == errSQLCompilation:
			// Compilation errors include both syntax problems and unknown
			// objects; SQLState 42S02 distinguishes the latter.
			if sfErr.SQLState == "42S02" || sfErr.SQLState == "02000" {
				return KindObjectNotFound
			}
			return KindSyntax
		case sfErr.Number == errObjectNotFound || sfErr.Number == errObjectNotFoundDDL:
			return KindObjectNotFound
		case sfErr.Number == errInsufficientPrivs || sfErr.Number == errCannotPerform:
			return KindPermission
		case sfErr.Number == errQueryCancelled:
			return KindCancelled
		case sfErr.Number == errStatementTimeout:
			return KindTimeout
		}
		switch sfErr.SQLState {
		case "28000":
			return KindAuth
		case "42000":
			return KindSyntax
		case "42S02", "02000":
			return KindObjectNotFound
		}
		return KindOther
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	return KindOther
}

// QueryID returns the server-side query ID attached to a driver error, if
// any. Used to correlate failures with the warehouse's own query history.
func QueryID(err error) string {
	var sfErr *sf.SnowflakeError
	if errors.As(err, &sfErr) {
		return sfErr.QueryID
	}
	return ""
}
