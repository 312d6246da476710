package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lakedict/lakedict/pkg/snowflake"
	"github.com/lakedict/lakedict/pkg/sqltext"
)

// CatalogTTL bounds how long database, schema and column listings are
// served from cache.
const CatalogTTL = 5 * time.Minute

// Column is one column in a table listing.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// ListDatabases returns the database names visible to the connection.
func (s *Service) ListDatabases(ctx context.Context, db snowflake.DB, scope string, refresh bool) ([]string, error) {
	key := scope + "|databases"
	if !refresh {
		if names, ok := s.names.Get(key); ok {
			return names, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := db.QueryContext(ctx,
		`SELECT database_name FROM INFORMATION_SCHEMA.DATABASES ORDER BY database_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := scanFirstColumn(rows)
	if err != nil {
		return nil, err
	}
	s.names.Set(key, names)
	return names, nil
}

// ListSchemas returns the schema names of one database.
func (s *Service) ListSchemas(ctx context.Context, db snowflake.DB, scope, database string, refresh bool) ([]string, error) {
	key := scope + "|schemas|" + strings.ToUpper(database)
	if !refresh {
		if names, ok := s.names.Get(key); ok {
			return names, nil
		}
	}

	dbIdent, err := sqltext.ValidateIdentifier(database)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT schema_name FROM %s.INFORMATION_SCHEMA.SCHEMATA ORDER BY schema_name`, dbIdent))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := scanFirstColumn(rows)
	if err != nil {
		return nil, err
	}
	s.names.Set(key, names)
	return names, nil
}

// ListColumns returns the columns of one table in ordinal order.
func (s *Service) ListColumns(ctx context.Context, db snowflake.DB, scope, database, schema, table string, refresh bool) ([]Column, error) {
	key := scope + "|columns|" + strings.ToUpper(database) + "." + strings.ToUpper(schema) + "." + strings.ToUpper(table)
	if !refresh {
		if cols, ok := s.columns.Get(key); ok {
			return cols, nil
		}
	}

	dbIdent, err := sqltext.ValidateIdentifier(database)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT column_name, data_type, is_nullable FROM %s.INFORMATION_SCHEMA.COLUMNS WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position`,
		dbIdent), strings.ToUpper(schema), strings.ToUpper(table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var nullable string
		if err := rows.Scan(&c.Name, &c.Type, &nullable); err != nil {
			return nil, err
		}
		c.Nullable = strings.EqualFold(nullable, "YES")
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.columns.Set(key, cols)
	return cols, nil
}
