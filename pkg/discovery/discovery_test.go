package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	sf "github.com/snowflakedb/gosnowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakedict/lakedict/pkg/cache"
)

const listQuery = `SELECT table_name, COALESCE(row_count, 0) FROM "ANALYTICS".INFORMATION_SCHEMA.TABLES WHERE table_schema = ? AND table_type = 'BASE TABLE' ORDER BY table_name`

func TestScoreName(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		candidate string
		want      float64
	}{
		{"ExactAfterStripping", "TABLE_ENTITY", "TABLEENTITY", 1.0},
		{"ExactDifferentCase", "table_entity", "TABLE_ENTITY", 1.0},
		{"SubstringContainment", "TABLE_ENTITY_V2", "TABLE_ENTITY", 0.8},
		{"SharedPrefix", "PROCESS_RUNS", "PROCLOG", 0.6},
		{"EntityFallback", "XYZ", "COLUMN_ENTITY", 0.3},
		{"NoMatch", "XYZ", "FOOBAR", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := ScoreName(tt.target, tt.candidate)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListTablesCaches(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(listQuery).
		WithArgs("PUBLIC").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "row_count"}).
			AddRow("TABLE_ENTITY", int64(500)).
			AddRow("COLUMN_ENTITY", int64(0)))

	svc := New(cache.NewTTL[[]TableInfo](time.Minute, 10), time.Second, zerolog.Nop())

	first, err := svc.ListTables(context.Background(), db, "acct:u:r", "ANALYTICS", "PUBLIC", false)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "TABLE_ENTITY", first[0].Name)
	assert.Equal(t, int64(500), first[0].RowCount)

	// Second call is served from cache; no further query expected.
	second, err := svc.ListTables(context.Background(), db, "acct:u:r", "ANALYTICS", "PUBLIC", false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTablesRefreshBypassesCache(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	for range 2 {
		mock.ExpectQuery(listQuery).
			WithArgs("PUBLIC").
			WillReturnRows(sqlmock.NewRows([]string{"table_name", "row_count"}).
				AddRow("TABLE_ENTITY", int64(500)))
	}

	svc := New(cache.NewTTL[[]TableInfo](time.Minute, 10), time.Second, zerolog.Nop())

	_, err = svc.ListTables(context.Background(), db, "s", "ANALYTICS", "PUBLIC", false)
	require.NoError(t, err)
	_, err = svc.ListTables(context.Background(), db, "s", "ANALYTICS", "PUBLIC", true)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribeTableMissing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`DESCRIBE TABLE "ANALYTICS"."PUBLIC"."NOPE"`).
		WillReturnError(&sf.SnowflakeError{Number: 2003, Message: "does not exist"})

	svc := New(nil, time.Second, zerolog.Nop())
	exists, cols, err := svc.DescribeTable(context.Background(), db, "ANALYTICS", "PUBLIC", "NOPE")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, cols)
}

func TestDescribeTableColumns(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`DESCRIBE TABLE "ANALYTICS"."PUBLIC"."TABLE_ENTITY"`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "kind"}).
			AddRow("GUID", "VARCHAR", "COLUMN").
			AddRow("NAME", "VARCHAR", "COLUMN"))

	svc := New(nil, time.Second, zerolog.Nop())
	exists, cols, err := svc.DescribeTable(context.Background(), db, "ANALYTICS", "PUBLIC", "TABLE_ENTITY")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []string{"GUID", "NAME"}, cols)
}

func TestRowCount(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT(*) FROM "ANALYTICS"."PUBLIC"."TABLE_ENTITY" LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	svc := New(nil, time.Second, zerolog.Nop())
	n, err := svc.RowCount(context.Background(), db, "ANALYTICS", "PUBLIC", "TABLE_ENTITY")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestFindSimilar(t *testing.T) {
	c := cache.NewTTL[[]TableInfo](time.Minute, 10)
	c.Set(`scope|ANALYTICS.PUBLIC`, []TableInfo{
		{Name: "TABLE_ENTITY", RowCount: 500},
		{Name: "TABLE_ENTITY_OLD", RowCount: 0},
		{Name: "TABLE_ENTITY_V2", RowCount: 10},
		{Name: "COLUMN_ENTITY", RowCount: 100},
	})

	svc := New(c, time.Second, zerolog.Nop())
	got, err := svc.FindSimilar(context.Background(), nil, "scope", "ANALYTICS", "PUBLIC", "TABLE_ENTITY_V2", false)
	require.NoError(t, err)

	names := make([]string, len(got))
	for i, cand := range got {
		names[i] = cand.Name
	}
	// The failing table itself and the zero-row sibling are excluded.
	assert.NotContains(t, names, "TABLE_ENTITY_V2")
	assert.NotContains(t, names, "TABLE_ENTITY_OLD")
	require.NotEmpty(t, got)
	assert.Equal(t, "TABLE_ENTITY", got[0].Name)
	assert.GreaterOrEqual(t, got[0].Score, 0.8)
}
