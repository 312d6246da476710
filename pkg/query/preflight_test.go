package query

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
	"github.com/lakedict/lakedict/pkg/discovery"
	"github.com/lakedict/lakedict/pkg/session"
)

const tableListQuery = `SELECT table_name, COALESCE(row_count, 0) FROM "ANALYTICS".INFORMATION_SCHEMA.TABLES WHERE table_schema = ? AND table_type = 'BASE TABLE' ORDER BY table_name`

func newPreflightService(t *testing.T) (*Service, *session.Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	disc := discovery.New(cache.NewTTL[[]discovery.TableInfo](time.Minute, 10), time.Second, zerolog.Nop())
	svc := NewService(10, DefaultRowLimit, time.Minute, disc, zerolog.Nop())
	return svc, session.New("sess-1", db), mock
}

func TestPreflightMissingTableNoFabricatedMatch(t *testing.T) {
	svc, sess, mock := newPreflightService(t)

	mock.ExpectQuery(`DESCRIBE TABLE "ANALYTICS"."PUBLIC"."FOO_ENTITY"`).
		WillReturnError(&sf.SnowflakeError{Number: 2003, Message: "does not exist"})
	mock.ExpectQuery(tableListQuery).
		WithArgs("PUBLIC").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "row_count"}).
			AddRow("BAR_ENTITY", int64(100)))

	got, err := svc.Preflight(context.Background(), sess, "SELECT * FROM FOO_ENTITY", "ANALYTICS", "PUBLIC", false)
	require.NoError(t, err)

	assert.False(t, got.Valid)
	require.Len(t, got.Issues, 1)
	assert.Contains(t, got.Issues[0], "FOO_ENTITY")
	// BAR_ENTITY shares nothing with FOO_ENTITY beyond being an entity
	// table; its 0.3 score stays below the missing-table threshold.
	assert.Empty(t, got.Suggestions)
	assert.Empty(t, got.SuggestedQuery)
}

func TestPreflightEmptyTableSuggestsSibling(t *testing.T) {
	svc, sess, mock := newPreflightService(t)

	mock.ExpectQuery(`DESCRIBE TABLE "ANALYTICS"."PUBLIC"."SALES_ENTITY"`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}).
			AddRow("GUID", "VARCHAR"))
	mock.ExpectQuery(`SELECT COUNT(*) FROM "ANALYTICS"."PUBLIC"."SALES_ENTITY" LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(tableListQuery).
		WithArgs("PUBLIC").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "row_count"}).
			AddRow("SALES_ENTITY", int64(0)).
			AddRow("SALES_ENTITY_V2", int64(500)))

	got, err := svc.Preflight(context.Background(), sess, "SELECT * FROM SALES_ENTITY", "ANALYTICS", "PUBLIC", false)
	require.NoError(t, err)

	assert.True(t, got.Valid)
	require.Len(t, got.TablesChecked, 1)
	assert.True(t, got.TablesChecked[0].Exists)
	assert.Equal(t, int64(0), got.TablesChecked[0].RowCount)

	require.NotEmpty(t, got.Suggestions)
	sug := got.Suggestions[0]
	assert.Equal(t, "SALES_ENTITY_V2", sug.SuggestedTable)
	assert.GreaterOrEqual(t, sug.RelevanceScore, 0.6)
	assert.Equal(t, int64(500), sug.RowCount)
	assert.Equal(t, "SELECT * FROM ANALYTICS.PUBLIC.SALES_ENTITY_V2", got.SuggestedQuery)
}

func TestPreflightIdempotent(t *testing.T) {
	svc, sess, mock := newPreflightService(t)

	// The schema listing is cached; describe and count repeat per call.
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`DESCRIBE TABLE "ANALYTICS"."PUBLIC"."FOO_ENTITY"`).
			WillReturnError(&sf.SnowflakeError{Number: 2003, Message: "does not exist"})
		if i == 0 {
			mock.ExpectQuery(tableListQuery).
				WithArgs("PUBLIC").
				WillReturnRows(sqlmock.NewRows([]string{"table_name", "row_count"}).
					AddRow("BAR_ENTITY", int64(100)))
		}
	}

	first, err := svc.Preflight(context.Background(), sess, "SELECT * FROM FOO_ENTITY", "ANALYTICS", "PUBLIC", false)
	require.NoError(t, err)
	second, err := svc.Preflight(context.Background(), sess, "SELECT * FROM FOO_ENTITY", "ANALYTICS", "PUBLIC", false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreflightRefreshRereadsSchemaListing(t *testing.T) {
	svc, sess, mock := newPreflightService(t)

	mock.ExpectQuery(`DESCRIBE TABLE "ANALYTICS"."PUBLIC"."FOO_ENTITY"`).
		WillReturnError(&sf.SnowflakeError{Number: 2003, Message: "does not exist"})
	mock.ExpectQuery(tableListQuery).
		WithArgs("PUBLIC").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "row_count"}).
			AddRow("BAR_ENTITY", int64(100)))

	_, err := svc.Preflight(context.Background(), sess, "SELECT * FROM FOO_ENTITY", "ANALYTICS", "PUBLIC", false)
	require.NoError(t, err)

	// A sibling appeared since the listing was cached; refresh picks it up.
	mock.ExpectQuery(`DESCRIBE TABLE "ANALYTICS"."PUBLIC"."FOO_ENTITY"`).
		WillReturnError(&sf.SnowflakeError{Number: 2003, Message: "does not exist"})
	mock.ExpectQuery(tableListQuery).
		WithArgs("PUBLIC").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "row_count"}).
			AddRow("FOO_ENTITY_V2", int64(42)))

	got, err := svc.Preflight(context.Background(), sess, "SELECT * FROM FOO_ENTITY", "ANALYTICS", "PUBLIC", true)
	require.NoError(t, err)
	require.NotEmpty(t, got.Suggestions)
	assert.Equal(t, "FOO_ENTITY_V2", got.Suggestions[0].SuggestedTable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateBatch(t *testing.T) {
	svc, sess, mock := newPreflightService(t)

	mock.ExpectQuery("SELECT GUID FROM TABLE_ENTITY").
		WillReturnRows(sqlmock.NewRows([]string{"GUID"}).AddRow("a"))

	mock.ExpectQuery("SELECT GUID FROM BAR_ENTITY").
		WillReturnRows(sqlmock.NewRows([]string{"GUID"}))
	mock.ExpectQuery(`DESCRIBE TABLE "ANALYTICS"."PUBLIC"."BAR_ENTITY"`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}).AddRow("GUID", "VARCHAR"))
	mock.ExpectQuery(`SELECT COUNT(*) FROM "ANALYTICS"."PUBLIC"."BAR_ENTITY" LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(tableListQuery).
		WithArgs("PUBLIC").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "row_count"}).
			AddRow("BAR_ENTITY", int64(0)))

	results, summary, err := svc.ValidateBatch(context.Background(), sess,
		[]string{"SELECT GUID FROM TABLE_ENTITY", "SELECT GUID FROM BAR_ENTITY"},
		"ANALYTICS", "PUBLIC")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "success", results[0].Status)
	assert.Equal(t, 1, results[0].RowCount)
	require.Len(t, results[0].SampleData, 1)

	assert.Equal(t, "empty", results[1].Status)
	assert.Empty(t, results[1].SuggestedQuery)

	assert.Equal(t, BatchSummary{Total: 2, Succeeded: 1, Empty: 1, Failed: 0}, summary)
}
