package warehouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubstage/internal/testutil"
	"hubstage/pkg/errors"
	"hubstage/pkg/models"
)

func newMockService(t *testing.T, dialect string) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	service, err := NewServiceWithDB(db, Config{Dialect: dialect, Timeout: time.Second})
	require.NoError(t, err)
	return service, mock
}

func TestNewService(t *testing.T) {
	service, err := NewService(Config{Dialect: "Snowflake"})
	require.NoError(t, err)
	assert.Equal(t, "snowflake", service.Dialect().Name)
	assert.False(t, service.connected)

	_, err = NewService(Config{Dialect: "oracle"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnsupportedDialect, errors.GetErrorCode(err))
	assert.Equal(t, []string{"mysql", "postgres", "snowflake", "sqlite"}, Dialects())
}

func TestConfigFromModel(t *testing.T) {
	cfg := ConfigFromModel(models.Warehouse{
		Dialect:  "snowflake",
		Account:  "acme",
		Username: "loader",
		Timeout:  time.Minute,
	}, "RAW")
	assert.Equal(t, "RAW", cfg.Schema)
	assert.Equal(t, "acme", cfg.Account)
	assert.Equal(t, time.Minute, cfg.Timeout)
}

func TestDSN(t *testing.T) {
	t.Run("snowflake from parts", func(t *testing.T) {
		d, _ := Lookup("snowflake")
		dsn, err := d.DSN(Config{
			Account:   "acme-eu",
			Username:  "loader",
			Password:  "pw",
			Database:  "ANALYTICS",
			Warehouse: "LOAD_WH",
		})
		require.NoError(t, err)
		assert.Contains(t, dsn, "loader")
		assert.Contains(t, dsn, "ANALYTICS")
	})

	t.Run("snowflake explicit dsn wins", func(t *testing.T) {
		d, _ := Lookup("snowflake")
		dsn, err := d.DSN(Config{DSN: "u:p@acct/db", Account: "ignored"})
		require.NoError(t, err)
		assert.Equal(t, "u:p@acct/db", dsn)
	})

	t.Run("mysql normalized", func(t *testing.T) {
		d, _ := Lookup("mysql")
		dsn, err := d.DSN(Config{DSN: "etl@tcp(db:3306)/crm?multiStatements=true", Password: "pw"})
		require.NoError(t, err)
		assert.Contains(t, dsn, "etl:pw@tcp(db:3306)/crm")
		assert.Contains(t, dsn, "parseTime=true")
		assert.NotContains(t, dsn, "multiStatements")
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		d, _ := Lookup("postgres")
		_, err := d.DSN(Config{})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
	})
}

func TestExecuteSQL(t *testing.T) {
	service, mock := newMockService(t, "snowflake")

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE a (id INT)").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO a VALUES (1)").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := service.ExecuteSQL(context.Background(), "CREATE TABLE a (id INT);\nINSERT INTO a VALUES (1);\n")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteSQLRollsBack(t *testing.T) {
	service, mock := newMockService(t, "postgres")

	mock.ExpectBegin()
	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT * FROM missing").WillReturnError(fmt.Errorf(`relation "missing" does not exist`))
	mock.ExpectRollback()

	err := service.ExecuteSQL(context.Background(), "SELECT 1; SELECT * FROM missing")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSQLObjectNotFound, errors.GetErrorCode(err))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 2, appErr.Context["statement_index"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterializeSnowflake(t *testing.T) {
	service, mock := newMockService(t, "snowflake")

	mock.ExpectBegin()
	mock.ExpectExec("CREATE OR REPLACE TABLE STAGING.stg_deals AS\nWITH base AS (SELECT 1)\nSELECT * FROM base").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := service.Materialize(context.Background(), "STAGING.stg_deals", "WITH base AS (SELECT 1)\nSELECT * FROM base\n")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterializeDropAndCreate(t *testing.T) {
	service, mock := newMockService(t, "mysql")

	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE IF EXISTS stg_deals").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE stg_deals AS\nSELECT 1").WillReturnError(fmt.Errorf("Access denied for user"))
	mock.ExpectRollback()

	err := service.Materialize(context.Background(), "stg_deals", "SELECT 1;")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSQLPermission, errors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "Failed to materialize stg_deals")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotConnected(t *testing.T) {
	service, err := NewService(Config{Dialect: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)

	assert.Equal(t, errors.ErrCodeConnectionFailed, errors.GetErrorCode(service.ExecuteSQL(context.Background(), "SELECT 1")))
	_, err = service.Query(context.Background(), "SELECT 1")
	assert.Equal(t, errors.ErrCodeConnectionFailed, errors.GetErrorCode(err))
	assert.NoError(t, service.Close())
}

func TestConnectSQLite(t *testing.T) {
	service, err := NewService(Config{Dialect: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, service.Connect(ctx))
	defer service.Close()

	require.NoError(t, service.ExecuteSQL(ctx, "CREATE TABLE deals (id TEXT, note TEXT); INSERT INTO deals VALUES ('1', 'a;b')"))
	require.NoError(t, service.Materialize(ctx, "stg_deals", "SELECT id, note FROM deals"))
	require.NoError(t, service.Materialize(ctx, "stg_deals", "SELECT id FROM deals"))

	rows, err := service.Query(ctx, "SELECT * FROM stg_deals")
	require.NoError(t, err)
	defer rows.Close()
	cols, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, cols)
}

func TestConnectFailureIsRetried(t *testing.T) {
	service, err := NewService(Config{
		Dialect: "postgres",
		DSN:     "postgres://etl:pw@127.0.0.1:1/crm?connect_timeout=1&sslmode=disable",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)

	var attempts []int
	service.SetRetryConfig(&errors.RetryConfig{
		MaxRetries:     1,
		InitialDelay:   time.Millisecond,
		MaxDelay:       time.Millisecond,
		Multiplier:     1,
		RetryableError: errors.IsRecoverable,
		OnRetry:        func(attempt int, _ time.Duration, _ error) { attempts = append(attempts, attempt) },
	})

	err = service.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMaxRetriesExceeded, errors.GetErrorCode(err))
	assert.Equal(t, []int{1}, attempts)
}

func TestStagingModelMaterializesInSQLite(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	testutil.SeedCRM(t, db)

	service, err := NewServiceWithDB(db, Config{Dialect: "sqlite"})
	require.NoError(t, err)

	query := `WITH base AS (
    SELECT
        id AS id,
        name AS name
    FROM main.companies
)
SELECT * FROM base
`
	require.NoError(t, service.Materialize(context.Background(), "main.stg_companies", query))

	rows := testutil.QueryStrings(t, db, "SELECT * FROM main.stg_companies ORDER BY id")
	require.Len(t, rows, 4)
	assert.Equal(t, testutil.Str("Acme"), rows[0]["name"])
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want int
	}{
		{"single", "SELECT 1", 1},
		{"trailing semicolon", "SELECT 1;", 1},
		{"two", "SELECT 1; SELECT 2", 2},
		{"semicolon in literal", "SELECT 'a;b'; SELECT 2", 2},
		{"doubled quote", "SELECT 'o''brien;'; SELECT 2", 2},
		{"blank tail", "SELECT 1;\n\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, splitStatements(tt.sql), tt.want)
		})
	}
}
