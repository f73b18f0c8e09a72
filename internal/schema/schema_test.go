package schema

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubstage/internal/testutil"
	"hubstage/internal/transform"
	"hubstage/pkg/errors"
	"hubstage/pkg/models"
)

type dbQuerier struct{ db *sql.DB }

func (d dbQuerier) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

func newSQLiteService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	testutil.SeedCRM(t, db)

	svc, err := NewService(dbQuerier{db}, "sqlite", transform.OptionsFromConfig(testutil.SampleConfig()))
	require.NoError(t, err)
	return svc, db
}

func TestColumnsSQLite(t *testing.T) {
	svc, _ := newSQLiteService(t)

	cols, err := svc.Columns(context.Background(), "main", "companies")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "industry", "domain"}, cols)

	cols, err = svc.Columns(context.Background(), "", "deals")
	require.NoError(t, err)
	assert.Contains(t, cols, "dealtype")
}

func TestColumnsMissingTable(t *testing.T) {
	svc, _ := newSQLiteService(t)

	_, err := svc.Columns(context.Background(), "main", "tickets")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSQLObjectNotFound, errors.GetErrorCode(err))
}

func TestPropertyNamesSQLite(t *testing.T) {
	svc, _ := newSQLiteService(t)

	names, err := svc.PropertyNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dealtype", "industry", "lifecyclestage"}, names)
}

func TestDuplicateOptionValuesSQLite(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	testutil.CreateProperties(t, db, []testutil.Property{
		{Name: "industry", Options: [][2]string{{"tech", "Technology"}, {"tech", "Tech"}, {"fin", "Finance"}}},
		{Name: "tier", Options: [][2]string{{"gold", "Gold"}}},
	})
	svc, err := NewService(dbQuerier{db}, "sqlite", transform.OptionsFromConfig(testutil.SampleConfig()))
	require.NoError(t, err)

	dups, err := svc.DuplicateOptionValues(context.Background(), "industry")
	require.NoError(t, err)
	assert.Equal(t, []string{"tech"}, dups)

	dups, err = svc.DuplicateOptionValues(context.Background(), "tier")
	require.NoError(t, err)
	assert.Empty(t, dups)
}

func TestValidatePropertiesAgainstSQLite(t *testing.T) {
	svc, _ := newSQLiteService(t)
	cfg := testutil.SampleConfig()

	oc := cfg.Objects["companies"]
	oc.Columns = append(oc.Columns, models.ColumnSpec{Name: "domain", AddPropertyLabel: true})

	advs, err := transform.ValidateProperties(context.Background(), svc, "companies", oc, transform.OptionsFromConfig(cfg).Labels)
	require.NoError(t, err)
	require.Len(t, advs, 1)
	assert.Equal(t, transform.AdvisoryUnmatchedProperty, advs[0].Kind)
	assert.Equal(t, "domain", advs[0].Column)
}

func TestColumnsQueryPerDialect(t *testing.T) {
	opts := transform.OptionsFromConfig(testutil.SampleConfig())

	tests := []struct {
		dialect string
		schema  string
		query   string
		args    []driver.Value
	}{
		{
			dialect: "snowflake",
			schema:  "RAW.HUBSPOT",
			query:   "SELECT column_name FROM RAW.information_schema.columns WHERE UPPER(table_name) = UPPER(?) AND UPPER(table_schema) = UPPER(?) ORDER BY ordinal_position",
			args:    []driver.Value{"deals", "HUBSPOT"},
		},
		{
			dialect: "postgres",
			schema:  "hubspot",
			query:   "SELECT column_name FROM information_schema.columns WHERE UPPER(table_name) = UPPER($1) AND UPPER(table_schema) = UPPER($2) ORDER BY ordinal_position",
			args:    []driver.Value{"deals", "hubspot"},
		},
		{
			dialect: "mysql",
			schema:  "",
			query:   "SELECT column_name FROM information_schema.columns WHERE UPPER(table_name) = UPPER(?) ORDER BY ordinal_position",
			args:    []driver.Value{"deals"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			require.NoError(t, err)
			defer db.Close()

			svc, err := NewService(dbQuerier{db}, tt.dialect, opts)
			require.NoError(t, err)

			mock.ExpectQuery(tt.query).WithArgs(tt.args...).
				WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("ID").AddRow("AMOUNT"))

			cols, err := svc.Columns(context.Background(), tt.schema, "deals")
			require.NoError(t, err)
			assert.Equal(t, []string{"ID", "AMOUNT"}, cols)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIntrospectionErrorIsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc, err := NewService(dbQuerier{db}, "postgres", transform.OptionsFromConfig(testutil.SampleConfig()))
	require.NoError(t, err)

	mock.ExpectQuery("SELECT DISTINCT").WillReturnError(fmt.Errorf("permission denied for table properties"))

	_, err = svc.PropertyNames(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIntrospection, errors.GetErrorCode(err))
}

func TestNewServiceRejectsBadTableNames(t *testing.T) {
	opts := transform.OptionsFromConfig(testutil.SampleConfig())
	opts.Labels.Tables.Definitions = "properties; DROP TABLE x"

	_, err := NewService(nil, "sqlite", opts)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidIdentifier, errors.GetErrorCode(err))
}

func TestSplitSchema(t *testing.T) {
	db, name := splitSchema("RAW.HUBSPOT")
	assert.Equal(t, "RAW", db)
	assert.Equal(t, "HUBSPOT", name)

	db, name = splitSchema("main")
	assert.Equal(t, "", db)
	assert.Equal(t, "main", name)
}
