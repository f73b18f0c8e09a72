package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubstage/internal/testutil"
	"hubstage/pkg/errors"
	"hubstage/pkg/models"
)

func sqliteOptions() Options {
	return OptionsFromConfig(testutil.SampleConfig())
}

func advisoryKinds(advs []Advisory) []AdvisoryKind {
	var kinds []AdvisoryKind
	for _, a := range advs {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}

func TestBuildModelGolden(t *testing.T) {
	oc := models.ObjectConfig{
		Columns: []models.ColumnSpec{
			{Name: "industry", Alias: "industry", AddPropertyLabel: true},
		},
	}

	res, err := BuildModel("companies", oc, []string{"id", "name", "industry"}, sqliteOptions())
	require.NoError(t, err)

	expected := `WITH base AS (
    SELECT
        industry AS industry
    FROM main.companies
)
SELECT
    base.*,
    lbl_1.label AS industry_label
FROM base
LEFT JOIN (
    SELECT
        opt.value AS value,
        opt.label AS label
    FROM main.properties__options AS opt
    INNER JOIN main.properties AS prop
        ON opt._dlt_parent_id = prop._dlt_id
    WHERE prop.name = 'industry'
) AS lbl_1
    ON base.industry = lbl_1.value
`
	assert.Equal(t, expected, res.SQL)
	assert.Equal(t, "stg_companies", res.Model)
	assert.Equal(t, "main.companies", res.Source)
	assert.Equal(t, []string{"industry", "industry_label"}, res.Columns)
	assert.Empty(t, res.Advisories)
	assert.Equal(t, Fingerprint(res.SQL), res.Fingerprint)
}

func TestBuildModelIsDeterministic(t *testing.T) {
	cfg := testutil.SampleConfig()
	source := []string{"id", "dealname", "amount", "dealtype"}

	first, err := BuildModel("deals", cfg.Objects["deals"], source, sqliteOptions())
	require.NoError(t, err)
	second, err := BuildModel("deals", cfg.Objects["deals"], source, sqliteOptions())
	require.NoError(t, err)

	assert.Equal(t, first.SQL, second.SQL)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestBuildModelIdentityColumn(t *testing.T) {
	source := []string{"id", "amount"}

	t.Run("projected first", func(t *testing.T) {
		res, err := BuildModel("deals", models.ObjectConfig{
			IdentityColumn: "id",
			Columns:        []models.ColumnSpec{{Name: "amount"}},
		}, source, sqliteOptions())
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "amount"}, res.Columns)
	})

	t.Run("not duplicated when configured", func(t *testing.T) {
		res, err := BuildModel("deals", models.ObjectConfig{
			IdentityColumn: "id",
			Columns:        []models.ColumnSpec{{Name: "amount"}, {Name: "ID"}},
		}, source, sqliteOptions())
		require.NoError(t, err)
		assert.Equal(t, []string{"amount", "ID"}, res.Columns)
		assert.Empty(t, res.Advisories)
	})

	t.Run("missing from source", func(t *testing.T) {
		res, err := BuildModel("deals", models.ObjectConfig{
			IdentityColumn: "deal_id",
			Columns:        []models.ColumnSpec{{Name: "amount"}},
		}, source, sqliteOptions())
		require.NoError(t, err)
		assert.Equal(t, []AdvisoryKind{AdvisoryMissingIdentity}, advisoryKinds(res.Advisories))
		assert.Equal(t, "deals", res.Advisories[0].Object)
	})

	t.Run("same for every object type", func(t *testing.T) {
		oc := models.ObjectConfig{IdentityColumn: "id", Columns: []models.ColumnSpec{{Name: "amount"}}}
		for _, o := range ObjectTypes() {
			res, err := BuildModel(o.Name, oc, source, sqliteOptions())
			require.NoError(t, err)
			assert.Equal(t, []string{"id", "amount"}, res.Columns, o.Name)
		}
	})
}

func TestBuildModelEmptyProjection(t *testing.T) {
	res, err := BuildModel("contacts", models.ObjectConfig{
		Columns: []models.ColumnSpec{{Name: "foo", AddPropertyLabel: true}},
	}, []string{"id", "email"}, sqliteOptions())
	require.NoError(t, err)

	assert.Contains(t, res.SQL, "    SELECT *\n    FROM main.contacts")
	assert.Contains(t, res.SQL, "\nSELECT * FROM base\n")
	assert.NotContains(t, res.SQL, "foo")
	assert.Equal(t, []string{"id", "email"}, res.Columns)
	assert.Equal(t, []AdvisoryKind{AdvisoryMissingColumn, AdvisoryEmptyProjection}, advisoryKinds(res.Advisories))
}

func TestBuildModelSkipsLabelsForDroppedColumns(t *testing.T) {
	res, err := BuildModel("companies", models.ObjectConfig{
		Columns: []models.ColumnSpec{
			{Name: "name"},
			{Name: "foo", AddPropertyLabel: true},
		},
	}, []string{"id", "name"}, sqliteOptions())
	require.NoError(t, err)

	assert.NotContains(t, res.SQL, "foo")
	assert.NotContains(t, res.SQL, "LEFT JOIN")
	assert.Equal(t, []AdvisoryKind{AdvisoryMissingColumn}, advisoryKinds(res.Advisories))
}

func TestBuildModelLabelCollision(t *testing.T) {
	res, err := BuildModel("companies", models.ObjectConfig{
		Columns: []models.ColumnSpec{
			{Name: "industry", AddPropertyLabel: true},
			{Name: "industry_label"},
		},
	}, []string{"industry", "industry_label"}, sqliteOptions())
	require.NoError(t, err)

	assert.Equal(t, []AdvisoryKind{AdvisoryDuplicateAlias}, advisoryKinds(res.Advisories))
	assert.Equal(t, "industry_label", res.Advisories[0].Column)
}

func TestBuildModelRejectsBadIdentifiers(t *testing.T) {
	tests := []struct {
		name  string
		oc    models.ObjectConfig
		opts  func(*Options)
		field string
	}{
		{
			name:  "column name",
			oc:    models.ObjectConfig{Columns: []models.ColumnSpec{{Name: "x; DROP TABLE y"}}},
			field: "objects.companies.columns[0].name",
		},
		{
			name:  "alias",
			oc:    models.ObjectConfig{Columns: []models.ColumnSpec{{Name: "x", Alias: "1x"}}},
			field: "objects.companies.columns[0].alias",
		},
		{
			name:  "identity column",
			oc:    models.ObjectConfig{IdentityColumn: "id-1"},
			field: "objects.companies.identity_column",
		},
		{
			name:  "source schema",
			opts:  func(o *Options) { o.SourceSchema = "raw..x" },
			field: "source.schema",
		},
		{
			name:  "property table",
			opts:  func(o *Options) { o.Labels.Tables.Options = "" },
			field: "source.properties.options",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := sqliteOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			_, err := BuildModel("companies", tt.oc, []string{"x"}, opts)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInvalidIdentifier, errors.GetErrorCode(err))

			var appErr *errors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Context["field"])
		})
	}
}

func TestBuildModelAcceptsQualifiedSchema(t *testing.T) {
	opts := sqliteOptions()
	opts.SourceSchema = "RAW.HUBSPOT"
	opts.Labels.Schema = "RAW.HUBSPOT"

	res, err := BuildModel("deals", models.ObjectConfig{Columns: []models.ColumnSpec{{Name: "amount"}}}, []string{"AMOUNT"}, opts)
	require.NoError(t, err)
	assert.Equal(t, "RAW.HUBSPOT.deals", res.Source)
}

func TestStagingQueryAgainstSQLite(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	testutil.SeedCRM(t, db)
	cfg := testutil.SampleConfig()

	res, err := BuildModel("companies", cfg.Objects["companies"], []string{"id", "name", "industry", "domain"}, sqliteOptions())
	require.NoError(t, err)

	rows := testutil.QueryStrings(t, db, res.SQL+" ORDER BY id")
	require.Len(t, rows, 4)

	labels := map[string]*string{}
	for _, r := range rows {
		assert.Len(t, r, 4)
		labels[*r["name"]] = r["industry_label"]
	}
	assert.Equal(t, testutil.Str("Technology"), labels["Acme"])
	assert.Equal(t, testutil.Str("Finance"), labels["Globex"])
	assert.Nil(t, labels["Initech"])
	assert.Nil(t, labels["Umbrella"])
	assert.Equal(t, testutil.Str("tech"), rows[0]["industry"])
}

func TestStagingQueryAliasedPrefixedProperty(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	testutil.SeedCRM(t, db)
	cfg := testutil.SampleConfig()

	res, err := BuildModel("contacts", cfg.Objects["contacts"], []string{"id", "email", "property_lifecyclestage"}, sqliteOptions())
	require.NoError(t, err)

	rows := testutil.QueryStrings(t, db, res.SQL+" ORDER BY id")
	require.Len(t, rows, 2)
	assert.Equal(t, testutil.Str("lead"), rows[0]["lifecycle_stage"])
	assert.Equal(t, testutil.Str("Lead"), rows[0]["lifecycle_stage_label"])
	assert.Equal(t, testutil.Str("Customer"), rows[1]["lifecycle_stage_label"])
}

func TestStagingQueryUnknownPropertyYieldsNull(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	testutil.SeedCRM(t, db)

	res, err := BuildModel("companies", models.ObjectConfig{
		Columns: []models.ColumnSpec{{Name: "domain", AddPropertyLabel: true}},
	}, []string{"id", "domain"}, sqliteOptions())
	require.NoError(t, err)

	rows := testutil.QueryStrings(t, db, res.SQL)
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.Nil(t, r["domain_label"])
	}
}

func TestStagingQueryPassThroughMatchesSource(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	testutil.SeedCRM(t, db)

	res, err := BuildModel("deals", models.ObjectConfig{}, []string{"id", "dealname", "amount", "dealtype"}, sqliteOptions())
	require.NoError(t, err)

	got := testutil.QueryStrings(t, db, res.SQL+" ORDER BY id")
	want := testutil.QueryStrings(t, db, "SELECT * FROM main.deals ORDER BY id")
	assert.Equal(t, want, got)
}

// Repeated option values are not guarded against; the join multiplies rows.
func TestStagingQueryFansOutOnDuplicateOptions(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	testutil.CreateTable(t, db, testutil.Table{
		Name:    "companies",
		Columns: []string{"id", "industry"},
		Rows:    [][]any{{"1", "tech"}, {"2", "fin"}},
	})
	testutil.CreateProperties(t, db, []testutil.Property{
		{Name: "industry", Options: [][2]string{{"tech", "Technology"}, {"tech", "Tech"}, {"fin", "Finance"}}},
	})

	res, err := BuildModel("companies", models.ObjectConfig{
		Columns: []models.ColumnSpec{{Name: "industry", AddPropertyLabel: true}},
	}, []string{"id", "industry"}, sqliteOptions())
	require.NoError(t, err)

	rows := testutil.QueryStrings(t, db, res.SQL)
	assert.Len(t, rows, 3)
}
