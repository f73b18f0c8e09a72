package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"hubstage/internal/transform"
	"hubstage/pkg/errors"
)

// Querier runs read-only queries against the warehouse.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Service reads live table layouts and property reference data
type Service struct {
	q       Querier
	dialect string
	labels  transform.LabelOptions
}

var _ transform.Catalog = (*Service)(nil)

// NewService creates a schema service for the given dialect. The property
// table names in opts end up in query text, so they are checked here.
func NewService(q Querier, dialect string, opts transform.Options) (*Service, error) {
	if err := transform.CheckOptions(opts); err != nil {
		return nil, err
	}
	return &Service{
		q:       q,
		dialect: strings.ToLower(dialect),
		labels:  opts.Labels,
	}, nil
}

// Columns returns the column names of schema.table in ordinal order. A
// table with no visible columns is reported as missing.
func (s *Service) Columns(ctx context.Context, schema, table string) ([]string, error) {
	query, args := s.columnsQuery(schema, table)

	names, err := s.strings(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIntrospection, "Failed to read table columns").
			WithContext("table", transform.Qualify(schema, table))
	}
	if len(names) == 0 {
		return nil, errors.New(errors.ErrCodeSQLObjectNotFound,
			fmt.Sprintf("table %s does not exist or has no columns", transform.Qualify(schema, table))).
			WithContext("table", transform.Qualify(schema, table)).
			WithSuggestions(
				"Verify the raw tables were loaded into the source schema",
				"Set objects.<name>.table if the raw table has a different name",
			)
	}
	return names, nil
}

// PropertyNames lists every property definition name.
func (s *Service) PropertyNames(ctx context.Context) ([]string, error) {
	t := s.labels.Tables
	query := fmt.Sprintf("SELECT DISTINCT prop.%s FROM %s AS prop ORDER BY prop.%s",
		t.Name, transform.Qualify(s.labels.Schema, t.Definitions), t.Name)

	names, err := s.strings(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIntrospection, "Failed to read property definitions")
	}
	return names, nil
}

// DuplicateOptionValues lists the option values defined more than once for property.
func (s *Service) DuplicateOptionValues(ctx context.Context, property string) ([]string, error) {
	t := s.labels.Tables
	query := fmt.Sprintf(`SELECT opt.%[1]s
FROM %[2]s AS opt
INNER JOIN %[3]s AS prop
    ON opt.%[4]s = prop.%[5]s
WHERE prop.%[6]s = %[7]s
GROUP BY opt.%[1]s
HAVING COUNT(*) > 1
ORDER BY opt.%[1]s`,
		t.Value,
		transform.Qualify(s.labels.Schema, t.Options),
		transform.Qualify(s.labels.Schema, t.Definitions),
		t.OptionParentID,
		t.DefinitionID,
		t.Name,
		s.placeholder(1),
	)

	values, err := s.strings(ctx, query, property)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIntrospection, "Failed to read property options").
			WithContext("property", property)
	}
	return values, nil
}

func (s *Service) columnsQuery(schema, table string) (string, []any) {
	database, name := splitSchema(schema)

	if s.dialect == "sqlite" {
		if name == "" {
			name = "main"
		}
		return "SELECT name FROM pragma_table_info(?, ?) ORDER BY cid", []any{table, name}
	}

	catalog := "information_schema.columns"
	if s.dialect == "snowflake" && database != "" {
		catalog = database + "." + catalog
	}

	where := fmt.Sprintf("UPPER(table_name) = UPPER(%s)", s.placeholder(1))
	args := []any{table}
	if name != "" {
		where += fmt.Sprintf(" AND UPPER(table_schema) = UPPER(%s)", s.placeholder(2))
		args = append(args, name)
	}
	return fmt.Sprintf("SELECT column_name FROM %s WHERE %s ORDER BY ordinal_position", catalog, where), args
}

func (s *Service) placeholder(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *Service) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid {
			out = append(out, v.String)
		}
	}
	return out, rows.Err()
}

// splitSchema separates a database qualifier from the schema name:
// "RAW.HUBSPOT" gives ("RAW", "HUBSPOT").
func splitSchema(schema string) (string, string) {
	if i := strings.LastIndex(schema, "."); i >= 0 {
		return schema[:i], schema[i+1:]
	}
	return "", schema
}
