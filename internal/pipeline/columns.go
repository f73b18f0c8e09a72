package pipeline

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hubstage/pkg/errors"
)

// ColumnSource lists the columns of a raw table.
type ColumnSource interface {
	Columns(ctx context.Context, schema, table string) ([]string, error)
}

// StaticColumns serves table layouts from memory, keyed by table name. It
// lets generation run without a warehouse connection.
type StaticColumns map[string][]string

func (s StaticColumns) Columns(_ context.Context, schema, table string) ([]string, error) {
	cols, ok := s[table]
	if !ok {
		return nil, errors.New(errors.ErrCodeSQLObjectNotFound,
			fmt.Sprintf("no columns listed for table %s", table)).
			WithContext("table", table).
			WithSuggestions("Add the table to the columns file")
	}
	return cols, nil
}

// LoadColumnsFile reads a YAML mapping of table name to column list:
//
//	companies: [id, name, industry]
//	deals: [id, dealname, amount]
func LoadColumnsFile(path string) (StaticColumns, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the command line
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrCodeFileNotFound, "columns file not found").
				WithContext("path", path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "failed to read columns file").
			WithContext("path", path)
	}

	var cols StaticColumns
	if err := yaml.Unmarshal(data, &cols); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse columns file").
			WithContext("path", path)
	}
	return cols, nil
}
