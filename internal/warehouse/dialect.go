package warehouse

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite"

	"hubstage/pkg/errors"
)

// Dialect captures what differs between the supported warehouses.
type Dialect struct {
	Name string
	// Driver is the database/sql driver name registered by the blank import.
	Driver string
	// DSN builds the driver connection string from the config.
	DSN func(cfg Config) (string, error)
	// Materialize returns the statements that replace table with the result of query.
	Materialize func(table, query string) []string
}

var dialects = map[string]Dialect{}

// Register adds a dialect to the registry. Later registrations win.
func Register(d Dialect) {
	dialects[strings.ToLower(d.Name)] = d
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return Dialect{}, errors.New(errors.ErrCodeUnsupportedDialect,
			fmt.Sprintf("unsupported warehouse dialect %q", name)).
			WithSuggestions("Use one of: " + strings.Join(Dialects(), ", "))
	}
	return d, nil
}

// Dialects lists the registered dialect names in sorted order.
func Dialects() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(Dialect{
		Name:   "snowflake",
		Driver: "snowflake",
		DSN:    snowflakeDSN,
		Materialize: func(table, query string) []string {
			return []string{fmt.Sprintf("CREATE OR REPLACE TABLE %s AS\n%s", table, query)}
		},
	})
	Register(Dialect{
		Name:        "postgres",
		Driver:      "pgx",
		DSN:         passthroughDSN,
		Materialize: dropAndCreate,
	})
	Register(Dialect{
		Name:        "mysql",
		Driver:      "mysql",
		DSN:         mysqlDSN,
		Materialize: dropAndCreate,
	})
	Register(Dialect{
		Name:        "sqlite",
		Driver:      "sqlite",
		DSN:         passthroughDSN,
		Materialize: dropAndCreate,
	})
}

func dropAndCreate(table, query string) []string {
	return []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", table),
		fmt.Sprintf("CREATE TABLE %s AS\n%s", table, query),
	}
}

func passthroughDSN(cfg Config) (string, error) {
	if cfg.DSN == "" {
		return "", errors.ConfigError("dsn is required", "warehouse.dsn")
	}
	return cfg.DSN, nil
}

func snowflakeDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.Username,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid snowflake connection settings").
			WithContext("account", cfg.Account)
	}
	return dsn, nil
}

// mysqlDSN normalizes the DSN so one Exec carries one statement and
// DATETIME columns scan into time.Time.
func mysqlDSN(cfg Config) (string, error) {
	if cfg.DSN == "" {
		return "", errors.ConfigError("dsn is required", "warehouse.dsn")
	}
	parsed, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid mysql dsn")
	}
	parsed.MultiStatements = false
	parsed.ParseTime = true
	if cfg.Username != "" {
		parsed.User = cfg.Username
	}
	if cfg.Password != "" {
		parsed.Passwd = cfg.Password
	}
	return parsed.FormatDSN(), nil
}
