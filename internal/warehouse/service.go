package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hubstage/pkg/errors"
	"hubstage/pkg/models"
)

// Service runs SQL against the configured warehouse
type Service struct {
	db        *sql.DB
	config    Config
	dialect   Dialect
	connected bool
	retry     *errors.RetryConfig
}

// Config holds warehouse connection configuration
type Config struct {
	Dialect   string
	DSN       string
	Account   string
	Username  string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
	Timeout   time.Duration
}

// ConfigFromModel maps the warehouse section of the config file.
func ConfigFromModel(w models.Warehouse, schema string) Config {
	return Config{
		Dialect:   w.Dialect,
		DSN:       w.DSN,
		Account:   w.Account,
		Username:  w.Username,
		Password:  w.Password,
		Database:  w.Database,
		Schema:    schema,
		Warehouse: w.Warehouse,
		Role:      w.Role,
		Timeout:   w.Timeout,
	}
}

// NewService creates a new warehouse service
func NewService(config Config) (*Service, error) {
	dialect, err := Lookup(config.Dialect)
	if err != nil {
		return nil, err
	}
	return &Service{
		config:  config,
		dialect: dialect,
		retry:   errors.DefaultRetryConfig(),
	}, nil
}

// NewServiceWithDB wraps an already open handle, e.g. an in-process sqlite database.
func NewServiceWithDB(db *sql.DB, config Config) (*Service, error) {
	s, err := NewService(config)
	if err != nil {
		return nil, err
	}
	s.db = db
	s.connected = true
	return s, nil
}

// SetRetryConfig overrides the connect retry policy
func (s *Service) SetRetryConfig(cfg *errors.RetryConfig) {
	s.retry = cfg
}

func (s *Service) Dialect() Dialect { return s.dialect }

// Connect opens the pool and pings the warehouse, retrying transient failures
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}

	dsn, err := s.dialect.DSN(s.config)
	if err != nil {
		return err
	}

	return errors.Retry(ctx, s.retry, func(ctx context.Context) error {
		db, err := sql.Open(s.dialect.Driver, dsn)
		if err != nil {
			return errors.ConnectionError("Failed to open warehouse connection", err).
				WithContext("dialect", s.dialect.Name)
		}

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(10 * time.Minute)
		if s.dialect.Name == "sqlite" {
			// Every connection to :memory: is a separate database.
			db.SetMaxOpenConns(1)
		}

		pingCtx, cancel := s.withTimeout(ctx)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()

			lower := strings.ToLower(err.Error())
			if strings.Contains(lower, "authentication") || strings.Contains(lower, "password") {
				return errors.Wrap(err, errors.ErrCodeAuthenticationFailed, "Authentication failed").
					WithContext("user", s.config.Username).
					WithSuggestions(
						"Verify your username and password",
						"Check the keyring entry if password_from_keyring is set",
					)
			}

			return errors.ConnectionError("Failed to connect to warehouse", err).
				WithContext("dialect", s.dialect.Name).
				AsRecoverable()
		}

		s.db = db
		s.connected = true
		return nil
	})
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	s.connected = false
	return nil
}

// ExecuteSQL runs every statement of sqlText in a single transaction
func (s *Service) ExecuteSQL(ctx context.Context, sqlText string) error {
	if !s.connected {
		return notConnected()
	}
	return s.execStatements(ctx, splitStatements(sqlText))
}

// Materialize replaces table with the result of query
func (s *Service) Materialize(ctx context.Context, table, query string) error {
	if !s.connected {
		return notConnected()
	}
	query = strings.TrimRight(strings.TrimSpace(query), ";")
	if err := s.execStatements(ctx, s.dialect.Materialize(table, query)); err != nil {
		return errors.Wrap(err, errors.GetErrorCode(err), fmt.Sprintf("Failed to materialize %s", table)).
			WithContext("table", table)
	}
	return nil
}

// Query runs a read-only query. The caller closes the rows.
func (s *Service) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if !s.connected {
		return nil, notConnected()
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.SQLError("Query failed", query, err)
	}
	return rows, nil
}

func (s *Service) execStatements(ctx context.Context, statements []string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin transaction")
	}

	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return errors.SQLError(fmt.Sprintf("Failed to execute statement %d", i+1), stmt, err).
				WithContext("statement_index", i+1).
				WithContext("total_statements", len(statements))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit transaction")
	}
	return nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func notConnected() error {
	return errors.New(errors.ErrCodeConnectionFailed, "Not connected to warehouse").
		WithSuggestions("Call Connect() before executing SQL")
}

// splitStatements splits on semicolons outside quoted strings
func splitStatements(sql string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	stringChar := rune(0)

	for i, char := range sql {
		if !inString {
			if char == '\'' || char == '"' {
				inString = true
				stringChar = char
			} else if char == ';' {
				if i == 0 || sql[i-1] != '\\' {
					statements = append(statements, current.String())
					current.Reset()
					continue
				}
			}
		} else if char == stringChar && (i == 0 || sql[i-1] != '\\') {
			inString = false
		}
		current.WriteRune(char)
	}

	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
