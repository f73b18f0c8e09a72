package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "HSTG1001"
	ErrCodeConnectionTimeout    ErrorCode = "HSTG1002"
	ErrCodeAuthenticationFailed ErrorCode = "HSTG1003"
	ErrCodeUnsupportedDialect   ErrorCode = "HSTG1004"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound     ErrorCode = "HSTG2001"
	ErrCodeConfigInvalid      ErrorCode = "HSTG2002"
	ErrCodeConfigMissing      ErrorCode = "HSTG2003"
	ErrCodeInvalidIdentifier  ErrorCode = "HSTG2004"
	ErrCodeCredentialsMissing ErrorCode = "HSTG2005"

	// SQL execution errors (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "HSTG4001"
	ErrCodeSQLPermission     ErrorCode = "HSTG4002"
	ErrCodeSQLTimeout        ErrorCode = "HSTG4003"
	ErrCodeSQLTransaction    ErrorCode = "HSTG4004"
	ErrCodeSQLObjectNotFound ErrorCode = "HSTG4005"
	ErrCodeIntrospection     ErrorCode = "HSTG4006"

	// File system errors (5xxx)
	ErrCodeFileNotFound  ErrorCode = "HSTG5001"
	ErrCodeFileOperation ErrorCode = "HSTG5002"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "HSTG6001"
	ErrCodeAdvisories       ErrorCode = "HSTG6002"

	// Generation errors (7xxx)
	ErrCodeUnknownObject    ErrorCode = "HSTG7001"
	ErrCodeGenerationFailed ErrorCode = "HSTG7002"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "HSTG9001"
	ErrCodeMaxRetriesExceeded ErrorCode = "HSTG9002"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL"
	SeverityError    ErrorSeverity = "ERROR"
	SeverityWarning  ErrorSeverity = "WARNING"
	SeverityInfo     ErrorSeverity = "INFO"
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Severity: SeverityError,
		Context:  make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// Inherit context from a wrapped AppError
	var ae *AppError
	if errors.As(err, &ae) {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// Common error constructors

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityError).
		WithSuggestions(
			"Check your network connection",
			"Verify the warehouse DSN or account settings",
			"Check firewall settings",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'hubstage init' to write a starter configuration",
		)
}

// IdentifierError reports a configured name that cannot be emitted as a SQL identifier
func IdentifierError(field, value string) *AppError {
	return New(ErrCodeInvalidIdentifier, fmt.Sprintf("%q is not a valid SQL identifier", value)).
		WithContext("field", field).
		WithContext("value", value).
		WithSuggestions("Identifiers may contain letters, digits, '_' and '$', and must not start with a digit")
}

// SQLError creates an SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLSyntax, message).
		WithContext("query", truncateString(query, 200))

	causeText := ""
	if cause != nil {
		causeText = strings.ToLower(cause.Error())
	}

	switch {
	case strings.Contains(causeText, "permission") || strings.Contains(causeText, "access denied") ||
		strings.Contains(causeText, "insufficient privileges"):
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Check the role's privileges on the source and target schemas",
			"Verify the role can create tables in the target schema",
		)
	case strings.Contains(causeText, "timeout"):
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Increase warehouse.timeout",
			"Check warehouse size",
		)
	case strings.Contains(causeText, "does not exist") || strings.Contains(causeText, "no such table") ||
		strings.Contains(causeText, "not found"):
		err.Code = ErrCodeSQLObjectNotFound
		_ = err.WithSuggestions(
			"Verify the raw tables were loaded into the source schema",
			"Check source.schema and source.properties table names",
		)
	}

	return err
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning).
		AsRecoverable()
}

// GenerationError creates an error raised while compiling a staging model
func GenerationError(object string, cause error) *AppError {
	return Wrap(cause, ErrCodeGenerationFailed, fmt.Sprintf("Failed to generate staging model for %s", object)).
		WithContext("object", object)
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
