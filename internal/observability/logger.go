package observability

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"hubstage/pkg/models"
)

// LogLevel represents the severity of a log message
type LogLevel = zapcore.Level

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

// LoggerConfig contains logger configuration
type LoggerConfig struct {
	Level    LogLevel
	Output   io.Writer // defaults to stderr
	Encoding string    // "json" or "console"
	Service  string
	Version  string

	// File enables an additional rotating file sink.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Logger provides structured logging
type Logger struct {
	zap *zap.Logger
}

// NewLogger creates a new logger instance
func NewLogger(config LoggerConfig) *Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if config.Encoding == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(config.Output), config.Level),
	}
	if config.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
		}
		// Files always get JSON so they can be shipped as-is.
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotating), config.Level))
	}

	var fields []zap.Field
	if config.Service != "" {
		fields = append(fields, zap.String("service", config.Service))
	}
	if config.Version != "" {
		fields = append(fields, zap.String("version", config.Version))
	}

	return &Logger{
		zap: zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1), zap.Fields(fields...)),
	}
}

// FromSettings builds a logger from the logging section of the config file
func FromSettings(settings models.Logging, out io.Writer, version string) *Logger {
	return NewLogger(LoggerConfig{
		Level:      LogLevelFromString(settings.Level),
		Output:     out,
		Encoding:   settings.Encoding,
		Service:    "hubstage",
		Version:    version,
		File:       settings.File,
		MaxSizeMB:  settings.MaxSizeMB,
		MaxBackups: settings.MaxBackups,
	})
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// WithField returns a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zap: l.zap.With(zap.Any(key, value))}
}

// WithFields returns a new logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{zap: l.zap.With(toZap(fields)...)}
}

func (l *Logger) Debug(msg string) { l.zap.Debug(msg) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zap.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.zap.Debug(msg, toZap(fields)...)
}

func (l *Logger) Info(msg string) { l.zap.Info(msg) }

func (l *Logger) Infof(format string, args ...interface{}) {
	l.zap.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.zap.Info(msg, toZap(fields)...)
}

func (l *Logger) Warn(msg string) { l.zap.Warn(msg) }

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zap.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.zap.Warn(msg, toZap(fields)...)
}

func (l *Logger) Error(msg string) { l.zap.Error(msg) }

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zap.Error(fmt.Sprintf(format, args...))
}

func (l *Logger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.zap.Error(msg, toZap(fields)...)
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// toZap converts a field map in sorted key order so output is stable.
func toZap(fields map[string]interface{}) []zap.Field {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

// LogLevelFromString converts a string to LogLevel
func LogLevelFromString(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = NewLogger(LoggerConfig{Level: InfoLevel, Service: "hubstage"})
)

// SetDefaultLogger sets the global default logger
func SetDefaultLogger(logger *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}

// GetLogger returns the global default logger
func GetLogger() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}
