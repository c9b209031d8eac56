// Package logger provides structured logging for nidam. It wraps
// log/slog with a consistent interface, JSON or text output, and
// context-carried correlation fields (operation, source alias,
// bundle content hash).
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// contextKey is a private type for context keys in this package.
type contextKey int

const (
	operationKey contextKey = iota
	sourceKey
	contentHashKey
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
	mu            sync.RWMutex
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is the output format (json, text).
	Format string
	// Output is the writer to log to (defaults to os.Stderr).
	Output io.Writer
}

// Init initializes the default logger with the given configuration.
// It is safe to call multiple times; only the first call takes effect.
// Use Reset() followed by Init() to reconfigure.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	once.Do(func() {
		initLogger(cfg)
	})
}

// Reset resets the default logger so Init can be called again.
// This is primarily for testing. It is safe to call concurrently.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	once = sync.Once{}
	defaultLogger = nil
}

func initLogger(cfg Config) {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the default logger instance.
// If Init() has not been called, returns a basic text logger on stderr.
func Default() *slog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		return slog.Default()
	}
	return l
}

// WithContext returns a logger enriched with context values
// (operation, source, content_hash) if they are present.
func WithContext(ctx context.Context) *slog.Logger {
	l := Default()

	if op, ok := ctx.Value(operationKey).(string); ok && op != "" {
		l = l.With("operation", op)
	}
	if src, ok := ctx.Value(sourceKey).(string); ok && src != "" {
		l = l.With("source", src)
	}
	if h, ok := ctx.Value(contentHashKey).(string); ok && h != "" {
		l = l.With("content_hash", h)
	}

	return l
}

// SetOperation adds an engine operation name to the context.
func SetOperation(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationKey, name)
}

// SetSource adds a source alias to the context.
func SetSource(ctx context.Context, alias string) context.Context {
	return context.WithValue(ctx, sourceKey, alias)
}

// SetContentHash adds a bundle content hash to the context.
func SetContentHash(ctx context.Context, hash string) context.Context {
	return context.WithValue(ctx, contentHashKey, hash)
}

// GetOperation extracts the operation name from the context.
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok {
		return op
	}
	return ""
}

// GetSource extracts the source alias from the context.
func GetSource(ctx context.Context) string {
	if src, ok := ctx.Value(sourceKey).(string); ok {
		return src
	}
	return ""
}

// Convenience functions that delegate to the default logger.

func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
