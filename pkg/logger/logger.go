// Package logger wraps zap with a context-carried logger so request scoped
// fields (request id, client ip, job id) follow a call through every layer.
package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DevelopmentEnvironment selects zap's development preset: console encoding,
	// debug level and stack traces on warnings.
	DevelopmentEnvironment = "development"

	// ProductionEnvironment selects zap's production preset: JSON encoding and
	// info level.
	ProductionEnvironment = "production"
)

var (
	defaultLogger = zap.NewNop()          //nolint: gochecknoglobals
	level         = zap.NewAtomicLevel() //nolint: gochecknoglobals
)

// Setup builds the process-wide logger for the given environment. An empty
// levelName keeps the preset's level, otherwise it overrides it
// (debug, info, warn, error).
func Setup(environment string, levelName ...string) {
	cfg := zap.NewDevelopmentConfig()
	if environment == ProductionEnvironment {
		cfg = zap.NewProductionConfig()
	}

	level = cfg.Level
	if len(levelName) > 0 && levelName[0] != "" {
		if err := SetLevel(levelName[0]); err != nil {
			defer Warn(context.Background(), "ignoring invalid log level", zap.String("level", levelName[0]))
		}
	}

	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}

	defaultLogger = l
}

// SetLevel changes the level of the logger created by Setup at runtime.
func SetLevel(name string) error {
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("could not parse log level: %w", err)
	}

	level.SetLevel(lvl)

	return nil
}

type key struct{}

// Get returns the logger stored in ctx, or the process-wide logger.
func Get(ctx context.Context) *zap.Logger {
	if l, _ := ctx.Value(key{}).(*zap.Logger); l != nil {
		return l
	}

	return defaultLogger
}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, key{}, l)
}

// WithFields returns a context whose logger always includes fields.
func WithFields(ctx context.Context, fields ...zapcore.Field) context.Context {
	return WithLogger(ctx, Get(ctx).With(fields...))
}

// IsDebug reports whether the logger in ctx emits debug entries.
func IsDebug(ctx context.Context) bool {
	return Get(ctx).Core().Enabled(zap.DebugLevel)
}

// Debug logs at debug level.
func Debug(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Debug(msg, fields...)
}

// Info logs at info level.
func Info(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Info(msg, fields...)
}

// Warn logs at warn level.
func Warn(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Warn(msg, fields...)
}

// Error logs at error level.
func Error(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Error(msg, fields...)
}

// Fatal logs at fatal level and exits the process.
func Fatal(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Fatal(msg, fields...)
}
