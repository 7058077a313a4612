// Package logging configures the process-wide zerolog logger and hands out
// component loggers derived from it.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Component loggers are derived from it
// when they are created, so call Init before constructing clients.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: consoleTimeFormat}).
	With().Timestamp().Logger()

const consoleTimeFormat = "15:04:05"

type ctxKey struct{}

// Config selects level, encoding and destination.
type Config struct {
	// Level is trace, debug, info, warn or error. Unknown values mean info.
	Level string
	// Format is "json" or "console".
	Format string
	// File, when set, receives the output instead of Output.
	File string
	// Output defaults to stderr.
	Output       io.Writer
	EnableCaller bool
	NoColor      bool
}

// DefaultConfig logs info and above to stderr in console format.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console", Output: os.Stderr}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init replaces the process-wide logger. The returned closer releases the
// log file, if cfg.File opened one.
func Init(cfg Config) (io.Closer, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		f, err := OpenFile(cfg.File)
		if err != nil {
			return nil, err
		}
		out, closer = f, f
		cfg.NoColor = true
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	if !strings.EqualFold(cfg.Format, "json") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: consoleTimeFormat, NoColor: cfg.NoColor}
	}
	lc := zerolog.New(out).With().Timestamp()
	if cfg.EnableCaller {
		lc = lc.Caller()
	}
	Logger = lc.Logger()
	return closer, nil
}

// ParseLevel maps a config level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warning":
		return zerolog.WarnLevel
	case "", "fatal", "panic", "disabled":
		return zerolog.InfoLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}

// Component returns a logger tagged with the emitting package.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithSession tags a logger with the authenticated session.
func WithSession(database string, partnerID int64) zerolog.Logger {
	return Logger.With().Str("db", database).Int64("partner_id", partnerID).Logger()
}

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger carried by ctx, or the process-wide one.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return logger
	}
	return Logger
}

// OpenFile opens path for appending, creating its directory.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
