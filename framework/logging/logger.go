// Package logging builds the application's structured logger from config.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/km-arc/go-nix/framework/config"
)

// Option configures New.
type Option func(*options)

type options struct {
	w io.Writer
}

// WithWriter sends log output to w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.w = w }
}

// New returns a *slog.Logger for cfg.Log. Format "json" selects the JSON
// handler, anything else the text handler. APP_DEBUG lowers the level to
// debug regardless of LOG_LEVEL.
//
//	logger := logging.New(cfg)
//	logger.Info("booted", "env", cfg.App.Env)
func New(cfg *config.Config, opts ...Option) *slog.Logger {
	o := options{w: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg == nil {
		cfg = config.Defaults()
	}

	level := ParseLevel(cfg.Log.Level)
	if cfg.App.Debug {
		level = slog.LevelDebug
	}
	ho := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Log.Format, "json") {
		h = slog.NewJSONHandler(o.w, ho)
	} else {
		h = slog.NewTextHandler(o.w, ho)
	}
	return slog.New(h).With(slog.String("app", cfg.App.Name))
}

// ParseLevel maps debug, info, warn (or warning) and error to a slog level.
// Unknown names give info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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
