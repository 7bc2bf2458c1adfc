package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config controls basic logger behaviour.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// New constructs a logrus logger writing to stdout.
func New(cfg Config) *logrus.Logger {
	return NewWithOutput(cfg, os.Stdout)
}

// NewWithOutput constructs a logger writing to w.
func NewWithOutput(cfg Config, w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

type ctxKey struct{}

// ContextWithLogger stores a request-scoped logger on the context.
func ContextWithLogger(ctx context.Context, l logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored on ctx, or fallback when absent.
func FromContext(ctx context.Context, fallback logrus.FieldLogger) logrus.FieldLogger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(logrus.FieldLogger); ok && l != nil {
			return l
		}
	}
	if fallback == nil {
		return Discard()
	}
	return fallback
}

// Discard returns a logger that drops everything.
func Discard() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
