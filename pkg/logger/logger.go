package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type contextKey struct{}

// InitLogger configures the global logrus logger. format is "json" or
// "text"; unknown levels fall back to info.
func InitLogger(level, format string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	if format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// WithFields returns a context carrying a logger entry enriched with fields,
// so downstream calls to Logger(ctx) inherit them.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return context.WithValue(ctx, contextKey{}, Logger(ctx).WithFields(fields))
}

// Logger returns the entry stored in ctx, or a fresh one off the global
// logger.
func Logger(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(contextKey{}).(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
