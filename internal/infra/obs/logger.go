package obs

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"getmyguide/internal/app/policies"
)

// NewLogger configures slog logger with colorful dev output and JSON for production-like envs.
func NewLogger(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

func newLogger(env string, writer io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if env == "dev" || env == "local" {
		handler := tint.NewHandler(writer, &tint.Options{
			Level:       slog.LevelDebug,
			TimeFormat:  time.RFC3339,
			AddSource:   true,
			ReplaceAttr: criticalLevel(true),
		})
		return slog.New(handler)
	}
	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:       level,
		AddSource:   true,
		ReplaceAttr: criticalLevel(false),
	})
	return slog.New(handler)
}

// criticalLevel renders policies.LevelCritical as CRITICAL instead of ERROR+4.
func criticalLevel(colored bool) func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key != slog.LevelKey || len(groups) > 0 {
			return a
		}
		level, ok := a.Value.Any().(slog.Level)
		if !ok || level < policies.LevelCritical {
			return a
		}
		if colored {
			return tint.Attr(9, slog.String(a.Key, "CRIT"))
		}
		return slog.String(a.Key, "CRITICAL")
	}
}
