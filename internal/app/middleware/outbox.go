package middleware

import (
	"context"
	"log/slog"

	"getmyguide/internal/app/commands"
	"getmyguide/internal/app/outbox"
)

// OutboxFlush flushes box after a successful command. The command's unit
// has already committed at that point, so a flush failure is logged and
// the relay picks the records up later.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil && logger != nil {
				logger.WarnContext(ctx, "outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
