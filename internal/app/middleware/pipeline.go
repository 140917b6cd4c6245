package middleware

import (
	"context"
	"log/slog"
	"time"

	"getmyguide/internal/app/commands"
	"getmyguide/internal/app/queries"
	"getmyguide/internal/domain/shared/errs"
)

type CommandMiddleware func(next commands.Bus) commands.Bus

type QueryMiddleware func(next queries.Bus) queries.Bus

// ChainCommands wraps base with mws, outermost first.
func ChainCommands(base commands.Bus, mws ...CommandMiddleware) commands.Bus {
	wrapped := base
	for i := len(mws) - 1; i >= 0; i-- {
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

// ChainQueries wraps base with mws, outermost first.
func ChainQueries(base queries.Bus, mws ...QueryMiddleware) queries.Bus {
	wrapped := base
	for i := len(mws) - 1; i >= 0; i-- {
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

// Logging records every command with its outcome. Expected business
// outcomes log at info, everything else at error.
func Logging(logger *slog.Logger) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if logger == nil {
				return nextFn(ctx, cmd)
			}
			started := time.Now()
			res, err := nextFn(ctx, cmd)
			attrs := []any{"command", cmd.Key(), "duration", time.Since(started)}
			switch kind := errs.KindOf(err); kind {
			case "":
				logger.DebugContext(ctx, "command handled", attrs...)
			case errs.KindValidation, errs.KindNotFound, errs.KindAuthorization, errs.KindConflict, errs.KindPaymentVerification:
				logger.InfoContext(ctx, "command rejected", append(attrs, "kind", kind, "error", err)...)
			default:
				logger.ErrorContext(ctx, "command failed", append(attrs, "kind", kind, "error", err)...)
			}
			return res, err
		})
	}
}

// guardCommands rejects a command when check fails and forwards it otherwise.
func guardCommands(check func(ctx context.Context, message any) error) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := check(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func guardQueries(check func(ctx context.Context, message any) error) QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := check(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}

type commandFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f commandFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}

func wrapCommand(next commands.Bus) commandFunc {
	return func(ctx context.Context, cmd commands.Command) (any, error) {
		return next.Dispatch(ctx, cmd)
	}
}

type queryFunc func(ctx context.Context, query queries.Query) (any, error)

func (f queryFunc) Ask(ctx context.Context, q queries.Query) (any, error) {
	return f(ctx, q)
}
