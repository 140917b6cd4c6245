package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Locker serialises runs of a job across processes. Acquire returns false
// when another holder owns the lock.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Job is one scheduled run. now is the tick time in UTC.
type Job func(ctx context.Context, now time.Time) error

// Runner fires Job on a fixed interval from a single goroutine, so a run
// always completes before the next one starts. Ticks that arrive while a
// run is in progress are dropped.
type Runner struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Lock       Locker

	// LockTTL bounds how long a crashed holder can block other instances.
	LockTTL time.Duration
	Job     Job
	Logger  *slog.Logger
	Clock   func() time.Time
}

var ErrRunnerNotConfigured = errors.New("schedule: runner missing job or interval")

func (r *Runner) Run(ctx context.Context) error {
	if r.Job == nil || r.Interval <= 0 {
		return ErrRunnerNotConfigured
	}
	if r.RunOnStart {
		r.Tick(ctx)
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one guarded run and reports whether the job executed.
func (r *Runner) Tick(ctx context.Context) bool {
	now := r.now()
	if r.Lock != nil {
		release, ok, err := r.Lock.Acquire(ctx, r.lockName(), r.lockTTL())
		if err != nil {
			r.log(ctx, slog.LevelWarn, "scheduler lock failed", "error", err)
			return false
		}
		if !ok {
			r.log(ctx, slog.LevelDebug, "scheduler run held by another instance")
			return false
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				r.log(ctx, slog.LevelWarn, "scheduler unlock failed", "error", err)
			}
		}()
	}
	if err := r.Job(ctx, now); err != nil {
		r.log(ctx, slog.LevelError, "scheduled job failed", "error", err)
		return true
	}
	r.log(ctx, slog.LevelInfo, "scheduled job finished", "elapsed", r.now().Sub(now))
	return true
}

func (r *Runner) now() time.Time {
	if r.Clock != nil {
		return r.Clock().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) lockName() string {
	if r.Name == "" {
		return "schedule:job"
	}
	return "schedule:" + r.Name
}

func (r *Runner) lockTTL() time.Duration {
	if r.LockTTL > 0 {
		return r.LockTTL
	}
	return r.Interval / 2
}

func (r *Runner) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if r.Logger == nil {
		return
	}
	r.Logger.Log(ctx, level, msg, append([]any{"job", r.Name}, args...)...)
}
