package support

import (
	"context"
	"log/slog"
	"time"

	"getmyguide/internal/app/policies"
	"getmyguide/internal/domain/shared/errs"
)

// Inconsistent wraps cause as a consistency error, logs it at
// policies.LevelCritical and raises it to the operator channel. The returned error
// is what the caller must surface.
func Inconsistent(ctx context.Context, alerts policies.AlertSink, logger *slog.Logger, op, bookingID string, cause error, details map[string]string) error {
	err := errs.E(errs.KindConsistency, op, cause)
	if logger != nil {
		attrs := []any{"operation", op, "booking_id", bookingID, "error", cause}
		for k, v := range details {
			attrs = append(attrs, k, v)
		}
		logger.Log(ctx, policies.LevelCritical, "manual reconciliation required", attrs...)
	}
	if alerts != nil {
		alert := policies.Alert{
			Severity:  policies.SeverityCritical,
			Operation: op,
			BookingID: bookingID,
			Message:   cause.Error(),
			Details:   details,
			At:        time.Now().UTC(),
		}
		if raiseErr := alerts.Raise(context.WithoutCancel(ctx), alert); raiseErr != nil && logger != nil {
			logger.Log(ctx, policies.LevelCritical, "operator alert delivery failed", "operation", op, "booking_id", bookingID, "error", raiseErr)
		}
	}
	return err
}

// ReportIfInconsistent raises err through Inconsistent when it is already
// classified as a consistency error and returns it unchanged otherwise.
func ReportIfInconsistent(ctx context.Context, alerts policies.AlertSink, logger *slog.Logger, op, bookingID string, err error) error {
	if !errs.Is(err, errs.KindConsistency) {
		return err
	}
	return Inconsistent(ctx, alerts, logger, op, bookingID, err, nil)
}

// Clock returns now when set and time.Now otherwise, always in UTC.
func Clock(now func() time.Time) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}
