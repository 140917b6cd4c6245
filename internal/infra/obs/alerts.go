package obs

import (
	"context"
	"errors"
	"log/slog"

	"getmyguide/internal/app/policies"
)

// LogAlertSink writes alerts to the log at critical level.
type LogAlertSink struct {
	Logger *slog.Logger
}

func (s LogAlertSink) Raise(ctx context.Context, alert policies.Alert) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := policies.LevelCritical
	if alert.Severity == policies.SeverityWarning {
		level = slog.LevelWarn
	}
	attrs := []any{"operation", alert.Operation, "booking_id", alert.BookingID, "at", alert.At}
	for k, v := range alert.Details {
		attrs = append(attrs, slog.String("detail."+k, v))
	}
	logger.Log(ctx, level, "operator alert: "+alert.Message, attrs...)
	return nil
}

// MultiAlertSink fans an alert out to every sink and joins their errors.
type MultiAlertSink []policies.AlertSink

func (m MultiAlertSink) Raise(ctx context.Context, alert policies.Alert) error {
	var errList []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Raise(ctx, alert); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

var (
	_ policies.AlertSink = LogAlertSink{}
	_ policies.AlertSink = MultiAlertSink{}
)
