package policies

import (
	"context"
	"log/slog"
	"time"
)

// LevelCritical sits above slog.LevelError. It is used only for
// partially committed transitions that need manual repair.
const LevelCritical = slog.Level(12)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Alert is a condition an operator must act on, typically a partially
// committed transition that needs manual reconciliation.
type Alert struct {
	Severity  Severity
	Operation string
	BookingID string
	Message   string
	Details   map[string]string
	At        time.Time
}

type AlertSink interface {
	Raise(ctx context.Context, alert Alert) error
}
