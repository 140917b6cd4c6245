package kafka

import (
	"context"
	"encoding/json"
	"time"

	"getmyguide/internal/app/policies"
)

// Publisher is satisfied by Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// AlertSink publishes operator alerts to a dedicated topic, keyed by
// booking id.
type AlertSink struct {
	Publisher Publisher
	Topic     string
}

type alertMessage struct {
	Severity  string            `json:"severity"`
	Operation string            `json:"operation"`
	BookingID string            `json:"booking_id,omitempty"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	At        time.Time         `json:"at"`
}

func (s AlertSink) Raise(ctx context.Context, alert policies.Alert) error {
	payload, err := json.Marshal(alertMessage{
		Severity:  string(alert.Severity),
		Operation: alert.Operation,
		BookingID: alert.BookingID,
		Message:   alert.Message,
		Details:   alert.Details,
		At:        alert.At.UTC(),
	})
	if err != nil {
		return err
	}
	headers := map[string]string{"content-type": "application/json", "severity": string(alert.Severity)}
	return s.Publisher.Publish(ctx, s.Topic, alert.BookingID, payload, headers)
}

var _ policies.AlertSink = AlertSink{}
