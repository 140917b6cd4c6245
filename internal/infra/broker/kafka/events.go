package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"
)

// Inbox deduplicates deliveries by event id.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// EventSink receives the domain event name and its JSON payload.
type EventSink interface {
	Handle(ctx context.Context, name string, payload []byte) error
}

var ErrMalformedEnvelope = errors.New("kafka: malformed cloudevent envelope")

type envelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// BookingEventHandler unwraps CloudEvents published by the outbox worker
// and hands each event to Sink once.
type BookingEventHandler struct {
	Inbox  Inbox
	Sink   EventSink
	Logger *slog.Logger
}

func (h *BookingEventHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var env envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil || env.ID == "" || env.Type == "" {
		// Poison messages are dropped; redelivery would fail the same way.
		h.logger().Error("dropping malformed event", "topic", msg.Topic, "offset", msg.Offset, "error", ErrMalformedEnvelope)
		return nil
	}
	name := strings.TrimSuffix(env.Type, ".v1")
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, env.ID)
		if err != nil {
			return err
		}
		if seen {
			h.logger().Debug("skipping duplicate event", "event_id", env.ID, "event", name)
			return nil
		}
	}
	if err := h.Sink.Handle(ctx, name, env.Data); err != nil {
		if h.Inbox != nil {
			if forgetErr := h.Inbox.Forget(ctx, env.ID); forgetErr != nil {
				return errors.Join(err, forgetErr)
			}
		}
		return err
	}
	return nil
}

func (h *BookingEventHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
