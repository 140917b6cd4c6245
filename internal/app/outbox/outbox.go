package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"getmyguide/internal/domain/shared/events"
)

// EventRecord is one encoded domain event awaiting delivery. ID doubles as
// the delivery id consumers deduplicate on.
type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Outbox stores event records in the same unit as the aggregate change
// that produced them. Flush is called once the unit has committed.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

// JSONEventEncoder marshals events with encoding/json. Payload field names
// come from the event struct tags.
type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, fmt.Errorf("outbox: encode %s: %w", ev.EventName(), err)
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Aggregate:  ev.AggregateID(),
		Headers: map[string]string{
			"event-name":   ev.EventName(),
			"aggregate-id": ev.AggregateID(),
		},
	}, nil
}

// RecordDomainEvents encodes evs in order and adds them to box. The first
// failure stops the batch; records already added stay in the unit.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return fmt.Errorf("outbox: add %s: %w", rec.Name, err)
		}
	}
	return nil
}

// EventSource is implemented by aggregates embedding events.EventRecorder.
type EventSource interface {
	PullEvents() []events.DomainEvent
}

// RecordPending moves the pending events of every source into box.
func RecordPending(ctx context.Context, box Outbox, encoder EventEncoder, sources ...EventSource) error {
	var evs []events.DomainEvent
	for _, src := range sources {
		if src == nil {
			continue
		}
		evs = append(evs, src.PullEvents()...)
	}
	return RecordDomainEvents(ctx, box, encoder, evs)
}
