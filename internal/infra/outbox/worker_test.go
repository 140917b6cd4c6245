package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu     sync.Mutex
	docs   []*EventDocument
	sent   []string
	failed map[string]time.Time
}

func (q *fakeQueue) Claim(_ context.Context, _ string) (*EventDocument, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.docs) == 0 {
		return nil, nil
	}
	doc := q.docs[0]
	q.docs = q.docs[1:]
	return doc, nil
}

func (q *fakeQueue) MarkSent(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, id)
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, id string, next time.Time, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failed == nil {
		q.failed = map[string]time.Time{}
	}
	q.failed[id] = next
	return nil
}

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	fail   map[string]bool
	events []published
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.fail[key] {
		return errors.New("broker down")
	}
	p.events = append(p.events, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func doc(id, name, aggregate string) *EventDocument {
	return &EventDocument{
		ID:         id,
		Name:       name,
		Aggregate:  aggregate,
		Payload:    []byte(`{"booking_id":"` + aggregate + `"}`),
		OccurredAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		Headers:    map[string]string{"event-name": name},
	}
}

func TestDrainPublishesCloudEvents(t *testing.T) {
	q := &fakeQueue{docs: []*EventDocument{doc("evt-1", "booking.confirmed", "b-1")}}
	p := &fakeProducer{}
	w := &Worker{Store: q, Producer: p, TopicPrefix: "dev.", ID: "w-1"}

	sent, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"evt-1"}, q.sent)

	require.Len(t, p.events, 1)
	ev := p.events[0]
	assert.Equal(t, "dev.booking.events.v1", ev.topic)
	assert.Equal(t, "b-1", ev.key)
	assert.Equal(t, "evt-1", ev.headers["ce-id"])
	assert.Equal(t, "booking.confirmed", ev.headers["event-name"])

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(ev.payload, &envelope))
	assert.Equal(t, "evt-1", envelope["id"])
	assert.Equal(t, "booking.confirmed.v1", envelope["type"])
	assert.Equal(t, "app://getmyguide", envelope["source"])
	assert.Equal(t, map[string]any{"booking_id": "b-1"}, envelope["data"])
}

func TestDrainSchedulesRetryOnPublishFailure(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	failing := doc("evt-1", "booking.cancelled", "b-1")
	failing.Attempts = 1
	q := &fakeQueue{docs: []*EventDocument{failing, doc("evt-2", "booking.confirmed", "b-2")}}
	p := &fakeProducer{fail: map[string]bool{"b-1": true}}
	w := &Worker{
		Store:    q,
		Producer: p,
		Backoff:  []time.Duration{time.Second, time.Minute},
		Clock:    func() time.Time { return now },
	}

	sent, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"evt-2"}, q.sent)
	assert.Equal(t, now.Add(time.Minute), q.failed["evt-1"])
}

func TestDrainRejectsInvalidPayload(t *testing.T) {
	bad := doc("evt-1", "booking.confirmed", "b-1")
	bad.Payload = []byte("not json")
	q := &fakeQueue{docs: []*EventDocument{bad}}
	w := &Worker{Store: q, Producer: &fakeProducer{}}

	_, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Contains(t, q.failed, "evt-1")
	assert.Empty(t, q.sent)
}

func TestDrainStopsAtBatch(t *testing.T) {
	q := &fakeQueue{docs: []*EventDocument{
		doc("evt-1", "booking.confirmed", "b-1"),
		doc("evt-2", "booking.confirmed", "b-2"),
		doc("evt-3", "booking.confirmed", "b-3"),
	}}
	w := &Worker{Store: q, Producer: &fakeProducer{}, Batch: 2}

	sent, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Len(t, q.docs, 1)
}

func TestRunRequiresDependencies(t *testing.T) {
	err := (&Worker{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrWorkerNotConfigured)
}
