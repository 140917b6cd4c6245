package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"getmyguide/internal/app/policies"
)

func TestProducerPublishesKeyAndHeaders(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		if string(key) != "b-1" || msg.Topic != "booking.events.v1" {
			return errors.New("unexpected routing")
		}
		if len(msg.Headers) != 2 || string(msg.Headers[0].Key) != "ce-id" {
			return errors.New("headers not sorted")
		}
		return nil
	})
	p := NewProducerFrom(sp)

	err := p.Publish(context.Background(), "booking.events.v1", "b-1", []byte(`{}`), map[string]string{"event-name": "booking.confirmed", "ce-id": "evt-1"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestProducerReturnsBrokerError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	p := NewProducerFrom(sp)

	err := p.Publish(context.Background(), "t", "k", nil, nil)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

type fakeInbox struct {
	seen      map[string]bool
	forgotten []string
}

func (f *fakeInbox) Seen(_ context.Context, id string) (bool, error) {
	if f.seen[id] {
		return true, nil
	}
	f.seen[id] = true
	return false, nil
}

func (f *fakeInbox) Forget(_ context.Context, id string) error {
	delete(f.seen, id)
	f.forgotten = append(f.forgotten, id)
	return nil
}

type recordingSink struct {
	fail  error
	names []string
	data  []string
}

func (s *recordingSink) Handle(_ context.Context, name string, payload []byte) error {
	if s.fail != nil {
		return s.fail
	}
	s.names = append(s.names, name)
	s.data = append(s.data, string(payload))
	return nil
}

func cloudEvent(t *testing.T, id, typ string) *sarama.ConsumerMessage {
	t.Helper()
	body, err := json.Marshal(map[string]any{"id": id, "type": typ, "data": map[string]string{"booking_id": "b-1"}})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "booking.events.v1", Value: body}
}

func TestBookingEventHandlerDeliversOnce(t *testing.T) {
	inbox := &fakeInbox{seen: map[string]bool{}}
	sink := &recordingSink{}
	h := &BookingEventHandler{Inbox: inbox, Sink: sink}

	msg := cloudEvent(t, "evt-1", "booking.confirmed.v1")
	require.NoError(t, h.Handle(context.Background(), msg))
	require.NoError(t, h.Handle(context.Background(), msg))

	assert.Equal(t, []string{"booking.confirmed"}, sink.names)
	assert.JSONEq(t, `{"booking_id":"b-1"}`, sink.data[0])
}

func TestBookingEventHandlerForgetsFailedEvents(t *testing.T) {
	inbox := &fakeInbox{seen: map[string]bool{}}
	sink := &recordingSink{fail: errors.New("bad payload")}
	h := &BookingEventHandler{Inbox: inbox, Sink: sink}

	err := h.Handle(context.Background(), cloudEvent(t, "evt-1", "booking.cancelled.v1"))
	require.Error(t, err)
	assert.Equal(t, []string{"evt-1"}, inbox.forgotten)
	assert.False(t, inbox.seen["evt-1"])
}

func TestBookingEventHandlerDropsMalformed(t *testing.T) {
	sink := &recordingSink{}
	h := &BookingEventHandler{Sink: sink}

	err := h.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte("nope")})
	require.NoError(t, err)
	assert.Empty(t, sink.names)
}

type capturePublisher struct {
	topic   string
	key     string
	payload []byte
}

func (c *capturePublisher) Publish(_ context.Context, topic, key string, payload []byte, _ map[string]string) error {
	c.topic, c.key, c.payload = topic, key, payload
	return nil
}

func TestAlertSinkPublishesToTopic(t *testing.T) {
	pub := &capturePublisher{}
	sink := AlertSink{Publisher: pub, Topic: "booking.alerts.v1"}

	err := sink.Raise(context.Background(), policies.Alert{
		Severity:  policies.SeverityCritical,
		Operation: "booking.cancel",
		BookingID: "b-1",
		Message:   "refund issued but booking not updated",
		Details:   map[string]string{"refund_ids": "rfnd_000001"},
		At:        time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "booking.alerts.v1", pub.topic)
	assert.Equal(t, "b-1", pub.key)

	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, "critical", got["severity"])
	assert.Equal(t, "booking.cancel", got["operation"])
}
