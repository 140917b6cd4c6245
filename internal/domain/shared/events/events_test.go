package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type sampleEvent struct{ id string }

func (e sampleEvent) EventName() string     { return "sample.happened" }
func (e sampleEvent) AggregateID() string   { return e.id }
func (e sampleEvent) OccurredAt() time.Time { return time.Time{} }

func TestRecorderPullClearsBuffer(t *testing.T) {
	var rec EventRecorder
	rec.Record(sampleEvent{id: "a"})
	rec.Record(nil)
	rec.Record(sampleEvent{id: "b"})

	assert.Len(t, rec.PendingEvents(), 2)
	pulled := rec.PullEvents()
	assert.Len(t, pulled, 2)
	assert.Equal(t, "a", pulled[0].AggregateID())
	assert.Empty(t, rec.PendingEvents())
}
