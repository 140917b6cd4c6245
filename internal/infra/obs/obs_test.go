package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"getmyguide/internal/app/policies"
)

func TestJSONLoggerNamesCriticalLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("prod", &buf)
	logger.Log(context.Background(), policies.LevelCritical, "manual reconciliation required", "booking_id", "b1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "CRITICAL", line["level"])
	assert.Equal(t, "b1", line["booking_id"])
}

func TestJSONLoggerKeepsOrdinaryLevels(t *testing.T) {
	var buf bytes.Buffer
	newLogger("prod", &buf).Error("boom")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
}

type failingSink struct{ err error }

func (f failingSink) Raise(context.Context, policies.Alert) error { return f.err }

type countingSink struct{ n *int }

func (c countingSink) Raise(context.Context, policies.Alert) error {
	*c.n++
	return nil
}

func TestMultiAlertSinkFansOut(t *testing.T) {
	var buf bytes.Buffer
	n := 0
	boom := errors.New("broker down")
	sink := MultiAlertSink{
		LogAlertSink{Logger: newLogger("prod", &buf)},
		failingSink{err: boom},
		countingSink{n: &n},
	}

	err := sink.Raise(context.Background(), policies.Alert{
		Severity:  policies.SeverityCritical,
		Operation: "booking.cancel",
		BookingID: "b1",
		Message:   "save failed after refund",
		Details:   map[string]string{"refund_ids": "rfnd_1"},
		At:        time.Now(),
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
	assert.Contains(t, buf.String(), `"detail.refund_ids":"rfnd_1"`)
	assert.Contains(t, buf.String(), `"level":"CRITICAL"`)
}
