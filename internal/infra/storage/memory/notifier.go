package memory

import (
	"context"
	"sync"

	"getmyguide/internal/app/policies"
)

// Mailbox records outgoing email instead of sending it.
type Mailbox struct {
	mu   sync.Mutex
	sent []policies.Message

	// Fail, when set, decides per message whether delivery fails.
	Fail func(msg policies.Message) error
}

func NewMailbox() *Mailbox { return &Mailbox{} }

func (m *Mailbox) Send(ctx context.Context, msg policies.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		if err := m.Fail(msg); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *Mailbox) Sent() []policies.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]policies.Message(nil), m.sent...)
}

// AlertRecorder keeps raised alerts for inspection.
type AlertRecorder struct {
	mu     sync.Mutex
	alerts []policies.Alert
}

func (r *AlertRecorder) Raise(ctx context.Context, alert policies.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

func (r *AlertRecorder) Alerts() []policies.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]policies.Alert(nil), r.alerts...)
}

var (
	_ policies.Notifier  = (*Mailbox)(nil)
	_ policies.AlertSink = (*AlertRecorder)(nil)
)
