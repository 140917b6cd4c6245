package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "getmyguide/internal/app/outbox"
)

// Dispatch receives flushed records, typically the notification consumer
// when no broker is configured.
type Dispatch func(ctx context.Context, record appoutbox.EventRecord) error

// Outbox buffers records until Flush hands them to Dispatch in the order
// they were added.
type Outbox struct {
	mu        sync.Mutex
	records   []appoutbox.EventRecord
	delivered []appoutbox.EventRecord
	dispatch  Dispatch
}

func NewOutbox(dispatch Dispatch) *Outbox {
	return &Outbox{dispatch: dispatch}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	pending := o.records
	o.records = nil
	o.delivered = append(o.delivered, pending...)
	o.mu.Unlock()
	if o.dispatch == nil {
		return nil
	}
	var errList []error
	for _, rec := range pending {
		if err := o.dispatch(ctx, rec); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Delivered returns every record flushed so far.
func (o *Outbox) Delivered() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.delivered...)
}

// Names lists the event names of buffered and delivered records.
func (o *Outbox) Names() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	names := make([]string, 0, len(o.delivered)+len(o.records))
	for _, rec := range o.delivered {
		names = append(names, rec.Name)
	}
	for _, rec := range o.records {
		names = append(names, rec.Name)
	}
	return names
}

var _ appoutbox.Outbox = (*Outbox)(nil)
