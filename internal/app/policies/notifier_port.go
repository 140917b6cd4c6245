package policies

import "context"

type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Notifier delivers transactional email. Delivery is best-effort: callers
// log failures and never roll back booking state because of them.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
