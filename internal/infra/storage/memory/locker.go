package memory

import (
	"context"
	"sync"
	"time"
)

// Locker is a process-local schedule.Locker with expiring leases.
type Locker struct {
	mu     sync.Mutex
	leases map[string]lease
	seq    uint64
}

type lease struct {
	token   uint64
	expires time.Time
}

func NewLocker() *Locker {
	return &Locker{leases: make(map[string]lease)}
}

func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if held, ok := l.leases[name]; ok && now.Before(held.expires) {
		return nil, false, nil
	}
	l.seq++
	token := l.seq
	l.leases[name] = lease{token: token, expires: now.Add(ttl)}
	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.leases[name]; ok && held.token == token {
			delete(l.leases, name)
		}
		return nil
	}
	return release, true, nil
}
