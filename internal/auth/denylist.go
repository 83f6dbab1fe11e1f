package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryDenylist is the single-process Denylist used when redis is not configured.
type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{entries: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDenylist) Revoke(_ context.Context, jti string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, exp := range d.entries {
		if !exp.IsZero() && now.After(exp) {
			delete(d.entries, id)
		}
	}
	d.entries[jti] = until
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.entries[jti]
	if !ok {
		return false, nil
	}
	if !exp.IsZero() && d.now().After(exp) {
		delete(d.entries, jti)
		return false, nil
	}
	return true, nil
}
