// Package unread counts unread messages per friend for one viewer. Messages in
// the conversation the viewer is looking at, and the viewer's own messages,
// never count.
package unread

import "sync"

// Tracker is safe for concurrent use. The zero value is ready to use.
type Tracker struct {
	mu      sync.Mutex
	focused string
	counts  map[string]int
}

func New() *Tracker { return &Tracker{} }

// Focus marks friendID's conversation as open and clears its count.
func (t *Tracker) Focus(friendID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.focused = friendID
	delete(t.counts, friendID)
}

// Blur marks no conversation as open.
func (t *Tracker) Blur() {
	t.mu.Lock()
	t.focused = ""
	t.mu.Unlock()
}

// Focused returns the open conversation, or "".
func (t *Tracker) Focused() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.focused
}

// Receive records a message in friendID's conversation and returns the new count.
func (t *Tracker) Receive(friendID string, fromSelf bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fromSelf || friendID == "" || friendID == t.focused {
		return t.counts[friendID]
	}
	if t.counts == nil {
		t.counts = make(map[string]int)
	}
	t.counts[friendID]++
	return t.counts[friendID]
}

func (t *Tracker) Count(friendID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[friendID]
}

// Clear resets friendID's count without changing focus.
func (t *Tracker) Clear(friendID string) {
	t.mu.Lock()
	delete(t.counts, friendID)
	t.mu.Unlock()
}

// Snapshot copies the non-zero counts.
func (t *Tracker) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for id, n := range t.counts {
		out[id] = n
	}
	return out
}

func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}
