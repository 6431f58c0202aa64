package dedupe

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	expireAt int64 // unix nano
}

// Memory is the single-instance Deduper used for dev and tests. For a
// cluster sharing markets use the Redis implementation.
type Memory struct {
	ttl     time.Duration
	mu      sync.Mutex
	items   map[string]memEntry
	stopCh  chan struct{}
	stopped bool
}

// NewMemory keeps seen ids for ttl. janitorEvery controls how often the
// expired keys are swept; 0 disables the sweeper.
func NewMemory(ttl, janitorEvery time.Duration) *Memory {
	m := &Memory{
		ttl:    ttl,
		items:  make(map[string]memEntry, 1024),
		stopCh: make(chan struct{}),
	}

	if janitorEvery > 0 {
		go m.janitor(janitorEvery)
	}
	return m
}

func (m *Memory) Seen(_ context.Context, id string) (bool, error) {
	now := time.Now().UnixNano()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.items[id]; ok && e.expireAt > now {
		return true, nil
	}

	m.items[id] = memEntry{expireAt: now + m.ttl.Nanoseconds()}
	return false, nil
}

func (m *Memory) Health(_ context.Context) error {
	return nil
}

func (m *Memory) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			now := time.Now().UnixNano()
			m.mu.Lock()
			for k, e := range m.items {
				if e.expireAt <= now {
					delete(m.items, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Close stops the janitor, if running. Safe to call twice.
func (m *Memory) Close() {
	m.mu.Lock()
	if !m.stopped {
		close(m.stopCh)
		m.stopped = true
	}
	m.mu.Unlock()
}
