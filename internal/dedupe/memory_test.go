package dedupe

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemory_FirstSeenThenDuplicate(t *testing.T) {
	t.Parallel()

	m := NewMemory(200*time.Millisecond, 0)
	defer m.Close()

	ctx := context.Background()
	const id = "1:0xabc:7"

	seen, err := m.Seen(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatalf("expected first Seen=false, got true")
	}

	seen, err = m.Seen(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Fatalf("expected second Seen=true (duplicate), got false")
	}
}

func TestMemory_Expiration(t *testing.T) {
	t.Parallel()

	ttl := 50 * time.Millisecond
	m := NewMemory(ttl, 0)
	defer m.Close()

	ctx := context.Background()
	const id = "1:0xdef:2"

	if seen, _ := m.Seen(ctx, id); seen {
		t.Fatalf("first Seen must be false")
	}

	time.Sleep(ttl + 20*time.Millisecond)

	if seen, _ := m.Seen(ctx, id); seen {
		t.Fatalf("after TTL expired, Seen must be false again")
	}
}

func TestMemory_JanitorCleansUp(t *testing.T) {
	t.Parallel()

	ttl := 20 * time.Millisecond
	m := NewMemory(ttl, 15*time.Millisecond)
	defer m.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = m.Seen(ctx, "k-"+time.Now().String())
	}

	time.Sleep(ttl + 40*time.Millisecond)

	m.mu.Lock()
	size := len(m.items)
	m.mu.Unlock()

	if size != 0 {
		t.Fatalf("expected janitor to clean expired items, map size=%d", size)
	}
}

func TestMemory_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	m := NewMemory(50*time.Millisecond, 10*time.Millisecond)
	m.Close()
	m.Close()
}

func TestMemory_ConcurrentSameID(t *testing.T) {
	t.Parallel()

	m := NewMemory(500*time.Millisecond, 0)
	defer m.Close()

	ctx := context.Background()
	const id = "same-id"
	const workers = 64

	var wg sync.WaitGroup
	wg.Add(workers)

	var mu sync.Mutex
	var firstCount, dupCount int

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			seen, err := m.Seen(ctx, id)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			if seen {
				dupCount++
			} else {
				firstCount++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if firstCount != 1 {
		t.Fatalf("expected exactly one first insert, got %d", firstCount)
	}
	if dupCount != workers-1 {
		t.Fatalf("expected %d duplicates, got %d", workers-1, dupCount)
	}
}
