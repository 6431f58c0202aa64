package window

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// Serializable image of the engine, saved to Redis on an interval and on
// shutdown so a restart warm-starts instead of re-walking trade history.
// A stale or missing snapshot degrades to empty windows.
type Snapshot struct {
	Version int
	TakenAt time.Time
	Span    int64
	Markets []snapshotMarket
	Seen    []string
	Active  []string
}

type snapshotMarket struct {
	MarketID      string
	Decimals      uint8
	Entries       []entry // live entries only, oldest first
	LastUpdatedAt int64
}

// Marshal serializes the current engine state with gob.
func (e *Engine) Marshal() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{
		Version: 1,
		TakenAt: time.Now().UTC(),
		Span:    e.span,
		Markets: make([]snapshotMarket, 0, len(e.state)),
		Seen:    make([]string, 0, len(e.seen)),
		Active:  make([]string, 0, len(e.active)),
	}

	for id, ms := range e.state {
		live := make([]entry, ms.live())
		for i, src := range ms.Entries[ms.head:] {
			live[i] = entry{
				Timestamp:     src.Timestamp,
				ReserveAmount: new(big.Int).Set(src.ReserveAmount),
				Price:         new(big.Int).Set(src.Price),
				IsBuy:         src.IsBuy,
			}
		}
		snap.Markets = append(snap.Markets, snapshotMarket{
			MarketID:      id,
			Decimals:      ms.Decimals,
			Entries:       live,
			LastUpdatedAt: ms.LastUpdatedAt,
		})
	}

	for id := range e.seen {
		snap.Seen = append(snap.Seen, id)
	}
	for id := range e.active {
		snap.Active = append(snap.Active, id)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("encode window snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Restore replaces the engine state with a previously marshaled snapshot.
// Running totals are recomputed from the entries, not trusted from disk.
func (e *Engine) Restore(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty snapshot data")
	}

	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("decode window snapshot: %w", err)
	}
	if snap.Version != 1 {
		return fmt.Errorf("unsupported window snapshot version: %d", snap.Version)
	}

	state := make(map[string]*marketState, len(snap.Markets))
	for _, sm := range snap.Markets {
		ms := newMarketState(sm.MarketID, sm.Decimals)
		for _, en := range sm.Entries {
			if en.ReserveAmount == nil || en.Price == nil {
				continue
			}
			ms.append(en.Timestamp, en.ReserveAmount, en.Price, en.IsBuy)
		}
		ms.LastUpdatedAt = sm.LastUpdatedAt
		state[sm.MarketID] = ms
	}

	seen := make(map[string]struct{}, len(snap.Seen))
	for _, id := range snap.Seen {
		seen[id] = struct{}{}
	}
	active := make(map[string]struct{}, len(snap.Active))
	for _, id := range snap.Active {
		active[id] = struct{}{}
	}

	e.mu.Lock()
	e.state = state
	e.seen = seen
	e.active = active
	e.mu.Unlock()
	return nil
}
