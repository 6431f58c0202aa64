// Package window maintains the per-market trailing trade windows and the
// seen/active market sets. This is the aggregation context the rest of the
// core reads from: constructed once at startup, optionally restored from a
// Redis snapshot, reset explicitly between test runs.
package window

import (
	"errors"
	"math/big"
	"sync"

	"floors-indexer/internal/domain"
)

type Engine struct {
	span int64 // trailing window width in seconds, 86400

	mu     sync.RWMutex
	state  map[string]*marketState
	seen   map[string]struct{} // every market that ever traded
	active map[string]struct{} // markets currently ACTIVE
}

func NewEngine(span int64) (*Engine, error) {
	if span <= 0 {
		return nil, errors.New("window span must be positive")
	}
	return &Engine{
		span:   span,
		state:  make(map[string]*marketState, 256),
		seen:   make(map[string]struct{}, 256),
		active: make(map[string]struct{}, 256),
	}, nil
}

// Update appends one trade to the market's window, evicts everything older
// than span, and returns the current aggregates. evicted reports how many
// entries fell out, for metrics.
func (e *Engine) Update(marketID string, decimals uint8, ts int64, reserveAmount, price *big.Int, isBuy bool) (agg domain.WindowAgg, evicted int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms, ok := e.state[marketID]
	if !ok {
		ms = newMarketState(marketID, decimals)
		e.state[marketID] = ms
	}
	ms.Decimals = decimals

	ms.append(ts, reserveAmount, price, isBuy)

	cutoff := ts - e.span
	if cutoff < 0 {
		cutoff = 0
	}
	evicted = ms.evict(cutoff)

	return ms.agg(), evicted
}

// Get returns the market's current aggregates without touching the window.
func (e *Engine) Get(marketID string) (domain.WindowAgg, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ms, ok := e.state[marketID]
	if !ok {
		return domain.WindowAgg{}, false
	}
	return ms.agg(), true
}

// EachVolume calls fn with every market's current raw window volume and its
// reserve decimals. The callback must not retain the volume pointer.
func (e *Engine) EachVolume(fn func(marketID string, decimals uint8, volume *big.Int)) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for id, ms := range e.state {
		fn(id, ms.Decimals, ms.Volume)
	}
}

// MarkSeen records the market in the seen set and flips its membership in
// the active set according to status.
func (e *Engine) MarkSeen(marketID string, isActive bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seen[marketID] = struct{}{}
	if isActive {
		e.active[marketID] = struct{}{}
	} else {
		delete(e.active, marketID)
	}
}

// SeenMarkets returns a copy of every market id that ever traded.
func (e *Engine) SeenMarkets() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]string, 0, len(e.seen))
	for id := range e.seen {
		out = append(out, id)
	}
	return out
}

// Counts sizes the seen and active sets for GlobalStats.
func (e *Engine) Counts() (seen, active uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return uint64(len(e.seen)), uint64(len(e.active))
}

// Reset drops all transient state. Test isolation hook.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = make(map[string]*marketState, 256)
	e.seen = make(map[string]struct{}, 256)
	e.active = make(map[string]struct{}, 256)
}
