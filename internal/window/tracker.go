package window

import (
	"math/big"

	"floors-indexer/internal/domain"
)

// entry is one trade retained inside a market's trailing window.
type entry struct {
	Timestamp     int64
	ReserveAmount *big.Int
	Price         *big.Int
	IsBuy         bool
}

// marketState holds one market's window: a FIFO of recent trades plus
// running totals kept in lock-step with it. Entries leave strictly from
// the front, oldest first, never reordered.
type marketState struct {
	MarketID string
	Decimals uint8 // reserve token decimals at last update

	Entries []entry
	head    int // index of the oldest live entry

	Volume   *big.Int
	PriceSum *big.Int
	Trades   int64
	Buys     int64
	Sells    int64

	LastUpdatedAt int64
}

func newMarketState(marketID string, decimals uint8) *marketState {
	return &marketState{
		MarketID: marketID,
		Decimals: decimals,
		Volume:   new(big.Int),
		PriceSum: new(big.Int),
	}
}

func (ms *marketState) append(ts int64, reserveAmount, price *big.Int, isBuy bool) {
	ms.Entries = append(ms.Entries, entry{
		Timestamp:     ts,
		ReserveAmount: new(big.Int).Set(reserveAmount),
		Price:         new(big.Int).Set(price),
		IsBuy:         isBuy,
	})

	ms.Volume.Add(ms.Volume, reserveAmount)
	ms.PriceSum.Add(ms.PriceSum, price)
	ms.Trades++
	if isBuy {
		ms.Buys++
	} else {
		ms.Sells++
	}
	ms.LastUpdatedAt = ts
}

// evict pops every entry strictly older than the cutoff (age > window
// span) and subtracts its contribution. An entry aged exactly the span is
// retained. Amortized O(1): each entry is popped at most once over the
// lifetime of the window. Returns how many entries were dropped.
func (ms *marketState) evict(cutoff int64) int {
	dropped := 0
	for ms.head < len(ms.Entries) && ms.Entries[ms.head].Timestamp < cutoff {
		e := &ms.Entries[ms.head]
		ms.Volume.Sub(ms.Volume, e.ReserveAmount)
		ms.PriceSum.Sub(ms.PriceSum, e.Price)
		ms.Trades--
		if e.IsBuy {
			ms.Buys--
		} else {
			ms.Sells--
		}
		ms.Entries[ms.head] = entry{} // release the big.Ints
		ms.head++
		dropped++
	}

	ms.clamp()
	ms.compact()
	return dropped
}

// clamp floors every running total at zero. With exact FIFO accounting the
// totals cannot go negative, but trades delivered with timestamps older
// than already-seen ones are accepted rather than rejected, so the floor
// stays as a defensive measure (can under-report, documented limitation).
func (ms *marketState) clamp() {
	if ms.Volume.Sign() < 0 {
		ms.Volume.SetInt64(0)
	}
	if ms.PriceSum.Sign() < 0 {
		ms.PriceSum.SetInt64(0)
	}
	if ms.Trades < 0 {
		ms.Trades = 0
	}
	if ms.Buys < 0 {
		ms.Buys = 0
	}
	if ms.Sells < 0 {
		ms.Sells = 0
	}
}

// compact reclaims the evicted prefix once it dominates the backing slice.
func (ms *marketState) compact() {
	if ms.head == 0 || ms.head < len(ms.Entries)/2 {
		return
	}
	live := copy(ms.Entries, ms.Entries[ms.head:])
	for i := live; i < len(ms.Entries); i++ {
		ms.Entries[i] = entry{}
	}
	ms.Entries = ms.Entries[:live]
	ms.head = 0
}

// live returns how many entries are currently inside the window.
func (ms *marketState) live() int {
	return len(ms.Entries) - ms.head
}

// agg materializes the running totals. Average price is the unweighted
// integer mean of per-trade prices, zero on an empty window.
func (ms *marketState) agg() domain.WindowAgg {
	avg := new(big.Int)
	if ms.Trades > 0 {
		avg.Quo(ms.PriceSum, big.NewInt(ms.Trades))
	}
	return domain.WindowAgg{
		VolumeRaw:       domain.WrapBig(ms.Volume),
		TradeCount:      uint64(ms.Trades),
		Buys:            uint64(ms.Buys),
		Sells:           uint64(ms.Sells),
		AveragePriceRaw: domain.WrapBig(avg),
	}
}
