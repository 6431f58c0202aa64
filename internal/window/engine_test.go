package window

import (
	"math/big"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(86400)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e
}

func update(e *Engine, market string, ts, vol, price int64) (int, int64) {
	agg, evicted := e.Update(market, 6, ts, big.NewInt(vol), big.NewInt(price), true)
	return evicted, agg.VolumeRaw.Int64()
}

func TestEngine_FirstTrade(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	agg, evicted := e.Update("mkt-1", 6, 1000, big.NewInt(500), big.NewInt(42), true)

	if evicted != 0 {
		t.Fatalf("nothing to evict on first trade, got %d", evicted)
	}
	if agg.VolumeRaw.Int64() != 500 || agg.TradeCount != 1 || agg.Buys != 1 || agg.Sells != 0 {
		t.Fatalf("unexpected aggregates: %+v", agg)
	}
	if agg.AveragePriceRaw.Int64() != 42 {
		t.Fatalf("expected average price 42, got %s", agg.AveragePriceRaw)
	}
}

// Trades at t=0,100,86500 with volumes 1,2,3: the third trade evicts the
// t=0 entry (aged 86500 > 86400) while the t=100 entry, aged exactly the
// window span, stays. Window ends up holding t=100 and t=86500.
func TestEngine_EvictionCutoff(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	update(e, "mkt-1", 0, 1, 10)
	update(e, "mkt-1", 100, 2, 10)
	evicted, vol := update(e, "mkt-1", 86500, 3, 10)

	if evicted != 1 {
		t.Fatalf("expected 1 eviction (t=0), got %d", evicted)
	}
	if vol != 5 {
		t.Fatalf("expected remaining volume 2+3=5, got %d", vol)
	}

	agg, ok := e.Get("mkt-1")
	if !ok {
		t.Fatalf("market state must exist")
	}
	if agg.TradeCount != 2 {
		t.Fatalf("expected 2 live trades, got %d", agg.TradeCount)
	}
}

func TestEngine_EvictionPastTheBoundary(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	update(e, "mkt-1", 0, 1, 10)
	update(e, "mkt-1", 100, 2, 10)
	evicted, vol := update(e, "mkt-1", 86501, 3, 10)

	// cutoff = 101: both t=0 and t=100 are now strictly older.
	if evicted != 2 {
		t.Fatalf("expected 2 evictions, got %d", evicted)
	}
	if vol != 3 {
		t.Fatalf("expected volume 3, got %d", vol)
	}
}

// Volume must always equal the exact sum of retained entries, whatever the
// trade pattern.
func TestEngine_VolumeMatchesRetainedEntries(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	const market = "mkt-sum"

	type tr struct{ ts, vol int64 }
	trades := []tr{
		{0, 7}, {50, 11}, {86000, 3}, {86400, 5}, {90000, 2}, {172900, 13},
	}

	var lastAgg int64
	for _, x := range trades {
		_, lastAgg = update(e, market, x.ts, x.vol, 1)
	}

	// after the final trade at 172900 the cutoff is 86500: only 90000 and
	// 172900 remain.
	if lastAgg != 2+13 {
		t.Fatalf("expected retained volume 15, got %d", lastAgg)
	}
}

// Old-timestamped trades are accepted, not rejected. They join the window
// and are evicted like anything else; totals are clamped at zero.
func TestEngine_OutOfOrderAccepted(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	update(e, "mkt-1", 100_000, 5, 10)
	_, vol := update(e, "mkt-1", 50_000, 7, 10) // older than previous

	if vol != 12 {
		t.Fatalf("out-of-order trade must still count, got volume %d", vol)
	}
}

func TestEngine_AveragePriceIntegerMean(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.Update("mkt-1", 6, 10, big.NewInt(1), big.NewInt(10), true)
	agg, _ := e.Update("mkt-1", 6, 20, big.NewInt(1), big.NewInt(15), false)

	// (10+15)/2 = 12 with integer division.
	if agg.AveragePriceRaw.Int64() != 12 {
		t.Fatalf("expected integer mean 12, got %s", agg.AveragePriceRaw)
	}
	if agg.Buys != 1 || agg.Sells != 1 {
		t.Fatalf("expected one buy and one sell, got %+v", agg)
	}
}

func TestEngine_SeenAndActiveSets(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.MarkSeen("m1", true)
	e.MarkSeen("m2", true)
	e.MarkSeen("m2", false) // market went inactive, stays seen

	seen, active := e.Counts()
	if seen != 2 || active != 1 {
		t.Fatalf("expected seen=2 active=1, got seen=%d active=%d", seen, active)
	}
}

func TestEngine_EachVolumeVisitsAllMarkets(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	update(e, "m1", 10, 100, 1)
	update(e, "m2", 10, 200, 1)

	total := new(big.Int)
	visited := 0
	e.EachVolume(func(_ string, _ uint8, vol *big.Int) {
		total.Add(total, vol)
		visited++
	})

	if visited != 2 || total.Int64() != 300 {
		t.Fatalf("expected 2 markets totaling 300, got %d markets, %s", visited, total)
	}
}

func TestEngine_Reset(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	update(e, "m1", 10, 100, 1)
	e.MarkSeen("m1", true)

	e.Reset()

	if _, ok := e.Get("m1"); ok {
		t.Fatalf("state must be gone after reset")
	}
	if seen, active := e.Counts(); seen != 0 || active != 0 {
		t.Fatalf("sets must be empty after reset")
	}
}

func TestEngine_CompactionKeepsTotals(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	const market = "mkt-compact"

	// enough churn to trigger prefix compaction several times
	for i := int64(0); i < 500; i++ {
		update(e, market, i*1000, 1, 1)
	}

	agg, _ := e.Get(market)
	ms := e.state[market]
	if int(agg.TradeCount) != ms.live() {
		t.Fatalf("trade count %d diverged from live entries %d", agg.TradeCount, ms.live())
	}
	if agg.VolumeRaw.Int64() != int64(ms.live()) {
		t.Fatalf("volume %s diverged from live entries %d", agg.VolumeRaw, ms.live())
	}
}
