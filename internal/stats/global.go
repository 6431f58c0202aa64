package stats

import (
	"context"
	"fmt"
	"math/big"

	"floors-indexer/internal/decimals"
	"floors-indexer/internal/domain"
	"floors-indexer/internal/store"
	"floors-indexer/internal/window"
)

// GlobalAggregator recomputes the platform totals on every trade. The 24h
// volume is a full rescan of every market's window state rather than an
// incremental total: correctness-first, and the rescan stays the reference
// behavior for the incremental variant if one is ever added.
type GlobalAggregator struct {
	store     store.Store
	windows   *window.Engine
	snapshots *SnapshotPublisher
}

func NewGlobalAggregator(st store.Store, windows *window.Engine, snapshots *SnapshotPublisher) *GlobalAggregator {
	return &GlobalAggregator{store: st, windows: windows, snapshots: snapshots}
}

// Recompute overwrites the GlobalStats singleton and feeds the bucketed
// snapshots. tradeVolume is the current trade's reserve amount (not the
// rolling volume) and is normalized to 18 decimals before it accumulates
// into the snapshot flow field.
func (g *GlobalAggregator) Recompute(ctx context.Context, ts int64, tradeVolume *big.Int, tradeVolumeDecimals uint8) error {
	// 24h volume across all markets, each normalized to the canonical
	// precision before summing. O(markets with window state).
	totalVolume := new(big.Int)
	g.windows.EachVolume(func(_ string, dec uint8, vol *big.Int) {
		totalVolume.Add(totalVolume, decimals.Rescale(vol, dec, decimals.Canonical))
	})

	tvl, marketCap, err := g.valueLocked(ctx)
	if err != nil {
		return err
	}

	seen, active := g.windows.Counts()

	// Read-modify-write: debt/collateral totals on the singleton belong to
	// the loan handlers and must come through untouched.
	var gs domain.GlobalStats
	found, err := g.store.Get(ctx, store.KindGlobalStats, domain.GlobalStatsID, &gs)
	if err != nil {
		return fmt.Errorf("load global stats: %w", err)
	}
	if !found {
		gs = domain.GlobalStats{
			ID:                 domain.GlobalStatsID,
			TotalDebtRaw:       domain.NewBigInt(0),
			TotalCollateralRaw: domain.NewBigInt(0),
		}
	}

	gs.TotalMarkets = seen
	gs.ActiveMarkets = active
	gs.TotalVolumeRaw = domain.WrapBig(totalVolume)
	gs.TotalVolumeFormatted = decimals.Format(totalVolume, decimals.Canonical)
	gs.UpdatedAt = ts

	if err = g.store.Set(ctx, store.KindGlobalStats, domain.GlobalStatsID, &gs); err != nil {
		return fmt.Errorf("save global stats: %w", err)
	}

	return g.snapshots.PublishAll(ctx, ts, SnapshotInput{
		TotalValueLocked: domain.WrapBig(tvl),
		TotalMarketCap:   domain.WrapBig(marketCap),
		PeriodVolume:     domain.WrapBig(decimals.Rescale(tradeVolume, tradeVolumeDecimals, decimals.Canonical)),
		TotalMarkets:     seen,
		ActiveMarkets:    active,
	})
}

// valueLocked sums TVL and market cap over every market ever seen.
// Fixed-point multiply with an 18-decimal price: supply * price / 10^18.
// Markets that never traded (price 0) are skipped.
func (g *GlobalAggregator) valueLocked(ctx context.Context) (tvl, marketCap *big.Int, err error) {
	tvl = new(big.Int)
	marketCap = new(big.Int)
	scale := decimals.Rescale(big.NewInt(1), 0, decimals.Canonical) // 10^18

	for _, id := range g.windows.SeenMarkets() {
		var m domain.Market
		found, err := g.store.Get(ctx, store.KindMarket, id, &m)
		if err != nil {
			return nil, nil, fmt.Errorf("load market %s: %w", id, err)
		}
		if !found {
			continue
		}

		price := m.CurrentPriceRaw.Unwrap()
		if price.Sign() <= 0 {
			continue
		}

		v := new(big.Int).Mul(m.TotalSupplyRaw.Unwrap(), price)
		tvl.Add(tvl, v.Quo(v, scale))

		c := new(big.Int).Mul(m.MarketSupplyRaw.Unwrap(), price)
		marketCap.Add(marketCap, c.Quo(c, scale))
	}
	return tvl, marketCap, nil
}
