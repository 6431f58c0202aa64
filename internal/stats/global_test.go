package stats

import (
	"context"
	"math/big"
	"testing"

	"floors-indexer/internal/domain"
	"floors-indexer/internal/store"
	"floors-indexer/internal/window"
)

func setupGlobal(t *testing.T) (*GlobalAggregator, *store.Memory, *window.Engine) {
	t.Helper()
	st := store.NewMemory()
	eng, err := window.NewEngine(domain.WindowSeconds)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return NewGlobalAggregator(st, eng, NewSnapshotPublisher(st)), st, eng
}

func putMarket(t *testing.T, st store.Store, id string, price, totalSupply, marketSupply int64) {
	t.Helper()
	m := &domain.Market{
		ID:              id,
		ReserveToken:    id + "-reserve",
		IssuanceToken:   id + "-issuance",
		CurrentPriceRaw: domain.NewBigInt(price),
		FloorPriceRaw:   domain.NewBigInt(0),
		TotalSupplyRaw:  domain.NewBigInt(totalSupply),
		MarketSupplyRaw: domain.NewBigInt(marketSupply),
		Status:          domain.MarketActive,
	}
	if err := st.Set(context.Background(), store.KindMarket, id, m); err != nil {
		t.Fatalf("put market: %v", err)
	}
}

func loadGlobal(t *testing.T, st store.Store) *domain.GlobalStats {
	t.Helper()
	var gs domain.GlobalStats
	found, err := st.Get(context.Background(), store.KindGlobalStats, domain.GlobalStatsID, &gs)
	if err != nil || !found {
		t.Fatalf("global stats missing: found=%v err=%v", found, err)
	}
	return &gs
}

// A 6-decimal market trading 10.0 tokens (raw 10_000_000) contributes
// 10_000_000 * 10^12 = 10^19 to the normalized global volume.
func TestRecompute_VolumeNormalization(t *testing.T) {
	t.Parallel()

	g, st, eng := setupGlobal(t)
	vol := big.NewInt(10_000_000)
	eng.Update("m6", 6, 100, vol, big.NewInt(1), true)
	eng.MarkSeen("m6", true)

	if err := g.Recompute(context.Background(), 100, vol, 6); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	gs := loadGlobal(t, st)
	want, _ := new(big.Int).SetString("10000000000000000000", 10)
	if gs.TotalVolumeRaw.Cmp(want) != 0 {
		t.Fatalf("expected normalized volume %s, got %s", want, gs.TotalVolumeRaw)
	}
	if gs.TotalVolumeFormatted != "10" {
		t.Fatalf("expected formatted volume 10, got %q", gs.TotalVolumeFormatted)
	}
}

func TestRecompute_SumsAcrossMixedDecimals(t *testing.T) {
	t.Parallel()

	g, st, eng := setupGlobal(t)
	// 1.0 of a 6-decimal token and 1.0 of an 18-decimal token: 2.0 total.
	eng.Update("m6", 6, 100, big.NewInt(1_000_000), big.NewInt(1), true)
	one18, _ := new(big.Int).SetString("1000000000000000000", 10)
	eng.Update("m18", 18, 100, one18, big.NewInt(1), true)
	eng.MarkSeen("m6", true)
	eng.MarkSeen("m18", true)

	if err := g.Recompute(context.Background(), 100, big.NewInt(0), 18); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	gs := loadGlobal(t, st)
	if gs.TotalVolumeFormatted != "2" {
		t.Fatalf("expected total 2, got %q", gs.TotalVolumeFormatted)
	}
	if gs.TotalMarkets != 2 || gs.ActiveMarkets != 2 {
		t.Fatalf("bad market counts: %d/%d", gs.TotalMarkets, gs.ActiveMarkets)
	}
}

func TestRecompute_TVLSkipsNeverTradedMarkets(t *testing.T) {
	t.Parallel()

	g, st, eng := setupGlobal(t)
	one18 := int64(1_000_000_000_000_000_000)

	// supply 4e18, price 2e18 -> TVL 8e18; market supply 3e18 -> cap 6e18
	putMarket(t, st, "priced", 2*one18, 4*one18, 3*one18)
	// never traded: price 0, must contribute nothing
	putMarket(t, st, "unpriced", 0, 9*one18, 9*one18)

	eng.MarkSeen("priced", true)
	eng.MarkSeen("unpriced", true)

	if err := g.Recompute(context.Background(), 3650, big.NewInt(0), 18); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	var snap domain.GlobalStatsSnapshot
	found, err := st.Get(context.Background(), store.KindGlobalSnapshot,
		domain.GlobalSnapshotID(domain.PeriodOneHour, 3600), &snap)
	if err != nil || !found {
		t.Fatalf("hourly snapshot missing: found=%v err=%v", found, err)
	}

	if snap.TotalValueLockedRaw.Cmp(big.NewInt(8*one18)) != 0 {
		t.Fatalf("expected TVL 8e18, got %s", snap.TotalValueLockedRaw)
	}
	if snap.TotalMarketCapRaw.Cmp(big.NewInt(6*one18)) != 0 {
		t.Fatalf("expected market cap 6e18, got %s", snap.TotalMarketCapRaw)
	}
}

// The singleton carries debt/collateral totals owned by the loan handlers;
// recompute must not clobber them.
func TestRecompute_PreservesForeignFields(t *testing.T) {
	t.Parallel()

	g, st, eng := setupGlobal(t)
	ctx := context.Background()

	seeded := &domain.GlobalStats{
		ID:                 domain.GlobalStatsID,
		TotalDebtRaw:       domain.NewBigInt(777),
		TotalCollateralRaw: domain.NewBigInt(888),
	}
	if err := st.Set(ctx, store.KindGlobalStats, domain.GlobalStatsID, seeded); err != nil {
		t.Fatalf("seed: %v", err)
	}

	eng.Update("m1", 6, 100, big.NewInt(1), big.NewInt(1), true)
	eng.MarkSeen("m1", true)
	if err := g.Recompute(ctx, 100, big.NewInt(1), 6); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	gs := loadGlobal(t, st)
	if gs.TotalDebtRaw.Int64() != 777 || gs.TotalCollateralRaw.Int64() != 888 {
		t.Fatalf("foreign fields clobbered: debt=%s collateral=%s",
			gs.TotalDebtRaw, gs.TotalCollateralRaw)
	}
	if gs.TotalMarkets != 1 {
		t.Fatalf("own fields must still update, got %d markets", gs.TotalMarkets)
	}
}
