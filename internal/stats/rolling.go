// Package stats materializes the derived analytics records: per-market
// rolling stats, the platform-wide GlobalStats singleton and its
// time-bucketed snapshots.
package stats

import (
	"context"
	"fmt"

	"floors-indexer/internal/decimals"
	"floors-indexer/internal/domain"
	"floors-indexer/internal/store"
)

// RollingPublisher projects a market's live window aggregates into the
// durable MarketRollingStats record. Pure projection: same window state in,
// byte-identical record out.
type RollingPublisher struct {
	store store.Store
}

func NewRollingPublisher(st store.Store) *RollingPublisher {
	return &RollingPublisher{store: st}
}

func (p *RollingPublisher) Publish(ctx context.Context, marketID string, dec uint8, agg domain.WindowAgg, ts int64) (*domain.MarketRollingStats, error) {
	rs := &domain.MarketRollingStats{
		ID:                    domain.RollingStatsID(marketID, domain.WindowSeconds),
		MarketID:              marketID,
		WindowSeconds:         domain.WindowSeconds,
		VolumeRaw:             agg.VolumeRaw,
		VolumeFormatted:       decimals.Format(agg.VolumeRaw.Unwrap(), dec),
		AveragePriceRaw:       agg.AveragePriceRaw,
		AveragePriceFormatted: decimals.Format(agg.AveragePriceRaw.Unwrap(), dec),
		TradeCount:            agg.TradeCount,
		Buys:                  agg.Buys,
		Sells:                 agg.Sells,
		LastUpdatedAt:         ts,
	}

	if err := p.store.Set(ctx, store.KindRollingStats, rs.ID, rs); err != nil {
		return nil, fmt.Errorf("save rolling stats for %s: %w", marketID, err)
	}
	return rs, nil
}
