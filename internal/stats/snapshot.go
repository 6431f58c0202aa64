package stats

import (
	"context"
	"fmt"

	"floors-indexer/internal/domain"
	"floors-indexer/internal/store"
)

// SnapshotInput carries one observation of the platform into the bucketed
// snapshots. TVL and market cap are stocks, PeriodVolume is a flow.
type SnapshotInput struct {
	TotalValueLocked *domain.BigInt
	TotalMarketCap   *domain.BigInt
	PeriodVolume     *domain.BigInt // this trade's volume, 18 decimals
	TotalMarkets     uint64
	ActiveMarkets    uint64
}

// SnapshotPublisher upserts GlobalStatsSnapshot records. Within a bucket,
// stock fields are overwritten (last observation wins) while the flow field
// accumulates. There is no closing step: a bucket keeps absorbing trades
// for as long as their timestamps land inside it.
type SnapshotPublisher struct {
	store store.Store
}

func NewSnapshotPublisher(st store.Store) *SnapshotPublisher {
	return &SnapshotPublisher{store: st}
}

func (p *SnapshotPublisher) Publish(ctx context.Context, period domain.Period, ts int64, in SnapshotInput) error {
	bucket := domain.BucketStart(ts, period.Seconds())
	id := domain.GlobalSnapshotID(period, bucket)

	var snap domain.GlobalStatsSnapshot
	found, err := p.store.Get(ctx, store.KindGlobalSnapshot, id, &snap)
	if err != nil {
		return fmt.Errorf("load global snapshot %s: %w", id, err)
	}

	if !found {
		snap = domain.GlobalStatsSnapshot{
			ID:                  id,
			Period:              period,
			Timestamp:           bucket,
			TotalValueLockedRaw: in.TotalValueLocked,
			TotalMarketCapRaw:   in.TotalMarketCap,
			PeriodVolumeRaw:     in.PeriodVolume,
			TotalMarkets:        in.TotalMarkets,
			ActiveMarkets:       in.ActiveMarkets,
		}
	} else {
		snap.TotalValueLockedRaw = in.TotalValueLocked
		snap.TotalMarketCapRaw = in.TotalMarketCap
		snap.PeriodVolumeRaw.Add(snap.PeriodVolumeRaw.Unwrap(), in.PeriodVolume.Unwrap())
		snap.TotalMarkets = in.TotalMarkets
		snap.ActiveMarkets = in.ActiveMarkets
	}

	if err = p.store.Set(ctx, store.KindGlobalSnapshot, id, &snap); err != nil {
		return fmt.Errorf("save global snapshot %s: %w", id, err)
	}
	return nil
}

// PublishAll fans one observation out to every configured period.
func (p *SnapshotPublisher) PublishAll(ctx context.Context, ts int64, in SnapshotInput) error {
	for _, period := range domain.Periods {
		if err := p.Publish(ctx, period, ts, in); err != nil {
			return err
		}
	}
	return nil
}
