// Package candle maintains the multi-resolution OHLCV candles. One upsert
// per (market, period, bucket); candles are never deleted.
package candle

import (
	"context"
	"fmt"
	"math/big"

	"floors-indexer/internal/decimals"
	"floors-indexer/internal/domain"
	"floors-indexer/internal/store"
)

type Aggregator struct {
	store store.Store
}

func New(st store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// Apply folds one trade into the candle of the given period. The first
// trade in a bucket seeds open=high=low=close; later trades only move
// high/low/close/volume/trades. Close is last-write-wins, so it means
// "most recent" only while the host keeps per-market delivery in
// non-decreasing timestamp order.
func (a *Aggregator) Apply(ctx context.Context, marketID string, p domain.Period, ts int64, price, reserveAmount *big.Int, dec uint8) (*domain.PriceCandle, error) {
	bucket := domain.BucketStart(ts, p.Seconds())
	id := domain.CandleID(marketID, p, bucket)

	var c domain.PriceCandle
	found, err := a.store.Get(ctx, store.KindCandle, id, &c)
	if err != nil {
		return nil, fmt.Errorf("load candle %s: %w", id, err)
	}

	if !found {
		c = domain.PriceCandle{
			ID:        id,
			MarketID:  marketID,
			Period:    p,
			Timestamp: bucket,
			OpenRaw:   domain.WrapBig(price),
			HighRaw:   domain.WrapBig(price),
			LowRaw:    domain.WrapBig(price),
			CloseRaw:  domain.WrapBig(price),
			VolumeRaw: domain.WrapBig(reserveAmount),
			Trades:    1,
		}
	} else {
		if price.Cmp(c.HighRaw.Unwrap()) > 0 {
			c.HighRaw = domain.WrapBig(price)
		}
		if price.Cmp(c.LowRaw.Unwrap()) < 0 {
			c.LowRaw = domain.WrapBig(price)
		}
		c.CloseRaw = domain.WrapBig(price)
		c.VolumeRaw.Add(c.VolumeRaw.Unwrap(), reserveAmount)
		c.Trades++
	}

	c.OpenFormatted = decimals.Format(c.OpenRaw.Unwrap(), dec)
	c.HighFormatted = decimals.Format(c.HighRaw.Unwrap(), dec)
	c.LowFormatted = decimals.Format(c.LowRaw.Unwrap(), dec)
	c.CloseFormatted = decimals.Format(c.CloseRaw.Unwrap(), dec)
	c.VolumeFormatted = decimals.Format(c.VolumeRaw.Unwrap(), dec)

	if err = a.store.Set(ctx, store.KindCandle, id, &c); err != nil {
		return nil, fmt.Errorf("save candle %s: %w", id, err)
	}
	return &c, nil
}

// Range loads the candles of one period whose buckets intersect [from, to].
// Missing buckets (no trades) are skipped, not zero-filled.
func (a *Aggregator) Range(ctx context.Context, marketID string, p domain.Period, from, to int64) ([]*domain.PriceCandle, error) {
	sec := p.Seconds()
	if sec <= 0 || to < from {
		return nil, fmt.Errorf("invalid candle range [%d, %d] for period %s", from, to, p)
	}

	out := make([]*domain.PriceCandle, 0, 16)
	for bucket := domain.BucketStart(from, sec); bucket <= to; bucket += sec {
		var c domain.PriceCandle
		found, err := a.store.Get(ctx, store.KindCandle, domain.CandleID(marketID, p, bucket), &c)
		if err != nil {
			return nil, err
		}
		if found {
			cc := c
			out = append(out, &cc)
		}
	}
	return out, nil
}
