package redis

import (
	"context"
	"errors"
	"fmt"

	"floors-indexer/internal/config"
	rdb "floors-indexer/internal/stores/redis"
)

// Bloom is a probabilistic prefilter in front of SETNX, backed by the
// RedisBloom module (BF.* commands). "Definitely not seen" goes on to
// SETNX; "probably seen" short-circuits as a duplicate with the reserved
// error rate.
type Bloom struct {
	rdb      *rdb.Client
	Key      string
	Capacity int64
	ErrRate  float64
}

func NewBloom(cfg *config.BloomConfig, rdb *rdb.Client) (*Bloom, error) {
	if cfg == nil {
		return nil, errors.New("bloom config is required to the bloom")
	}
	if rdb == nil {
		return nil, errors.New("redis client is required to the bloom")
	}

	key := cfg.Key
	if key == "" {
		key = "dedupe:bf:trades"
	}

	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 1_000_000
	}

	errRate := cfg.ErrRate
	if errRate <= 0 {
		errRate = 0.001
	}

	return &Bloom{
		rdb:      rdb,
		Key:      key,
		Capacity: capacity,
		ErrRate:  errRate,
	}, nil
}

// Ensure creates the filter if absent. Safe to call repeatedly. Fails with
// "unknown command" when the RedisBloom module is not loaded.
func (b *Bloom) Ensure(ctx context.Context) error {
	exists, err := b.rdb.Exists(ctx, b.Key).Result()
	if err != nil {
		return fmt.Errorf("check bloom key: %w", err)
	}
	if exists > 0 {
		return nil
	}

	if res := b.rdb.Do(ctx, "BF.RESERVE", b.Key, b.ErrRate, b.Capacity); res.Err() != nil {
		return fmt.Errorf("BF.RESERVE failed: %w", res.Err())
	}
	return nil
}

// Add inserts the item. Returns true when the item was definitely new.
func (b *Bloom) Add(ctx context.Context, item string) (bool, error) {
	res := b.rdb.Do(ctx, "BF.ADD", b.Key, item)
	if err := res.Err(); err != nil {
		return false, fmt.Errorf("BF.ADD failed: %w", err)
	}

	v, err := res.Int()
	return v == 1, err
}

// Exists reports whether the item was "probably" seen before.
func (b *Bloom) Exists(ctx context.Context, item string) (bool, error) {
	res := b.rdb.Do(ctx, "BF.EXISTS", b.Key, item)
	if err := res.Err(); err != nil {
		return false, fmt.Errorf("BF.EXISTS failed: %w", err)
	}

	v, err := res.Int()
	return v == 1, err
}
