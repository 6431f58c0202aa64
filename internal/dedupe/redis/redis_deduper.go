package redis

import (
	"context"
	"fmt"
	"time"

	"floors-indexer/internal/config"
	rdb "floors-indexer/internal/stores/redis"

	"gitlab.com/nevasik7/alerting/logger"
)

// Deduper is the cluster-safe implementation: Redis SETNX + TTL, with an
// optional Bloom prefilter to cut SETNX traffic on duplicate-heavy replays.
type Deduper struct {
	log    logger.Logger
	rdb    *rdb.Client
	ttl    time.Duration
	prefix string
	bloom  *Bloom // optional
}

func NewDeduper(log logger.Logger, cfg *config.DedupeConfig, rdb *rdb.Client, bloom *Bloom) (*Deduper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required to the redis deduper")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required to the redis deduper")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "dedupe:"
	}

	return &Deduper{
		log:    log,
		rdb:    rdb,
		ttl:    cfg.TTL,
		prefix: prefix,
		bloom:  bloom,
	}, nil
}

func (d *Deduper) Seen(ctx context.Context, id string) (bool, error) {
	// a bloom "probably seen" is trusted as a duplicate; the false-positive
	// rate is what the filter was reserved with
	if d.bloom != nil {
		if exists, err := d.bloom.Exists(ctx, id); err == nil && exists {
			return true, nil
		}
	}

	key := d.prefix + id
	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		d.log.Errorf("Redis SetNX error=%v", err)
		return false, fmt.Errorf("redis SetNX: %w", err)
	}

	seen := !ok // ok=true means the key was fresh
	if !seen && d.bloom != nil {
		if _, err = d.bloom.Add(ctx, id); err != nil {
			d.log.Errorf("Failed to add bloom id %s, err=%v", id, err)
		}
	}

	return seen, nil
}

func (d *Deduper) Health(ctx context.Context) error {
	return d.rdb.Ping(ctx).Err()
}
