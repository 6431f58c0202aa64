package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	rds "floors-indexer/internal/stores/redis"

	goredis "github.com/redis/go-redis/v9"
)

// Redis is the durable Store. One JSON value per entity under
// "<prefix><kind>:<id>"; SET is a plain overwrite, which is exactly the
// upsert the aggregation core needs.
type Redis struct {
	rdb    *rds.Client
	prefix string
}

func NewRedis(rdb *rds.Client, prefix string) (*Redis, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required to the entity store")
	}
	if prefix == "" {
		prefix = "floors:entity:"
	}
	return &Redis{rdb: rdb, prefix: prefix}, nil
}

func (s *Redis) key(kind, id string) string {
	return s.prefix + kind + ":" + id
}

func (s *Redis) Get(ctx context.Context, kind, id string, dst any) (bool, error) {
	b, err := s.rdb.Get(ctx, s.key(kind, id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis GET %s %s: %w", kind, id, err)
	}

	if err = json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return true, nil
}

func (s *Redis) Set(ctx context.Context, kind, id string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", kind, id, err)
	}

	if err = s.rdb.Set(ctx, s.key(kind, id), b, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s %s: %w", kind, id, err)
	}
	return nil
}

func (s *Redis) Health(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
