// Package store is the durable entity layer the aggregation core writes to.
// Upsert-style KV with read-your-writes within one event's processing; no
// cross-event transactions.
package store

import "context"

// Entity kinds namespace the keys so deterministic ids of different record
// types cannot collide ("<market>-86400" is both a valid rolling-stats id
// and a valid snapshot id).
const (
	KindMarket         = "market"
	KindToken          = "token"
	KindRollingStats   = "rolling_stats"
	KindCandle         = "candle"
	KindMarketSnapshot = "market_snapshot"
	KindGlobalStats    = "global_stats"
	KindGlobalSnapshot = "global_snapshot"
)

type Store interface {
	// Get unmarshals the entity into dst. found=false with nil error when
	// the id is absent.
	Get(ctx context.Context, kind, id string, dst any) (found bool, err error)

	// Set upserts the entity, overwriting any previous value.
	Set(ctx context.Context, kind, id string, v any) error
}
