// Package dedupe guards the at-most-once delivery contract of the trade
// stream. The host should not redeliver under normal operation; this is
// the backstop for restarts and replays.
package dedupe

import "context"

type Deduper interface {
	// Seen marks the id and reports whether it was already marked.
	// alreadySeen=true means the trade was processed before and must be
	// skipped.
	Seen(ctx context.Context, id string) (alreadySeen bool, err error)

	Health(ctx context.Context) error
}
