package pubsub

import "context"

// Broadcaster fans stats patches out to subscribed consumers. Broadcast
// failures are not fatal to trade processing: subscribers catch up on the
// next patch.
type Broadcaster interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Health(ctx context.Context) error
}
