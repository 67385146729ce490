package websocket

import "context"

// Backplane fans relay envelopes out to every API node, including the sender.
type Backplane interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe returns once the subscription is live. The channel closes when
	// ctx is done or the subscription ends.
	Subscribe(ctx context.Context) (<-chan Envelope, error)
	Close() error
}
