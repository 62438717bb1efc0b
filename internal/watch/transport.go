package watch

import "context"

// Transport carries raw payloads between processes
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe registers deliver for topic. deliver may be called from any
	// goroutine and must not block.
	Subscribe(ctx context.Context, topic string, deliver func(payload []byte)) (Subscription, error)
	Close() error
}

// Subscription is one transport-level subscription
type Subscription interface {
	Unsubscribe() error
}
