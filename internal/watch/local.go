package watch

import (
	"context"
	"sync"
)

// LocalTransport delivers in-process and synchronously. It serves single
// instance deployments and tests.
type LocalTransport struct {
	mu     sync.RWMutex
	nextId uint64
	subs   map[string]map[uint64]func([]byte)
}

// NewLocalTransport creates an in-process transport
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{subs: make(map[string]map[uint64]func([]byte))}
}

func (t *LocalTransport) Publish(_ context.Context, topic string, payload []byte) error {
	t.mu.RLock()
	delivers := make([]func([]byte), 0, len(t.subs[topic]))
	for _, d := range t.subs[topic] {
		delivers = append(delivers, d)
	}
	t.mu.RUnlock()

	for _, d := range delivers {
		d(payload)
	}
	return nil
}

func (t *LocalTransport) Subscribe(_ context.Context, topic string, deliver func([]byte)) (Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextId++
	id := t.nextId
	if t.subs[topic] == nil {
		t.subs[topic] = make(map[uint64]func([]byte))
	}
	t.subs[topic][id] = deliver
	return &localSubscription{transport: t, topic: topic, id: id}, nil
}

func (t *LocalTransport) Close() error {
	t.mu.Lock()
	t.subs = make(map[string]map[uint64]func([]byte))
	t.mu.Unlock()
	return nil
}

// Subscribers returns how many transport subscriptions exist for topic
func (t *LocalTransport) Subscribers(topic string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs[topic])
}

type localSubscription struct {
	transport *LocalTransport
	topic     string
	id        uint64
}

func (s *localSubscription) Unsubscribe() error {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()

	subs := s.transport.subs[s.topic]
	delete(subs, s.id)
	if len(subs) == 0 {
		delete(s.transport.subs, s.topic)
	}
	return nil
}
