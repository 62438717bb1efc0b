package watch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/mbeoliero/kit/log"
)

const defaultListenerBuffer = 64

var ErrHubClosed = errors.New("watch hub closed")

// Hub shares one transport subscription per topic among all local listeners.
// The transport subscription is opened by the first listener of a topic and
// released when its last listener closes.
type Hub struct {
	transport Transport
	buffer    int

	mu     sync.RWMutex
	nextId uint64
	topics map[string]*topicState
	closed bool
}

type topicState struct {
	sub       Subscription
	listeners map[uint64]*Listener
}

// NewHub creates a hub over transport. buffer is the per-listener queue size.
func NewHub(transport Transport, buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultListenerBuffer
	}
	return &Hub{
		transport: transport,
		buffer:    buffer,
		topics:    make(map[string]*topicState),
	}
}

// Publish encodes e and sends it on its topic
func (h *Hub) Publish(ctx context.Context, e Event) error {
	topic := e.Topic()
	if topic == "" {
		return errors.New("watch event has no topic")
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return h.transport.Publish(ctx, topic, payload)
}

// Subscribe registers a listener on topic
func (h *Hub) Subscribe(ctx context.Context, topic string) (*Listener, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	state, ok := h.topics[topic]
	if !ok {
		sub, err := h.transport.Subscribe(ctx, topic, func(payload []byte) {
			h.dispatch(topic, payload)
		})
		if err != nil {
			return nil, err
		}
		state = &topicState{sub: sub, listeners: make(map[uint64]*Listener)}
		h.topics[topic] = state
		log.CtxDebug(ctx, "watch topic opened: topic=%s", topic)
	}

	h.nextId++
	l := &Listener{
		hub:   h,
		id:    h.nextId,
		topic: topic,
		ch:    make(chan Event, h.buffer),
	}
	state.listeners[l.id] = l
	return l, nil
}

// Refs returns the number of live listeners on topic
func (h *Hub) Refs(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	state, ok := h.topics[topic]
	if !ok {
		return 0
	}
	return len(state.listeners)
}

// Close drops every listener and transport subscription
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	topics := h.topics
	h.topics = make(map[string]*topicState)
	for _, state := range topics {
		for _, l := range state.listeners {
			close(l.ch)
		}
	}
	h.mu.Unlock()

	// Transport subscriptions may wait on an in-flight dispatch, so they are
	// released without holding the lock.
	for topic, state := range topics {
		if err := state.sub.Unsubscribe(); err != nil {
			log.Warn("unsubscribe watch topic failed: topic=%s, error=%v", topic, err)
		}
	}
	return h.transport.Close()
}

func (h *Hub) dispatch(topic string, payload []byte) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		log.Warn("decode watch event failed: topic=%s, error=%v", topic, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	state, ok := h.topics[topic]
	if !ok {
		return
	}
	for _, l := range state.listeners {
		select {
		case l.ch <- e:
		default:
			log.Warn("watch listener queue full, event dropped: topic=%s, kind=%s, count=%d", topic, e.Kind, e.Count)
		}
	}
}

func (h *Hub) release(l *Listener) {
	h.mu.Lock()
	state, ok := h.topics[l.topic]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok = state.listeners[l.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(state.listeners, l.id)
	close(l.ch)

	if len(state.listeners) > 0 {
		h.mu.Unlock()
		return
	}
	delete(h.topics, l.topic)
	h.mu.Unlock()

	if err := state.sub.Unsubscribe(); err != nil {
		log.Warn("unsubscribe watch topic failed: topic=%s, error=%v", l.topic, err)
	}
	log.Debug("watch topic released: topic=%s", l.topic)
}

// Listener receives the events of one topic until closed
type Listener struct {
	hub   *Hub
	id    uint64
	topic string
	ch    chan Event
	once  sync.Once
}

// Topic returns the subscribed topic
func (l *Listener) Topic() string {
	return l.topic
}

// C is closed when the listener or the hub is closed
func (l *Listener) C() <-chan Event {
	return l.ch
}

// Close releases the listener; safe to call more than once
func (l *Listener) Close() {
	l.once.Do(func() {
		l.hub.release(l)
	})
}
