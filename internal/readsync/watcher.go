package readsync

import (
	"context"
	"sync"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/watch"
)

// Source loads the current counter and cursor when a conversation becomes active
type Source interface {
	GetCounter(ctx context.Context, conversationId string) (*entity.ConversationCounter, error)
	GetCursor(ctx context.Context, userId, conversationId string) (*entity.ReadCursor, error)
}

// Watcher feeds a Synchronizer from the change feed. While a conversation is
// active it holds two subscriptions: the conversation's counter topic and the
// user's cursor topic. Both are released on switch and on Close.
type Watcher struct {
	userId        string
	syncer        *Synchronizer
	hub           *watch.Hub
	source        Source
	authenticated func() bool

	mu       sync.Mutex
	activeId string
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool
}

// NewWatcher binds s to hub. authenticated gates logging of transient errors,
// which are expected while a session is being torn down.
func NewWatcher(userId string, s *Synchronizer, hub *watch.Hub, source Source, authenticated func() bool) *Watcher {
	if authenticated == nil {
		authenticated = func() bool { return true }
	}
	return &Watcher{
		userId:        userId,
		syncer:        s,
		hub:           hub,
		source:        source,
		authenticated: authenticated,
	}
}

// ActiveConversation returns the watched conversation id, "" when idle
func (w *Watcher) ActiveConversation() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activeId
}

// Activate watches conversationId; "" stops watching
func (w *Watcher) Activate(ctx context.Context, conversationId string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.activeId == conversationId {
		return
	}
	w.stopLocked()
	w.activeId = conversationId
	w.syncer.SetActiveConversation(ctx, conversationId)
	if conversationId == "" {
		return
	}

	listeners := make([]*watch.Listener, 0, 2)
	for _, topic := range []string{watch.CounterTopic(conversationId), watch.CursorTopic(w.userId)} {
		l, err := w.hub.Subscribe(ctx, topic)
		if err != nil {
			w.logTransient(ctx, "subscribe %s failed: user_id=%s, error=%v", topic, w.userId, err)
			continue
		}
		listeners = append(listeners, l)
	}

	w.seed(ctx, conversationId)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(runCtx, conversationId, listeners, w.done)
}

// Close stops watching and releases every subscription
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	w.stopLocked()
	w.activeId = ""
	w.syncer.SetActiveConversation(context.Background(), "")
}

func (w *Watcher) stopLocked() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
	w.done = nil
}

func (w *Watcher) seed(ctx context.Context, conversationId string) {
	counter, err := w.source.GetCounter(ctx, conversationId)
	if err != nil {
		w.logTransient(ctx, "load counter failed: conversation_id=%s, error=%v", conversationId, err)
	}
	cursor, err := w.source.GetCursor(ctx, w.userId, conversationId)
	if err != nil {
		w.logTransient(ctx, "load cursor failed: user_id=%s, conversation_id=%s, error=%v", w.userId, conversationId, err)
	}

	w.syncer.ObserveCursor(ctx, conversationId, entity.ReadCountOf(cursor))
	w.syncer.ObserveCounter(ctx, conversationId, entity.CountOf(counter))
}

func (w *Watcher) run(ctx context.Context, conversationId string, listeners []*watch.Listener, done chan struct{}) {
	defer close(done)

	merged := make(chan watch.Event)
	var wg sync.WaitGroup
	for _, l := range listeners {
		wg.Add(1)
		go func(l *watch.Listener) {
			defer wg.Done()
			defer l.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case e, ok := <-l.C():
					if !ok {
						return
					}
					select {
					case merged <- e:
					case <-ctx.Done():
						return
					}
				}
			}
		}(l)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	for e := range merged {
		if e.ConversationId != conversationId {
			continue
		}
		switch e.Kind {
		case watch.KindCounter:
			w.syncer.ObserveCounter(ctx, conversationId, e.Count)
		case watch.KindCursor:
			if e.UserId == w.userId {
				w.syncer.ObserveCursor(ctx, conversationId, e.Count)
			}
		}
	}
}

func (w *Watcher) logTransient(ctx context.Context, format string, args ...interface{}) {
	if !w.authenticated() {
		return
	}
	log.CtxWarn(ctx, format, args...)
}
