package gateway

import (
	"context"
	"sync"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/metrics"
	"github.com/mbeoliero/huddle/internal/readsync"
	"github.com/mbeoliero/huddle/internal/watch"
	"github.com/mbeoliero/huddle/pkg/constant"
	"github.com/mbeoliero/huddle/pkg/errcode"
)

// ReadState loads and advances read state on behalf of a session
type ReadState interface {
	readsync.Source
	readsync.CursorWriter
}

// Session is the live read state of one connection: one watcher per
// conversation kind keeps the in-view conversation marked read, and the
// user's inbox and cursor feeds drive pushes to the client.
type Session struct {
	userId  string
	hub     *watch.Hub
	channel *readsync.Watcher
	direct  *readsync.Watcher

	mu     sync.Mutex
	feeds  []*watch.Listener
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewSession creates an idle session for userId. authenticated reports
// whether the owning connection is still live.
func NewSession(userId string, hub *watch.Hub, state ReadState, authenticated func() bool) *Session {
	channelSync := readsync.NewSynchronizer(userId, constant.ScopeChannel, state)
	directSync := readsync.NewSynchronizer(userId, constant.ScopeDirect, state)
	metrics.WatchSessions.Inc()
	return &Session{
		userId:  userId,
		hub:     hub,
		channel: readsync.NewWatcher(userId, channelSync, hub, state, authenticated),
		direct:  readsync.NewWatcher(userId, directSync, hub, state, authenticated),
	}
}

// Start subscribes to the user's inbox and cursor feeds and calls onEvent
// for every event until Close
func (s *Session) Start(ctx context.Context, onEvent func(context.Context, watch.Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.cancel != nil {
		return nil
	}

	for _, topic := range []string{watch.InboxTopic(s.userId), watch.CursorTopic(s.userId)} {
		l, err := s.hub.Subscribe(ctx, topic)
		if err != nil {
			for _, f := range s.feeds {
				f.Close()
			}
			s.feeds = nil
			return err
		}
		s.feeds = append(s.feeds, l)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx, s.feeds[0], s.feeds[1], onEvent, s.done)
	return nil
}

func (s *Session) run(ctx context.Context, inbox, cursor *watch.Listener, onEvent func(context.Context, watch.Event), done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-inbox.C():
			if !ok {
				return
			}
			onEvent(ctx, e)
		case e, ok := <-cursor.C():
			if !ok {
				return
			}
			onEvent(ctx, e)
		}
	}
}

// SetActive puts conversationId of kind in view, or clears the kind when
// conversationId is empty
func (s *Session) SetActive(ctx context.Context, kind, conversationId string) error {
	var w *readsync.Watcher
	switch kind {
	case KindChannel:
		if conversationId != "" && !entity.IsChannelConversation(conversationId) {
			return errcode.ErrInvalidParam
		}
		w = s.channel
	case KindDirect:
		if conversationId != "" && !entity.IsDirectConversation(conversationId) {
			return errcode.ErrInvalidParam
		}
		w = s.direct
	default:
		return errcode.ErrInvalidParam
	}

	w.Activate(ctx, conversationId)
	log.CtxDebug(ctx, "session active conversation set: user_id=%s, kind=%s, conversation_id=%s", s.userId, kind, conversationId)
	return nil
}

// Active returns the channel and direct conversation Ids in view
func (s *Session) Active() (channelId, directId string) {
	return s.channel.ActiveConversation(), s.direct.ActiveConversation()
}

// Close stops the feeds and both watchers, releasing every subscription
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel, done, feeds := s.cancel, s.done, s.feeds
	s.cancel, s.done, s.feeds = nil, nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	for _, f := range feeds {
		f.Close()
	}
	s.channel.Close()
	s.direct.Close()
	metrics.WatchSessions.Dec()
}
