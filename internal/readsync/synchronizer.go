// Package readsync keeps a user's read cursor caught up with the counter of
// the conversation they are looking at.
package readsync

import (
	"context"
	"sync"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/huddle/internal/metrics"
	"github.com/mbeoliero/huddle/pkg/errcode"
)

// CursorWriter persists a read cursor. Implementations merge monotonically.
type CursorWriter interface {
	SetCursor(ctx context.Context, userId, conversationId string, count int64) error
}

// Snapshot is the synchronizer's view of the active conversation
type Snapshot struct {
	ConversationId string
	Counter        int64
	Cursor         int64
}

type emission struct {
	userId         string
	conversationId string
	counter        int64
	cursor         int64
}

// Synchronizer decides when to advance the read cursor of one active
// conversation. It is Idle while no conversation is active and Watching
// otherwise. A write is issued exactly when counter > cursor and the
// (user, conversation, counter, cursor) tuple differs from the last one written.
type Synchronizer struct {
	userId string
	scope  string
	writer CursorWriter

	mu   sync.Mutex
	snap Snapshot
	last *emission
}

// NewSynchronizer creates an idle synchronizer for userId's conversations of scope
func NewSynchronizer(userId, scope string, writer CursorWriter) *Synchronizer {
	return &Synchronizer{
		userId: userId,
		scope:  scope,
		writer: writer,
	}
}

// SetActiveConversation switches the watched conversation. An empty id
// returns to Idle. Switching resets the snapshot to zero and forgets the last
// written tuple, so reopening a conversation re-evaluates it.
func (s *Synchronizer) SetActiveConversation(ctx context.Context, conversationId string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.ConversationId == conversationId {
		return
	}
	s.snap = Snapshot{ConversationId: conversationId}
	s.last = nil
	log.CtxDebug(ctx, "readsync active conversation changed: user_id=%s, scope=%s, conversation_id=%s", s.userId, s.scope, conversationId)
}

// ObserveCounter feeds the latest counter of conversationId
func (s *Synchronizer) ObserveCounter(ctx context.Context, conversationId string, count int64) {
	s.observe(ctx, conversationId, func(snap *Snapshot) {
		if count > snap.Counter {
			snap.Counter = count
		}
	})
}

// ObserveCursor feeds the latest persisted cursor of conversationId. The local
// cursor never moves backwards.
func (s *Synchronizer) ObserveCursor(ctx context.Context, conversationId string, count int64) {
	s.observe(ctx, conversationId, func(snap *Snapshot) {
		if count > snap.Cursor {
			snap.Cursor = count
		}
	})
}

// Snapshot returns the current view
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Synchronizer) observe(ctx context.Context, conversationId string, apply func(*Snapshot)) {
	s.mu.Lock()
	if conversationId == "" || conversationId != s.snap.ConversationId {
		s.mu.Unlock()
		return
	}
	apply(&s.snap)
	e, ok := s.decide()
	s.mu.Unlock()

	if ok {
		s.write(ctx, e)
	}
}

// decide must be called with mu held
func (s *Synchronizer) decide() (emission, bool) {
	if s.userId == "" || s.snap.ConversationId == "" {
		return emission{}, false
	}
	if s.snap.Counter <= s.snap.Cursor {
		return emission{}, false
	}
	e := emission{
		userId:         s.userId,
		conversationId: s.snap.ConversationId,
		counter:        s.snap.Counter,
		cursor:         s.snap.Cursor,
	}
	if s.last != nil && *s.last == e {
		return emission{}, false
	}
	s.last = &e
	return e, true
}

func (s *Synchronizer) write(ctx context.Context, e emission) {
	err := s.writer.SetCursor(ctx, e.userId, e.conversationId, e.counter)
	switch {
	case err == nil:
		metrics.CursorWrites.WithLabelValues(s.scope, metrics.ResultOk).Inc()
		log.CtxDebug(ctx, "read cursor advanced: user_id=%s, conversation_id=%s, from=%d, to=%d", e.userId, e.conversationId, e.cursor, e.counter)
	case errcode.IsPermissionDenied(err):
		metrics.CursorWrites.WithLabelValues(s.scope, metrics.ResultIgnored).Inc()
	default:
		metrics.CursorWrites.WithLabelValues(s.scope, metrics.ResultFailed).Inc()
		log.CtxWarn(ctx, "advance read cursor failed: user_id=%s, conversation_id=%s, count=%d, error=%v", e.userId, e.conversationId, e.counter, err)
	}
}
