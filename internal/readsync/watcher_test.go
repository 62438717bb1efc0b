package readsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/watch"
	"github.com/mbeoliero/huddle/pkg/constant"
)

type fakeSource struct {
	mu       sync.Mutex
	counters map[string]int64
	cursors  map[string]int64
	err      error
}

func (f *fakeSource) GetCounter(_ context.Context, conversationId string) (*entity.ConversationCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	count, ok := f.counters[conversationId]
	if !ok {
		return nil, nil
	}
	return &entity.ConversationCounter{ConversationId: conversationId, MessageCount: count}, nil
}

func (f *fakeSource) GetCursor(_ context.Context, userId, conversationId string) (*entity.ReadCursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	count, ok := f.cursors[conversationId]
	if !ok {
		return nil, nil
	}
	return &entity.ReadCursor{UserId: userId, ConversationId: conversationId, LastReadCount: count}, nil
}

// echoWriter persists like the cursor service does: record then publish
type echoWriter struct {
	fakeWriter
	hub *watch.Hub
}

func (e *echoWriter) SetCursor(ctx context.Context, userId, conversationId string, count int64) error {
	if err := e.fakeWriter.SetCursor(ctx, userId, conversationId, count); err != nil {
		return err
	}
	return e.hub.Publish(ctx, watch.Event{Kind: watch.KindCursor, UserId: userId, ConversationId: conversationId, Count: count})
}

func newTestWatcher(t *testing.T, source Source) (*Watcher, *echoWriter, *watch.Hub) {
	t.Helper()
	hub := watch.NewHub(watch.NewLocalTransport(), 16)
	t.Cleanup(func() { _ = hub.Close() })

	writer := &echoWriter{hub: hub}
	s := NewSynchronizer("u1", constant.ScopeChannel, writer)
	return NewWatcher("u1", s, hub, source, nil), writer, hub
}

func TestWatcher_ActivateSeedsAndCatchesUp(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{
		counters: map[string]int64{"ch_1": 5},
		cursors:  map[string]int64{"ch_1": 2},
	}
	w, writer, _ := newTestWatcher(t, source)
	defer w.Close()

	w.Activate(ctx, "ch_1")

	assert.Equal(t, "ch_1", w.ActiveConversation())
	assert.Equal(t, []cursorWrite{{UserId: "u1", ConversationId: "ch_1", Count: 5}}, writer.Writes())
}

func TestWatcher_FollowsCounterFeed(t *testing.T) {
	ctx := context.Background()
	w, writer, hub := newTestWatcher(t, &fakeSource{})
	defer w.Close()

	w.Activate(ctx, "ch_1")
	require.Empty(t, writer.Writes())

	require.NoError(t, hub.Publish(ctx, watch.Event{Kind: watch.KindCounter, ConversationId: "ch_1", Count: 3}))
	assert.Eventually(t, func() bool { return len(writer.Writes()) == 1 }, time.Second, 5*time.Millisecond)

	// counters of other conversations are not watched
	require.NoError(t, hub.Publish(ctx, watch.Event{Kind: watch.KindCounter, ConversationId: "ch_2", Count: 9}))

	require.NoError(t, hub.Publish(ctx, watch.Event{Kind: watch.KindCounter, ConversationId: "ch_1", Count: 4}))
	assert.Eventually(t, func() bool { return len(writer.Writes()) == 2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []cursorWrite{
		{UserId: "u1", ConversationId: "ch_1", Count: 3},
		{UserId: "u1", ConversationId: "ch_1", Count: 4},
	}, writer.Writes())
	assert.Eventually(t, func() bool {
		return w.syncer.Snapshot() == Snapshot{ConversationId: "ch_1", Counter: 4, Cursor: 4}
	}, time.Second, 5*time.Millisecond)
}

func TestWatcher_SubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	w, _, hub := newTestWatcher(t, &fakeSource{})

	w.Activate(ctx, "ch_1")
	assert.Equal(t, 1, hub.Refs(watch.CounterTopic("ch_1")))
	assert.Equal(t, 1, hub.Refs(watch.CursorTopic("u1")))

	w.Activate(ctx, "ch_2")
	assert.Equal(t, 0, hub.Refs(watch.CounterTopic("ch_1")))
	assert.Equal(t, 1, hub.Refs(watch.CounterTopic("ch_2")))
	assert.Equal(t, 1, hub.Refs(watch.CursorTopic("u1")))

	w.Activate(ctx, "")
	assert.Equal(t, 0, hub.Refs(watch.CounterTopic("ch_2")))
	assert.Equal(t, 0, hub.Refs(watch.CursorTopic("u1")))
	assert.Equal(t, "", w.ActiveConversation())

	w.Activate(ctx, "ch_3")
	w.Close()
	assert.Equal(t, 0, hub.Refs(watch.CounterTopic("ch_3")))
	assert.Equal(t, 0, hub.Refs(watch.CursorTopic("u1")))

	// closed watchers stay idle
	w.Activate(ctx, "ch_4")
	assert.Equal(t, 0, hub.Refs(watch.CounterTopic("ch_4")))
}

func TestWatcher_SourceErrorsDegradeToZero(t *testing.T) {
	ctx := context.Background()
	w, writer, hub := newTestWatcher(t, &fakeSource{err: errors.New("store unavailable")})
	defer w.Close()

	w.Activate(ctx, "ch_1")
	assert.Empty(t, writer.Writes())
	assert.Equal(t, Snapshot{ConversationId: "ch_1"}, w.syncer.Snapshot())

	require.NoError(t, hub.Publish(ctx, watch.Event{Kind: watch.KindCounter, ConversationId: "ch_1", Count: 1}))
	assert.Eventually(t, func() bool { return len(writer.Writes()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestWatcher_IgnoresOtherUsersCursors(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{counters: map[string]int64{"ch_1": 2}, cursors: map[string]int64{"ch_1": 2}}
	w, writer, hub := newTestWatcher(t, source)
	defer w.Close()

	w.Activate(ctx, "ch_1")
	require.NoError(t, hub.Publish(ctx, watch.Event{Kind: watch.KindCursor, UserId: "u2", ConversationId: "ch_1", Count: 9}))
	require.NoError(t, hub.Publish(ctx, watch.Event{Kind: watch.KindCounter, ConversationId: "ch_1", Count: 3}))

	assert.Eventually(t, func() bool { return len(writer.Writes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(3), writer.Writes()[0].Count)
}
