package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/watch"
	"github.com/mbeoliero/huddle/pkg/errcode"
)

type memoryReadState struct {
	mu       sync.Mutex
	counters map[string]int64
	cursors  map[string]int64
	writes   int
}

func newMemoryReadState() *memoryReadState {
	return &memoryReadState{counters: map[string]int64{}, cursors: map[string]int64{}}
}

func (m *memoryReadState) GetCounter(_ context.Context, conversationId string) (*entity.ConversationCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &entity.ConversationCounter{ConversationId: conversationId, MessageCount: m.counters[conversationId]}, nil
}

func (m *memoryReadState) GetCursor(_ context.Context, userId, conversationId string) (*entity.ReadCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &entity.ReadCursor{UserId: userId, ConversationId: conversationId, LastReadCount: m.cursors[conversationId]}, nil
}

func (m *memoryReadState) SetCursor(_ context.Context, _, conversationId string, count int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[conversationId] = count
	m.writes++
	return nil
}

func (m *memoryReadState) Cursor(conversationId string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[conversationId]
}

func (m *memoryReadState) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func newTestSession(t *testing.T, state ReadState) (*Session, *watch.Hub) {
	t.Helper()
	hub := watch.NewHub(watch.NewLocalTransport(), 16)
	t.Cleanup(func() { _ = hub.Close() })
	return NewSession("ana", hub, state, nil), hub
}

func TestSession_SetActiveMarksRead(t *testing.T) {
	ctx := context.Background()
	state := newMemoryReadState()
	state.counters["ch_general"] = 7
	state.cursors["ch_general"] = 3
	state.counters["dm_ana:bo"] = 2
	state.cursors["dm_ana:bo"] = 2

	s, _ := newTestSession(t, state)
	defer s.Close()

	require.NoError(t, s.SetActive(ctx, KindChannel, "ch_general"))
	require.NoError(t, s.SetActive(ctx, KindDirect, "dm_ana:bo"))

	assert.Equal(t, int64(7), state.Cursor("ch_general"))
	// already caught up, nothing written
	assert.Equal(t, 1, state.Writes())

	channelId, directId := s.Active()
	assert.Equal(t, "ch_general", channelId)
	assert.Equal(t, "dm_ana:bo", directId)

	require.NoError(t, s.SetActive(ctx, KindChannel, ""))
	channelId, directId = s.Active()
	assert.Equal(t, "", channelId)
	assert.Equal(t, "dm_ana:bo", directId)
}

func TestSession_SetActiveRejectsMismatchedKind(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, newMemoryReadState())
	defer s.Close()

	assert.ErrorIs(t, s.SetActive(ctx, KindChannel, "dm_ana:bo"), errcode.ErrInvalidParam)
	assert.ErrorIs(t, s.SetActive(ctx, KindDirect, "ch_general"), errcode.ErrInvalidParam)
	assert.ErrorIs(t, s.SetActive(ctx, "group", "ch_general"), errcode.ErrInvalidParam)
}

func TestSession_FeedsDeliverEvents(t *testing.T) {
	ctx := context.Background()
	s, hub := newTestSession(t, newMemoryReadState())
	defer s.Close()

	events := make(chan watch.Event, 4)
	require.NoError(t, s.Start(ctx, func(_ context.Context, e watch.Event) { events <- e }))

	require.NoError(t, hub.Publish(ctx, watch.Event{Kind: watch.KindInbox, UserId: "ana", ConversationId: "ch_general", Count: 1, MessageId: "42"}))
	require.NoError(t, hub.Publish(ctx, watch.Event{Kind: watch.KindInbox, UserId: "bo", ConversationId: "ch_general", Count: 1}))

	select {
	case e := <-events:
		assert.Equal(t, "42", e.MessageId)
	case <-time.After(time.Second):
		t.Fatal("inbox event not delivered")
	}
	select {
	case e := <-events:
		t.Fatalf("unexpected event for another user: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSession_CloseReleasesSubscriptions(t *testing.T) {
	ctx := context.Background()
	s, hub := newTestSession(t, newMemoryReadState())

	require.NoError(t, s.Start(ctx, func(context.Context, watch.Event) {}))
	require.NoError(t, s.SetActive(ctx, KindChannel, "ch_general"))
	require.NoError(t, s.SetActive(ctx, KindDirect, "dm_ana:bo"))

	assert.Equal(t, 1, hub.Refs(watch.InboxTopic("ana")))
	assert.Equal(t, 3, hub.Refs(watch.CursorTopic("ana")))
	assert.Equal(t, 1, hub.Refs(watch.CounterTopic("ch_general")))

	s.Close()
	s.Close()

	assert.Equal(t, 0, hub.Refs(watch.InboxTopic("ana")))
	assert.Equal(t, 0, hub.Refs(watch.CursorTopic("ana")))
	assert.Equal(t, 0, hub.Refs(watch.CounterTopic("ch_general")))
	assert.Equal(t, 0, hub.Refs(watch.CounterTopic("dm_ana:bo")))

	assert.NoError(t, s.Start(ctx, func(context.Context, watch.Event) {}))
	assert.Equal(t, 0, hub.Refs(watch.InboxTopic("ana")))
}
