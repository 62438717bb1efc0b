package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/watch"
	"github.com/mbeoliero/huddle/pkg/errcode"
)

type memoryCounters map[string]int64

func (m memoryCounters) GetCounter(_ context.Context, conversationId string) (*entity.ConversationCounter, error) {
	count, ok := m[conversationId]
	if !ok {
		return nil, nil
	}
	return &entity.ConversationCounter{ConversationId: conversationId, MessageCount: count}, nil
}

func (m memoryCounters) GetCounters(ctx context.Context, conversationIds []string) (map[string]*entity.ConversationCounter, error) {
	out := make(map[string]*entity.ConversationCounter, len(conversationIds))
	for _, id := range conversationIds {
		if c, _ := m.GetCounter(ctx, id); c != nil {
			out[id] = c
		}
	}
	return out, nil
}

// memoryCursors merges upserts with GREATEST, like the SQL store
type memoryCursors struct {
	mu      sync.Mutex
	cursors map[string]*entity.ReadCursor
	upserts int
}

func newMemoryCursors() *memoryCursors {
	return &memoryCursors{cursors: make(map[string]*entity.ReadCursor)}
}

func (m *memoryCursors) Upsert(_ context.Context, userId, conversationId string, count, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	key := userId + "|" + conversationId
	c, ok := m.cursors[key]
	if !ok {
		m.cursors[key] = &entity.ReadCursor{UserId: userId, ConversationId: conversationId, LastReadCount: count, LastReadAt: at}
		return nil
	}
	if count > c.LastReadCount {
		c.LastReadCount = count
	}
	c.LastReadAt = at
	return nil
}

func (m *memoryCursors) GetCursor(_ context.Context, userId, conversationId string) (*entity.ReadCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cursors[userId+"|"+conversationId]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memoryCursors) GetUserCursors(_ context.Context, userId string) (map[string]*entity.ReadCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*entity.ReadCursor)
	for _, c := range m.cursors {
		if c.UserId == userId {
			cp := *c
			out[c.ConversationId] = &cp
		}
	}
	return out, nil
}

func newTestConversationService(counters memoryCounters, cursors *memoryCursors, pub Publisher) *ConversationService {
	return &ConversationService{
		counterRepo: counters,
		cursorRepo:  cursors,
		access:      &accessChecker{},
		publisher:   pub,
	}
}

func TestSetCursor_CapsAtCounterAndNeverDecreases(t *testing.T) {
	ctx := context.Background()
	cursors := newMemoryCursors()
	pub := &recordingPublisher{}
	s := newTestConversationService(memoryCounters{"dm_ana:bo": 5}, cursors, pub)

	require.NoError(t, s.SetCursor(ctx, "ana", "dm_ana:bo", 9))
	cursor, err := s.GetCursor(ctx, "ana", "dm_ana:bo")
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.EqualValues(t, 5, cursor.LastReadCount)

	require.NoError(t, s.SetCursor(ctx, "ana", "dm_ana:bo", 3))
	cursor, err = s.GetCursor(ctx, "ana", "dm_ana:bo")
	require.NoError(t, err)
	assert.EqualValues(t, 5, cursor.LastReadCount)

	events := pub.ofKind(watch.KindCursor)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "ana", e.UserId)
		assert.Equal(t, "dm_ana:bo", e.ConversationId)
		assert.EqualValues(t, 5, e.Count)
	}
}

func TestSetCursor_NoCounterStoresZero(t *testing.T) {
	ctx := context.Background()
	cursors := newMemoryCursors()
	s := newTestConversationService(memoryCounters{}, cursors, nil)

	require.NoError(t, s.SetCursor(ctx, "ana", "dm_ana:bo", 4))
	cursor, err := s.GetCursor(ctx, "ana", "dm_ana:bo")
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Zero(t, cursor.LastReadCount)
}

func TestSetCursor_Rejected(t *testing.T) {
	tests := []struct {
		name           string
		userId         string
		conversationId string
		count          int64
		expected       error
	}{
		{name: "negative count", userId: "ana", conversationId: "dm_ana:bo", count: -1, expected: errcode.ErrInvalidParam},
		{name: "missing user", userId: "", conversationId: "dm_ana:bo", count: 1, expected: errcode.ErrInvalidParam},
		{name: "missing conversation", userId: "ana", conversationId: "", count: 1, expected: errcode.ErrInvalidParam},
		{name: "not a participant", userId: "ana", conversationId: "dm_bo:cy", count: 1, expected: errcode.ErrNoPermission},
		{name: "unknown conversation", userId: "ana", conversationId: "nope", count: 1, expected: errcode.ErrConvNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursors := newMemoryCursors()
			s := newTestConversationService(memoryCounters{"dm_ana:bo": 5, "dm_bo:cy": 5}, cursors, nil)

			err := s.SetCursor(context.Background(), tt.userId, tt.conversationId, tt.count)
			assert.ErrorIs(t, err, tt.expected)
			assert.Zero(t, cursors.upserts)
		})
	}
}
