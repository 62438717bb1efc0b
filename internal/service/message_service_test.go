package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/huddle/internal/config"
	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/mention"
	"github.com/mbeoliero/huddle/internal/notify"
	"github.com/mbeoliero/huddle/internal/repository"
	"github.com/mbeoliero/huddle/internal/watch"
	"github.com/mbeoliero/huddle/pkg/constant"
	"github.com/mbeoliero/huddle/pkg/errcode"
	"github.com/mbeoliero/huddle/pkg/idgen"
)

// memoryStore keeps messages and counters in memory, advancing the counter
// with each append the way the transactional store does
type memoryStore struct {
	mu        sync.Mutex
	counters  map[string]int64
	messages  []*entity.Message
	appendErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{counters: make(map[string]int64)}
}

func (m *memoryStore) GetByClientMsgId(_ context.Context, senderId, clientMsgId string) (*entity.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.SenderId == senderId && msg.ClientMsgId == clientMsgId {
			return msg, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) Append(_ context.Context, msg *entity.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.counters[msg.ConversationId]++
	msg.Seq = m.counters[msg.ConversationId]
	msg.Id = int64(len(m.messages) + 1)
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memoryStore) counter(conversationId string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[conversationId]
}

func (m *memoryStore) all() []*entity.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.Message(nil), m.messages...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []watch.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e watch.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofKind(kind watch.Kind) []watch.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []watch.Event
	for _, e := range p.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func newTestMessageService(store messageStore, pub Publisher) *MessageService {
	return &MessageService{
		store:     store,
		publisher: pub,
		systemIds: idgen.NewUUIDGenerator(),
	}
}

func TestMentionNotification_IncrementsRecipientDirectCounter(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	pub := &recordingPublisher{}
	s := newTestMessageService(store, pub)
	d := newMentionDispatcher(s, config.MentionConfig{})

	roster := []mention.Entity{{Id: "ana", Name: "Ana"}, {Id: "bo", Name: "Bo"}, {Id: "cy", Name: "Cy"}}
	result := d.Dispatch(ctx, notify.Notice{
		SenderId:   "ana",
		SenderName: "Ana",
		Text:       "@Bo @Cy and @Ana, also @Bo again",
		Scope:      notify.ScopeChannel,
		ScopeTitle: "general",
		Roster:     roster,
		SentAt:     time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	})

	assert.Equal(t, []string{"bo", "cy"}, result.Delivered)
	assert.Empty(t, result.Failed)

	assert.EqualValues(t, 1, store.counter("dm_ana:bo"))
	assert.EqualValues(t, 1, store.counter("dm_ana:cy"))
	assert.Zero(t, store.counter("dm_ana:ana"))

	messages := store.all()
	require.Len(t, messages, 2)
	clientIds := make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		assert.Equal(t, constant.SystemUserId, msg.SenderId)
		assert.EqualValues(t, constant.MsgTypeSystem, msg.MsgType)
		assert.EqualValues(t, constant.SessionTypeDirect, msg.SessionType)
		assert.EqualValues(t, 1, msg.Seq)
		assert.Contains(t, msg.ContentText, "Ana mentioned you in #general")
		assert.NotEmpty(t, msg.ClientMsgId)
		clientIds[msg.ClientMsgId] = struct{}{}
	}
	assert.Len(t, clientIds, 2)

	var counterConvs []string
	for _, e := range pub.ofKind(watch.KindCounter) {
		assert.EqualValues(t, 1, e.Count)
		counterConvs = append(counterConvs, e.ConversationId)
	}
	sort.Strings(counterConvs)
	assert.Equal(t, []string{"dm_ana:bo", "dm_ana:cy"}, counterConvs)
}

func TestMentionNotification_RepeatedNoticeIncrementsAgain(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	s := newTestMessageService(store, nil)
	d := newMentionDispatcher(s, config.MentionConfig{})

	notice := notify.Notice{
		SenderId: "ana",
		Text:     "ping @Bo",
		Scope:    notify.ScopeChannel,
		Roster:   []mention.Entity{{Id: "ana", Name: "Ana"}, {Id: "bo", Name: "Bo"}},
	}
	d.Dispatch(ctx, notice)
	d.Dispatch(ctx, notice)

	assert.EqualValues(t, 2, store.counter("dm_ana:bo"))
}

func TestSendSystemDirect_Validation(t *testing.T) {
	s := newTestMessageService(newMemoryStore(), nil)

	assert.ErrorIs(t, s.SendSystemDirect(context.Background(), "", "bo", "hi"), errcode.ErrInvalidParam)
	assert.ErrorIs(t, s.SendSystemDirect(context.Background(), "ana", "", "hi"), errcode.ErrInvalidParam)
}

func TestPersist_AppendErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{
			name:     "counter increment failed",
			err:      fmt.Errorf("%w: %v", repository.ErrCounterIncrement, errors.New("lock wait timeout")),
			expected: errcode.ErrSeqAllocFailed,
		},
		{
			name:     "insert failed",
			err:      errors.New("duplicate entry"),
			expected: errcode.ErrSendFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			store.appendErr = tt.err
			s := newTestMessageService(store, nil)

			_, created, err := s.persist(context.Background(), &entity.Message{
				ConversationId: "dm_ana:bo",
				ClientMsgId:    "c1",
				SenderId:       "ana",
			})
			assert.False(t, created)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestPersist_RetriedClientMessageKeepsCounter(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	s := newTestMessageService(store, nil)

	first, created, err := s.persist(ctx, &entity.Message{ConversationId: "dm_ana:bo", ClientMsgId: "c1", SenderId: "ana"})
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := s.persist(ctx, &entity.Message{ConversationId: "dm_ana:bo", ClientMsgId: "c1", SenderId: "ana"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, first, again)
	assert.EqualValues(t, 1, store.counter("dm_ana:bo"))
}
