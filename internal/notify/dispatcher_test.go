package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/huddle/internal/mention"
)

type mockSender struct {
	mock.Mock
	mu sync.Mutex
}

func (m *mockSender) SendSystemDirect(ctx context.Context, mentionerId, recipientId, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(ctx, mentionerId, recipientId, text)
	return args.Error(0)
}

var roster = []mention.Entity{
	{Id: "u1", Name: "Ana"},
	{Id: "u2", Name: "Bob"},
	{Id: "u3", Name: "Cleo"},
}

func notice(text string) Notice {
	return Notice{
		SenderId:   "u1",
		SenderName: "Ana",
		Text:       text,
		Scope:      ScopeChannel,
		ScopeTitle: "general",
		Roster:     roster,
		SentAt:     time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC),
	}
}

func TestRecipients_ExcludesSender(t *testing.T) {
	assert.Equal(t, []mention.Entity{roster[1]}, Recipients(notice("@Ana @Bob @Ana")))
	assert.Empty(t, Recipients(notice("note to self @Ana")))
	assert.Empty(t, Recipients(notice("no mentions")))
}

func TestDispatch_OnePerDistinctRecipient(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendSystemDirect", mock.Anything, "u1", "u2", mock.AnythingOfType("string")).Return(nil).Once()
	sender.On("SendSystemDirect", mock.Anything, "u1", "u3", mock.AnythingOfType("string")).Return(nil).Once()

	d := NewDispatcher(sender, Options{})
	result := d.Dispatch(context.Background(), notice("@Bob @Cleo and me @Ana, again @bob"))

	assert.Equal(t, []string{"u2", "u3"}, result.Delivered)
	assert.Empty(t, result.Failed)
	sender.AssertExpectations(t)
	sender.AssertNumberOfCalls(t, "SendSystemDirect", 2)
}

func TestDispatch_SelfMentionOnly(t *testing.T) {
	sender := &mockSender{}

	result := NewDispatcher(sender, Options{}).Dispatch(context.Background(), notice("@Ana"))

	assert.Equal(t, Result{}, result)
	sender.AssertNotCalled(t, "SendSystemDirect", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_PartialFailure(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendSystemDirect", mock.Anything, "u1", "u2", mock.Anything).Return(errors.New("store unavailable"))
	sender.On("SendSystemDirect", mock.Anything, "u1", "u3", mock.Anything).Return(nil)

	result := NewDispatcher(sender, Options{Workers: 1}).Dispatch(context.Background(), notice("@Bob @Cleo"))

	assert.Equal(t, []string{"u3"}, result.Delivered)
	assert.Equal(t, []string{"u2"}, result.Failed)
	sender.AssertExpectations(t)
}

func TestCompose(t *testing.T) {
	d := NewDispatcher(nil, Options{TimeLayout: "2006-01-02 15:04"})

	n := notice("hey @Bob,\n  lunch?")
	assert.Equal(t, "Ana mentioned you in #general at 2026-03-14 09:26:\n\"hey @Bob, lunch?\"", d.Compose(n))

	n.Scope = ScopeThread
	assert.Equal(t, "Ana mentioned you in a thread in #general at 2026-03-14 09:26:\n\"hey @Bob, lunch?\"", d.Compose(n))
}

func TestCompose_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	d := NewDispatcher(nil, Options{Location: loc, TimeLayout: "15:04"})

	assert.Contains(t, d.Compose(notice("@Bob")), " at 11:26:")
}

func TestSnippet_Truncates(t *testing.T) {
	d := NewDispatcher(nil, Options{})

	short := strings.Repeat("a", 80)
	assert.Equal(t, short, d.Snippet(short))

	long := strings.Repeat("b", 120)
	got := d.Snippet(long)
	require.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, strings.Repeat("b", 79)+"…", got)

	d = NewDispatcher(nil, Options{SnippetMaxLen: 10})
	assert.Equal(t, "hello wor…", d.Snippet("hello world, how are you"))
}
