package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenDirectConversationId_OrderIndependent(t *testing.T) {
	a := GenDirectConversationId("u_bob", "u_ana")
	b := GenDirectConversationId("u_ana", "u_bob")

	assert.Equal(t, a, b)
	assert.Equal(t, "dm_u_ana:u_bob", a)
	assert.True(t, IsDirectConversation(a))
	assert.False(t, IsChannelConversation(a))
}

func TestDirectPeer(t *testing.T) {
	convId := GenDirectConversationId("u_1", "u_2")

	peer, ok := DirectPeer(convId, "u_1")
	assert.True(t, ok)
	assert.Equal(t, "u_2", peer)

	peer, ok = DirectPeer(convId, "u_2")
	assert.True(t, ok)
	assert.Equal(t, "u_1", peer)

	_, ok = DirectPeer(convId, "u_3")
	assert.False(t, ok)

	_, ok = DirectPeer(GenChannelConversationId("general"), "u_1")
	assert.False(t, ok)
}

func TestChannelIdOf(t *testing.T) {
	id, ok := ChannelIdOf(GenChannelConversationId("42"))
	assert.True(t, ok)
	assert.Equal(t, "42", id)

	_, ok = ChannelIdOf("dm_a:b")
	assert.False(t, ok)
	_, ok = ChannelIdOf("ch_")
	assert.False(t, ok)
}

func TestScopeOf(t *testing.T) {
	assert.Equal(t, "dm", ScopeOf("dm_a:b"))
	assert.Equal(t, "channel", ScopeOf("ch_1"))
}

func TestUnread(t *testing.T) {
	tests := []struct {
		count, read, want int64
	}{
		{5, 2, 3},
		{5, 5, 0},
		{2, 5, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Unread(tt.count, tt.read), "Unread(%d, %d)", tt.count, tt.read)
		assert.GreaterOrEqual(t, Unread(tt.count, tt.read), int64(0))
	}
}

func TestNilSafeAccessors(t *testing.T) {
	assert.Equal(t, int64(0), CountOf(nil))
	assert.Equal(t, int64(0), LastMessageAtOf(nil))
	assert.Equal(t, int64(0), ReadCountOf(nil))
	assert.Equal(t, int64(7), CountOf(&ConversationCounter{MessageCount: 7}))
	assert.Equal(t, int64(3), ReadCountOf(&ReadCursor{LastReadCount: 3}))
}
