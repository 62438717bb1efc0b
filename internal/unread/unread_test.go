package unread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/pkg/constant"
)

func channel(id, title string) *entity.Channel {
	return &entity.Channel{Id: id, Title: title}
}

func counter(convId string, count, at int64) *entity.ConversationCounter {
	return &entity.ConversationCounter{ConversationId: convId, MessageCount: count, LastMessageAt: at}
}

func cursor(convId string, read int64) *entity.ReadCursor {
	return &entity.ReadCursor{ConversationId: convId, LastReadCount: read}
}

func channelIds(items []*entity.ChannelUnread) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ChannelId)
	}
	return ids
}

func peerIds(items []*entity.DirectUnread) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.PeerUserId)
	}
	return ids
}

func TestChannelList_UnreadFromCounterAndCursor(t *testing.T) {
	general := channel("1", "general")
	convId := general.ConversationId()

	items := ChannelList([]*entity.Channel{general},
		Counters{convId: counter(convId, 5, 0)},
		Cursors{convId: cursor(convId, 2)},
		"")

	require.Len(t, items, 1)
	assert.Equal(t, int64(3), items[0].UnreadCount)
	assert.Equal(t, int64(5), items[0].MessageCount)
	assert.Equal(t, int64(2), items[0].LastReadCount)
	assert.False(t, items[0].IsActive)
}

func TestChannelList_ActiveIsZero(t *testing.T) {
	general := channel("1", "general")
	convId := general.ConversationId()

	items := ChannelList([]*entity.Channel{general},
		Counters{convId: counter(convId, 5, 0)},
		nil,
		convId)

	require.Len(t, items, 1)
	assert.Equal(t, int64(0), items[0].UnreadCount)
	assert.True(t, items[0].IsActive)
}

func TestChannelList_MissingDataAndFloor(t *testing.T) {
	a := channel("a", "alpha")
	b := channel("b", "beta")

	items := ChannelList([]*entity.Channel{a, b},
		Counters{b.ConversationId(): counter(b.ConversationId(), 1, 0)},
		Cursors{b.ConversationId(): cursor(b.ConversationId(), 9)},
		"")

	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, int64(0), it.UnreadCount)
	}
	assert.Equal(t, []string{"a", "b"}, channelIds(items))
}

func TestChannelList_Sorting(t *testing.T) {
	channels := []*entity.Channel{
		channel("1", "zeta"),
		channel("2", "alpha"),
		channel("3", "beta"),
		channel("4", "alpha"),
		channel("5", "Gamma"),
	}
	counters := Counters{}
	for _, ch := range channels {
		counters[ch.ConversationId()] = counter(ch.ConversationId(), 4, 0)
	}
	cursors := Cursors{
		"ch_1": cursor("ch_1", 0),
		"ch_2": cursor("ch_2", 3),
		"ch_3": cursor("ch_3", 3),
		"ch_4": cursor("ch_4", 3),
		"ch_5": cursor("ch_5", 4),
	}

	items := ChannelList(channels, counters, cursors, "")

	// zeta has 4 unread; alpha(2), alpha(4), beta have 1; Gamma has 0
	assert.Equal(t, []string{"1", "2", "4", "3", "5"}, channelIds(items))
}

func TestDirectList_ExcludesSelfAndSystem(t *testing.T) {
	users := []*entity.User{
		{Id: "me", Nickname: "Me"},
		{Id: constant.SystemUserId, Nickname: "System"},
		{Id: "u1", Nickname: "Ana"},
	}

	items := DirectList("me", users, nil, nil, "")

	assert.Equal(t, []string{"u1"}, peerIds(items))
	assert.Equal(t, entity.GenDirectConversationId("me", "u1"), items[0].ConversationId)
	assert.Equal(t, int64(0), items[0].UnreadCount)
}

func TestDirectList_SortingAndActive(t *testing.T) {
	users := []*entity.User{
		{Id: "u1", Nickname: "Carla"},
		{Id: "u2", Nickname: "Bea"},
		{Id: "u3", Nickname: "Abe"},
		{Id: "u4"},
		{Id: "u5", Nickname: "Abe"},
	}
	dm := func(peer string) string { return entity.GenDirectConversationId("me", peer) }
	counters := Counters{
		dm("u1"): counter(dm("u1"), 3, 100),
		dm("u2"): counter(dm("u2"), 7, 300),
	}
	cursors := Cursors{
		dm("u1"): cursor(dm("u1"), 1),
	}

	items := DirectList("me", users, counters, cursors, dm("u2"))

	assert.Equal(t, []string{"u2", "u1", "u3", "u5", "u4"}, peerIds(items))
	assert.True(t, items[0].IsActive)
	assert.Equal(t, int64(0), items[0].UnreadCount)
	assert.Equal(t, int64(2), items[1].UnreadCount)
	assert.Equal(t, "u4", items[4].Name)
}

func TestSummary_Totals(t *testing.T) {
	channels := []*entity.ChannelUnread{{UnreadCount: 3}, {UnreadCount: 0}, {UnreadCount: 2}}
	directs := []*entity.DirectUnread{{UnreadCount: 1}, {UnreadCount: 4}}

	summary := Summary(channels, directs)

	assert.Equal(t, int64(5), summary.ChannelUnreadTotal)
	assert.Equal(t, int64(5), summary.DirectUnreadTotal)
	assert.Len(t, summary.Channels, 3)
	assert.Len(t, summary.Directs, 2)
}

func TestSummary_Empty(t *testing.T) {
	summary := Summary(ChannelList(nil, nil, nil, ""), DirectList("me", nil, nil, nil, ""))

	assert.Empty(t, summary.Channels)
	assert.Empty(t, summary.Directs)
	assert.Zero(t, summary.ChannelUnreadTotal)
	assert.Zero(t, summary.DirectUnreadTotal)
}
