// Package unread derives the sorted, badge-annotated channel and direct
// message lists from counters and read cursors. It performs no I/O.
package unread

import (
	"sort"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/pkg/constant"
)

// Counters maps conversation id to its counter; missing entries count as zero
type Counters map[string]*entity.ConversationCounter

// Cursors maps conversation id to the user's read cursor; missing entries mean nothing read
type Cursors map[string]*entity.ReadCursor

// ChannelList builds the channel view. The active channel always shows zero
// unread. Order: unread desc, title asc, channel id asc.
func ChannelList(channels []*entity.Channel, counters Counters, cursors Cursors, activeConversationId string) []*entity.ChannelUnread {
	items := make([]*entity.ChannelUnread, 0, len(channels))
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		convId := ch.ConversationId()
		count := entity.CountOf(counters[convId])
		read := entity.ReadCountOf(cursors[convId])
		active := convId == activeConversationId

		item := &entity.ChannelUnread{
			ChannelId:      ch.Id,
			ConversationId: convId,
			Title:          ch.Title,
			MessageCount:   count,
			LastReadCount:  read,
			IsActive:       active,
		}
		if !active {
			item.UnreadCount = entity.Unread(count, read)
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.UnreadCount != b.UnreadCount {
			return a.UnreadCount > b.UnreadCount
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ChannelId < b.ChannelId
	})
	return items
}

// DirectList builds the direct message view over every user except selfId and
// the system user. Order: last message time desc (never messaged last), display
// name asc, user id asc.
func DirectList(selfId string, users []*entity.User, counters Counters, cursors Cursors, activeConversationId string) []*entity.DirectUnread {
	items := make([]*entity.DirectUnread, 0, len(users))
	for _, u := range users {
		if u == nil || u.Id == selfId || u.Id == constant.SystemUserId {
			continue
		}
		convId := entity.GenDirectConversationId(selfId, u.Id)
		counter := counters[convId]
		count := entity.CountOf(counter)
		read := entity.ReadCountOf(cursors[convId])
		active := convId == activeConversationId

		item := &entity.DirectUnread{
			PeerUserId:     u.Id,
			ConversationId: convId,
			Name:           u.DisplayName(),
			Avatar:         u.Avatar,
			MessageCount:   count,
			LastReadCount:  read,
			LastMessageAt:  entity.LastMessageAtOf(counter),
			IsActive:       active,
		}
		if !active {
			item.UnreadCount = entity.Unread(count, read)
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.LastMessageAt != b.LastMessageAt {
			return a.LastMessageAt > b.LastMessageAt
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.PeerUserId < b.PeerUserId
	})
	return items
}

// Totals sums the unread counts of both views
func Totals(channels []*entity.ChannelUnread, directs []*entity.DirectUnread) (channelTotal, directTotal int64) {
	for _, c := range channels {
		channelTotal += c.UnreadCount
	}
	for _, d := range directs {
		directTotal += d.UnreadCount
	}
	return channelTotal, directTotal
}

// Summary bundles both views and their totals
func Summary(channels []*entity.ChannelUnread, directs []*entity.DirectUnread) *entity.UnreadSummary {
	channelTotal, directTotal := Totals(channels, directs)
	return &entity.UnreadSummary{
		Channels:           channels,
		Directs:            directs,
		ChannelUnreadTotal: channelTotal,
		DirectUnreadTotal:  directTotal,
	}
}
