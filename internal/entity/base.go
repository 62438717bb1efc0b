package entity

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mbeoliero/huddle/pkg/constant"
)

// NowUnixMilli returns current unix timestamp in milliseconds
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// GenDirectConversationId generates the conversation Id for a direct-message pair.
// Format: dm_{min(userA,userB)}:{max(userA,userB)}
// The pair is sorted so both participants derive the same Id, and ":" separates
// the userIds so Ids containing "_" stay unambiguous.
func GenDirectConversationId(userA, userB string) string {
	users := []string{userA, userB}
	sort.Strings(users)
	return fmt.Sprintf("%s%s:%s", constant.DirectConversationPrefix, users[0], users[1])
}

// GenChannelConversationId generates the conversation Id for a channel
// Format: ch_{channelId}
func GenChannelConversationId(channelId string) string {
	return constant.ChannelConversationPrefix + channelId
}

// IsDirectConversation checks if conversation Id is a direct-message pair
func IsDirectConversation(conversationId string) bool {
	return len(conversationId) > 3 && conversationId[:3] == constant.DirectConversationPrefix
}

// IsChannelConversation checks if conversation Id is a channel
func IsChannelConversation(conversationId string) bool {
	return len(conversationId) > 3 && conversationId[:3] == constant.ChannelConversationPrefix
}

// ChannelIdOf returns the channel Id encoded in a channel conversation Id
func ChannelIdOf(conversationId string) (string, bool) {
	if !IsChannelConversation(conversationId) {
		return "", false
	}
	return conversationId[3:], true
}

// DirectParticipants splits a direct conversation Id into its two userIds
func DirectParticipants(conversationId string) (string, string, bool) {
	if !IsDirectConversation(conversationId) {
		return "", "", false
	}
	userA, userB, ok := strings.Cut(conversationId[3:], ":")
	if !ok || userA == "" || userB == "" {
		return "", "", false
	}
	return userA, userB, true
}

// DirectPeer returns the other participant of a direct conversation
func DirectPeer(conversationId, self string) (string, bool) {
	userA, userB, ok := DirectParticipants(conversationId)
	if !ok {
		return "", false
	}
	switch self {
	case userA:
		return userB, true
	case userB:
		return userA, true
	default:
		return "", false
	}
}

// ScopeOf returns the counter/cursor scope of a conversation Id
func ScopeOf(conversationId string) string {
	if IsDirectConversation(conversationId) {
		return constant.ScopeDirect
	}
	return constant.ScopeChannel
}
