package entity

// ChannelUnread is one row of the channel list view
type ChannelUnread struct {
	ChannelId      string `json:"channel_id"`
	ConversationId string `json:"conversation_id"`
	Title          string `json:"title"`
	MessageCount   int64  `json:"message_count"`
	LastReadCount  int64  `json:"last_read_count"`
	UnreadCount    int64  `json:"unread_count"`
	IsActive       bool   `json:"is_active"`
}

// DirectUnread is one row of the direct-message peer list view
type DirectUnread struct {
	PeerUserId     string `json:"peer_user_id"`
	ConversationId string `json:"conversation_id"`
	Name           string `json:"name"`
	Avatar         string `json:"avatar,omitempty"`
	MessageCount   int64  `json:"message_count"`
	LastReadCount  int64  `json:"last_read_count"`
	LastMessageAt  int64  `json:"last_message_at"`
	UnreadCount    int64  `json:"unread_count"`
	IsActive       bool   `json:"is_active"`
}

// UnreadSummary bundles both list views and their badge totals
type UnreadSummary struct {
	Channels           []*ChannelUnread `json:"channels"`
	Directs            []*DirectUnread  `json:"directs"`
	ChannelUnreadTotal int64            `json:"channel_unread_total"`
	DirectUnreadTotal  int64            `json:"direct_unread_total"`
}
