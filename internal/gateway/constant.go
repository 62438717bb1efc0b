package gateway

import "time"

// WebSocket protocol identifiers
const (
	// Requests
	WSSetActiveConversation = 1001 // Mark a conversation as in view
	WSSendMsg               = 1003 // Send message
	WSPullMsg               = 1005 // Pull messages
	WSGetUnread             = 1007 // Get unread summary
	WSMentionSuggest        = 1008 // Compute mention suggestions

	// Server pushes
	WSPushMsg    = 2001 // New message in one of the user's conversations
	WSPushUnread = 2003 // Unread summary changed
	WSDataError  = 3001 // Data error
)

// Timeout defaults, overridable from config
const (
	// WriteWait is time allowed to write a message to the peer
	WriteWait = 10 * time.Second

	// PongWait is time allowed to read the next pong message from the peer
	PongWait = 30 * time.Second

	// MaxMessageSize is maximum message size allowed from peer
	MaxMessageSize = 51200

	// onlineRefreshPeriod keeps the Redis presence key alive
	onlineRefreshPeriod = 30 * time.Second
	onlineTTL           = 60 * time.Second
)

// Query parameter keys
const (
	QueryToken      = "token"
	QuerySendId     = "send_id"
	QueryPlatformId = "platform_id"
)

// Active conversation kinds
const (
	KindChannel = "channel"
	KindDirect  = "dm"
)
