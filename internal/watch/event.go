// Package watch is the change feed behind live unread state: counter bumps,
// cursor moves and inbox arrivals are published on topics, and sessions
// subscribe to the few topics they currently care about.
package watch

// Kind identifies what changed
type Kind string

const (
	KindCounter Kind = "counter" // a conversation counter advanced
	KindCursor  Kind = "cursor"  // a user's read cursor advanced
	KindInbox   Kind = "inbox"   // a conversation the user belongs to got a message
)

// Event is one change notification. Count carries the counter value for
// KindCounter and KindInbox and the cursor value for KindCursor.
type Event struct {
	Kind           Kind   `json:"kind"`
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id,omitempty"`
	Count          int64  `json:"count"`
	At             int64  `json:"at"`
	MessageId      string `json:"message_id,omitempty"`
}

// CounterTopic is the topic for counter changes of one conversation
func CounterTopic(conversationId string) string {
	return string(KindCounter) + ":" + conversationId
}

// CursorTopic is the topic for every cursor change of one user
func CursorTopic(userId string) string {
	return string(KindCursor) + ":" + userId
}

// InboxTopic is the topic for new messages in any conversation of one user
func InboxTopic(userId string) string {
	return string(KindInbox) + ":" + userId
}

// Topic returns the topic e is published on
func (e Event) Topic() string {
	switch e.Kind {
	case KindCounter:
		return CounterTopic(e.ConversationId)
	case KindCursor:
		return CursorTopic(e.UserId)
	case KindInbox:
		return InboxTopic(e.UserId)
	default:
		return ""
	}
}
