package entity

// ConversationCounter is the single source of truth for how many messages a
// conversation holds. MessageCount only increases.
type ConversationCounter struct {
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;primaryKey;size:160"`
	Scope          string `json:"scope" gorm:"column:scope;size:16"`
	MessageCount   int64  `json:"message_count" gorm:"column:message_count"`
	LastMessageAt  int64  `json:"last_message_at" gorm:"column:last_message_at"` // advisory, sort only
}

// TableName returns the table name for ConversationCounter
func (ConversationCounter) TableName() string {
	return "conversation_counters"
}

// ReadCursor is a user's snapshot of a conversation counter at last read.
// LastReadCount never decreases for a given (user, conversation).
type ReadCursor struct {
	Id             int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	UserId         string `json:"user_id" gorm:"column:user_id;size:64;uniqueIndex:uk_cursor_user_conv,priority:1"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;size:160;uniqueIndex:uk_cursor_user_conv,priority:2"`
	Scope          string `json:"scope" gorm:"column:scope;size:16"`
	LastReadCount  int64  `json:"last_read_count" gorm:"column:last_read_count"`
	LastReadAt     int64  `json:"last_read_at" gorm:"column:last_read_at"`
}

// TableName returns the table name for ReadCursor
func (ReadCursor) TableName() string {
	return "read_cursors"
}

// Unread returns messageCount - lastReadCount floored at zero
func Unread(messageCount, lastReadCount int64) int64 {
	if messageCount <= lastReadCount {
		return 0
	}
	return messageCount - lastReadCount
}

// CountOf returns the message count of a possibly absent counter
func CountOf(c *ConversationCounter) int64 {
	if c == nil {
		return 0
	}
	return c.MessageCount
}

// LastMessageAtOf returns the last message time of a possibly absent counter
func LastMessageAtOf(c *ConversationCounter) int64 {
	if c == nil {
		return 0
	}
	return c.LastMessageAt
}

// ReadCountOf returns the read count of a possibly absent cursor.
// An absent cursor means nothing has been read.
func ReadCountOf(c *ReadCursor) int64 {
	if c == nil {
		return 0
	}
	return c.LastReadCount
}
