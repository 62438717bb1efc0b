package entity

import "github.com/mbeoliero/huddle/pkg/constant"

// Message represents a persisted message. Every persisted message advances its
// conversation's counter exactly once.
type Message struct {
	Id             int64   `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId string  `json:"conversation_id" gorm:"column:conversation_id;size:160;uniqueIndex:uk_conv_seq,priority:1"`
	Seq            int64   `json:"seq" gorm:"column:seq;uniqueIndex:uk_conv_seq,priority:2"`
	ClientMsgId    string  `json:"client_msg_id" gorm:"column:client_msg_id;size:64;uniqueIndex:uk_sender_client_msg,priority:2"`
	SenderId       string  `json:"sender_id" gorm:"column:sender_id;size:64;uniqueIndex:uk_sender_client_msg,priority:1"`
	RecvId         string  `json:"recv_id" gorm:"column:recv_id"`
	ChannelId      string  `json:"channel_id" gorm:"column:channel_id"`
	ThreadId       int64   `json:"thread_id" gorm:"column:thread_id;index:idx_thread"`
	SessionType    int32   `json:"session_type" gorm:"column:session_type"`
	MsgType        int32   `json:"msg_type" gorm:"column:msg_type"`
	ContentText    string  `json:"content_text" gorm:"column:content_text"`
	Extra          *string `json:"extra" gorm:"column:extra;type:json"`
	SendAt         int64   `json:"send_at" gorm:"column:send_at"`
	CreatedAt      int64   `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      int64   `json:"updated_at" gorm:"column:updated_at"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// IsSystem reports whether the message was authored by the system user
func (m *Message) IsSystem() bool {
	return m.SenderId == constant.SystemUserId
}

// IsThreadReply reports whether the message replies inside a thread
func (m *Message) IsThreadReply() bool {
	return m.ThreadId > 0
}

// MessageSegment is a rendered piece of message text: plain text, or a mention
// span resolved (or not) against the current roster.
type MessageSegment struct {
	Text      string `json:"text"`
	IsMention bool   `json:"is_mention,omitempty"`
	EntityId  string `json:"entity_id,omitempty"`
}

// MessageInfo represents message info for API response
type MessageInfo struct {
	Id             int64            `json:"id"`
	ConversationId string           `json:"conversation_id"`
	Seq            int64            `json:"seq"`
	ClientMsgId    string           `json:"client_msg_id"`
	SenderId       string           `json:"sender_id"`
	ChannelId      string           `json:"channel_id,omitempty"`
	ThreadId       int64            `json:"thread_id,omitempty"`
	SessionType    int32            `json:"session_type"`
	MsgType        int32            `json:"msg_type"`
	Text           string           `json:"text"`
	Segments       []MessageSegment `json:"segments,omitempty"`
	SendAt         int64            `json:"send_at"`
}

// ToMessageInfo converts Message to MessageInfo
func (m *Message) ToMessageInfo() *MessageInfo {
	return &MessageInfo{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		Seq:            m.Seq,
		ClientMsgId:    m.ClientMsgId,
		SenderId:       m.SenderId,
		ChannelId:      m.ChannelId,
		ThreadId:       m.ThreadId,
		SessionType:    m.SessionType,
		MsgType:        m.MsgType,
		Text:           m.ContentText,
		SendAt:         m.SendAt,
	}
}
