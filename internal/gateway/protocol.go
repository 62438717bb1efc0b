package gateway

import (
	"encoding/json"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/service"
)

// WSRequest represents a WebSocket request message
type WSRequest struct {
	ReqIdentifier int32           `json:"req_identifier"` // Request type
	MsgIncr       string          `json:"msg_incr"`       // Client message counter/trace Id
	OperationId   string          `json:"operation_id"`   // Operation Id
	SendId        string          `json:"send_id"`        // Sender user Id
	Data          json.RawMessage `json:"data"`           // Business data
}

// WSResponse represents a WebSocket response or push
type WSResponse struct {
	ReqIdentifier int32           `json:"req_identifier"` // Request type (echo back)
	MsgIncr       string          `json:"msg_incr"`       // Message counter (echo back)
	OperationId   string          `json:"operation_id"`   // Operation Id (echo back)
	ErrCode       int             `json:"err_code"`       // Error code, 0 = success
	ErrMsg        string          `json:"err_msg"`        // Error message
	Data          json.RawMessage `json:"data,omitempty"` // Response data
}

// SetActiveReq marks a conversation of Kind as in view; an empty
// ConversationId clears it
type SetActiveReq struct {
	Kind           string `json:"kind"`
	ConversationId string `json:"conversation_id"`
}

// SendMsgReq is service.SendMessageRequest on the wire
type SendMsgReq = service.SendMessageRequest

// SendMsgResp represents send message response data
type SendMsgResp struct {
	ServerMsgId    int64  `json:"server_msg_id"`
	ConversationId string `json:"conversation_id"`
	Seq            int64  `json:"seq"`
	ClientMsgId    string `json:"client_msg_id"`
	SendAt         int64  `json:"send_at"`
}

// PullMsgReq is service.PullMessagesRequest on the wire
type PullMsgReq = service.PullMessagesRequest

// PullMsgResp represents pull messages response data
type PullMsgResp struct {
	Messages []*entity.MessageInfo `json:"messages"`
	MaxSeq   int64                 `json:"max_seq"`
}

// SuggestReq is service.SuggestRequest on the wire
type SuggestReq = service.SuggestRequest

// PushMsgData represents push message data
type PushMsgData struct {
	Msgs map[string][]*entity.MessageInfo `json:"msgs"` // conversation_id -> messages
}
