package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/mbeoliero/huddle/internal/middleware"
	"github.com/mbeoliero/huddle/internal/service"
	"github.com/mbeoliero/huddle/pkg/errcode"
	"github.com/mbeoliero/huddle/pkg/response"
)

// MessageHandler handles message-related requests
type MessageHandler struct {
	msgService *service.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(msgService *service.MessageService) *MessageHandler {
	return &MessageHandler{msgService: msgService}
}

// SendMessage handles send message request (HTTP fallback)
func (h *MessageHandler) SendMessage(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req service.SendMessageRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.msgService.SendMessage(ctx, userId, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg.ToMessageInfo())
}

// PullMessages handles pull messages request
func (h *MessageHandler) PullMessages(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	conversationId := c.Query("conversation_id")
	if conversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	beginSeq, _ := strconv.ParseInt(c.Query("begin_seq"), 10, 64)
	endSeq, _ := strconv.ParseInt(c.Query("end_seq"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	req := &service.PullMessagesRequest{
		ConversationId: conversationId,
		BeginSeq:       beginSeq,
		EndSeq:         endSeq,
		Limit:          limit,
	}

	messages, maxSeq, err := h.msgService.PullMessages(ctx, userId, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"messages": messages,
		"max_seq":  maxSeq,
	})
}

// GetThreadReplies handles get thread replies request
func (h *MessageHandler) GetThreadReplies(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	threadId, err := strconv.ParseInt(c.Query("thread_id"), 10, 64)
	if err != nil || threadId <= 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	replies, err := h.msgService.GetThreadReplies(ctx, userId, threadId, limit)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, replies)
}

// GetMessage handles get single message request
func (h *MessageHandler) GetMessage(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.msgService.GetMessage(ctx, userId, id)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg)
}
