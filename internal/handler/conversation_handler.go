package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/mbeoliero/huddle/internal/middleware"
	"github.com/mbeoliero/huddle/internal/service"
	"github.com/mbeoliero/huddle/pkg/errcode"
	"github.com/mbeoliero/huddle/pkg/response"
)

// ConversationHandler handles unread state and mention suggestion requests
type ConversationHandler struct {
	convService *service.ConversationService
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(convService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{convService: convService}
}

// GetUnreadSummary handles the unread summary request. The optional
// active_channel and active_dm query values are conversation Ids in view.
func (h *ConversationHandler) GetUnreadSummary(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	summary, err := h.convService.GetUnreadSummary(ctx, userId, c.Query("active_channel"), c.Query("active_dm"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, summary)
}

// Suggest handles the mention suggestion request
func (h *ConversationHandler) Suggest(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req service.SuggestRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	state, err := h.convService.Suggest(ctx, userId, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, state)
}
