package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/mbeoliero/huddle/internal/middleware"
	"github.com/mbeoliero/huddle/internal/service"
	"github.com/mbeoliero/huddle/pkg/errcode"
	"github.com/mbeoliero/huddle/pkg/response"
)

// ChannelHandler handles channel-related requests
type ChannelHandler struct {
	channelService *service.ChannelService
}

// NewChannelHandler creates a new ChannelHandler
func NewChannelHandler(channelService *service.ChannelService) *ChannelHandler {
	return &ChannelHandler{channelService: channelService}
}

// CreateChannel handles create channel request
func (h *ChannelHandler) CreateChannel(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req service.CreateChannelRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	channel, err := h.channelService.CreateChannel(ctx, userId, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, channel)
}

// ChannelIdRequest carries the channel a membership request targets
type ChannelIdRequest struct {
	ChannelId string `json:"channel_id"`
}

// JoinChannel handles join channel request
func (h *ChannelHandler) JoinChannel(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req ChannelIdRequest
	if err := c.BindAndValidate(&req); err != nil || req.ChannelId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.channelService.JoinChannel(ctx, req.ChannelId, userId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// LeaveChannel handles leave channel request
func (h *ChannelHandler) LeaveChannel(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req ChannelIdRequest
	if err := c.BindAndValidate(&req); err != nil || req.ChannelId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.channelService.LeaveChannel(ctx, req.ChannelId, userId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// GetChannelInfo handles get channel info request
func (h *ChannelHandler) GetChannelInfo(ctx context.Context, c *app.RequestContext) {
	channelId := c.Query("channel_id")
	if channelId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	info, err := h.channelService.GetChannelInfo(ctx, channelId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, info)
}

// GetChannelMembers handles get channel members request
func (h *ChannelHandler) GetChannelMembers(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	channelId := c.Query("channel_id")
	if channelId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	members, err := h.channelService.GetChannelMembers(ctx, channelId, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, members)
}

// ListMyChannels handles list joined channels request
func (h *ChannelHandler) ListMyChannels(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	channels, err := h.channelService.ListMyChannels(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, channels)
}

// ListChannels handles list all channels request
func (h *ChannelHandler) ListChannels(ctx context.Context, c *app.RequestContext) {
	channels, err := h.channelService.ListChannels(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, channels)
}
