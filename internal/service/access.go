package service

import (
	"context"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/repository"
	"github.com/mbeoliero/huddle/pkg/errcode"
)

// accessChecker decides whether a user may read or mark a conversation
type accessChecker struct {
	channelRepo *repository.ChannelRepo
}

// check returns nil when userId may access conversationId. Channel access
// requires active membership; direct access requires being a participant.
func (a *accessChecker) check(ctx context.Context, userId, conversationId string) error {
	if channelId, ok := entity.ChannelIdOf(conversationId); ok {
		member, err := a.channelRepo.GetMember(ctx, channelId, userId)
		if err != nil {
			log.CtxError(ctx, "get channel member failed: channel_id=%s, user_id=%s, error=%v", channelId, userId, err)
			return errcode.ErrInternalServer
		}
		if member == nil || !member.IsNormal() {
			return errcode.ErrNotChannelMember
		}
		return nil
	}

	if _, ok := entity.DirectPeer(conversationId, userId); ok {
		return nil
	}
	if entity.IsDirectConversation(conversationId) {
		return errcode.ErrNoPermission
	}
	return errcode.ErrConvNotFound
}
