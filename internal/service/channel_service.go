package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/mbeoliero/kit/log"
	"gorm.io/gorm"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/repository"
	"github.com/mbeoliero/huddle/pkg/constant"
	"github.com/mbeoliero/huddle/pkg/errcode"
	"github.com/mbeoliero/huddle/pkg/idgen"
)

const maxChannelTitleLen = 64

// ChannelService handles channel-related business logic
type ChannelService struct {
	channelRepo *repository.ChannelRepo
	counterRepo *repository.CounterRepo
	userRepo    *repository.UserRepo
	repos       *repository.Repositories
}

// NewChannelService creates a new ChannelService
func NewChannelService(repos *repository.Repositories) *ChannelService {
	return &ChannelService{
		channelRepo: repos.Channel,
		counterRepo: repos.Counter,
		userRepo:    repos.User,
		repos:       repos,
	}
}

// CreateChannelRequest represents create channel request
type CreateChannelRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	MemberIds   []string `json:"member_ids"`
}

// CreateChannel creates a channel owned by creatorId. Its counter starts at zero.
func (s *ChannelService) CreateChannel(ctx context.Context, creatorId string, req *CreateChannelRequest) (*entity.Channel, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || utf8.RuneCountInString(title) > maxChannelTitleLen {
		return nil, errcode.ErrInvalidParam
	}

	taken, err := s.channelRepo.ExistsByTitle(ctx, title)
	if err != nil {
		log.CtxError(ctx, "check channel title failed: title=%s, error=%v", title, err)
		return nil, errcode.ErrInternalServer
	}
	if taken {
		return nil, errcode.ErrChannelTitleTaken
	}

	channelId, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate channel id failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	now := entity.NowUnixMilli()
	channel := &entity.Channel{
		Id:            channelId,
		Title:         title,
		Description:   req.Description,
		Status:        constant.ChannelStatusNormal,
		CreatorUserId: creatorId,
	}

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.channelRepo.CreateWithTx(ctx, tx, channel); err != nil {
			return err
		}

		if err := s.counterRepo.EnsureExistsWithTx(ctx, tx, channel.ConversationId()); err != nil {
			return err
		}

		owner := &entity.ChannelMember{
			ChannelId: channelId,
			UserId:    creatorId,
			RoleLevel: constant.RoleLevelOwner,
			Status:    constant.ChannelMemberStatusNormal,
			JoinedAt:  now,
		}
		if err := s.channelRepo.AddMemberWithTx(ctx, tx, owner); err != nil {
			return err
		}

		for _, memberId := range req.MemberIds {
			if memberId == creatorId || memberId == constant.SystemUserId || memberId == "" {
				continue
			}
			member := &entity.ChannelMember{
				ChannelId: channelId,
				UserId:    memberId,
				RoleLevel: constant.RoleLevelMember,
				Status:    constant.ChannelMemberStatusNormal,
				JoinedAt:  now,
			}
			if err := s.channelRepo.AddMemberWithTx(ctx, tx, member); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.CtxError(ctx, "create channel failed: title=%s, error=%v", title, err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "channel created: channel_id=%s, title=%s, creator_id=%s", channelId, title, creatorId)
	return channel, nil
}

// JoinChannel adds userId to an open channel. A user who left before is
// restored; their read cursor is kept.
func (s *ChannelService) JoinChannel(ctx context.Context, channelId, userId string) error {
	channel, err := s.channelRepo.GetById(ctx, channelId)
	if err != nil {
		log.CtxError(ctx, "get channel failed: channel_id=%s, error=%v", channelId, err)
		return errcode.ErrInternalServer
	}
	if channel == nil {
		return errcode.ErrChannelNotFound
	}
	if !channel.IsNormal() {
		return errcode.ErrChannelArchived
	}

	existing, err := s.channelRepo.GetMember(ctx, channelId, userId)
	if err != nil {
		log.CtxError(ctx, "get channel member failed: channel_id=%s, user_id=%s, error=%v", channelId, userId, err)
		return errcode.ErrInternalServer
	}
	if existing != nil && existing.IsNormal() {
		return errcode.ErrAlreadyChannelMember
	}

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		member := &entity.ChannelMember{
			ChannelId: channelId,
			UserId:    userId,
			RoleLevel: constant.RoleLevelMember,
			Status:    constant.ChannelMemberStatusNormal,
			JoinedAt:  entity.NowUnixMilli(),
		}
		return s.channelRepo.AddMemberWithTx(ctx, tx, member)
	})
	if err != nil {
		log.CtxError(ctx, "join channel failed: channel_id=%s, user_id=%s, error=%v", channelId, userId, err)
		return errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "user joined channel: channel_id=%s, user_id=%s", channelId, userId)
	return nil
}

// LeaveChannel marks userId as left. The user stops being mentionable and
// loses read access to the channel conversation.
func (s *ChannelService) LeaveChannel(ctx context.Context, channelId, userId string) error {
	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		member, err := s.channelRepo.GetMember(ctx, channelId, userId)
		if err != nil {
			return err
		}
		if member == nil || !member.IsNormal() {
			return errcode.ErrNotChannelMember
		}
		return s.channelRepo.UpdateMemberStatusWithTx(ctx, tx, channelId, userId, constant.ChannelMemberStatusLeft)
	})

	if err != nil {
		if e, ok := err.(*errcode.Error); ok {
			return e
		}
		log.CtxError(ctx, "leave channel failed: channel_id=%s, user_id=%s, error=%v", channelId, userId, err)
		return errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "user left channel: channel_id=%s, user_id=%s", channelId, userId)
	return nil
}

// GetChannelInfo gets channel info with its active member count
func (s *ChannelService) GetChannelInfo(ctx context.Context, channelId string) (*entity.ChannelInfo, error) {
	channel, err := s.channelRepo.GetById(ctx, channelId)
	if err != nil {
		log.CtxError(ctx, "get channel failed: channel_id=%s, error=%v", channelId, err)
		return nil, errcode.ErrInternalServer
	}
	if channel == nil {
		return nil, errcode.ErrChannelNotFound
	}

	memberIds, err := s.channelRepo.GetActiveMemberUserIds(ctx, channelId)
	if err != nil {
		log.CtxError(ctx, "get channel members failed: channel_id=%s, error=%v", channelId, err)
		return nil, errcode.ErrInternalServer
	}
	return channel.ToChannelInfo(len(memberIds)), nil
}

// GetChannelMembers lists active members with their display names. Only
// members may list the roster.
func (s *ChannelService) GetChannelMembers(ctx context.Context, channelId, userId string) ([]*entity.ChannelMemberInfo, error) {
	isMember, err := s.channelRepo.IsActiveMember(ctx, channelId, userId)
	if err != nil {
		log.CtxError(ctx, "check channel member failed: channel_id=%s, user_id=%s, error=%v", channelId, userId, err)
		return nil, errcode.ErrInternalServer
	}
	if !isMember {
		return nil, errcode.ErrNotChannelMember
	}

	members, err := s.channelRepo.GetActiveMembers(ctx, channelId)
	if err != nil {
		log.CtxError(ctx, "get channel members failed: channel_id=%s, error=%v", channelId, err)
		return nil, errcode.ErrInternalServer
	}

	userIds := make([]string, 0, len(members))
	for _, m := range members {
		userIds = append(userIds, m.UserId)
	}
	users, err := s.userRepo.GetByIds(ctx, userIds)
	if err != nil {
		log.CtxError(ctx, "get users failed: channel_id=%s, error=%v", channelId, err)
		return nil, errcode.ErrInternalServer
	}
	userMap := make(map[string]*entity.User, len(users))
	for _, u := range users {
		userMap[u.Id] = u
	}

	result := make([]*entity.ChannelMemberInfo, 0, len(members))
	for _, m := range members {
		info := &entity.ChannelMemberInfo{
			UserId:    m.UserId,
			Nickname:  m.UserId,
			RoleLevel: m.RoleLevel,
			JoinedAt:  m.JoinedAt,
		}
		if u, ok := userMap[m.UserId]; ok {
			info.Nickname = u.DisplayName()
			info.Avatar = u.Avatar
		}
		result = append(result, info)
	}
	return result, nil
}

// ListMyChannels lists the open channels userId is an active member of
func (s *ChannelService) ListMyChannels(ctx context.Context, userId string) ([]*entity.Channel, error) {
	channels, err := s.channelRepo.GetUserChannels(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "get user channels failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	return channels, nil
}

// ListChannels lists every open channel
func (s *ChannelService) ListChannels(ctx context.Context) ([]*entity.Channel, error) {
	channels, err := s.channelRepo.ListNormal(ctx)
	if err != nil {
		log.CtxError(ctx, "list channels failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	return channels, nil
}
