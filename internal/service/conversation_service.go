package service

import (
	"context"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/mention"
	"github.com/mbeoliero/huddle/internal/repository"
	"github.com/mbeoliero/huddle/internal/unread"
	"github.com/mbeoliero/huddle/internal/watch"
	"github.com/mbeoliero/huddle/pkg/errcode"
)

// Publisher publishes change feed events
type Publisher interface {
	Publish(ctx context.Context, e watch.Event) error
}

type counterReader interface {
	GetCounter(ctx context.Context, conversationId string) (*entity.ConversationCounter, error)
	GetCounters(ctx context.Context, conversationIds []string) (map[string]*entity.ConversationCounter, error)
}

type cursorStore interface {
	Upsert(ctx context.Context, userId, conversationId string, count, at int64) error
	GetCursor(ctx context.Context, userId, conversationId string) (*entity.ReadCursor, error)
	GetUserCursors(ctx context.Context, userId string) (map[string]*entity.ReadCursor, error)
}

// ConversationService handles counters, read cursors and unread views
type ConversationService struct {
	counterRepo counterReader
	cursorRepo  cursorStore
	channelRepo *repository.ChannelRepo
	userRepo    *repository.UserRepo
	access      *accessChecker
	publisher   Publisher
}

// NewConversationService creates a new ConversationService
func NewConversationService(repos *repository.Repositories, publisher Publisher) *ConversationService {
	return &ConversationService{
		counterRepo: repos.Counter,
		cursorRepo:  repos.Cursor,
		channelRepo: repos.Channel,
		userRepo:    repos.User,
		access:      &accessChecker{channelRepo: repos.Channel},
		publisher:   publisher,
	}
}

// GetCounter gets a conversation counter, nil when nothing was ever sent
func (s *ConversationService) GetCounter(ctx context.Context, conversationId string) (*entity.ConversationCounter, error) {
	return s.counterRepo.GetCounter(ctx, conversationId)
}

// GetCursor gets a user's read cursor, nil when never read
func (s *ConversationService) GetCursor(ctx context.Context, userId, conversationId string) (*entity.ReadCursor, error) {
	return s.cursorRepo.GetCursor(ctx, userId, conversationId)
}

// CheckAccess returns nil when userId may read conversationId
func (s *ConversationService) CheckAccess(ctx context.Context, userId, conversationId string) error {
	return s.access.check(ctx, userId, conversationId)
}

// SetCursor advances userId's read cursor of conversationId to count. The
// value is capped at the current counter and never moves backwards.
func (s *ConversationService) SetCursor(ctx context.Context, userId, conversationId string, count int64) error {
	if userId == "" || conversationId == "" || count < 0 {
		return errcode.ErrInvalidParam
	}
	if err := s.access.check(ctx, userId, conversationId); err != nil {
		return err
	}

	counter, err := s.counterRepo.GetCounter(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get counter failed: conversation_id=%s, error=%v", conversationId, err)
		return errcode.ErrInternalServer
	}
	if current := entity.CountOf(counter); count > current {
		count = current
	}

	if err = s.cursorRepo.Upsert(ctx, userId, conversationId, count, entity.NowUnixMilli()); err != nil {
		log.CtxError(ctx, "upsert read cursor failed: user_id=%s, conversation_id=%s, error=%v", userId, conversationId, err)
		return errcode.ErrInternalServer
	}

	// Publish the merged value so watchers never see a lower one than stored
	cursor, err := s.cursorRepo.GetCursor(ctx, userId, conversationId)
	if err != nil || cursor == nil {
		log.CtxWarn(ctx, "reload read cursor failed: user_id=%s, conversation_id=%s, error=%v", userId, conversationId, err)
		return nil
	}
	s.publish(ctx, watch.Event{
		Kind:           watch.KindCursor,
		ConversationId: conversationId,
		UserId:         userId,
		Count:          cursor.LastReadCount,
		At:             cursor.LastReadAt,
	})
	return nil
}

// GetUnreadSummary builds both list views for userId. The active ids are
// conversation ids currently in view and always report zero unread.
func (s *ConversationService) GetUnreadSummary(ctx context.Context, userId, activeChannelConvId, activeDirectConvId string) (*entity.UnreadSummary, error) {
	channels, err := s.channelRepo.GetUserChannels(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "get user channels failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		log.CtxError(ctx, "list users failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	convIds := make([]string, 0, len(channels)+len(users))
	for _, ch := range channels {
		convIds = append(convIds, ch.ConversationId())
	}
	for _, u := range users {
		if u.Id != userId {
			convIds = append(convIds, entity.GenDirectConversationId(userId, u.Id))
		}
	}

	counters, err := s.counterRepo.GetCounters(ctx, convIds)
	if err != nil {
		log.CtxError(ctx, "get counters failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	cursors, err := s.cursorRepo.GetUserCursors(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "get cursors failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}

	return unread.Summary(
		unread.ChannelList(channels, counters, cursors, activeChannelConvId),
		unread.DirectList(userId, users, counters, cursors, activeDirectConvId),
	), nil
}

// SuggestRequest asks for mention suggestions while composing
type SuggestRequest struct {
	ChannelId string `json:"channel_id" query:"channel_id"`
	PeerId    string `json:"peer_id" query:"peer_id"`
	Text      string `json:"text" query:"text"`
	Caret     int    `json:"caret" query:"caret"`
	Trigger   string `json:"trigger" query:"trigger"`
}

// Suggest computes the suggestion popup state. The '@' roster is the channel's
// members (or both participants in a direct conversation); the '#' roster is
// every open channel.
func (s *ConversationService) Suggest(ctx context.Context, userId string, req *SuggestRequest) (*mention.SuggestionState, error) {
	trigger := mention.UserTrigger
	if req.Trigger == string(mention.ChannelTrigger) {
		trigger = mention.ChannelTrigger
	}

	var roster []mention.Entity
	var err error
	switch {
	case trigger == mention.ChannelTrigger:
		roster, err = s.channelRoster(ctx)
	case req.ChannelId != "":
		if err = s.access.check(ctx, userId, entity.GenChannelConversationId(req.ChannelId)); err != nil {
			return nil, err
		}
		roster, err = s.memberRoster(ctx, req.ChannelId)
	case req.PeerId != "":
		roster, err = s.userRoster(ctx, []string{userId, req.PeerId})
	default:
		return nil, errcode.ErrInvalidParam
	}
	if err != nil {
		return nil, err
	}

	state := mention.ComputeSuggestionState(req.Text, req.Caret, roster, trigger)
	return &state, nil
}

func (s *ConversationService) channelRoster(ctx context.Context) ([]mention.Entity, error) {
	channels, err := s.channelRepo.ListNormal(ctx)
	if err != nil {
		log.CtxError(ctx, "list channels failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	roster := make([]mention.Entity, 0, len(channels))
	for _, ch := range channels {
		roster = append(roster, mention.Entity{Id: ch.Id, Name: ch.Title})
	}
	return roster, nil
}

func (s *ConversationService) memberRoster(ctx context.Context, channelId string) ([]mention.Entity, error) {
	userIds, err := s.channelRepo.GetActiveMemberUserIds(ctx, channelId)
	if err != nil {
		log.CtxError(ctx, "get channel members failed: channel_id=%s, error=%v", channelId, err)
		return nil, errcode.ErrInternalServer
	}
	return s.userRoster(ctx, userIds)
}

func (s *ConversationService) userRoster(ctx context.Context, userIds []string) ([]mention.Entity, error) {
	users, err := s.userRepo.GetByIds(ctx, userIds)
	if err != nil {
		log.CtxError(ctx, "get users failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	return usersToRoster(users), nil
}

func (s *ConversationService) publish(ctx context.Context, e watch.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		log.CtxWarn(ctx, "publish watch event failed: kind=%s, conversation_id=%s, user_id=%s, error=%v", e.Kind, e.ConversationId, e.UserId, err)
	}
}
