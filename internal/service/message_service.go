package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/huddle/internal/config"
	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/mention"
	"github.com/mbeoliero/huddle/internal/metrics"
	"github.com/mbeoliero/huddle/internal/notify"
	"github.com/mbeoliero/huddle/internal/repository"
	"github.com/mbeoliero/huddle/internal/watch"
	"github.com/mbeoliero/huddle/pkg/constant"
	"github.com/mbeoliero/huddle/pkg/errcode"
	"github.com/mbeoliero/huddle/pkg/idgen"
)

const (
	defaultPullLimit = 100
	maxTextLen       = 4000
)

// messageStore appends messages; Append allocates the seq from the
// conversation counter in the same transaction as the insert
type messageStore interface {
	GetByClientMsgId(ctx context.Context, senderId, clientMsgId string) (*entity.Message, error)
	Append(ctx context.Context, msg *entity.Message) error
}

// MessageService handles message-related business logic
type MessageService struct {
	msgRepo     *repository.MessageRepo
	store       messageStore
	counterRepo *repository.CounterRepo
	channelRepo *repository.ChannelRepo
	userRepo    *repository.UserRepo
	access      *accessChecker
	publisher   Publisher
	dispatcher  *notify.Dispatcher
	systemIds   idgen.IDGenerator
}

// NewMessageService creates a new MessageService. Mention notifications are
// delivered back through the service itself as system direct messages.
func NewMessageService(repos *repository.Repositories, publisher Publisher, cfg config.MentionConfig) *MessageService {
	s := &MessageService{
		msgRepo:     repos.Message,
		store:       repos.Message,
		counterRepo: repos.Counter,
		channelRepo: repos.Channel,
		userRepo:    repos.User,
		access:      &accessChecker{channelRepo: repos.Channel},
		publisher:   publisher,
		systemIds:   idgen.NewUUIDGenerator(),
	}
	s.dispatcher = newMentionDispatcher(s, cfg)
	return s
}

func newMentionDispatcher(sender notify.Sender, cfg config.MentionConfig) *notify.Dispatcher {
	return notify.NewDispatcher(sender, notify.Options{
		SnippetMaxLen: cfg.SnippetMaxLen,
		Location:      cfg.Location(),
		TimeLayout:    cfg.TimeLayout,
		Workers:       cfg.DispatchWorkers,
		Timeout:       cfg.DispatchTimeout,
	})
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ClientMsgId string `json:"client_msg_id"`
	RecvId      string `json:"recv_id,omitempty"`    // For direct messages
	ChannelId   string `json:"channel_id,omitempty"` // For channel messages
	ThreadId    int64  `json:"thread_id,omitempty"`  // Root message Id for thread replies
	SessionType int32  `json:"session_type"`
	Text        string `json:"text"`
}

func (r *SendMessageRequest) validate() error {
	if r.ClientMsgId == "" {
		return errcode.ErrInvalidParam
	}
	if strings.TrimSpace(r.Text) == "" || len(r.Text) > maxTextLen {
		return errcode.ErrInvalidParam
	}
	return nil
}

// SendMessage sends a message (auto-detect thread/channel/direct)
func (s *MessageService) SendMessage(ctx context.Context, senderId string, req *SendMessageRequest) (*entity.Message, error) {
	switch {
	case req.ThreadId > 0:
		return s.SendThreadReply(ctx, senderId, req)
	case req.SessionType == constant.SessionTypeChannel || req.ChannelId != "":
		return s.SendChannelMessage(ctx, senderId, req)
	case req.SessionType == constant.SessionTypeDirect || req.RecvId != "":
		return s.SendDirectMessage(ctx, senderId, req)
	default:
		return nil, errcode.ErrInvalidParam
	}
}

// SendChannelMessage sends a message to a channel and notifies mentioned members
func (s *MessageService) SendChannelMessage(ctx context.Context, senderId string, req *SendMessageRequest) (*entity.Message, error) {
	if req.ChannelId == "" {
		return nil, errcode.ErrInvalidParam
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	channel, err := s.checkChannelSender(ctx, req.ChannelId, senderId)
	if err != nil {
		return nil, err
	}

	msg := &entity.Message{
		ConversationId: channel.ConversationId(),
		ClientMsgId:    req.ClientMsgId,
		SenderId:       senderId,
		ChannelId:      channel.Id,
		SessionType:    constant.SessionTypeChannel,
		MsgType:        constant.MsgTypeText,
		ContentText:    req.Text,
	}
	msg, created, err := s.persist(ctx, msg)
	if err != nil || !created {
		return msg, err
	}

	memberIds, err := s.channelRepo.GetActiveMemberUserIds(ctx, channel.Id)
	if err != nil {
		log.CtxWarn(ctx, "get channel members for fan-out failed: channel_id=%s, error=%v", channel.Id, err)
	}
	s.fanOut(ctx, msg, memberIds)

	roster, err := s.rosterOf(ctx, memberIds)
	if err != nil {
		log.CtxWarn(ctx, "load channel roster for mentions failed: channel_id=%s, error=%v", channel.Id, err)
		return msg, nil
	}
	s.notifyMentions(ctx, msg, notify.ScopeChannel, channel.Title, roster)

	log.CtxInfo(ctx, "channel message sent: sender_id=%s, channel_id=%s, seq=%d", senderId, channel.Id, msg.Seq)
	return msg, nil
}

// SendThreadReply replies to a root channel message. The reply lands in the
// channel conversation and mentions resolve against the thread participants
// who are still channel members.
func (s *MessageService) SendThreadReply(ctx context.Context, senderId string, req *SendMessageRequest) (*entity.Message, error) {
	if req.ThreadId <= 0 {
		return nil, errcode.ErrInvalidParam
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	root, err := s.msgRepo.GetById(ctx, req.ThreadId)
	if err != nil {
		log.CtxError(ctx, "get thread root failed: thread_id=%d, error=%v", req.ThreadId, err)
		return nil, errcode.ErrInternalServer
	}
	if root == nil || root.ChannelId == "" || root.IsThreadReply() {
		return nil, errcode.ErrThreadNotFound
	}
	if req.ChannelId != "" && req.ChannelId != root.ChannelId {
		return nil, errcode.ErrThreadNotFound
	}

	channel, err := s.checkChannelSender(ctx, root.ChannelId, senderId)
	if err != nil {
		return nil, err
	}

	msg := &entity.Message{
		ConversationId: channel.ConversationId(),
		ClientMsgId:    req.ClientMsgId,
		SenderId:       senderId,
		ChannelId:      channel.Id,
		ThreadId:       root.Id,
		SessionType:    constant.SessionTypeChannel,
		MsgType:        constant.MsgTypeText,
		ContentText:    req.Text,
	}
	msg, created, err := s.persist(ctx, msg)
	if err != nil || !created {
		return msg, err
	}

	memberIds, err := s.channelRepo.GetActiveMemberUserIds(ctx, channel.Id)
	if err != nil {
		log.CtxWarn(ctx, "get channel members for fan-out failed: channel_id=%s, error=%v", channel.Id, err)
	}
	s.fanOut(ctx, msg, memberIds)

	participants, err := s.msgRepo.GetThreadReplierIds(ctx, root.Id)
	if err != nil {
		log.CtxWarn(ctx, "get thread participants failed: thread_id=%d, error=%v", root.Id, err)
		return msg, nil
	}
	participants = append(participants, root.SenderId)
	roster, err := s.rosterOf(ctx, participants)
	if err != nil {
		log.CtxWarn(ctx, "load thread roster for mentions failed: thread_id=%d, error=%v", root.Id, err)
		return msg, nil
	}
	s.notifyMentions(ctx, msg, notify.ScopeThread, channel.Title, filterRoster(roster, memberIds))

	log.CtxInfo(ctx, "thread reply sent: sender_id=%s, channel_id=%s, thread_id=%d, seq=%d", senderId, channel.Id, root.Id, msg.Seq)
	return msg, nil
}

// SendDirectMessage sends a message to the conversation between sender and RecvId
func (s *MessageService) SendDirectMessage(ctx context.Context, senderId string, req *SendMessageRequest) (*entity.Message, error) {
	if req.RecvId == "" || req.RecvId == senderId || req.RecvId == constant.SystemUserId {
		return nil, errcode.ErrInvalidParam
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.Exists(ctx, req.RecvId)
	if err != nil {
		log.CtxError(ctx, "check recipient failed: recv_id=%s, error=%v", req.RecvId, err)
		return nil, errcode.ErrInternalServer
	}
	if !exists {
		return nil, errcode.ErrUserNotFound
	}

	msg := &entity.Message{
		ConversationId: entity.GenDirectConversationId(senderId, req.RecvId),
		ClientMsgId:    req.ClientMsgId,
		SenderId:       senderId,
		RecvId:         req.RecvId,
		SessionType:    constant.SessionTypeDirect,
		MsgType:        constant.MsgTypeText,
		ContentText:    req.Text,
	}
	msg, created, err := s.persist(ctx, msg)
	if err != nil || !created {
		return msg, err
	}
	s.fanOut(ctx, msg, []string{senderId, req.RecvId})

	log.CtxInfo(ctx, "direct message sent: sender_id=%s, recv_id=%s, seq=%d", senderId, req.RecvId, msg.Seq)
	return msg, nil
}

// SendSystemDirect persists a system authored message in the direct
// conversation between mentionerId and recipientId.
func (s *MessageService) SendSystemDirect(ctx context.Context, mentionerId, recipientId, text string) error {
	if mentionerId == "" || recipientId == "" {
		return errcode.ErrInvalidParam
	}

	clientMsgId, err := s.systemIds.NextID()
	if err != nil {
		log.CtxError(ctx, "generate system message id failed: %v", err)
		return errcode.ErrInternalServer
	}

	msg := &entity.Message{
		ConversationId: entity.GenDirectConversationId(mentionerId, recipientId),
		ClientMsgId:    clientMsgId,
		SenderId:       constant.SystemUserId,
		RecvId:         recipientId,
		SessionType:    constant.SessionTypeDirect,
		MsgType:        constant.MsgTypeSystem,
		ContentText:    text,
	}
	msg, created, err := s.persist(ctx, msg)
	if err != nil {
		return err
	}
	if created {
		s.fanOut(ctx, msg, []string{mentionerId, recipientId})
	}
	return nil
}

// persist stores msg and advances its conversation counter in one
// transaction. A retried client message returns the stored copy with
// created=false.
func (s *MessageService) persist(ctx context.Context, msg *entity.Message) (*entity.Message, bool, error) {
	existing, err := s.store.GetByClientMsgId(ctx, msg.SenderId, msg.ClientMsgId)
	if err != nil {
		log.CtxError(ctx, "check idempotency failed: %v", err)
		return nil, false, errcode.ErrInternalServer
	}
	if existing != nil {
		log.CtxDebug(ctx, "duplicate message: client_msg_id=%s", msg.ClientMsgId)
		return existing, false, nil
	}

	msg.SendAt = entity.NowUnixMilli()
	if err = s.store.Append(ctx, msg); err != nil {
		log.CtxError(ctx, "send message failed: conversation_id=%s, error=%v", msg.ConversationId, err)
		if errors.Is(err, repository.ErrCounterIncrement) {
			return nil, false, errcode.ErrSeqAllocFailed
		}
		return nil, false, errcode.ErrSendFailed
	}

	metrics.MessagesSent.WithLabelValues(entity.ScopeOf(msg.ConversationId)).Inc()
	return msg, true, nil
}

// fanOut publishes the counter change and an inbox event per recipient
func (s *MessageService) fanOut(ctx context.Context, msg *entity.Message, recipients []string) {
	if s.publisher == nil {
		return
	}
	messageId := strconv.FormatInt(msg.Id, 10)
	events := make([]watch.Event, 0, len(recipients)+1)
	events = append(events, watch.Event{
		Kind:           watch.KindCounter,
		ConversationId: msg.ConversationId,
		Count:          msg.Seq,
		At:             msg.SendAt,
		MessageId:      messageId,
	})
	for _, userId := range recipients {
		events = append(events, watch.Event{
			Kind:           watch.KindInbox,
			ConversationId: msg.ConversationId,
			UserId:         userId,
			Count:          msg.Seq,
			At:             msg.SendAt,
			MessageId:      messageId,
		})
	}
	for _, e := range events {
		if err := s.publisher.Publish(ctx, e); err != nil {
			log.CtxWarn(ctx, "publish watch event failed: kind=%s, conversation_id=%s, user_id=%s, error=%v", e.Kind, e.ConversationId, e.UserId, err)
		}
	}
}

// notifyMentions runs the dispatcher after commit. It never affects the send
// result and outlives a cancelled request.
func (s *MessageService) notifyMentions(ctx context.Context, msg *entity.Message, scope notify.Scope, title string, roster []mention.Entity) {
	if len(roster) == 0 || !strings.ContainsRune(msg.ContentText, mention.UserTrigger) {
		return
	}

	senderName := msg.SenderId
	if sender, err := s.userRepo.GetById(ctx, msg.SenderId); err == nil && sender != nil {
		senderName = sender.DisplayName()
	}

	s.dispatcher.Dispatch(context.WithoutCancel(ctx), notify.Notice{
		SenderId:   msg.SenderId,
		SenderName: senderName,
		Text:       msg.ContentText,
		Scope:      scope,
		ScopeTitle: title,
		Roster:     roster,
		SentAt:     time.UnixMilli(msg.SendAt),
	})
}

// checkChannelSender loads an open channel that senderId is an active member of
func (s *MessageService) checkChannelSender(ctx context.Context, channelId, senderId string) (*entity.Channel, error) {
	channel, err := s.channelRepo.GetById(ctx, channelId)
	if err != nil {
		log.CtxError(ctx, "get channel failed: channel_id=%s, error=%v", channelId, err)
		return nil, errcode.ErrInternalServer
	}
	if channel == nil {
		return nil, errcode.ErrChannelNotFound
	}
	if !channel.IsNormal() {
		return nil, errcode.ErrChannelArchived
	}

	isMember, err := s.channelRepo.IsActiveMember(ctx, channelId, senderId)
	if err != nil {
		log.CtxError(ctx, "check channel member failed: channel_id=%s, user_id=%s, error=%v", channelId, senderId, err)
		return nil, errcode.ErrInternalServer
	}
	if !isMember {
		return nil, errcode.ErrNotChannelMember
	}
	return channel, nil
}

func (s *MessageService) rosterOf(ctx context.Context, userIds []string) ([]mention.Entity, error) {
	if len(userIds) == 0 {
		return nil, nil
	}
	users, err := s.userRepo.GetByIds(ctx, userIds)
	if err != nil {
		return nil, err
	}
	return usersToRoster(users), nil
}

// PullMessagesRequest represents pull messages request
type PullMessagesRequest struct {
	ConversationId string `json:"conversation_id"`
	BeginSeq       int64  `json:"begin_seq"`
	EndSeq         int64  `json:"end_seq"`
	Limit          int    `json:"limit"`
}

// PullMessages pulls messages in [BeginSeq, EndSeq] with mention segments
// rendered against the conversation's current roster. It returns the
// conversation counter alongside.
func (s *MessageService) PullMessages(ctx context.Context, userId string, req *PullMessagesRequest) ([]*entity.MessageInfo, int64, error) {
	if err := s.access.check(ctx, userId, req.ConversationId); err != nil {
		return nil, 0, err
	}

	counter, err := s.counterRepo.GetCounter(ctx, req.ConversationId)
	if err != nil {
		log.CtxError(ctx, "get counter failed: conversation_id=%s, error=%v", req.ConversationId, err)
		return nil, 0, errcode.ErrInternalServer
	}
	maxSeq := entity.CountOf(counter)

	beginSeq := req.BeginSeq
	if beginSeq <= 0 {
		beginSeq = 1
	}
	endSeq := req.EndSeq
	if endSeq <= 0 || endSeq > maxSeq {
		endSeq = maxSeq
	}
	if beginSeq > endSeq {
		return []*entity.MessageInfo{}, maxSeq, nil
	}

	limit := req.Limit
	if limit <= 0 || limit > defaultPullLimit {
		limit = defaultPullLimit
	}

	messages, err := s.msgRepo.PullMessages(ctx, req.ConversationId, beginSeq, endSeq, limit)
	if err != nil {
		log.CtxError(ctx, "pull messages failed: %v", err)
		return nil, 0, errcode.ErrPullFailed
	}

	return s.render(ctx, req.ConversationId, messages), maxSeq, nil
}

// GetThreadReplies lists replies of a root message the user can read
func (s *MessageService) GetThreadReplies(ctx context.Context, userId string, threadId int64, limit int) ([]*entity.MessageInfo, error) {
	root, err := s.msgRepo.GetById(ctx, threadId)
	if err != nil {
		log.CtxError(ctx, "get thread root failed: thread_id=%d, error=%v", threadId, err)
		return nil, errcode.ErrInternalServer
	}
	if root == nil || root.ChannelId == "" || root.IsThreadReply() {
		return nil, errcode.ErrThreadNotFound
	}
	if err = s.access.check(ctx, userId, root.ConversationId); err != nil {
		return nil, err
	}

	replies, err := s.msgRepo.GetThreadReplies(ctx, threadId, limit)
	if err != nil {
		log.CtxError(ctx, "get thread replies failed: thread_id=%d, error=%v", threadId, err)
		return nil, errcode.ErrPullFailed
	}
	return s.render(ctx, root.ConversationId, replies), nil
}

// GetMessage gets one message the user can read
func (s *MessageService) GetMessage(ctx context.Context, userId string, id int64) (*entity.MessageInfo, error) {
	msg, err := s.msgRepo.GetById(ctx, id)
	if err != nil {
		log.CtxError(ctx, "get message failed: id=%d, error=%v", id, err)
		return nil, errcode.ErrInternalServer
	}
	if msg == nil {
		return nil, errcode.ErrMessageNotFound
	}
	if err = s.access.check(ctx, userId, msg.ConversationId); err != nil {
		return nil, err
	}
	return s.render(ctx, msg.ConversationId, []*entity.Message{msg})[0], nil
}

// render converts messages to API form with mention segments. Names are
// matched against every user so mentions of departed members stay marked,
// but only current members resolve to an entity.
func (s *MessageService) render(ctx context.Context, conversationId string, messages []*entity.Message) []*entity.MessageInfo {
	pattern, roster := s.renderRoster(ctx, conversationId)
	result := make([]*entity.MessageInfo, 0, len(messages))
	for _, m := range messages {
		info := m.ToMessageInfo()
		info.Segments = toMessageSegments(pattern.Segment(m.ContentText, roster))
		result = append(result, info)
	}
	return result
}

func (s *MessageService) renderRoster(ctx context.Context, conversationId string) (*mention.Pattern, []mention.Entity) {
	if userA, userB, ok := entity.DirectParticipants(conversationId); ok {
		roster, err := s.rosterOf(ctx, []string{userA, userB})
		if err != nil {
			log.CtxWarn(ctx, "load direct roster failed: conversation_id=%s, error=%v", conversationId, err)
			return nil, nil
		}
		return mention.BuildTriggerPattern(roster, mention.UserTrigger), roster
	}

	channelId, ok := entity.ChannelIdOf(conversationId)
	if !ok {
		return nil, nil
	}
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		log.CtxWarn(ctx, "list users for rendering failed: %v", err)
		return nil, nil
	}
	everyone := usersToRoster(users)
	memberIds, err := s.channelRepo.GetActiveMemberUserIds(ctx, channelId)
	if err != nil {
		log.CtxWarn(ctx, "get channel members for rendering failed: channel_id=%s, error=%v", channelId, err)
		return nil, nil
	}
	return mention.BuildTriggerPattern(everyone, mention.UserTrigger), filterRoster(everyone, memberIds)
}

func toMessageSegments(segments []mention.Segment) []entity.MessageSegment {
	result := make([]entity.MessageSegment, 0, len(segments))
	for _, seg := range segments {
		ms := entity.MessageSegment{Text: seg.Text, IsMention: seg.IsMention}
		if seg.Entity != nil {
			ms.EntityId = seg.Entity.Id
		}
		result = append(result, ms)
	}
	return result
}
