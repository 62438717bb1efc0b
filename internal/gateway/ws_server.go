package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	hertzws "github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"

	"github.com/mbeoliero/huddle/internal/config"
	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/service"
	"github.com/mbeoliero/huddle/internal/watch"
	"github.com/mbeoliero/huddle/pkg/errcode"
	"github.com/mbeoliero/huddle/pkg/jwt"
)

// TokenValidator checks a token's signature and revocation status
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

// WsServer is the WebSocket server
type WsServer struct {
	upgrader       *websocket.Upgrader
	hertzUpgrader  *hertzws.HertzUpgrader
	connOpts       ConnOptions
	userMap        *UserMap
	registerChan   chan *Client
	unregisterChan chan *Client
	hub            *watch.Hub
	validator      TokenValidator
	msgService     *service.MessageService
	convService    *service.ConversationService
	onlineUserNum  atomic.Int64
	onlineConnNum  atomic.Int64
	maxConnNum     int64
}

// NewWsServer creates a new WebSocket server
func NewWsServer(cfg *config.Config, rdb *redis.Client, hub *watch.Hub, validator TokenValidator, msgService *service.MessageService, convService *service.ConversationService) *WsServer {
	allowedOrigins := cfg.Server.AllowedOrigins
	return &WsServer{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r.Header.Get("Origin"), allowedOrigins)
			},
		},
		hertzUpgrader: &hertzws.HertzUpgrader{
			CheckOrigin: func(c *app.RequestContext) bool {
				return CheckOrigin(string(c.Request.Header.Peek("Origin")), allowedOrigins)
			},
		},
		connOpts: ConnOptions{
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
			WriteWait:      cfg.WebSocket.WriteWait,
			PongWait:       cfg.WebSocket.PongWait,
			PingPeriod:     cfg.WebSocket.PingPeriod,
			WriteBuffer:    cfg.WebSocket.WriteChannelSize,
		},
		userMap:        NewUserMap(rdb),
		registerChan:   make(chan *Client, 1000),
		unregisterChan: make(chan *Client, 1000),
		hub:            hub,
		validator:      validator,
		msgService:     msgService,
		convService:    convService,
		maxConnNum:     cfg.WebSocket.MaxConnNum,
	}
}

// CheckOrigin validates an Origin header against allowed origins. Requests
// without an Origin are non-browser clients and always pass, and an empty
// allow list admits every origin.
func CheckOrigin(origin string, allowedOrigins []string) bool {
	if origin == "" || len(allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

// Run starts the registration loop and the presence refresher
func (s *WsServer) Run(ctx context.Context) {
	go s.eventLoop(ctx)
	go s.refreshLoop(ctx)
}

// eventLoop handles client registration and unregistration
func (s *WsServer) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.registerChan:
			s.registerClient(ctx, client)
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

func (s *WsServer) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(onlineRefreshPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.userMap.RefreshOnline(ctx)
		}
	}
}

func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	if s.userMap.Register(ctx, client) {
		s.onlineUserNum.Add(1)
	}
	s.onlineConnNum.Add(1)

	log.CtxInfo(ctx, "client registered: user_id=%s, platform_id=%d, conn_id=%s, online_users=%d, online_conns=%d",
		client.UserId, client.PlatformId, client.ConnId, s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	isUserOffline := s.userMap.Unregister(ctx, client)
	s.onlineConnNum.Add(-1)
	if isUserOffline {
		s.onlineUserNum.Add(-1)
	}

	log.CtxInfo(ctx, "client unregistered: user_id=%s, platform_id=%d, conn_id=%s, user_offline=%v, online_users=%d, online_conns=%d",
		client.UserId, client.PlatformId, client.ConnId, isUserOffline, s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// UnregisterClient queues client for unregistration
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		log.Warn("unregister channel full: user_id=%s", client.UserId)
	}
}

// authenticate validates the connection token; send_id, when given, must
// name the token's user
func (s *WsServer) authenticate(ctx context.Context, token, sendId string) (*jwt.Claims, error) {
	if token == "" {
		return nil, errcode.ErrTokenMissing
	}
	claims, err := s.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sendId != "" && sendId != claims.UserId {
		return nil, errcode.ErrTokenMismatch
	}
	return claims, nil
}

// HandleConnection serves a connection on the standalone net/http listener
func (s *WsServer) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.onlineConnNum.Load() >= s.maxConnNum {
		http.Error(w, "connection limit exceeded", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query()
	claims, err := s.authenticate(ctx, query.Get(QueryToken), query.Get(QuerySendId))
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: error=%v", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}

	client := NewClient(NewClientConn(conn, s.connOpts), claims.UserId, claims.PlatformId, query.Get(QueryToken), uuid.NewString(), s)
	s.registerChan <- client
	go client.readLoop()
}

// HandleHertzConnection serves a connection upgraded on the hertz router
func (s *WsServer) HandleHertzConnection(ctx context.Context, c *app.RequestContext) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		c.String(http.StatusServiceUnavailable, "connection limit exceeded")
		return
	}

	token := c.Query(QueryToken)
	claims, err := s.authenticate(ctx, token, c.Query(QuerySendId))
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: error=%v", err)
		c.String(http.StatusUnauthorized, "unauthorized")
		return
	}

	err = s.hertzUpgrader.Upgrade(c, func(conn *hertzws.Conn) {
		client := NewClient(NewClientConn(conn, s.connOpts), claims.UserId, claims.PlatformId, token, uuid.NewString(), s)
		s.registerChan <- client
		client.readLoop()
	})
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
	}
}

// GetOnlineUserCount returns online user count
func (s *WsServer) GetOnlineUserCount() int64 {
	return s.onlineUserNum.Load()
}

// GetOnlineConnCount returns online connection count
func (s *WsServer) GetOnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}

// onFeedEvent returns the session callback for client: new messages are
// pushed with their rendered segments, and every change refreshes the
// unread summary.
func (s *WsServer) onFeedEvent(client *Client) func(context.Context, watch.Event) {
	return func(ctx context.Context, e watch.Event) {
		if e.Kind == watch.KindInbox && e.MessageId != "" {
			s.pushMessage(ctx, client, e)
		}
		s.pushUnread(ctx, client)
	}
}

func (s *WsServer) pushMessage(ctx context.Context, client *Client, e watch.Event) {
	id, err := strconv.ParseInt(e.MessageId, 10, 64)
	if err != nil {
		log.CtxWarn(ctx, "bad message id in inbox event: message_id=%s", e.MessageId)
		return
	}
	msg, err := s.msgService.GetMessage(ctx, client.UserId, id)
	if err != nil {
		log.CtxDebug(ctx, "load pushed message failed: user_id=%s, message_id=%d, error=%v", client.UserId, id, err)
		return
	}
	data := PushMsgData{Msgs: map[string][]*entity.MessageInfo{msg.ConversationId: {msg}}}
	if err := client.push(WSPushMsg, data); err != nil {
		log.CtxDebug(ctx, "push message failed: user_id=%s, conn_id=%s, error=%v", client.UserId, client.ConnId, err)
	}
}

func (s *WsServer) pushUnread(ctx context.Context, client *Client) {
	activeChannel, activeDirect := client.session.Active()
	summary, err := s.convService.GetUnreadSummary(ctx, client.UserId, activeChannel, activeDirect)
	if err != nil {
		log.CtxDebug(ctx, "load unread summary failed: user_id=%s, error=%v", client.UserId, err)
		return
	}
	if err := client.push(WSPushUnread, summary); err != nil {
		log.CtxDebug(ctx, "push unread failed: user_id=%s, conn_id=%s, error=%v", client.UserId, client.ConnId, err)
	}
}

// ========== Message Handlers ==========

// HandleSetActive puts a conversation in view for the session and returns
// the resulting unread summary
func (s *WsServer) HandleSetActive(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var activeReq SetActiveReq
	if err := json.Unmarshal(req.Data, &activeReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	if activeReq.ConversationId != "" {
		if err := s.convService.CheckAccess(ctx, client.UserId, activeReq.ConversationId); err != nil {
			return nil, err
		}
	}
	if err := client.session.SetActive(ctx, activeReq.Kind, activeReq.ConversationId); err != nil {
		return nil, err
	}
	return s.HandleGetUnread(ctx, client, req)
}

// HandleSendMsg handles send message request
func (s *WsServer) HandleSendMsg(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var sendReq SendMsgReq
	if err := json.Unmarshal(req.Data, &sendReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	msg, err := s.msgService.SendMessage(ctx, client.UserId, &sendReq)
	if err != nil {
		return nil, err
	}

	return json.Marshal(SendMsgResp{
		ServerMsgId:    msg.Id,
		ConversationId: msg.ConversationId,
		Seq:            msg.Seq,
		ClientMsgId:    msg.ClientMsgId,
		SendAt:         msg.SendAt,
	})
}

// HandlePullMsg handles pull messages request
func (s *WsServer) HandlePullMsg(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var pullReq PullMsgReq
	if err := json.Unmarshal(req.Data, &pullReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	messages, maxSeq, err := s.msgService.PullMessages(ctx, client.UserId, &pullReq)
	if err != nil {
		return nil, err
	}

	return json.Marshal(PullMsgResp{Messages: messages, MaxSeq: maxSeq})
}

// HandleGetUnread returns the unread summary with the session's active
// conversations reported as read
func (s *WsServer) HandleGetUnread(ctx context.Context, client *Client, _ *WSRequest) ([]byte, error) {
	activeChannel, activeDirect := client.session.Active()
	summary, err := s.convService.GetUnreadSummary(ctx, client.UserId, activeChannel, activeDirect)
	if err != nil {
		return nil, err
	}
	return json.Marshal(summary)
}

// HandleMentionSuggest computes the mention popup state for a draft
func (s *WsServer) HandleMentionSuggest(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var suggestReq SuggestReq
	if err := json.Unmarshal(req.Data, &suggestReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	state, err := s.convService.Suggest(ctx, client.UserId, &suggestReq)
	if err != nil {
		return nil, err
	}
	return json.Marshal(state)
}
