package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/huddle/pkg/errcode"
)

// Client represents a connected WebSocket client
type Client struct {
	mu         sync.Mutex
	conn       ClientConn
	UserId     string
	PlatformId int
	Token      string
	ConnId     string
	server     *WsServer
	session    *Session
	closed     atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewClient creates a new client with an idle session
func NewClient(conn ClientConn, userId string, platformId int, token, connId string, server *WsServer) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:       conn,
		UserId:     userId,
		PlatformId: platformId,
		Token:      token,
		ConnId:     connId,
		server:     server,
		ctx:        ctx,
		cancel:     cancel,
	}
	c.session = NewSession(userId, server.hub, server.convService, func() bool { return !c.closed.Load() })
	return c
}

// readLoop continuously reads messages from the connection until it fails
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.CtxError(c.ctx, "client read loop panic: user_id=%s, error=%v", c.UserId, r)
		}
		c.close()
	}()

	if err := c.session.Start(c.ctx, c.server.onFeedEvent(c)); err != nil {
		log.CtxWarn(c.ctx, "start session feeds failed: user_id=%s, conn_id=%s, error=%v", c.UserId, c.ConnId, err)
	}

	for {
		message, err := c.conn.ReadMessage()
		if err != nil {
			log.CtxDebug(c.ctx, "read message error: user_id=%s, error=%v", c.UserId, err)
			return
		}

		if c.closed.Load() {
			return
		}

		if err := c.handleMessage(message); err != nil {
			log.CtxWarn(c.ctx, "handle message error: user_id=%s, error=%v", c.UserId, err)
			return
		}
	}
}

// handleMessage handles a single incoming message
func (c *Client) handleMessage(message []byte) error {
	var req WSRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return c.reply(&req, errcode.ErrInvalidProtocol, nil)
	}

	if req.SendId != "" && req.SendId != c.UserId {
		return c.reply(&req, errcode.ErrTokenMismatch, nil)
	}

	log.CtxDebug(c.ctx, "received message: req_identifier=%d, user_id=%s", req.ReqIdentifier, c.UserId)

	var resp []byte
	var err error

	switch req.ReqIdentifier {
	case WSSetActiveConversation:
		resp, err = c.server.HandleSetActive(c.ctx, c, &req)
	case WSSendMsg:
		resp, err = c.server.HandleSendMsg(c.ctx, c, &req)
	case WSPullMsg:
		resp, err = c.server.HandlePullMsg(c.ctx, c, &req)
	case WSGetUnread:
		resp, err = c.server.HandleGetUnread(c.ctx, c, &req)
	case WSMentionSuggest:
		resp, err = c.server.HandleMentionSuggest(c.ctx, c, &req)
	default:
		err = errcode.ErrInvalidProtocol
	}

	return c.reply(&req, err, resp)
}

// reply sends a response to the client
func (c *Client) reply(req *WSRequest, err error, data []byte) error {
	resp := WSResponse{
		ReqIdentifier: req.ReqIdentifier,
		MsgIncr:       req.MsgIncr,
		OperationId:   req.OperationId,
		Data:          data,
	}

	if err != nil {
		e := errcode.ErrInternalServer
		var be *errcode.Error
		if errors.As(err, &be) {
			e = be
		}
		resp.ErrCode = e.Code
		resp.ErrMsg = e.Msg
		resp.Data = nil
	}

	return c.writeResponse(resp)
}

// push sends a server-initiated message
func (c *Client) push(identifier int32, v interface{}) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.writeResponse(WSResponse{ReqIdentifier: identifier, Data: data})
}

// writeResponse writes a response to the connection
func (c *Client) writeResponse(resp WSResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	return c.conn.WriteMessage(data)
}

// Close closes the client connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	c.closed.Store(true)
	c.cancel()
	return c.conn.Close()
}

// close releases the session and unregisters the client
func (c *Client) close() {
	_ = c.Close()
	c.session.Close()
	c.server.UnregisterClient(c)
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
