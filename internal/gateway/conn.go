package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbeoliero/kit/log"
)

// ClientConn represents a WebSocket connection wrapper
type ClientConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// rawConn is the method set shared by gorilla/websocket and
// hertz-contrib/websocket connections
type rawConn interface {
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ConnOptions tunes a connection's deadlines and buffers
type ConnOptions struct {
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	WriteBuffer    int
}

func (o ConnOptions) withDefaults() ConnOptions {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = MaxMessageSize
	}
	if o.WriteWait <= 0 {
		o.WriteWait = WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.WriteBuffer <= 0 {
		o.WriteBuffer = 256
	}
	return o
}

// wsConn implements ClientConn with a single writer goroutine
type wsConn struct {
	conn      rawConn
	opts      ConnOptions
	writeChan chan []byte
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    bool
}

// NewClientConn wraps a gorilla or hertz-contrib websocket connection
func NewClientConn(conn rawConn, opts ConnOptions) ClientConn {
	opts = opts.withDefaults()
	c := &wsConn{
		conn:      conn,
		opts:      opts,
		writeChan: make(chan []byte, opts.WriteBuffer),
	}

	conn.SetReadLimit(opts.MaxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	go c.writeLoop()
	return c
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		if r := recover(); r != nil {
			log.Debug("websocket write loop recovered: %v", r)
		}
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.writeChan:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				log.Debug("write message error: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.Debug("ping error: %v", err)
				return
			}
		}
	}
}

func (c *wsConn) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// ReadMessage reads a message from the connection
func (c *wsConn) ReadMessage() ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
		return nil, err
	}
	_, message, err := c.conn.ReadMessage()
	return message, err
}

// WriteMessage queues a message; a full queue means a slow consumer
func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return ErrConnClosed
	}

	select {
	case c.writeChan <- data:
		return nil
	default:
		return ErrWriteChannelFull
	}
}

// Close stops the writer, which sends a close frame and closes the socket
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.closed = true
		close(c.writeChan)
		c.writeMu.Unlock()
	})
	return nil
}
