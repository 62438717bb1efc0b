package gateway

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	messageType int
	data        []byte
}

type fakeRawConn struct {
	mu        sync.Mutex
	frames    []frame
	readLimit int64
	closed    bool
	inbound   chan []byte
}

func newFakeRawConn() *fakeRawConn {
	return &fakeRawConn{inbound: make(chan []byte, 4)}
}

func (f *fakeRawConn) SetReadLimit(limit int64)                { f.readLimit = limit }
func (f *fakeRawConn) SetPongHandler(func(appData string) error) {}
func (f *fakeRawConn) SetReadDeadline(time.Time) error         { return nil }
func (f *fakeRawConn) SetWriteDeadline(time.Time) error        { return nil }

func (f *fakeRawConn) ReadMessage() (int, []byte, error) {
	data, ok := <-f.inbound
	if !ok {
		return 0, nil, io.EOF
	}
	return websocket.TextMessage, data, nil
}

func (f *fakeRawConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("use of closed connection")
	}
	f.frames = append(f.frames, frame{messageType: messageType, data: data})
	return nil
}

func (f *fakeRawConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRawConn) Frames() []frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]frame(nil), f.frames...)
}

func (f *fakeRawConn) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestConnOptions_WithDefaults(t *testing.T) {
	opts := ConnOptions{PongWait: 10 * time.Second, PingPeriod: 20 * time.Second}.withDefaults()

	assert.Equal(t, int64(MaxMessageSize), opts.MaxMessageSize)
	assert.Equal(t, WriteWait, opts.WriteWait)
	assert.Equal(t, 9*time.Second, opts.PingPeriod)
	assert.Equal(t, 256, opts.WriteBuffer)
}

func TestWsConn_WritesInOrderAndClosesWithFrame(t *testing.T) {
	raw := newFakeRawConn()
	conn := NewClientConn(raw, ConnOptions{MaxMessageSize: 1024, PingPeriod: time.Hour, PongWait: 2 * time.Hour})
	assert.Equal(t, int64(1024), raw.readLimit)

	require.NoError(t, conn.WriteMessage([]byte("a")))
	require.NoError(t, conn.WriteMessage([]byte("b")))
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.Eventually(t, raw.IsClosed, time.Second, 5*time.Millisecond)
	frames := raw.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, frame{messageType: websocket.TextMessage, data: []byte("a")}, frames[0])
	assert.Equal(t, frame{messageType: websocket.TextMessage, data: []byte("b")}, frames[1])
	assert.Equal(t, websocket.CloseMessage, frames[2].messageType)

	assert.ErrorIs(t, conn.WriteMessage([]byte("c")), ErrConnClosed)
}

func TestWsConn_ReadMessage(t *testing.T) {
	raw := newFakeRawConn()
	conn := NewClientConn(raw, ConnOptions{})
	defer conn.Close()

	raw.inbound <- []byte(`{"req_identifier":1007}`)
	data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"req_identifier":1007}`, string(data))

	close(raw.inbound)
	_, err = conn.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCheckOrigin(t *testing.T) {
	allowed := []string{"https://chat.example.com"}

	assert.True(t, CheckOrigin("", allowed))
	assert.True(t, CheckOrigin("https://chat.example.com", allowed))
	assert.True(t, CheckOrigin("HTTPS://CHAT.EXAMPLE.COM", allowed))
	assert.False(t, CheckOrigin("https://evil.example.com", allowed))
	assert.True(t, CheckOrigin("https://evil.example.com", nil))
	assert.True(t, CheckOrigin("https://any.example.com", []string{"*"}))
}
