package router

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/huddle/internal/config"
	"github.com/mbeoliero/huddle/internal/handler"
	"github.com/mbeoliero/huddle/pkg/errcode"
	"github.com/mbeoliero/huddle/pkg/response"
)

func newTestServer(t *testing.T) *server.Hertz {
	t.Helper()
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	handlers := &Handlers{
		Auth:         &handler.AuthHandler{},
		User:         &handler.UserHandler{},
		Channel:      &handler.ChannelHandler{},
		Message:      &handler.MessageHandler{},
		Conversation: &handler.ConversationHandler{},
	}
	SetupRouter(h, &config.Config{}, handlers, nil, nil)
	return h
}

func TestSetupRouter_NoDirectCursorWrites(t *testing.T) {
	h := newTestServer(t)

	for _, r := range h.Routes() {
		assert.NotContains(t, r.Path, "mark_read", "%s %s", r.Method, r.Path)
		assert.NotContains(t, r.Path, "cursor", "%s %s", r.Method, r.Path)
	}

	w := ut.PerformRequest(h.Engine, consts.MethodPost, "/conversation/mark_read", nil)
	assert.Equal(t, consts.StatusNotFound, w.Result().StatusCode())
}

func TestSetupRouter_ConversationRoutesRequireAuth(t *testing.T) {
	h := newTestServer(t)

	for _, path := range []string{"/conversation/unread", "/mention/suggest"} {
		w := ut.PerformRequest(h.Engine, consts.MethodGet, path, nil)
		require.Equal(t, consts.StatusOK, w.Result().StatusCode(), path)

		var resp response.Response
		require.NoError(t, json.Unmarshal(w.Result().Body(), &resp))
		assert.Equal(t, errcode.ErrTokenMissing.Code, resp.Code, path)
	}
}

func TestSetupRouter_HealthWithoutGateway(t *testing.T) {
	h := newTestServer(t)

	w := ut.PerformRequest(h.Engine, consts.MethodGet, "/health", nil)
	assert.Equal(t, consts.StatusOK, w.Result().StatusCode())
	assert.True(t, strings.Contains(string(w.Result().Body()), `"ok"`))
}
