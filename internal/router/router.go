package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbeoliero/huddle/internal/config"
	"github.com/mbeoliero/huddle/internal/gateway"
	"github.com/mbeoliero/huddle/internal/handler"
	"github.com/mbeoliero/huddle/internal/middleware"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Auth         *handler.AuthHandler
	User         *handler.UserHandler
	Channel      *handler.ChannelHandler
	Message      *handler.MessageHandler
	Conversation *handler.ConversationHandler
}

// SetupRouter sets up all routes. wsServer is mounted on /ws only when the
// websocket shares the HTTP port.
func SetupRouter(h *server.Hertz, cfg *config.Config, handlers *Handlers, validator middleware.TokenValidator, wsServer *gateway.WsServer) {
	h.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		body := map[string]interface{}{"status": "ok"}
		if wsServer != nil {
			body["online_users"] = wsServer.GetOnlineUserCount()
			body["online_conns"] = wsServer.GetOnlineConnCount()
		}
		c.JSON(consts.StatusOK, body)
	})
	h.GET("/metrics", adaptor.HertzHandler(promhttp.Handler()))

	auth := middleware.JWTAuth(validator)

	authGroup := h.Group("/auth")
	{
		authGroup.POST("/register", handlers.Auth.Register)
		authGroup.POST("/login", handlers.Auth.Login)
		authGroup.POST("/logout", auth, handlers.Auth.Logout)
	}

	userGroup := h.Group("/user", auth)
	{
		userGroup.GET("/info", handlers.User.GetUserInfo)
		userGroup.GET("/info/:user_id", handlers.User.GetUserInfoById)
		userGroup.GET("/list", handlers.User.ListUsers)
		userGroup.POST("/batch", handlers.User.GetUserInfos)
		userGroup.PUT("/update", handlers.User.UpdateUserInfo)
	}

	channelGroup := h.Group("/channel", auth)
	{
		channelGroup.POST("/create", handlers.Channel.CreateChannel)
		channelGroup.POST("/join", handlers.Channel.JoinChannel)
		channelGroup.POST("/leave", handlers.Channel.LeaveChannel)
		channelGroup.GET("/info", handlers.Channel.GetChannelInfo)
		channelGroup.GET("/members", handlers.Channel.GetChannelMembers)
		channelGroup.GET("/mine", handlers.Channel.ListMyChannels)
		channelGroup.GET("/list", handlers.Channel.ListChannels)
	}

	msgGroup := h.Group("/msg", auth)
	{
		msgGroup.POST("/send", handlers.Message.SendMessage)
		msgGroup.GET("/pull", handlers.Message.PullMessages)
		msgGroup.GET("/get", handlers.Message.GetMessage)
		msgGroup.GET("/thread", handlers.Message.GetThreadReplies)
	}

	convGroup := h.Group("/conversation", auth)
	{
		convGroup.GET("/unread", handlers.Conversation.GetUnreadSummary)
	}

	h.GET("/mention/suggest", auth, handlers.Conversation.Suggest)

	if wsServer != nil && cfg.Server.WSPort == cfg.Server.HTTPPort {
		h.GET("/ws", wsServer.HandleHertzConnection)
	}
}
