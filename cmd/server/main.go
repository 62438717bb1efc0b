package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/kit/log"
	"github.com/spf13/cobra"

	"github.com/mbeoliero/huddle/internal/config"
	"github.com/mbeoliero/huddle/internal/gateway"
	"github.com/mbeoliero/huddle/internal/handler"
	"github.com/mbeoliero/huddle/internal/repository"
	"github.com/mbeoliero/huddle/internal/router"
	"github.com/mbeoliero/huddle/internal/service"
	"github.com/mbeoliero/huddle/internal/watch"
	"github.com/mbeoliero/huddle/pkg/constant"
	"github.com/mbeoliero/huddle/pkg/idgen"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "huddle",
		Short:         "Huddle team chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to the config file")

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), configPath)
		},
	})
	return cmd
}

// bootstrap loads config and opens the stores
func bootstrap(ctx context.Context, configPath string) (*config.Config, *repository.Repositories, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log.CtxInfo(ctx, "config loaded: mode=%s", cfg.Server.Mode)

	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)
	log.CtxInfo(ctx, "redis key prefix: %s", constant.GetRedisKeyPrefix())

	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init repositories: %w", err)
	}
	if err := repos.CheckConnection(ctx); err != nil {
		_ = repos.Close()
		return nil, nil, fmt.Errorf("check connection: %w", err)
	}
	log.CtxInfo(ctx, "database connection established")
	return cfg, repos, nil
}

func migrate(ctx context.Context, configPath string) error {
	_, repos, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer repos.Close()

	if err := repos.AutoMigrate(ctx); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.CtxInfo(ctx, "schema migrated")
	return nil
}

func newTransport(cfg *config.Config, repos *repository.Repositories) (watch.Transport, error) {
	switch cfg.Watch.Transport {
	case config.WatchTransportNats:
		return watch.NewNatsTransport(cfg.Watch.NatsURL, "huddle")
	case config.WatchTransportLocal:
		return watch.NewLocalTransport(), nil
	default:
		return watch.NewRedisTransport(repos.Redis), nil
	}
}

func serve(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, repos, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer repos.Close()

	if cfg.Server.AutoMigrate {
		if err := repos.AutoMigrate(ctx); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	if cfg.Server.MachineID != 0 {
		gen, err := idgen.NewSonyflakeGenerator(cfg.Server.MachineID)
		if err != nil {
			return fmt.Errorf("init id generator: %w", err)
		}
		idgen.SetDefaultGenerator(gen)
	}

	transport, err := newTransport(cfg, repos)
	if err != nil {
		return fmt.Errorf("init watch transport: %w", err)
	}
	hub := watch.NewHub(transport, cfg.Watch.ListenerBuffer)
	defer hub.Close()
	log.CtxInfo(ctx, "watch hub started: transport=%s", cfg.Watch.Transport)

	authService := service.NewAuthService(repos.User, cfg, repos.Redis)
	userService := service.NewUserService(repos.User)
	channelService := service.NewChannelService(repos)
	convService := service.NewConversationService(repos, hub)
	msgService := service.NewMessageService(repos, hub, cfg.Mention)

	wsServer := gateway.NewWsServer(cfg, repos.Redis, hub, authService, msgService, convService)
	wsServer.Run(ctx)
	log.CtxInfo(ctx, "websocket server started")

	handlers := &router.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(userService),
		Channel:      handler.NewChannelHandler(channelService),
		Message:      handler.NewMessageHandler(msgService),
		Conversation: handler.NewConversationHandler(convService),
	}

	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)
	router.SetupRouter(h, cfg, handlers, authService, wsServer)

	var wsListener *http.Server
	if cfg.Server.WSPort != cfg.Server.HTTPPort {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", wsServer.HandleConnection)
		wsListener = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.WSPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := wsListener.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.CtxError(ctx, "websocket listener stopped: %v", err)
			}
		}()
		log.CtxInfo(ctx, "websocket listening on port %d", cfg.Server.WSPort)
	}

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)
	go h.Spin()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if wsListener != nil {
		if err := wsListener.Shutdown(shutdownCtx); err != nil {
			log.CtxError(ctx, "websocket listener shutdown error: %v", err)
		}
	}
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}
	cancel()

	log.CtxInfo(ctx, "server stopped")
	return nil
}
