package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harryheman/slack-clone/internal/api"
	"github.com/harryheman/slack-clone/internal/auth"
	"github.com/harryheman/slack-clone/internal/config"
	"github.com/harryheman/slack-clone/internal/database"
	"github.com/harryheman/slack-clone/internal/gateway"
	redisclient "github.com/harryheman/slack-clone/internal/redis"
	"github.com/harryheman/slack-clone/internal/service"
	"github.com/harryheman/slack-clone/internal/snowflake"
	"github.com/harryheman/slack-clone/internal/storage"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// --- Infrastructure ---

	if cfg.MigrateOnStart {
		version, applied, err := database.Migrate(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		slog.Info("migrations checked", "version", version, "applied", applied)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := redisclient.NewClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	var files service.FileStorage
	if cfg.StorageEnabled() {
		mc, err := storage.NewMinIOClient(ctx, storage.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			return err
		}
		files = mc
	} else {
		slog.Warn("object storage not configured, image uploads disabled")
	}

	sf, err := snowflake.NewGenerator(cfg.SnowflakeWorkerID, 1)
	if err != nil {
		return err
	}
	tokenSvc := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)

	// --- Repositories ---

	members := database.NewMemberRepository(pool)
	channels := database.NewChannelRepository(pool)
	conversations := database.NewConversationRepository(pool)
	messages := database.NewMessageRepository(pool)
	reactions := database.NewReactionRepository(pool)

	// --- Services ---

	gwManager := gateway.NewManager(tokenSvc, rdb)
	gate := service.NewMemberGate(members)

	messageSvc := service.NewMessageService(messages, reactions, channels, conversations, gate, sf, gwManager, files,
		service.PageLimits{Default: cfg.PageSize, Max: cfg.MaxPageSize})
	gwManager.SetAuthorizer(messageSvc)

	reactionSvc := service.NewReactionService(reactions, messages, gate, sf, gwManager)
	conversationSvc := service.NewConversationService(conversations, members, gate, sf)

	// --- Handlers ---

	deps := &api.Dependencies{
		Messages:      api.NewMessageHandler(messageSvc, cfg.CompactionThreshold),
		Reactions:     api.NewReactionHandler(reactionSvc),
		Conversations: api.NewConversationHandler(conversationSvc),
		Gateway:       gwManager,
		TokenService:  tokenSvc,
		Redis:         rdb,

		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx)
		},
	}
	if files != nil {
		deps.Uploads = api.NewUploadHandler(service.NewUploadService(gate, sf, files))
	}

	e := api.NewServer()
	api.SetupRouter(e, deps)

	// --- Start ---

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("slack-clone starting", "addr", cfg.ServerAddr)
		if err := e.Start(cfg.ServerAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return gwManager.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
