package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jason-s-yu/streamify/internal/accounts"
	"github.com/jason-s-yu/streamify/internal/auth"
	"github.com/jason-s-yu/streamify/internal/cache"
	"github.com/jason-s-yu/streamify/internal/chat"
	"github.com/jason-s-yu/streamify/internal/config"
	"github.com/jason-s-yu/streamify/internal/database"
	"github.com/jason-s-yu/streamify/internal/database/memory"
	"github.com/jason-s-yu/streamify/internal/database/mongodb"
	"github.com/jason-s-yu/streamify/internal/database/postgres"
	"github.com/jason-s-yu/streamify/internal/friends"
	"github.com/jason-s-yu/streamify/internal/handlers"
	"github.com/jason-s-yu/streamify/internal/middleware"
	"github.com/jason-s-yu/streamify/internal/notify"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply postgres migrations before serving")
	return cmd
}

func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger, migrate bool) (database.Store, error) {
	switch cfg.DB.Driver {
	case "postgres":
		dsn := cfg.Postgres.DSN()
		if migrate {
			if err := postgres.Migrate(dsn); err != nil {
				return nil, err
			}
			logger.Info("migrations applied")
		}
		return postgres.Connect(ctx, dsn)
	case "mongo":
		return mongodb.Connect(ctx, mongodb.Config{
			URI:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			MaxPoolSize: cfg.Mongo.MaxPoolSize,
		})
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DB.Driver)
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger, migrate bool) error {
	store, err := openStore(ctx, cfg, logger, migrate)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.DB.Driver, err)
	}
	defer store.Close(context.Background())
	logger.Infof("connected to %s", cfg.DB.Driver)

	var (
		denylist auth.Denylist
		broker   notify.Broker
	)
	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cache.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer func(rdb *redis.Client) { _ = rdb.Close() }(rdb)
		denylist = cache.NewDenylist(rdb)
		broker = notify.NewRedisBroker(rdb, logger)
		logger.Infof("using redis at %s for sessions and notifications", cfg.Redis.Addr)
	} else {
		denylist = auth.NewMemoryDenylist()
		broker = notify.NewLocalBroker(logger)
	}
	defer broker.Close()

	ttl, err := cfg.Auth.TokenTTL()
	if err != nil {
		return err
	}
	if cfg.Auth.KeySeed == "" {
		logger.Warn("JWT_KEY_SEED not set; sessions will not survive a restart")
	}
	sessions, err := auth.NewSessionManager(cfg.Auth.KeySeed, ttl, denylist)
	if err != nil {
		return err
	}

	var chatTTL time.Duration
	if cfg.Chat.TokenExpireTime != "" {
		chatTTL, _ = time.ParseDuration(cfg.Chat.TokenExpireTime)
	}
	chatClient := chat.NewClient(chat.Config{
		APIKey:    cfg.Chat.APIKey,
		APISecret: cfg.Chat.APISecret,
		BaseURL:   cfg.Chat.BaseURL,
		TokenTTL:  chatTTL,
	}, nil, logger)
	if !chatClient.Enabled() {
		logger.Warn("STREAM_API_KEY or STREAM_API_SECRET missing; chat is disabled")
	}

	srv := &handlers.Server{
		Accounts: accounts.NewService(store.Users(), sessions, chatClient, logger),
		Friends:  friends.NewService(store, broker, logger),
		Chat:     chatClient,
		Broker:   broker,
		DB:       store,
		Logger:   logger,
		Cookie: handlers.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.App.Production(),
			TTL:    ttl,
		},
		FrontendOrigin: cfg.App.FrontendOrigin,
		AuthRateLimit: middleware.RateLimit{
			Requests:   cfg.RateLimit.AuthRequests,
			Window:     time.Duration(cfg.RateLimit.AuthWindowSec) * time.Second,
			Burst:      cfg.RateLimit.AuthBurst,
			TrustProxy: cfg.RateLimit.TrustProxy,
		},
	}

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
