package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/checkers-match-backend/internal/config"
	"github.com/DoyleJ11/checkers-match-backend/internal/httpapi"
	"github.com/DoyleJ11/checkers-match-backend/internal/hub"
	"github.com/DoyleJ11/checkers-match-backend/internal/logging"
	"github.com/DoyleJ11/checkers-match-backend/internal/room"
	"github.com/DoyleJ11/checkers-match-backend/internal/stats"
	"github.com/DoyleJ11/checkers-match-backend/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server_exited", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	conns := ws.NewConnections(cfg.WSSendBuffer, logger.Named("conns"))
	h := hub.NewHub(ctx, hub.Config{
		Rooms: room.Config{
			TurnLimit: cfg.TurnTimeout,
			Clock:     clock,
			Outbox:    conns,
		},
		Logger: logger.Named("hub"),
	})
	gw := ws.NewGateway(h, conns, clock, logger.Named("gateway"))

	deps := httpapi.Deps{
		Hub:     h,
		Gateway: gw,
		WS: ws.HandlerConfig{
			ReadTimeout:    cfg.WSReadTimeout,
			OriginPatterns: cfg.AllowedOrigins,
		},
		LeaderboardLimit: cfg.LeaderboardLimit,
		Logger:           logger.Named("http"),
	}

	if cfg.DatabaseURL != "" {
		db, err := stats.Open(cfg.DatabaseURL, logger.Named("stats"))
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		var store stats.Store = db
		if cfg.RedisURL != "" {
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return err
			}
			rdb := redis.NewClient(opts)
			defer func() { _ = rdb.Close() }()
			store = stats.NewCachedStore(db, rdb, cfg.LeaderboardCacheTTL, logger.Named("cache"))
		}
		deps.Stats = store
	} else {
		logger.Info("stats_disabled", zap.String("reason", "DATABASE_URL not set"))
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.SetupRoutes(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.Duration("turn_timeout", cfg.TurnTimeout))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting_down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Hijacked websockets are not tracked by Shutdown; stopping the hub
		// ends every room and its timer.
		err := srv.Shutdown(shutdownCtx)
		if herr := h.Shutdown(shutdownCtx); herr != nil && err == nil {
			err = herr
		}
		return err
	})
	return g.Wait()
}
