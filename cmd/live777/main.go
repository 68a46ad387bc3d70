// Package main runs the Live777 Core WHIP/WHEP SFU server with graceful
// shutdown: load config, wire
// optional PostgreSQL/Redis dependencies, build the router, serve, drain.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/live777/live777-go/config"
	"github.com/live777/live777-go/internal/authn"
	"github.com/live777/live777-go/internal/recorder"
	"github.com/live777/live777-go/internal/signalling"
	"github.com/live777/live777-go/internal/webrtcsfu"
	"github.com/live777/live777-go/pkg/database"
	"github.com/live777/live777-go/pkg/metrics"
	"github.com/live777/live777-go/pkg/queue"
	"github.com/live777/live777-go/pkg/redis"
	"github.com/live777/live777-go/pkg/turnauth"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.Database.DSN != "" {
		p, err := database.NewPostgresPool(ctx, cfg.Database.DSN, logger)
		if err != nil {
			logger.Warn("postgres audit log disabled", zap.Error(err))
		} else {
			if err := database.Migrate(ctx, p); err != nil {
				logger.Warn("audit log migration failed", zap.Error(err))
			}
			pool = p
			defer p.Close()
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("redis presence/queue disabled", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	var jobQueue *queue.Queue
	if rdb != nil {
		jobQueue = queue.NewQueue(rdb.Client, logger)
	}

	nodeID := uuid.NewString()

	var presence *webrtcsfu.Presence
	var presenceTracker *webrtcsfu.PresenceTracker
	if rdb != nil {
		presence = webrtcsfu.NewPresence(rdb.Client, nodeID, logger)
		presenceTracker = webrtcsfu.NewPresenceTracker()
		go presenceTracker.Run(ctx, presence)
	}

	audit := webrtcsfu.NewAuditSink(pool, jobQueue, presence, logger)

	registry := webrtcsfu.NewRegistry(cfg.Timers.StreamIdleTTL, webrtcsfu.ForwarderConfig{
		KeyframeRequestInterval: cfg.Timers.KeyframeRequestInterval,
		NackUpstreamInterval:    cfg.Timers.NackUpstreamInterval,
		CascadeIdleTTL:          cfg.Timers.CascadeIdleTTL,
	}, logger)
	defer registry.Shutdown()

	peers, err := signalling.NewPeerFactory(&cfg.WebRTC, logger)
	if err != nil {
		logger.Fatal("peer factory", zap.Error(err))
	}

	auth := authn.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.StaticTokens)
	if auth.Disabled() {
		logger.Warn("auth disabled: no static tokens or JWT secret configured")
	}

	var turn *turnauth.Minter
	if cfg.WebRTC.TURNSecret != "" {
		turn = turnauth.NewMinter(cfg.WebRTC.TURNSecret, cfg.WebRTC.TURNRealm, cfg.WebRTC.TURNTTL)
	}

	cascadeClient := webrtcsfu.NewCascadeClient(nodeID, logger)

	m := metrics.NewRegistry()

	var recSvc *recorder.Service
	if cfg.Recording.OutputDir != "" {
		recSvc = recorder.NewService(registry, cfg.Recording.OutputDir, logger)
	}

	srv := signalling.NewServer(cfg, registry, peers, auth, turn, cascadeClient, m, audit, recSvc, presenceTracker, logger)
	router := srv.NewRouter()

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("live777 listening", zap.String("port", cfg.Server.Port), zap.String("node_id", nodeID))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("live777 stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
