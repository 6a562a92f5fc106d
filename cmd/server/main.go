package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/collab-core/internal/api/handler"
	"github.com/d60-Lab/collab-core/internal/api/router"
	"github.com/d60-Lab/collab-core/internal/config"
	"github.com/d60-Lab/collab-core/internal/lease"
	"github.com/d60-Lab/collab-core/internal/model"
	"github.com/d60-Lab/collab-core/internal/repository"
	"github.com/d60-Lab/collab-core/internal/service"
	"github.com/d60-Lab/collab-core/internal/stream"
	"github.com/d60-Lab/collab-core/pkg/logger"
	"github.com/d60-Lab/collab-core/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Server.Mode); err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	shutdownTracing, err := telemetry.Init(ctx, "collab-core", cfg.Telemetry.Endpoint)
	if err != nil {
		logger.Warn("telemetry init failed", zap.Error(err))
	} else {
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		logger.Error("open database failed", zap.Error(err))
		return
	}
	if err := db.AutoMigrate(
		&model.User{}, &model.Chapter{}, &model.BookFollower{},
		&model.OutboxEvent{}, &model.Notification{},
	); err != nil {
		logger.Error("migrate failed", zap.Error(err))
		return
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		return
	}

	outboxRepo := repository.NewOutboxRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	chapterRepo := repository.NewChapterRepository(db)
	followerRepo := repository.NewBookFollowerRepository(db)

	lockService := service.NewSoftLockService(lease.NewRedisStore(rdb), cfg.Lock.KeyPrefix, cfg.Lock.TTL)

	broker := stream.NewBroker(cfg.Stream.ClientBuffer)
	var publisher stream.Publisher = broker
	if cfg.Stream.RedisBridge {
		// 多进程部署：发布经 redis pub/sub，任一进程的发布可达所有进程的连接
		bridge := stream.NewRedisBridge(rdb, broker, cfg.Stream.BridgeChannel)
		defer bridge.Run(ctx)()
		publisher = bridge
	}

	drainer := service.NewDrainer(outboxRepo, notifRepo, publisher)

	var trigger service.DrainTrigger
	switch cfg.Outbox.Mode {
	case "worker":
		worker := service.NewWorkerTrigger(drainer, cfg.Outbox.PollInterval, cfg.Outbox.BatchLimit)
		stopWorker := worker.Start()
		defer func() { _ = stopWorker(context.Background()) }()
		trigger = worker
	case "manual":
		trigger = service.NoopTrigger{}
	default:
		trigger = &service.SyncTrigger{Drainer: drainer, Limit: cfg.Outbox.BatchLimit}
	}

	queue := service.NewEventQueue(db, outboxRepo, trigger)
	followerCache := service.NewFollowerCache(rdb, cfg.Cache.FollowerTTL)
	chapterService := service.NewChapterService(db, chapterRepo, followerRepo, followerCache, queue)

	h := handler.New(lockService, chapterService, drainer, outboxRepo, notifRepo, broker, cfg.Stream.KeepaliveInterval)
	engine := router.New(cfg, h)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: engine}
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exited", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	default:
		return gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{})
	}
}
