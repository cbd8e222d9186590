package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"google.golang.org/grpc"

	"github.com/rl1809/order-ledger/internal/adapter/event"
	"github.com/rl1809/order-ledger/internal/adapter/handler"
	"github.com/rl1809/order-ledger/internal/adapter/storage"
	"github.com/rl1809/order-ledger/internal/config"
	"github.com/rl1809/order-ledger/internal/core/service"
	"github.com/rl1809/order-ledger/internal/port"
	"github.com/rl1809/order-ledger/pkg/logger"
)

func main() {
	cfg, warnings := config.Load()

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.LogLevel)
	logCfg.Format = cfg.LogFormat
	logCfg.Component = "server"
	log := logger.New(logCfg)

	for _, w := range warnings {
		log.Warn("Configuration warning", "detail", w)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	dsn, err := cfg.DatabaseDSN()
	if err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Error("Failed to open mysql", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.MySQLMaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQLMaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping mysql", "error", err)
		os.Exit(1)
	}
	if err := storage.Migrate(ctx, db); err != nil {
		log.Error("Failed to migrate schema", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: cfg.RedisPoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to redis")

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	var locker port.Locker
	if cfg.LockBackend == "local" {
		locker = storage.NewLocalLocker(cfg.LockWait)
	} else {
		locker = storage.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait, log)
	}

	sinks := []event.Sink{event.NewRedisSink(rdb, cfg.EventChannelPrefix)}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, event.NewWebhookSink(cfg.WebhookURL, cfg.WebhookTimeout))
	}
	publisher := event.NewPublisher(cfg.PublishTimeout, log, sinks...)

	// Initialize services
	ledger := service.NewAuditLedger(mysqlAdapter, cfg.AuditAppendAttempts, log)
	scorer := service.NewScoringService(mysqlAdapter, mysqlAdapter, locker, redisAdapter, publisher, log)
	orderService := service.NewOrderService(mysqlAdapter, ledger, scorer, locker, redisAdapter, publisher, log)

	// Retry deferred score recomputations
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RescoreSchedule, func() {
		n, err := scorer.ReconcileDeferred(ctx, cfg.RescoreBatchSize)
		if err != nil {
			log.Warn("Deferred rescore failed", "error", err)
			return
		}
		if n > 0 {
			log.Info("Deferred rescores reconciled", "count", n)
		}
	}); err != nil {
		log.Error("Failed to schedule rescore job", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterLifecycleServer(grpcServer, handler.NewGRPCHandler(orderService, log))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("Failed to listen", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}

	go func() {
		log.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", "error", err)
		}
	}()

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(orderService, scorer, log).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")

	<-scheduler.Stop().Done()
	cancel()

	// Drain in-flight event deliveries before closing redis
	publisher.Close()
	log.Info("Event publisher drained")

	rdb.Close()
	db.Close()
	log.Info("Connections closed")
}
