package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"slotbook/backend/internal/config"
	"slotbook/backend/internal/jobs"
	"slotbook/backend/internal/logging"
	"slotbook/backend/internal/store"
	"slotbook/backend/internal/store/postgres"
)

const serviceName = "notifications-worker"

func main() {
	log := logging.New(os.Stdout, serviceName, "info")
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = logging.New(os.Stdout, serviceName, cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("connecting to database", postgres.LogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, postgres.LogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	repo := postgres.NewAppointmentRepo(db, store.SlotPolicy{ReleaseCancelled: cfg.ReleaseCancelledSlots})
	worker := jobs.NewWorker(repo, jobs.LogNotifier{Log: log}, log)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	srv := jobs.NewServer(redisOpt, jobs.ServerConfig{
		Queue:       cfg.QueueName,
		Concurrency: cfg.QueueConcurrency,
	}, log.With(slog.String("component", "asynq")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() { _ = rdb.Close() }()
	go monitorRedis(ctx, log, rdb, 10*time.Second)

	if err := srv.Start(worker.Mux()); err != nil {
		log.Error("worker start failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
		os.Exit(1)
	}
	log.Info("worker started", slog.String("queue", cfg.QueueName), slog.Int("concurrency", cfg.QueueConcurrency))

	<-ctx.Done()
	log.Info("shutdown signal received")
	srv.Shutdown()
	log.Info("worker stopped")
}

// monitorRedis logs when the queue backend stops answering pings.
func monitorRedis(ctx context.Context, log *slog.Logger, rdb *redis.Client, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()

		switch {
		case err != nil && healthy:
			log.Warn("redis connection lost", slog.Any("err", err))
			healthy = false
		case err == nil && !healthy:
			log.Info("redis connection restored")
			healthy = true
		}
	}
}
