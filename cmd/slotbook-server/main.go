package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"slotbook/backend/internal/config"
	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/jobs"
	"slotbook/backend/internal/logging"
	"slotbook/backend/internal/service/appointments"
	"slotbook/backend/internal/store"
	"slotbook/backend/internal/store/postgres"
	"slotbook/backend/internal/store/rediscache"
	grpcTransport "slotbook/backend/internal/transport/grpc"
	httpTransport "slotbook/backend/internal/transport/http"
)

const serviceName = "slotbook-server"

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

	log.Info(
		"starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("log_level", cfg.LogLevel),
		slog.Bool("release_cancelled_slots", cfg.ReleaseCancelledSlots),
	)

	loc, err := cfg.Location()
	if err != nil {
		log.Error("invalid business timezone", slog.Any("err", err), slog.String("timezone", cfg.BusinessTimezone))
		os.Exit(1)
	}
	hours := domain.BusinessHours{OpenHour: cfg.BusinessOpenHour, CloseHour: cfg.BusinessCloseHour}
	if err := hours.Validate(); err != nil {
		log.Error("invalid business hours", slog.Any("err", err))
		os.Exit(1)
	}

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
	db.AddQueryHook(&postgres.SlowQueryHook{Log: log.With(slog.String("component", "postgres")), Threshold: cfg.DBSlowQuery})

	var repo store.AppointmentRepository = postgres.NewAppointmentRepo(db, store.SlotPolicy{ReleaseCancelled: cfg.ReleaseCancelledSlots})

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	if cfg.BusyCacheTTL > 0 {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unavailable; busy cache disabled", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
		} else {
			repo = rediscache.NewBusyCache(repo, rdb, cfg.BusyCacheTTL, log)
			log.Info("busy cache enabled", slog.Duration("ttl", cfg.BusyCacheTTL))
		}
	}

	queue := asynq.NewClient(redisOpt)
	defer func() {
		if err := queue.Close(); err != nil {
			log.Warn("queue client close failed", slog.Any("err", err))
		}
	}()

	svc := appointments.NewService(
		repo,
		postgres.NewDirectoryRepo(db),
		jobs.NewAsynqScheduler(queue, cfg.QueueName, cfg.QueueMaxRetry),
		appointments.Options{
			Location:     loc,
			Hours:        hours,
			ReminderLead: cfg.ReminderLead,
			Logger:       log,
		},
	)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcTransport.DefaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout)),
	)
	grpcTransport.RegisterAppointmentsServiceServer(grpcServer, grpcTransport.NewAppointmentsServer(svc, log))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpTransport.NewHandler(svc, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info("servers started", slog.String("grpc_addr", cfg.GRPCAddr()), slog.String("http_addr", cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
			shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
			os.Exit(1)
		}
	}
}

func shutdown(log *slog.Logger, s *grpc.Server, h *http.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := h.Shutdown(ctx); err != nil {
		log.Warn("http shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}
