package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/adapters/cache"
	eventadapter "github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/adapters/events"
	httpadapter "github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/adapters/http"
	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/adapters/postgres"
	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/adapters/security"
	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/application"
	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping auth service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("init redis client: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	repos := postgres.NewRepositories(pool)

	codec, err := security.NewJWTCodec(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTResetSecret)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init jwt codec: %w", err)
	}

	var publisher ports.EventPublisher
	var closePublisher func() error
	if cfg.KafkaDisabled {
		logger.Warn("kafka disabled; outbox events go to the log publisher")
		publisher = eventadapter.NewLoggingPublisher(logger)
	} else {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			"auth.user_registered":          cfg.KafkaTopic,
			"auth.account_locked":           cfg.KafkaTopic,
			"auth.password_changed":         cfg.KafkaTopic,
			"auth.sessions_revoked":         cfg.KafkaTopic,
			"auth.password_reset_requested": cfg.KafkaTopic,
		})
		if pubErr != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init kafka publisher: %w", pubErr)
		}
		publisher = kafkaPublisher
		closePublisher = kafkaPublisher.Close
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			AccessTokenTTL:        cfg.AccessTokenTTL,
			RefreshTokenTTL:       cfg.RefreshTokenTTL,
			SessionTTL:            cfg.SessionTTL,
			MaxSessionsPerUser:    cfg.MaxSessionsPerUser,
			FailedLoginThreshold:  cfg.FailedLoginThreshold,
			LoginIPThreshold:      cfg.LoginIPThreshold,
			AttemptWindow:         cfg.AttemptWindow,
			LockoutDuration:       cfg.LockoutDuration,
			ResetRequestThreshold: cfg.ResetRequestThreshold,
			ResetRequestWindow:    cfg.ResetRequestWindow,
			ResetTokenTTL:         cfg.ResetTokenTTL,
		},
		Users:         repos.Users,
		Affiliations:  repos.Affiliations,
		Sessions:      repos.Sessions,
		LoginAttempts: repos.LoginAttempts,
		ResetTokens:   repos.ResetTokens,
		Outbox:        repos.Outbox,
		SessionCache:  cacheadapter.NewRedisSessionCache(redisClient),
		Blacklist:     cacheadapter.NewRedisTokenBlacklist(redisClient),
		Limiter:       cacheadapter.NewRedisRateLimiter(redisClient),
		Hasher:        security.NewBcryptHasher(cfg.BcryptCost),
		Codec:         codec,
	})

	readyCheck := func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}

	handler := httpadapter.NewHandler(svc, readyCheck)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	outbox := eventadapter.NewOutboxWorker(
		logger,
		repos.Outbox,
		publisher,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxClaimTTL,
		cfg.OutboxMaxRetries,
	)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		cleanupFn: func(ctx context.Context) {
			if closePublisher != nil {
				_ = closePublisher()
			}
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
