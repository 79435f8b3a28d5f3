package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agrismart-api/internal/application/auth"
	"github.com/agrismart-api/internal/config"
	"github.com/agrismart-api/internal/infrastructure/devsms"
	"github.com/agrismart-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/agrismart-api/internal/infrastructure/jwt"
	"github.com/agrismart-api/internal/infrastructure/memory"
	"github.com/agrismart-api/internal/infrastructure/postgres"
	redisinfra "github.com/agrismart-api/internal/infrastructure/redis"
	"github.com/agrismart-api/internal/infrastructure/sns"
	"github.com/agrismart-api/internal/infrastructure/twilio"
	"github.com/agrismart-api/internal/pkg/clock"
	"github.com/agrismart-api/internal/pkg/logging"
	"github.com/agrismart-api/internal/pkg/metrics"
	transporthttp "github.com/agrismart-api/internal/transport/http"
	"github.com/agrismart-api/internal/transport/http/handler"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := logging.NewLogger(cfg.LogLevel, cfg.AppName, cfg.AppEnv)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Info("no .env file found, reading from environment")
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	clk := clock.System{}
	checks := map[string]handler.Check{}

	tokens, err := jwtinfra.NewProvider(cfg, clk)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	var dynamoClient *dynamodb.Client
	if cfg.OTPStore == config.BackendDynamo || cfg.UserStore == config.BackendDynamo {
		if dynamoClient, err = dynamo.NewClient(ctx, cfg); err != nil {
			return fmt.Errorf("dynamo client: %w", err)
		}
		dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
	}

	var otpStore auth.OTPStore
	switch cfg.OTPStore {
	case config.BackendRedis:
		rdb, err := redisinfra.NewClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		otpStore = redisinfra.NewOTPStore(rdb, "", clk)
	case config.BackendDynamo:
		otpStore = dynamo.NewOTPStore(dynamoClient, cfg.DynamoTables.OTPCodes, clk)
	default:
		otpStore = memory.NewOTPStore(clk)
	}

	var users auth.UserStore
	switch cfg.UserStore {
	case config.BackendPostgres:
		pg, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
		checks["postgres"] = pg.Ping
		users = pg
	case config.BackendDynamo:
		users = dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	default:
		users = memory.NewUserRepo()
	}

	var sms auth.SMSSender
	switch cfg.SMSProvider {
	case config.SMSProviderSNS:
		sender, err := sns.NewSender(ctx, cfg)
		if err != nil {
			return fmt.Errorf("sns sender: %w", err)
		}
		sms = sender
	case config.SMSProviderTwilio:
		sms = twilio.NewSender(cfg)
	default:
		sms = devsms.NewSender(logger)
	}

	svc := auth.NewService(auth.ServiceDeps{
		OTPStore:  otpStore,
		UserRepo:  users,
		SMSSender: sms,
		Tokens:    tokens,
		Clock:     clk,
		OTPLength: cfg.OTPLength,
		OTPTTL:    cfg.OTPTTL,
		AppName:   cfg.AppName,
	})

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	router := transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
		AuthService: svc,
		Tokens:      tokens,
		Checks:      checks,
		Metrics:     metrics.Handler(registry),
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"port", cfg.AppPort,
			"otp_store", cfg.OTPStore,
			"user_store", cfg.UserStore,
			"sms_provider", cfg.SMSProvider,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
