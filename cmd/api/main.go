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

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-user-service/internal/config"
	"github.com/go-user-service/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-user-service/internal/infrastructure/jwt"
	"github.com/go-user-service/internal/infrastructure/memory"
	"github.com/go-user-service/internal/infrastructure/metrics"
	redisstore "github.com/go-user-service/internal/infrastructure/redis"
	"github.com/go-user-service/internal/infrastructure/smtp"
	"github.com/go-user-service/internal/infrastructure/sns"
	transporthttp "github.com/go-user-service/internal/transport/http"
	appmiddleware "github.com/go-user-service/internal/transport/http/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	setupLogger(cfg)
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

func run(ctx context.Context, cfg *config.Config) error {
	var dynamoClient *dynamodb.Client
	if cfg.UserStore == config.BackendDynamo || cfg.VerificationStore == config.BackendDynamo {
		c, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		// Creates the tables if they don't exist.
		dynamo.Bootstrap(ctx, c, cfg.DynamoTables)
		dynamoClient = c
	}

	var userRepo transporthttp.UserRepository
	switch cfg.UserStore {
	case config.BackendMemory:
		userRepo = memory.NewUserRepo()
	case config.BackendDynamo:
		userRepo = dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	default:
		return fmt.Errorf("unknown USER_STORE %q", cfg.UserStore)
	}

	var verifications transporthttp.VerificationStore
	switch cfg.VerificationStore {
	case config.BackendMemory:
		store := memory.NewVerificationStore()
		go store.RunSweeper(ctx, cfg.SweepInterval)
		verifications = store
	case config.BackendDynamo:
		verifications = dynamo.NewVerificationRepo(dynamoClient, cfg.DynamoTables.UserVerifications)
	case config.BackendRedis:
		client, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		verifications = redisstore.NewVerificationStore(client)
	default:
		return fmt.Errorf("unknown VERIFICATION_STORE %q", cfg.VerificationStore)
	}
	slog.Info("stores selected", "users", cfg.UserStore, "verifications", cfg.VerificationStore)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}
	go watchKeyRotation(ctx, cfg, jwtProvider)

	mailer := smtp.NewDispatcher(smtp.NewMailer(cfg), cfg.MailQueueSize)
	defer mailer.Close()

	// SNS SMS sender (optional, codes fall back to email).
	var smsSender sns.SMSSender
	if awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg, cfg.SNSRegion); err == nil {
		smsSender = sns.NewSender(awsCfg, cfg.AWSEndpointURL)
	} else {
		slog.Warn("SNS sender not available", "err", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterMetrics(reg)

	limiter := appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	defer limiter.Stop()

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		UserRepo:          userRepo,
		VerificationStore: verifications,
		Mailer:            mailer,
		SMSSender:         smsSender,
		JWTProvider:       jwtProvider,
		Metrics:           reg,
		RateLimiter:       limiter,
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
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
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

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// watchKeyRotation re-reads JWT_PRIVATE_KEY_PATH on SIGHUP and promotes it as
// the signing key. Tokens signed by the previous key stay valid for
// JWT_ROTATION_GRACE.
func watchKeyRotation(ctx context.Context, cfg *config.Config, p *jwtinfra.Provider) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			key, err := jwtinfra.LoadPrivateKey(cfg.JWTPrivateKeyPath)
			if err != nil {
				slog.Error("key rotation failed", "err", err)
				continue
			}
			kid := fmt.Sprintf("%s-%d", cfg.JWTKeyID, time.Now().Unix())
			if err := p.Rotate(kid, key); err != nil {
				slog.Error("key rotation failed", "err", err)
				continue
			}
			slog.Info("signing key rotated", "kid", kid, "grace", cfg.JWTRotationGrace)
		}
	}
}
