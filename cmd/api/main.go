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

	"github.com/go-otp-gate/internal/config"
	"github.com/go-otp-gate/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-otp-gate/internal/infrastructure/jwt"
	"github.com/go-otp-gate/internal/infrastructure/provider"
	redisinfra "github.com/go-otp-gate/internal/infrastructure/redis"
	"github.com/go-otp-gate/internal/infrastructure/smtp"
	transporthttp "github.com/go-otp-gate/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if !cfg.IsDevelopment() {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		slog.Error("dynamodb client", "err", err)
		os.Exit(1)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	tokens, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		slog.Error("token provider", "err", err)
		os.Exit(1)
	}

	deps := &transporthttp.Deps{
		Store:    dynamo.NewVerificationRepo(dynamoClient, cfg.DynamoTables.Verifications),
		Provider: provider.NewClient(cfg),
		Tokens:   tokens,
		Mailer:   smtp.NewMailer(cfg),
	}

	// OTP lockout (optional, graceful fallback if Redis is unreachable).
	redisClient, err := redisinfra.NewClient(ctx, cfg)
	if err == nil {
		deps.Limiter = redisinfra.NewAttemptLimiter(redisClient, cfg.OTPMaxAttempts, cfg.OTPLockoutWindow)
		defer redisClient.Close()
	} else {
		slog.Warn("redis not available, otp lockout disabled", "err", err)
		_ = redisClient.Close()
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
		return
	}
	slog.Info("server stopped")
}
