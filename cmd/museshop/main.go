// Package main starts the shop backend HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/modestmuse/museshop/internal/assistant"
	"github.com/modestmuse/museshop/internal/config"
	"github.com/modestmuse/museshop/internal/handler"
	"github.com/modestmuse/museshop/internal/middleware"
	"github.com/modestmuse/museshop/internal/payment"
	"github.com/modestmuse/museshop/internal/repository"
	"github.com/modestmuse/museshop/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var card service.CardProcessor
	if cfg.StripeSecretKey != "" {
		card = payment.NewCardClient(cfg.StripeSecretKey)
	}
	verifier := payment.NewWebhookVerifier(cfg.StripeWebhookSecret)

	svc := service.NewService(repo, card, verifier, cfg.GuestCheckout, logger)
	defer svc.Close()

	modelClient := assistant.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	agent := assistant.NewAgent(modelClient, repo, logger)

	var rdb *redis.Client
	if cfg.RedisAddress != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		defer rdb.Close()
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.TokenSecret, cfg.TokenTTL, repo)
	h := handler.NewHandler(svc, agent, logger, authMiddleware)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(rdb, cfg.AllowedOrigins),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting museshop server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
