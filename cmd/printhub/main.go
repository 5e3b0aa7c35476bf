// Package main запускает HTTP-сервер сервиса printhub.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/printhub-system/internal/blobstore"
	"github.com/mmeshcher/printhub-system/internal/config"
	"github.com/mmeshcher/printhub-system/internal/handler"
	"github.com/mmeshcher/printhub-system/internal/middleware"
	"github.com/mmeshcher/printhub-system/internal/ranking"
	"github.com/mmeshcher/printhub-system/internal/repository"
	"github.com/mmeshcher/printhub-system/internal/service"
	"github.com/mmeshcher/printhub-system/internal/stream"
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

	blob := blobstore.NewClient(cfg.BlobStoreAddress, cfg.BlobUploadPreset)
	broker := stream.NewBroker()
	engine := ranking.NewEngine(ranking.Config{
		DistanceWeight: cfg.RankDistanceWeight,
		QueueWeight:    cfg.RankQueueWeight,
		Limit:          cfg.RankLimit,
	})

	svc := service.NewService(repo, blob, broker, engine, logger)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting printhub server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
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
