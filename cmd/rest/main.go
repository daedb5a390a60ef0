package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"rag-chat-be/internal/bootstrap"
	"rag-chat-be/internal/config"
	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/server"
	"rag-chat-be/internal/tracer"
	"rag-chat-be/pkg/database"
	"rag-chat-be/pkg/events"
	pktNats "rag-chat-be/pkg/nats"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	// 2. Tracing
	shutdownTracer := tracer.InitTracer(cfg.Otel)

	// 3. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 4. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg)
	if err != nil {
		log.Fatalf("[FATAL] Failed to bootstrap: %v", err)
	}

	srv := server.New(cfg, container)
	printBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Run(); err != nil {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return container.WebSocketHub.Run(gctx)
	})

	g.Go(func() error {
		return container.ConsumerService.Consume(gctx)
	})

	if container.NatsSubscriber != nil {
		g.Go(func() error {
			// the ingestion service publishes this after re-indexing documents
			return container.NatsSubscriber.Subscribe(gctx, pktNats.Subject(events.DocumentIndexUpdated), "rag-chat-index", func(_ context.Context, _ events.Event) error {
				container.RetrievalCache.Flush()
				container.Logger.Info(constant.ModuleRetrieval, "Document index updated, retrieval cache flushed", nil)
				return nil
			})
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		color.Yellow("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		errs = append(errs, srv.Shutdown(shutdownCtx))
		errs = append(errs, container.Pipeline.Shutdown(shutdownCtx))
		errs = append(errs, shutdownTracer(shutdownCtx))
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server stopped with error: %v", err)
	}
	container.Close()
}

func printBanner(cfg *config.Config) {
	color.Cyan("rag-chat-be")
	color.White("  env:        %s", cfg.App.Environment)
	color.White("  llm:        %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	color.White("  retrieval:  %s, top %d", cfg.Retrieval.Backend, cfg.Retrieval.TopK)
	color.White("  workers:    %d", cfg.Pipeline.WorkerPoolSize)
	if cfg.Auth.AllowAnonymous {
		color.Yellow("  anonymous connections allowed")
	}
}
