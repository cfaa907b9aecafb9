package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/spf13/cobra"

	"github.com/voskpaul/clipwizard/config"
	"github.com/voskpaul/clipwizard/handlers"
	"github.com/voskpaul/clipwizard/internal/analyze"
	"github.com/voskpaul/clipwizard/internal/events"
	"github.com/voskpaul/clipwizard/internal/media"
	"github.com/voskpaul/clipwizard/internal/pipeline"
	"github.com/voskpaul/clipwizard/internal/storage"
	"github.com/voskpaul/clipwizard/internal/store"
	"github.com/voskpaul/clipwizard/internal/transcribe"
	"github.com/voskpaul/clipwizard/internal/worker"
	"github.com/voskpaul/clipwizard/middleware"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and processing workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.GroqAPIKey == "" {
		return fmt.Errorf("GROQ_API_KEY is required")
	}
	log := config.NewLogger(cfg.LogLevel, cfg.LogJSON)

	var (
		st        store.Store
		artifacts storage.ArtifactStore
	)
	switch cfg.StorageBackend {
	case "supabase":
		pgStore, err := store.NewPostgrestStore(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return err
		}
		supaStore, err := storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.StorageBucket)
		if err != nil {
			return err
		}
		st, artifacts = pgStore, supaStore
	default:
		localStore, err := storage.NewLocalStore(cfg.LocalStorageRoot)
		if err != nil {
			return err
		}
		st, artifacts = store.NewMemoryStore(), localStore
	}

	bus := events.NewBus(log)
	toolkit := media.New(cfg.FFmpegPath, cfg.FFprobePath, log)
	transcriber := transcribe.New(cfg.TranscribeBaseURL, cfg.GroqAPIKey, cfg.TranscribeModel, log)
	analyzer, err := analyze.NewGroqAnalyzer(cfg.GroqAPIKey, cfg.GroqModel, log)
	if err != nil {
		return err
	}

	orch := pipeline.NewOrchestrator(st, artifacts, toolkit, transcriber, analyzer, bus, log, cfg.WorkDir)
	dispatcher := worker.NewDispatcher(cfg.Workers, cfg.QueueSize, log)
	dispatcher.Run()
	svc := pipeline.NewService(orch, dispatcher, st, log, cfg.RunTimeout)

	recoverCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := svc.Recover(recoverCtx); err != nil {
		cancel()
		return err
	}
	cancel()

	app := fiber.New(fiber.Config{
		BodyLimit: 8 * 1024 * 1024,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(middleware.RequestLogger(log))

	h := handlers.NewApplicationHandler(log, st, artifacts, svc, bus)
	h.RegisterRoutes(app)

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting clipwizard on port %s", cfg.Port)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		dispatcher.Stop()
		return err
	case sig := <-quit:
		log.Infof("Received %s, shutting down", sig)
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Error("HTTP shutdown failed")
	}
	dispatcher.Stop()
	log.Info("Shutdown complete")
	return nil
}
