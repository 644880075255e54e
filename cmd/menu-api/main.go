// cmd/menu-api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"menu-catalog-api/internal/config"
	"menu-catalog-api/internal/generation"
	"menu-catalog-api/internal/server"
	"menu-catalog-api/internal/service"
	"menu-catalog-api/internal/storage"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.ShowVersion {
		fmt.Printf("menu-api version %s\n", version)
		os.Exit(0)
	}

	setupLogging(cfg)
	if err := run(cfg); err != nil {
		log.WithError(err).Fatal("Server exited")
	}
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return storage.NewPostgresStorage(cfg.DatabaseURL)
	default:
		return storage.NewSQLiteStorage(cfg.DBPath)
	}
}

func newGenerator(cfg *config.Config) (generation.Generator, error) {
	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY is not set; generation endpoints will fail")
	}
	switch cfg.Backend {
	case config.BackendLLMS:
		return generation.NewGeminiLLMS(cfg.GeminiAPIKey, cfg.GeminiModel), nil
	case config.BackendGemini:
		return generation.NewGeminiClient(generation.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
			Timeout: cfg.GenerationTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown generation backend %q", cfg.Backend)
	}
}

func run(cfg *config.Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	svc := service.New(store, gen, service.Options{
		Paging:                storage.PageLimits{Default: cfg.DefaultPageSize, Max: cfg.MaxPageSize},
		DefaultGeneratedItems: cfg.DefaultGeneratedItems,
		MaxGeneratedItems:     cfg.MaxGeneratedItems,
		RecommendPerCategory:  cfg.RecommendPerCategory,
		GenerationTimeout:     cfg.GenerationTimeout,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(svc, server.Config{Production: cfg.IsProduction()})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(log.Fields{
			"addr":    httpServer.Addr,
			"env":     cfg.Env,
			"db":      cfg.DBDriver,
			"backend": cfg.Backend,
			"model":   gen.Model(),
		}).Info("Starting menu API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
