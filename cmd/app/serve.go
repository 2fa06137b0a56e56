package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/marginalia/internal/ai"
	"github.com/local/marginalia/internal/config"
	"github.com/local/marginalia/internal/logger"
	"github.com/local/marginalia/internal/metrics"
	"github.com/local/marginalia/internal/mupdf"
	"github.com/local/marginalia/internal/orchestrator"
	"github.com/local/marginalia/internal/statuscheck"
	"github.com/local/marginalia/internal/storage"
	"github.com/local/marginalia/internal/store"
	"github.com/local/marginalia/internal/web"
)

const (
	defaultStaleAfter = 30 * time.Minute
	partialMaxAge     = time.Hour
)

type serveFlags struct {
	port       string
	staleAfter time.Duration
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the upload form, reader and JSON API",
		Example: `  # Listen on the PORT from the environment (default 5000)
  marginalia serve

  # Listen on a custom port
  marginalia serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVarP(&f.port, "port", "p", "", "Port to listen on (overrides PORT)")
	cmd.Flags().DurationVar(&f.staleAfter, "stale-after", defaultStaleAfter, "Fail jobs left processing for longer than this at startup")
	return cmd
}

func runServe(ctx context.Context, f serveFlags) error {
	cfg := config.FromEnv()
	if f.port != "" {
		cfg.Server.Port = f.port
	}
	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()

	db, err := store.Open(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	var redisPing statuscheck.Pinger
	if cfg.Database.RedisURL != "" {
		rs, err := store.NewRedisStatus(cfg.Database.RedisURL, cfg.Database.StatusTTL)
		if err != nil {
			log.Warn().Err(err).Msg("redis status mirror disabled")
		} else {
			defer rs.Close()
			db.WithMirror(rs)
			redisPing = rs
		}
	}

	if _, err := db.FailStale(ctx, f.staleAfter, "Processing was interrupted by a server restart"); err != nil {
		log.Warn().Err(err).Msg("stale job sweep failed")
	}

	files, err := storage.NewLocal(cfg.Server.UploadDir)
	if err != nil {
		return err
	}
	if n := files.CleanupPartial(partialMaxAge); n > 0 {
		log.Info().Int("files", n).Msg("removed partial uploads")
	}

	var mirror orchestrator.Mirror
	var s3Ping statuscheck.Pinger
	if cfg.Storage.S3Bucket != "" {
		m, err := storage.NewS3Mirror(ctx, cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
		if err != nil {
			log.Warn().Err(err).Str("bucket", cfg.Storage.S3Bucket).Msg("s3 upload mirror disabled")
		} else {
			mirror = m
			s3Ping = m
		}
	}

	analyzer, closeAI, err := ai.NewFromConfig(ctx, cfg.AI)
	if err != nil {
		return fmt.Errorf("init ai: %w", err)
	}
	defer func() { _ = closeAI() }()

	metrics.Init()

	orch := orchestrator.New(orchestrator.Dependencies{
		DB:             db,
		Files:          files,
		Mirror:         mirror,
		Extractor:      mupdf.NewExtractor(),
		Analyzer:       analyzer,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	flash, err := web.NewFlasher(cfg.Server.SessionSecret)
	if err != nil {
		return err
	}
	site, err := web.New(orch, flash, cfg.Server.MaxUploadBytes)
	if err != nil {
		return err
	}

	checker := statuscheck.New(statuscheck.Options{
		DB:        db,
		Redis:     redisPing,
		S3:        s3Ping,
		Provider:  providerFor(cfg.AI),
		ImageMode: analyzer.ImageMode(),
	})

	mux := http.NewServeMux()
	orch.RegisterRoutes(mux)
	site.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /status", checker.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("ai_text", analyzer.Mode()).
			Str("ai_images", analyzer.ImageMode()).
			Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
			return err
		}
		log.Info().Msg("shutdown complete")
		return nil
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}
}

func providerFor(cfg config.AIConfig) statuscheck.Provider {
	switch cfg.Engine {
	case "openai":
		return statuscheck.Provider{Engine: "openai", APIKey: cfg.OpenAIAPIKey}
	case "anthropic":
		return statuscheck.Provider{Engine: "anthropic", APIKey: cfg.AnthropicAPIKey}
	case "mock":
		return statuscheck.Provider{Engine: "mock"}
	default:
		return statuscheck.Provider{Engine: "gemini", APIKey: cfg.GeminiAPIKey}
	}
}
