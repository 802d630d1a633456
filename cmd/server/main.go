// Scribeflow server - records voice notes, transcribes and enriches them,
// and writes formatted documents into the vault
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/scribeflow/platform/internal/audio"
	"github.com/scribeflow/platform/internal/capture"
	"github.com/scribeflow/platform/internal/config"
	"github.com/scribeflow/platform/internal/note"
	"github.com/scribeflow/platform/internal/restclient"
	"github.com/scribeflow/platform/internal/server"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	// Optional .env for local development
	_ = godotenv.Load()

	cfg := config.Load()

	providers := restclient.New(restclient.Config{
		ASRURL: cfg.ASRURL,
		OCRURL: cfg.OCRURL,
		LLMURL: cfg.LLMURL,
		APIKey: cfg.APIKey,
	})

	renderer := note.NewMarkdownRenderer(cfg.VaultDir)

	pipe := capture.New(providers, providers, providers, renderer, cfg)

	// The microphone is optional: headless deployments still accept uploads.
	var recorder server.Recorder
	if rec, err := audio.NewRecorder(cfg.SampleRate); err != nil {
		slog.Warn("audio device unavailable, recording endpoints disabled", "error", err)
	} else {
		recorder = rec
		defer func() { _ = rec.Close() }()
	}

	srv := server.New(pipe, recorder, cfg)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // captures block on provider calls
	}

	go func() {
		slog.Info("scribeflow server starting", "http", cfg.HTTPAddr, "vault", cfg.VaultDir)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
