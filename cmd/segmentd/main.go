package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/segmentd/external/audio"
	configloader "github.com/foxseedlab/segmentd/external/config"
	"github.com/foxseedlab/segmentd/external/httpapi"
	repositoryimpl "github.com/foxseedlab/segmentd/external/repository"
	storageimpl "github.com/foxseedlab/segmentd/external/storage"
	transcriberimpl "github.com/foxseedlab/segmentd/external/transcriber"
	webhookimpl "github.com/foxseedlab/segmentd/external/webhook"
	"github.com/foxseedlab/segmentd/internal/config"
	"github.com/foxseedlab/segmentd/internal/ingest"
	"github.com/foxseedlab/segmentd/internal/pipeline"
	"github.com/foxseedlab/segmentd/internal/repository"
	"github.com/foxseedlab/segmentd/internal/transcriber"
	"github.com/foxseedlab/segmentd/internal/worker"
	"github.com/samber/do/v2"
)

const (
	shutdownTimeout   = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "audio_codec", cfg.AudioCodec, "stt_provider", cfg.STTProvider)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching http server")
	runServer(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	storageimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	worker.RegisterDI(injector)
	pipeline.RegisterDI(injector)
	ingest.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func runServer(cfg *config.Config, injector do.Injector) {
	server, err := do.Invoke[*httpapi.Server](injector)
	if err != nil {
		slog.Error("failed to resolve http server", "error", err)
		os.Exit(1)
	}
	manager := do.MustInvoke[*ingest.Manager](injector)
	index := do.MustInvoke[repository.SegmentIndex](injector)
	defer index.Close()
	engine := do.MustInvoke[transcriber.Engine](injector)
	if closer, ok := engine.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				slog.Error("speech engine close failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.RunJanitor(ctx, cfg.TempPurgeInterval)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	done := make(chan struct{})
	go func() {
		slog.Info("startup: listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
}
