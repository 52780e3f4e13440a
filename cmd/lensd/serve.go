package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"lensd/internal/capture"
	"lensd/internal/common/fsutil"
	"lensd/internal/config"
	"lensd/internal/daemon"
	"lensd/internal/httpapi"
	"lensd/internal/inference"
	"lensd/internal/registry"
	"lensd/internal/session"
	"lensd/internal/store"
	"lensd/internal/textdetect"
	"lensd/internal/transcribe"
	"lensd/internal/vision"
	"lensd/pkg/types"
)

const shutdownTimeout = 5 * time.Second

func runServe(parent context.Context, cfg config.Config, jsonLogs bool) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := newLogger(cfg.LogLevel, jsonLogs)
	httpapi.SetLogger(logger)

	// A missing or empty models dir is not fatal: the orchestrator reports
	// the critical state through /status instead.
	models, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		logger.Error().Str("event", "models_scan").Str("dir", cfg.ModelsDir).Err(err).Send()
		models = []types.Model{}
	}
	reg := session.NewRegistry(session.RegistryConfig{
		Models:  models,
		Backend: session.NewLlamaBackend(cfg.LlamaCtxSize, cfg.LlamaThreads, cfg.LlamaMaxTokens),
		Sampling: session.SamplingConfig{
			TopK:        cfg.TopK,
			TopP:        float32(cfg.TopP),
			Temperature: float32(cfg.Temperature),
		},
		Logger: logger,
	})
	if rep := reg.SanityCheck(); rep.Error != "" {
		logger.Warn().Str("event", "sanity").Bool("llama_built", rep.LlamaBuilt).Int("models", rep.Models).Str("reason", rep.Error).Send()
	}

	recordsDir, err := fsutil.EnsureDir(filepath.Join(cfg.DataDir, "records"))
	if err != nil {
		_ = reg.Close()
		return err
	}
	db, err := store.Open(store.Options{Dir: recordsDir, Logger: logger})
	if err != nil {
		_ = reg.Close()
		return err
	}

	orch := inference.New(inference.Config{
		Sessions:           reg,
		Store:              db,
		Transcriber:        transcribe.New(transcribe.Options{Language: cfg.SourceLang, Logger: logger}),
		DefaultModel:       session.ModelID(cfg.DefaultModel),
		SourceLang:         cfg.SourceLang,
		TargetLang:         cfg.TargetLang,
		GracePeriod:        config.Millis(cfg.GracePeriodMS),
		TextFlushInterval:  config.Millis(cfg.TextFlushMS),
		ImageFlushInterval: config.Millis(cfg.ImageFlushMS),
		Logger:             logger,
	})

	opts := daemon.Options{
		Orchestrator: orch,
		Text:         textdetect.New(textdetect.Options{MaxDimension: cfg.TextMaxPixels, Logger: logger}),
		History:      db,
		Logger:       logger,
	}
	if cfg.CaptureDir != "" {
		dir, err := fsutil.Resolve(cfg.CaptureDir)
		if err != nil {
			orch.Close()
			_ = reg.Close()
			_ = db.Close()
			return err
		}
		opts.Camera = capture.NewSource(capture.Options{Driver: capture.NewDirDriver(dir), Logger: logger})
		opts.Vision = vision.NewPipeline(vision.Options{Debounce: config.Millis(cfg.DebounceMS), Logger: logger})
	}
	svc := daemon.New(opts)

	if len(cfg.CORSOrigins) > 0 {
		httpapi.SetCORSOptions(true, cfg.CORSOrigins, nil, nil)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := orch.Start(ctx); err != nil {
			logger.Error().Str("event", "startup_load").Err(err).Send()
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(svc, httpapi.WithBaseContext(ctx)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("event", "listening").Str("addr", cfg.Addr).
			Str("models_dir", cfg.ModelsDir).Int("models", len(models)).
			Bool("camera", opts.Camera != nil).Send()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warn().Str("event", "shutdown").Err(err).Send()
	}
	closeErr := errors.Join(svc.Close(), reg.Close(), db.Close())
	logger.Info().Str("event", "stopped").Send()
	return errors.Join(serveErr, closeErr)
}
