package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apihttp "torrentstream/internal/api/http"
	"torrentstream/internal/acquirer"
	"torrentstream/internal/app"
	"torrentstream/internal/coordinator"
	"torrentstream/internal/janitor"
	"torrentstream/internal/metrics"
	"torrentstream/internal/paths"
	"torrentstream/internal/registry"
	"torrentstream/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), cfg.OTelServiceName)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("port", cfg.Port),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("torrentDataDir", cfg.TorrentDataDir),
		slog.String("tempRoot", cfg.TempRoot),
		slog.Int("maxConcurrentStreams", cfg.MaxConcurrentStreams),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pathSvc := paths.New(cfg.TempRoot)
	reg := registry.New()

	acq, err := acquirer.New(acquirer.Config{DataDir: cfg.TorrentDataDir}, logger)
	if err != nil {
		logger.Error("acquirer init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer acq.Close()

	coord := coordinator.New(coordinator.Config{
		MaxConcurrentStreams: cfg.MaxConcurrentStreams,
		FFmpegPath:           cfg.FFMPEGPath,
		FFprobePath:          cfg.FFProbePath,
		SegmentDuration:      cfg.HLSSegmentDuration,
		Preset:               cfg.HLSPreset,
		CRF:                  cfg.HLSCRF,
		AudioBitrate:         cfg.HLSAudioBitrate,
	}, reg, acq, pathSvc, logger)

	j := janitor.New(reg, coord, cfg.TorrentDataDir, cfg.JanitorInterval, cfg.JanitorIdleThreshold, logger)
	go j.Run(rootCtx)

	handler := apihttp.NewServer(coord, reg, pathSvc, apihttp.Config{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("port", cfg.Port))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
