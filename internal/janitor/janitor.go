// Package janitor periodically reclaims old streams: once a stream was
// created longer ago than a configurable threshold, its torrent/HLS
// directories and registry entry are removed, whether or not a client
// still polls it. Streams that are downloading, converting or waiting
// for data are never reclaimed.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"torrentstream/internal/app"
	"torrentstream/internal/domain"
	"torrentstream/internal/metrics"
	"torrentstream/internal/registry"
)

// remover is the subset of the Coordinator the janitor needs: full
// teardown of a stream's acquirer/packager/registry/filesystem state.
type remover interface {
	Remove(id domain.StreamID)
}

// Janitor sweeps the registry on a fixed interval and removes streams
// older than IdleThreshold.
type Janitor struct {
	Registry      *registry.Registry
	Remover       remover
	DataDir       string
	Interval      time.Duration
	IdleThreshold time.Duration
	Logger        *slog.Logger
}

// New constructs a Janitor. interval and idleThreshold are given in
// minutes, matching the app.Config fields they're sourced from.
func New(reg *registry.Registry, rm remover, dataDir string, intervalMinutes, idleThresholdMinutes int, log *slog.Logger) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	return &Janitor{
		Registry:      reg,
		Remover:       rm,
		DataDir:       dataDir,
		Interval:      time.Duration(intervalMinutes) * time.Minute,
		IdleThreshold: time.Duration(idleThresholdMinutes) * time.Minute,
		Logger:        log,
	}
}

// Run blocks, sweeping every Interval, until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	before := app.ScanStorageUsage(j.DataDir)

	stale := j.Registry.ListOlderThan(j.IdleThreshold)
	metrics.JanitorSweepsTotal.Inc()

	if len(stale) == 0 {
		j.Logger.Debug("janitor: sweep found nothing stale",
			"data_dir_bytes", before.DataDirAllocatedBytes)
		return
	}

	for _, s := range stale {
		j.Logger.Info("janitor: reclaiming stale stream",
			"stream_id", s.ID, "status", s.Status, "age", time.Since(s.CreatedAt))
		j.Remover.Remove(s.ID)
	}
	metrics.JanitorReclaimedTotal.Add(float64(len(stale)))

	after := app.ScanStorageUsage(j.DataDir)
	j.Logger.Info("janitor: sweep complete",
		"reclaimed", len(stale),
		"bytes_before", before.DataDirAllocatedBytes,
		"bytes_after", after.DataDirAllocatedBytes)
}
