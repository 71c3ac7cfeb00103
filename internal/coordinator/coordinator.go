// Package coordinator implements the Stream Coordinator (C5): it drives
// a single stream through acquisition, packaging, and readiness,
// keeping the Stream Registry in sync with each stage and tearing
// everything down in the right order on failure or explicit removal.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"torrentstream/internal/acquirer"
	"torrentstream/internal/domain"
	"torrentstream/internal/metrics"
	"torrentstream/internal/packager"
	"torrentstream/internal/paths"
	"torrentstream/internal/probe"
	"torrentstream/internal/registry"
)

// tracer emits the coordinator's own spans. It resolves against
// whatever global TracerProvider telemetry.Init installed; with no
// OTLP endpoint configured that provider is a no-op, so spans cost
// nothing beyond a few struct allocations.
var tracer = otel.Tracer("torrentstream/coordinator")

// ErrTooManyStreams is returned by Create when admission control has no
// free slot. The HTTP layer maps this to 503 with a Retry-After header.
var ErrTooManyStreams = errors.New("coordinator: too many concurrent streams")

// pollInterval is how often a running stream's acquisition/packaging
// progress is re-checked.
const pollInterval = 2 * time.Second

// probeRetryInterval is how often the Coordinator retries sniffing the
// downloading file before enough of it has landed on disk.
const probeRetryInterval = 3 * time.Second

// Config wires the Coordinator's dependencies and tunables.
type Config struct {
	MaxConcurrentStreams int
	FFmpegPath           string
	SegmentDuration      int
	Preset               string
	CRF                  int
	AudioBitrate         string
	FFprobePath          string
}

// Coordinator orchestrates a stream's full lifecycle.
type Coordinator struct {
	registry *registry.Registry
	acq      *acquirer.Acquirer
	pkg      *packager.Packager
	paths    *paths.Service
	prober   *probe.Prober
	log      *slog.Logger

	admission *admission
}

// New constructs a Coordinator. The Coordinator and its packager share
// one prober instance: the Coordinator probes the file before packaging
// starts, the packager re-probes it for codec-mismatch checks.
func New(cfg Config, reg *registry.Registry, acq *acquirer.Acquirer, pathSvc *paths.Service, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	prober := probe.New(cfg.FFprobePath)
	pkg := packager.New(packager.Config{
		FFmpegPath:      cfg.FFmpegPath,
		SegmentDuration: cfg.SegmentDuration,
		Preset:          cfg.Preset,
		CRF:             cfg.CRF,
		AudioBitrate:    cfg.AudioBitrate,
	}, prober, log)

	c := &Coordinator{
		registry:  reg,
		acq:       acq,
		pkg:       pkg,
		paths:     pathSvc,
		prober:    prober,
		log:       log,
		admission: newAdmission(cfg.MaxConcurrentStreams),
	}
	go c.watchDeadTorrents()
	go c.refreshMetrics()
	return c
}

// metricsRefreshInterval mirrors the teacher's periodic engine-metrics
// ticker: frequent enough to feel live on a dashboard, cheap enough to
// run forever in the background.
const metricsRefreshInterval = 5 * time.Second

func (c *Coordinator) refreshMetrics() {
	ticker := time.NewTicker(metricsRefreshInterval)
	defer ticker.Stop()
	for range ticker.C {
		stats := c.registry.Stats()
		for _, status := range []domain.StreamStatus{
			domain.StreamInitializing, domain.StreamDownloading, domain.StreamWaitingForData,
			domain.StreamConverting, domain.StreamReady, domain.StreamError,
		} {
			metrics.ActiveStreams.WithLabelValues(string(status)).Set(float64(stats[status]))
		}

		peers, rate := c.acq.AggregateStats()
		metrics.PeersConnected.Set(float64(peers))
		metrics.DownloadSpeedBytes.Set(float64(rate))
	}
}

// Create registers a new stream and begins its acquisition/packaging
// pipeline in the background. It returns as soon as the stream is
// recorded in the registry as "initializing" — callers poll status via
// the registry, they do not block on readiness here.
func (c *Coordinator) Create(id domain.StreamID, magnetURI string) (domain.Stream, error) {
	if magnetURI == "" {
		return domain.Stream{}, wrap(KindInvalidInput, errors.New("magnet uri is required"))
	}
	if !c.admission.tryAcquire() {
		metrics.AdmissionRejectionsTotal.Inc()
		return domain.Stream{}, ErrTooManyStreams
	}
	metrics.AdmissionSlotsInUse.Set(float64(len(c.admission.slots)))

	s := c.registry.Create(id, magnetURI)
	go c.run(id, magnetURI)
	return s, nil
}

func (c *Coordinator) run(id domain.StreamID, magnetURI string) {
	ctx, span := tracer.Start(context.Background(), "stream.create",
		trace.WithAttributes(attribute.String("stream.id", string(id))))
	defer span.End()

	defer func() {
		c.admission.release()
		metrics.AdmissionSlotsInUse.Set(float64(len(c.admission.slots)))
	}()

	streamDir, hlsDir, err := c.paths.EnsureStreamDirs(id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ensure stream dirs")
		c.fail(id, wrap(KindIOError, err))
		return
	}

	if _, err := c.registry.UpdateStatus(id, domain.StreamDownloading, ""); err != nil {
		c.log.Error("coordinator: transition to downloading failed", "stream_id", id, "error", err)
		return
	}

	acqCtx, acqSpan := tracer.Start(ctx, "stream.acquire")
	selected, err := c.acq.Start(acqCtx, id, magnetURI, streamDir)
	acqSpan.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquisition failed")
		switch {
		case errors.Is(err, acquirer.ErrInvalidMagnet):
			c.fail(id, wrap(KindInvalidInput, err))
		case errors.Is(err, acquirer.ErrNoMedia):
			c.fail(id, wrap(KindNoMedia, err))
		default:
			c.fail(id, wrap(KindEngineError, err))
		}
		return
	}
	_ = selected

	info, filePath, err := c.waitForProbe(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "probe failed")
		c.fail(id, err)
		return
	}

	if _, err := c.registry.UpdateStatus(id, domain.StreamConverting, ""); err != nil {
		c.log.Error("coordinator: transition to converting failed", "stream_id", id, "error", err)
		return
	}

	pkgCtx, pkgSpan := tracer.Start(ctx, "stream.package")
	err = c.pkg.Start(pkgCtx, id, filePath, hlsDir, info)
	pkgSpan.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "packaging failed to start")
		c.fail(id, wrap(KindIOError, err))
		return
	}

	c.waitForReady(ctx, id, filePath, hlsDir, info)
}

// waitForProbe polls the acquirer for the selected file's on-disk path
// and retries ffprobe against it until enough of the file's header has
// landed to yield usable stream metadata, or the context ends.
func (c *Coordinator) waitForProbe(ctx context.Context, id domain.StreamID) (domain.MediaInfo, string, error) {
	ticker := time.NewTicker(probeRetryInterval)
	defer ticker.Stop()

	for {
		if pct, err := c.acq.Progress(id); err == nil {
			c.registry.UpdateProgress(id, pct*progressDownloadWeight)
		}

		filePath, err := c.acq.FilePath(id)
		if err == nil {
			info, probeErr := c.prober.Probe(ctx, filePath)
			if probeErr == nil && info.VideoCodec() != "" {
				return info, filePath, nil
			}
		}

		select {
		case <-ctx.Done():
			return domain.MediaInfo{}, "", wrap(KindCancelled, ctx.Err())
		case <-ticker.C:
		}
	}
}

// progressDownloadWeight scales raw download completion into the
// portion of the overall progress bar the download phase owns; the
// remainder is the packaging phase, reported separately once
// packaging starts.
const progressDownloadWeight = 0.5

// fileNotReadyRetryDelay bounds how long each file-not-ready retry
// waits for more of the source to download before restarting the
// packager.
const fileNotReadyRetryDelay = 10 * time.Second

// maxFileNotReadyRetries is how many times packaging may be restarted
// after an early file-not-ready failure before the stream is given up
// on and moved to the error state.
const maxFileNotReadyRetries = 3

// fileNotReadyInitialRequiredPct is the download completion the first
// retry waits for before restarting the packager; it doubles on every
// subsequent retry so repeated early failures wait for progressively
// more data rather than immediately retrying against the same
// insufficient prefix.
const fileNotReadyInitialRequiredPct = 5.0

func (c *Coordinator) waitForReady(ctx context.Context, id domain.StreamID, filePath, hlsDir string, info domain.MediaInfo) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	retries := 0
	requiredPct := fileNotReadyInitialRequiredPct

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := c.pkg.Err(id); err != nil {
			var pe *packager.Error
			if errors.As(err, &pe) {
				switch pe.Kind {
				case packager.KindFileNotReady:
					if retries >= maxFileNotReadyRetries {
						c.fail(id, wrap(KindIOError, fmt.Errorf("packaging exhausted %d file-not-ready retries: %w", maxFileNotReadyRetries, err)))
						return
					}
					retries++
					if rerr := c.retryAfterFileNotReady(ctx, id, filePath, hlsDir, info, requiredPct); rerr != nil {
						c.fail(id, wrap(KindIOError, rerr))
						return
					}
					requiredPct *= 2
					continue
				case packager.KindCodecError:
					c.fail(id, wrap(KindCodecError, err))
				default:
					c.fail(id, wrap(KindIOError, err))
				}
				return
			}
		}

		ready, err := c.pkg.Ready(id)
		if err != nil {
			continue
		}

		pct, _ := c.pkg.Progress(id)
		c.registry.UpdateProgress(id, 50+pct*0.5)

		if ready {
			if _, err := c.registry.UpdateStatus(id, domain.StreamReady, ""); err != nil {
				c.log.Error("coordinator: transition to ready failed", "stream_id", id, "error", err)
			}
			return
		}
	}
}

// retryAfterFileNotReady moves the stream to waiting_for_data, waits up
// to fileNotReadyRetryDelay for the acquirer to report at least
// requiredPct downloaded (returning early once it does), then moves the
// stream back to converting and restarts the packager against the same
// file. It is the recovery path for a packaging attempt that failed
// because too little of the source had landed on disk yet.
func (c *Coordinator) retryAfterFileNotReady(ctx context.Context, id domain.StreamID, filePath, hlsDir string, info domain.MediaInfo, requiredPct float64) error {
	if _, err := c.registry.UpdateStatus(id, domain.StreamWaitingForData, ""); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, fileNotReadyRetryDelay)
	defer cancel()

	pollTicker := time.NewTicker(time.Second)
	defer pollTicker.Stop()

waitLoop:
	for {
		if pct, err := c.acq.Progress(id); err == nil && pct >= requiredPct {
			break waitLoop
		}
		select {
		case <-waitCtx.Done():
			break waitLoop
		case <-pollTicker.C:
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if _, err := c.registry.UpdateStatus(id, domain.StreamConverting, ""); err != nil {
		return err
	}
	return c.pkg.Start(ctx, id, filePath, hlsDir, info)
}

// watchDeadTorrents drives any stream the Acquirer's watchdog declares
// dead into the error state and tears it down.
func (c *Coordinator) watchDeadTorrents() {
	for id := range c.acq.DeadCh() {
		c.fail(id, wrap(KindDeadTorrent, acquirer.ErrDeadTorrent))
	}
}

// fail marks id as failed with err and stops the background work behind
// it — the packager process and the torrent download — but leaves the
// registry entry and its on-disk directories in place. That keeps the
// error status and message observable via GET /stream/:id/status
// instead of vanishing into a 404 the instant it occurs; full teardown
// happens later, either from an explicit DELETE or the janitor
// reclaiming the aged error stream.
func (c *Coordinator) fail(id domain.StreamID, err error) {
	c.log.Warn("coordinator: stream failed", "stream_id", id, "error", err)
	c.registry.UpdateStatus(id, domain.StreamError, err.Error())
	c.pkg.Stop(id)
	c.acq.Cleanup(id)
}

// Remove tears a stream down in dependency order — packager, then
// acquirer, then registry, then filesystem — and is idempotent. The HTTP
// DELETE handler and the janitor call this; fail does not.
func (c *Coordinator) Remove(id domain.StreamID) {
	c.pkg.Stop(id)
	c.acq.Cleanup(id)
	c.registry.Remove(id)
	if err := c.paths.RemoveStreamDirs(id); err != nil {
		c.log.Warn("coordinator: failed to remove stream directories", "stream_id", id, "error", err)
	}
}

// Stats surfaces the registry's per-status counts alongside the
// admission-control capacity currently in use, for the metrics and
// health endpoints.
func (c *Coordinator) Stats() (domain.Stats, int, int) {
	return c.registry.Stats(), len(c.admission.slots), cap(c.admission.slots)
}
