// Package packager implements the HLS Packager (C4): it supervises an
// FFmpeg subprocess that converts a (possibly still-downloading) media
// file into an HLS playlist and segments, preferring a fast stream-copy
// pass and falling back to a full re-encode when the source container
// or codec cannot be copied directly into HLS.
package packager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"torrentstream/internal/domain"
	"torrentstream/internal/metrics"
	"torrentstream/internal/probe"
)

// Kind classifies why a packaging job failed, so the Coordinator can
// decide whether the failure is retryable and how to report it.
type Kind string

const (
	KindFileNotReady Kind = "file_not_ready"
	KindCodecError   Kind = "codec_error"
	KindFatal        Kind = "fatal"
)

// Error is a packaging failure tagged with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("packager: %s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// earlyFailureWindow bounds how soon after start a failure is treated
// as "the file isn't downloaded enough yet" rather than a fatal error.
const earlyFailureWindow = 5 * time.Second

// readyProgressPct is the fraction of source duration encoded before a
// job is considered ready to serve, per the readiness heuristic: once
// FFmpeg has produced *any* segments and reached this far in, playback
// can safely begin even while encoding continues.
const readyProgressPct = 10.0

// Config tunes the packager.
type Config struct {
	FFmpegPath      string
	SegmentDuration int
	Preset          string
	CRF             int
	AudioBitrate    string
}

type job struct {
	id        domain.StreamID
	proc      *process
	outputDir string
	duration  float64
	isAAC     bool
	startedAt time.Time

	mu      sync.Mutex
	ready   bool
	segKind Kind
}

// Packager supervises one FFmpeg process per active stream.
type Packager struct {
	cfg    Config
	prober *probe.Prober
	log    *slog.Logger

	mu   sync.Mutex
	jobs map[domain.StreamID]*job
}

// New returns a Packager. prober is used to resolve codec-mismatch
// fallback decisions; it may be nil to rely on stderr substring
// matching alone.
func New(cfg Config, prober *probe.Prober, log *slog.Logger) *Packager {
	if log == nil {
		log = slog.Default()
	}
	return &Packager{cfg: cfg, prober: prober, log: log, jobs: make(map[domain.StreamID]*job)}
}

// streamCopyIncompatible is a set of stderr substrings FFmpeg emits
// when the source codec or container cannot be stream-copied into an
// MPEG-TS/HLS target. Any match triggers a re-encode retry.
var streamCopyIncompatible = []string{
	"Could not find tag for codec",
	"muxer does not support",
	"Invalid data found when processing input",
	"non monotonically increasing dts",
}

// fileNotReadySubstrings mark an early failure as transient: the
// torrent hasn't downloaded enough of the file's header/moov atom yet.
var fileNotReadySubstrings = []string{
	"error opening input",
	"invalid data found when processing input",
	"could not find codec parameters",
}

// Start begins packaging inputPath into outputDir for id. mediaInfo is
// the ffprobe sniff taken before packaging started and decides whether
// the first attempt is a stream-copy or a re-encode.
func (p *Packager) Start(ctx context.Context, id domain.StreamID, inputPath, outputDir string, mediaInfo domain.MediaInfo) error {
	jobCtx, cancel := context.WithCancel(ctx)
	j := &job{id: id, outputDir: outputDir, duration: mediaInfo.Duration, isAAC: isAACSource(mediaInfo), startedAt: time.Now()}

	p.mu.Lock()
	p.jobs[id] = j
	p.mu.Unlock()

	streamCopy := isStreamCopyCandidate(mediaInfo)
	return p.run(jobCtx, cancel, j, inputPath, streamCopy, true)
}

func isStreamCopyCandidate(info domain.MediaInfo) bool {
	codec := strings.ToLower(info.VideoCodec())
	switch codec {
	case "h264", "avc", "":
		return true
	default:
		return false
	}
}

func isAACSource(info domain.MediaInfo) bool {
	for _, t := range info.Tracks {
		if t.Type == "audio" {
			return strings.EqualFold(t.Codec, "aac")
		}
	}
	return false
}

func (p *Packager) run(ctx context.Context, cancel context.CancelFunc, j *job, inputPath string, streamCopy, allowFallback bool) error {
	args := buildFFmpegArgs(ArgConfig{
		FFmpegPath:      p.cfg.FFmpegPath,
		Input:           inputPath,
		SegmentDuration: p.cfg.SegmentDuration,
		StreamCopy:      streamCopy,
		IsAACSource:     j.isAAC,
		Preset:          p.cfg.Preset,
		CRF:             p.cfg.CRF,
		AudioBitrate:    p.cfg.AudioBitrate,
	})

	ffmpegPath := p.cfg.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	proc := newProcess(ctx, ffmpegPath, args, j.outputDir)
	j.mu.Lock()
	j.proc = proc
	j.mu.Unlock()

	if err := proc.start(); err != nil {
		cancel()
		metrics.HLSJobFailuresTotal.WithLabelValues(string(KindFatal)).Inc()
		return &Error{Kind: KindFatal, Err: err}
	}

	metrics.HLSJobStartsTotal.Inc()
	metrics.HLSActiveJobs.Inc()
	go p.supervise(ctx, cancel, j, inputPath, streamCopy, allowFallback)
	return nil
}

func (p *Packager) supervise(ctx context.Context, cancel context.CancelFunc, j *job, inputPath string, streamCopy, allowFallback bool) {
	defer cancel()
	defer metrics.HLSActiveJobs.Dec()

	err := j.proc.wait()
	if err == nil {
		metrics.HLSEncodeDuration.Observe(time.Since(j.startedAt).Seconds())
		j.mu.Lock()
		j.ready = true
		j.mu.Unlock()
		return
	}

	stderr := j.proc.stderr()
	elapsed := time.Since(j.startedAt)

	if allowFallback && streamCopy && matchesAny(stderr, streamCopyIncompatible) {
		confirmed := p.confirmCodecMismatch(inputPath)
		p.log.Info("packager: stream-copy incompatible, retrying with re-encode",
			"stream_id", j.id, "codec_mismatch_confirmed", confirmed)
		metrics.HLSAutoRestartsTotal.WithLabelValues("stream_copy_incompatible").Inc()
		if runErr := p.run(context.Background(), func() {}, j, inputPath, false, false); runErr != nil {
			p.log.Error("packager: re-encode fallback failed to start", "stream_id", j.id, "error", runErr)
		}
		return
	}

	if elapsed < earlyFailureWindow && matchesAny(stderr, fileNotReadySubstrings) {
		j.mu.Lock()
		j.segKind = KindFileNotReady
		j.mu.Unlock()
		return
	}

	kind := KindFatal
	if looksLikeCodecError(stderr) {
		kind = KindCodecError
	}
	j.mu.Lock()
	j.segKind = kind
	j.mu.Unlock()
	metrics.HLSJobFailuresTotal.WithLabelValues(string(kind)).Inc()
	p.log.Error("packager: ffmpeg exited with error", "stream_id", j.id, "kind", kind, "error", err, "stderr", stderr)
}

// confirmCodecMismatch re-probes inputPath after a stream-copy failure
// to tell a genuine codec mismatch (worth recording) from an
// FFmpeg container-level complaint that happened to mention "codec" in
// passing. ffprobe's own reading is authoritative; a failed re-probe or
// a nil prober just means the confirmation is unavailable, not that the
// fallback itself is skipped.
func (p *Packager) confirmCodecMismatch(inputPath string) bool {
	if p.prober == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := p.prober.Probe(ctx, inputPath)
	if err != nil {
		return false
	}
	return probe.CodecMismatch(info, "h264")
}

func matchesAny(haystack string, substrings []string) bool {
	lower := strings.ToLower(haystack)
	for _, s := range substrings {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func looksLikeCodecError(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "codec") || strings.Contains(lower, "decode")
}

// Progress returns the fraction of the source duration encoded so far,
// in [0,100]. If duration is unknown (0), it reports readyProgressPct
// once any output has been produced, since there's nothing more precise
// to show.
func (p *Packager) Progress(id domain.StreamID) (float64, error) {
	j, ok := p.job(id)
	if !ok {
		return 0, domain.ErrNotFound
	}
	j.mu.Lock()
	proc := j.proc
	duration := j.duration
	ready := j.ready
	j.mu.Unlock()

	if ready {
		return 100, nil
	}
	if proc == nil {
		return 0, nil
	}
	encoded := proc.progressSeconds()
	if duration <= 0 {
		if encoded > 0 {
			return readyProgressPct, nil
		}
		return 0, nil
	}
	pct := encoded / duration * 100
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}

// Ready reports whether enough of the stream has been packaged to
// start playback: the process has produced output and either reached
// readyProgressPct of the source duration, or finished entirely.
func (p *Packager) Ready(id domain.StreamID) (bool, error) {
	pct, err := p.Progress(id)
	if err != nil {
		return false, err
	}
	return pct >= readyProgressPct, nil
}

// Err returns the classified failure for id, if the job has failed.
func (p *Packager) Err(id domain.StreamID) error {
	j, ok := p.job(id)
	if !ok {
		return domain.ErrNotFound
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.segKind == "" {
		return nil
	}
	return &Error{Kind: j.segKind, Err: errors.New(string(j.segKind))}
}

// Stop terminates id's FFmpeg process with SIGTERM (via context
// cancellation) and releases the job. It is idempotent.
func (p *Packager) Stop(id domain.StreamID) {
	p.mu.Lock()
	j, ok := p.jobs[id]
	delete(p.jobs, id)
	p.mu.Unlock()
	if !ok {
		return
	}
	j.mu.Lock()
	proc := j.proc
	j.mu.Unlock()
	if proc != nil {
		proc.stop()
	}
}

func (p *Packager) job(id domain.StreamID) (*job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	j, ok := p.jobs[id]
	return j, ok
}
