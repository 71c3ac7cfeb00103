// Package acquirer implements the Torrent Acquirer (C3): it resolves a
// magnet URI into a live anacrolix/torrent session, selects the file to
// stream, and exposes progress/cleanup to the Coordinator. Stall
// detection and peer-discovery recovery live in watchdog.go and peers.go.
package acquirer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"

	"torrentstream/internal/domain"
)

// ErrInvalidMagnet is returned when the magnet URI cannot be parsed.
var ErrInvalidMagnet = errors.New("invalid magnet uri")

// ErrMetadataTimeout is returned when a torrent's metadata (info
// dictionary) does not arrive within addMagnetTimeout.
var ErrMetadataTimeout = errors.New("timed out waiting for torrent metadata")

// ErrDeadTorrent is returned by the watchdog when a torrent has made no
// progress and has no peers for long enough that it is considered dead.
var ErrDeadTorrent = errors.New("torrent appears to be dead (no peers found)")

const addMagnetTimeout = 30 * time.Second

// job tracks the live state of a single acquisition, one per stream.
type job struct {
	id         domain.StreamID
	t          *torrent.Torrent
	file       *torrent.File
	selected   domain.TorrentFile
	storageDir string
	storage    storage.ClientImplCloser
	startedAt  time.Time

	// watchdog bookkeeping, guarded by Acquirer.mu.
	stallTicks   int
	lastProgress int64
	reannounces  int
	cancel       context.CancelFunc
}

// Acquirer owns the underlying anacrolix/torrent client and tracks one
// job per active stream.
type Acquirer struct {
	cfg    Config
	client *torrent.Client
	log    *slog.Logger

	mu   sync.RWMutex
	jobs map[domain.StreamID]*job

	deadCh chan domain.StreamID
}

// DeadCh delivers the IDs of streams whose torrent the watchdog has
// declared dead (stalled with zero peers). The Coordinator consumes
// this to drive the affected stream to the error state.
func (a *Acquirer) DeadCh() <-chan domain.StreamID {
	return a.deadCh
}

// New constructs an Acquirer and starts its BitTorrent client. The
// client is shared across every stream's torrent session.
func New(cfg Config, log *slog.Logger) (*Acquirer, error) {
	if log == nil {
		log = slog.Default()
	}

	tc := torrent.NewDefaultClientConfig()
	if cfg.DataDir != "" {
		// Every stream overrides this with its own per-stream storage via
		// AddTorrentOpts; this only backstops any client-level state
		// (DHT routing table, etc.) that isn't routed through a torrent's
		// own storage.ClientImpl.
		tc.DataDir = cfg.DataDir
	}
	tc.ListenPort = DefaultBitTorrentPort
	tc.EstablishedConnsPerTorrent = cfg.maxConns()
	tc.NoDHT = false
	tc.DisableTrackers = false
	tc.NoDefaultPortForwarding = false
	tc.HeaderObfuscationPolicy = torrent.HeaderObfuscationPolicy{
		Preferred:        false,
		RequirePreferred: false,
	}

	client, err := torrent.NewClient(tc)
	if err != nil {
		return nil, fmt.Errorf("acquirer: start torrent client: %w", err)
	}

	return &Acquirer{
		cfg:    cfg,
		client: client,
		log:    log,
		jobs:   make(map[domain.StreamID]*job),
		deadCh: make(chan domain.StreamID, 16),
	}, nil
}

// Close shuts down the underlying torrent client. No further streams can
// be started afterward.
func (a *Acquirer) Close() {
	a.client.Close()
}

// Start resolves magnetURI, waits for its metadata, selects the media
// file per the SelectVideoFile policy, and begins downloading it into
// storageDir — a directory exclusive to this stream, so one stream's
// download tree never shares a path with another's and cleanup can
// simply remove the directory. It returns the selected domain.TorrentFile;
// that file's on-disk path is available via FilePath once Start returns.
func (a *Acquirer) Start(ctx context.Context, id domain.StreamID, magnetURI, storageDir string) (domain.TorrentFile, error) {
	spec, err := metainfo.ParseMagnetUri(magnetURI)
	if err != nil {
		return domain.TorrentFile{}, fmt.Errorf("%w: %v", ErrInvalidMagnet, err)
	}

	fileStorage := storage.NewFile(storageDir)

	t, isNew := a.client.AddTorrentOpts(torrent.AddTorrentOpts{
		InfoHash: spec.InfoHash,
		Storage:  fileStorage,
	})
	if isNew {
		t.AddTrackers(append(trackerTiers(spec.Trackers), trackerTiers(DefaultExtraTrackers)...))
	}

	for _, peer := range explicitPeers(magnetURI) {
		a.injectExplicitPeer(t, peer)
	}

	waitCtx, cancel := context.WithTimeout(ctx, addMagnetTimeout)
	defer cancel()

	select {
	case <-t.GotInfo():
	case <-waitCtx.Done():
		t.Drop()
		_ = fileStorage.Close()
		return domain.TorrentFile{}, ErrMetadataTimeout
	}

	files := t.Files()
	candidates := make([]domain.TorrentFile, 0, len(files))
	for i, f := range files {
		candidates = append(candidates, domain.TorrentFile{
			Index:  i,
			Path:   f.Path(),
			Name:   f.DisplayPath(),
			Length: f.Length(),
		})
	}

	picked, err := SelectVideoFile(candidates)
	if err != nil {
		t.Drop()
		_ = fileStorage.Close()
		return domain.TorrentFile{}, err
	}

	tf := files[picked.Index]

	setters := make([]prioritySetter, len(files))
	for i, f := range files {
		setters[i] = f
	}
	applySelection(setters, picked.Index)

	jobCtx, jobCancel := context.WithCancel(context.Background())
	j := &job{
		id:         id,
		t:          t,
		file:       tf,
		selected:   picked,
		storageDir: storageDir,
		storage:    fileStorage,
		startedAt:  time.Now(),
		cancel:     jobCancel,
	}

	a.mu.Lock()
	a.jobs[id] = j
	a.mu.Unlock()

	go a.runWatchdog(jobCtx, j)
	go a.announceOnStart(jobCtx, t)

	return picked, nil
}

// explicitPeers extracts any x.pe= parameters from a magnet URI: known
// peer addresses the publisher chose to embed directly, bypassing
// trackers and DHT entirely.
func explicitPeers(magnetURI string) []string {
	u, err := url.Parse(magnetURI)
	if err != nil {
		return nil
	}
	return u.Query()["x.pe"]
}

// trackerTiers wraps a flat tracker list from a magnet URI into the
// tiered [][]string shape AddTrackers expects, one tracker per tier so
// each is announced independently.
func trackerTiers(trackers []string) [][]string {
	tiers := make([][]string, 0, len(trackers))
	for _, tr := range trackers {
		tiers = append(tiers, []string{tr})
	}
	return tiers
}

// Progress returns the download completion percentage in [0,100] for
// the selected file, not the whole torrent (unrelated files in the same
// torrent are deselected and must not count against progress).
func (a *Acquirer) Progress(id domain.StreamID) (float64, error) {
	j, ok := a.job(id)
	if !ok {
		return 0, domain.ErrNotFound
	}
	length := j.file.Length()
	if length == 0 {
		return 100, nil
	}
	completed := j.file.BytesCompleted()
	pct := float64(completed) / float64(length) * 100
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}

// PeerCount returns the number of active peer connections for id's
// torrent, used by the watchdog and exported as a metric.
func (a *Acquirer) PeerCount(id domain.StreamID) (int, error) {
	j, ok := a.job(id)
	if !ok {
		return 0, domain.ErrNotFound
	}
	return j.t.Stats().ActivePeers, nil
}

// DownloadRate returns the selected file's torrent's recent download
// rate in bytes/sec, sampled over a short window.
func (a *Acquirer) DownloadRate(id domain.StreamID) (int64, error) {
	j, ok := a.job(id)
	if !ok {
		return 0, domain.ErrNotFound
	}
	stats := j.t.Stats()
	return stats.BytesReadData.Int64(), nil
}

// FilePath returns the on-disk path the selected file is written to, for
// handing off to the packager. The file may not exist yet, or may still
// be empty, when it is called.
func (a *Acquirer) FilePath(id domain.StreamID) (string, error) {
	j, ok := a.job(id)
	if !ok {
		return "", domain.ErrNotFound
	}
	return filepath.Join(j.storageDir, j.t.Info().Name, j.file.Path()), nil
}

// Cleanup drops the torrent, closes its per-stream storage, and
// releases the job. It is idempotent and tolerates being called on an
// unknown id. The actual download tree under storageDir is removed by
// the caller (the Coordinator, via paths.RemoveStreamDirs) once the
// storage handle here has been closed.
func (a *Acquirer) Cleanup(id domain.StreamID) {
	a.mu.Lock()
	j, ok := a.jobs[id]
	delete(a.jobs, id)
	a.mu.Unlock()
	if !ok {
		return
	}
	j.cancel()
	j.t.Drop()
	if j.storage != nil {
		if err := j.storage.Close(); err != nil {
			a.log.Warn("acquirer: failed to close per-stream storage", "stream_id", id, "error", err)
		}
	}
}

// AggregateStats sums peer counts and download rate across every
// active job, for the periodic metrics refresh.
func (a *Acquirer) AggregateStats() (peers int, downloadRate int64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, j := range a.jobs {
		stats := j.t.Stats()
		peers += stats.ActivePeers
		downloadRate += stats.BytesReadData.Int64()
	}
	return peers, downloadRate
}

func (a *Acquirer) job(id domain.StreamID) (*job, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	j, ok := a.jobs[id]
	return j, ok
}
