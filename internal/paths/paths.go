// Package paths computes and validates the on-disk layout for a stream:
// the torrent download directory and the HLS output directory, each
// named after a short hash of the stream ID so that path components stay
// filesystem-safe regardless of the UUID's own character set.
package paths

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"torrentstream/internal/domain"
)

// ErrWriteProbeFailed is returned when a directory was created (or
// already existed) but a probe file could not be created and removed
// inside it — a strong signal that the filesystem is read-only or out
// of space, which otherwise only surfaces much later as an opaque
// packager failure.
type ErrWriteProbeFailed struct {
	Dir string
	Err error
}

func (e *ErrWriteProbeFailed) Error() string {
	return fmt.Sprintf("write probe failed for %s: %v", e.Dir, e.Err)
}

func (e *ErrWriteProbeFailed) Unwrap() error { return e.Err }

// Service resolves and creates the per-stream directories under a
// configured root. It is pure apart from configuration: all mutation
// happens on the filesystem, not in the Service itself.
type Service struct {
	root string
}

// New returns a Service rooted at root. An empty root defaults to the
// OS temp directory joined with "torrentstream".
func New(root string) *Service {
	if root == "" {
		root = filepath.Join(os.TempDir(), "torrentstream")
	}
	return &Service{root: root}
}

// Root returns the configured root temp directory.
func (s *Service) Root() string { return s.root }

// Hash returns the first 8 hex digits of the MD5 of the stream ID, used
// only for path construction; the registry key remains the full UUID.
func Hash(id domain.StreamID) string {
	sum := md5.Sum([]byte(id))
	return hex.EncodeToString(sum[:])[:8]
}

// StreamDir returns the directory that receives the torrent download
// tree for a stream.
func (s *Service) StreamDir(id domain.StreamID) string {
	return filepath.Join(s.root, "streams", Hash(id))
}

// HLSDir returns the directory that receives playlist.m3u8 and segments
// for a stream.
func (s *Service) HLSDir(id domain.StreamID) string {
	return filepath.Join(s.root, "hls", Hash(id))
}

// PlaylistPath returns the path to the HLS playlist for a stream.
func (s *Service) PlaylistPath(id domain.StreamID) string {
	return filepath.Join(s.HLSDir(id), "playlist.m3u8")
}

// SegmentPath returns the path to the nth HLS segment for a stream.
func (s *Service) SegmentPath(id domain.StreamID, n int) string {
	return filepath.Join(s.HLSDir(id), fmt.Sprintf("segment%03d.ts", n))
}

// EnsureWritable creates dir (and its ancestors, mode 0o755) if it does
// not already exist, then proves write-ability by creating and
// immediately removing a probe file inside it. It fails loudly with
// *ErrWriteProbeFailed rather than silently, because a silent failure
// here would otherwise only manifest as a much-later, confusing
// packager error.
func (s *Service) EnsureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	probe := filepath.Join(dir, ".write-probe")
	f, err := os.Create(probe)
	if err != nil {
		return &ErrWriteProbeFailed{Dir: dir, Err: err}
	}
	_ = f.Close()
	if err := os.Remove(probe); err != nil {
		return &ErrWriteProbeFailed{Dir: dir, Err: err}
	}
	return nil
}

// EnsureStreamDirs creates and validates both the streams/ and hls/
// directories for a stream, in that order.
func (s *Service) EnsureStreamDirs(id domain.StreamID) (streamDir, hlsDir string, err error) {
	streamDir = s.StreamDir(id)
	if err = s.EnsureWritable(streamDir); err != nil {
		return "", "", err
	}
	hlsDir = s.HLSDir(id)
	if err = s.EnsureWritable(hlsDir); err != nil {
		return "", "", err
	}
	return streamDir, hlsDir, nil
}

// RemoveStreamDirs deletes both directories for a stream. It is
// idempotent: removing an already-absent directory is not an error.
func (s *Service) RemoveStreamDirs(id domain.StreamID) error {
	if err := os.RemoveAll(s.StreamDir(id)); err != nil {
		return fmt.Errorf("remove stream dir: %w", err)
	}
	if err := os.RemoveAll(s.HLSDir(id)); err != nil {
		return fmt.Errorf("remove hls dir: %w", err)
	}
	return nil
}
