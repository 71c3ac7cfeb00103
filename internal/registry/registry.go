// Package registry implements the in-memory Stream Registry (C2): the
// single cross-task mutable structure shared between the Coordinator's
// background tasks and the HTTP layer's request tasks. A single mutex
// serializes the whole map — it is small (tens of entries) and updates
// are cheap, so finer-grained locking is not worth the complexity.
package registry

import (
	"sync"
	"time"

	"torrentstream/internal/domain"
)

// Transition is an observable change in a stream's status, published on
// a best-effort fan-out channel for consumers such as the HTTP layer's
// WebSocket hub. It is purely additive: nothing in the Registry itself
// depends on anyone reading from it.
type Transition struct {
	Stream domain.Stream
}

// Registry is the in-memory index of all live streams.
type Registry struct {
	mu      sync.RWMutex
	streams map[domain.StreamID]domain.Stream

	subMu sync.Mutex
	subs  map[chan Transition]struct{}

	now func() time.Time
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		streams: make(map[domain.StreamID]domain.Stream),
		subs:    make(map[chan Transition]struct{}),
		now:     time.Now,
	}
}

// NewWithClock returns an empty Registry that uses now in place of
// time.Now, for deterministic tests.
func NewWithClock(now func() time.Time) *Registry {
	r := New()
	r.now = now
	return r
}

// Subscribe registers a channel that receives every Transition. The
// channel is buffered by the caller's choosing; a slow reader simply
// misses updates rather than blocking the registry — sends are
// non-blocking. Callers must Unsubscribe when done.
func (r *Registry) Subscribe(ch chan Transition) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subs[ch] = struct{}{}
}

// Unsubscribe removes a previously registered channel.
func (r *Registry) Unsubscribe(ch chan Transition) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	delete(r.subs, ch)
}

func (r *Registry) publish(s domain.Stream) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- Transition{Stream: s}:
		default:
		}
	}
}

// Create records a new stream in status "initializing", progress 0,
// with both timestamps set to now.
func (r *Registry) Create(id domain.StreamID, magnetURI string) domain.Stream {
	now := r.now()
	s := domain.Stream{
		ID:           id,
		MagnetURI:    magnetURI,
		Status:       domain.StreamInitializing,
		Progress:     0,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastAccessAt: now,
	}

	r.mu.Lock()
	r.streams[id] = s
	r.mu.Unlock()

	r.publish(s)
	return s
}

// Get returns the stream with the given ID.
func (r *Registry) Get(id domain.StreamID) (domain.Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[id]
	return s, ok
}

// UpdateStatus transitions a stream to newStatus, recording errMsg (if
// non-empty) as the stream's error message. Invalid forward transitions
// (e.g. out of a terminal status) are rejected with
// domain.ErrInvalidTransition and leave the stream unchanged.
func (r *Registry) UpdateStatus(id domain.StreamID, newStatus domain.StreamStatus, errMsg string) (domain.Stream, error) {
	r.mu.Lock()
	s, ok := r.streams[id]
	if !ok {
		r.mu.Unlock()
		return domain.Stream{}, domain.ErrNotFound
	}
	if !domain.CanTransition(s.Status, newStatus) {
		r.mu.Unlock()
		return domain.Stream{}, domain.ErrInvalidTransition
	}

	s.Status = newStatus
	if errMsg != "" {
		s.Error = errMsg
	}
	if newStatus == domain.StreamReady {
		// Once ready, progress is pinned at 100 for reporting purposes
		// even if background downloading continues.
		s.Progress = 100
	}
	s.UpdatedAt = r.now()
	r.streams[id] = s
	r.mu.Unlock()

	r.publish(s)
	return s, nil
}

// UpdateProgress clamps value to [0,100] and records it, unless the
// stream is already "ready" (progress is pinned at 100 once ready).
func (r *Registry) UpdateProgress(id domain.StreamID, value float64) (domain.Stream, error) {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}

	r.mu.Lock()
	s, ok := r.streams[id]
	if !ok {
		r.mu.Unlock()
		return domain.Stream{}, domain.ErrNotFound
	}
	if s.Status == domain.StreamReady {
		r.mu.Unlock()
		return s, nil
	}
	s.Progress = value
	s.UpdatedAt = r.now()
	r.streams[id] = s
	r.mu.Unlock()

	r.publish(s)
	return s, nil
}

// KeepAlive bumps the access counter and last-access timestamp, used by
// the HTTP layer on every status/playlist/segment request. The janitor
// does not read these fields: ListOlderThan ages streams by CreatedAt.
func (r *Registry) KeepAlive(id domain.StreamID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.AccessCount++
	s.LastAccessAt = r.now()
	r.streams[id] = s
	return nil
}

// Remove deletes the registry entry for id. It is idempotent.
func (r *Registry) Remove(id domain.StreamID) {
	r.mu.Lock()
	delete(r.streams, id)
	r.mu.Unlock()
}

// ListByStatus returns a snapshot of all streams with the given status.
func (r *Registry) ListByStatus(status domain.StreamStatus) []domain.Stream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Stream
	for _, s := range r.streams {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out
}

// ListOlderThan returns streams whose CreatedAt is older than the given
// duration, excluding any stream currently in "downloading",
// "converting", or "waiting_for_data" — a slow-but-healthy stream must
// never be swept out from under the janitor while it is still making
// progress or mid-retry. A stream in "error" is never excluded: that is
// exactly what lets the janitor reclaim it once it has aged past the
// threshold.
func (r *Registry) ListOlderThan(d time.Duration) []domain.Stream {
	cutoff := r.now().Add(-d)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Stream
	for _, s := range r.streams {
		switch s.Status {
		case domain.StreamDownloading, domain.StreamConverting, domain.StreamWaitingForData:
			continue
		}
		if s.CreatedAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// Stats returns a count of streams per status.
func (r *Registry) Stats() domain.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := make(domain.Stats)
	for _, s := range r.streams {
		stats[s.Status]++
	}
	return stats
}
