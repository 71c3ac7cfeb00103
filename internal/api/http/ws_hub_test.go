package apihttp

import (
	"log/slog"
	"io"
	"testing"
	"time"

	"torrentstream/internal/domain"
)

func newTestHub() *wsHub {
	return newWSHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBroadcastStreamStatusNoopWithoutClients(t *testing.T) {
	h := newTestHub()
	go h.run()
	defer h.Close()

	// Must not block or panic when nobody is listening.
	h.BroadcastStreamStatus(domain.Stream{ID: "s1", Status: domain.StreamReady, Progress: 100})

	select {
	case <-h.broadcast:
		t.Fatal("expected broadcast to be skipped with zero clients")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestClientCountTracksRegistration(t *testing.T) {
	h := newTestHub()
	go h.run()
	defer h.Close()

	client := &wsClient{hub: h, send: make(chan []byte, 1)}
	h.register <- client
	time.Sleep(10 * time.Millisecond)
	if h.clientCount() != 1 {
		t.Fatalf("clientCount = %d, want 1", h.clientCount())
	}

	h.unregister <- client
	time.Sleep(10 * time.Millisecond)
	if h.clientCount() != 0 {
		t.Fatalf("clientCount = %d, want 0", h.clientCount())
	}
}
