// Package apihttp is the thin HTTP surface over the Stream Coordinator:
// routing, request decoding and response encoding only. All orchestration
// logic lives in internal/coordinator.
package apihttp

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"torrentstream/internal/domain"
	"torrentstream/internal/paths"
	"torrentstream/internal/registry"
)

// coordinatorService is the subset of *coordinator.Coordinator the HTTP
// layer depends on. Depending on the interface rather than the concrete
// type keeps handler tests free of torrent/ffmpeg subprocess wiring.
type coordinatorService interface {
	Create(id domain.StreamID, magnetURI string) (domain.Stream, error)
	Remove(id domain.StreamID)
	Stats() (domain.Stats, int, int)
}

// Config tunes the HTTP layer's own ambient concerns (CORS, rate
// limiting); domain wiring is passed directly to NewServer.
type Config struct {
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Server wires the Coordinator, Registry and Path Service behind
// net/http handlers.
type Server struct {
	coord    coordinatorService
	registry *registry.Registry
	paths    *paths.Service
	logger   *slog.Logger

	wsHub   *wsHub
	handler http.Handler
}

// NewServer constructs a Server and its full middleware-wrapped handler.
// It spawns a background goroutine that forwards registry transitions to
// the websocket hub; call Close to stop it when the server shuts down.
func NewServer(coord coordinatorService, reg *registry.Registry, pathSvc *paths.Service, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		coord:    coord,
		registry: reg,
		paths:    pathSvc,
		logger:   logger,
	}

	s.wsHub = newWSHub(logger)
	go s.wsHub.run()
	go s.forwardTransitions()

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleCreateStream)
	mux.HandleFunc("/stream/", s.handleStreamByID)
	mux.HandleFunc("/hls/", s.handleHLSFile)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(logger, mux), "torrentstream-gateway",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics" && r.URL.Path != "/health"
		}),
	)

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 20
	}

	s.handler = recoveryMiddleware(logger,
		rateLimitMiddleware(rps, burst,
			metricsMiddleware(
				corsMiddleware(cfg.CORSAllowedOrigins, traced))))
	return s
}

// forwardTransitions subscribes to the registry and pushes every status
// change to connected websocket clients, additive to the polling
// contract: nothing here is required for correctness.
func (s *Server) forwardTransitions() {
	ch := make(chan registry.Transition, 32)
	s.registry.Subscribe(ch)
	defer s.registry.Unsubscribe(ch)
	for t := range ch {
		s.wsHub.BroadcastStreamStatus(t.Stream)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{hub: s.wsHub, conn: conn, send: make(chan []byte, 256)}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close stops the websocket hub, disconnecting all clients. It does not
// touch the underlying *http.Server; callers shut that down separately.
func (s *Server) Close() {
	s.wsHub.Close()
}
