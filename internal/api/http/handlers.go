package apihttp

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"torrentstream/internal/domain"
)

type createStreamRequest struct {
	MagnetURL string `json:"magnetUrl"`
}

type createStreamResponse struct {
	StreamID  domain.StreamID `json:"streamId"`
	Status    string          `json:"status"`
	HLSURL    string          `json:"hlsUrl"`
	StatusURL string          `json:"statusUrl"`
}

func (s *Server) handleCreateStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is supported on /stream")
		return
	}

	var req createStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if strings.TrimSpace(req.MagnetURL) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "magnetUrl is required")
		return
	}

	id := domain.StreamID(uuid.NewString())
	stream, err := s.coord.Create(id, req.MagnetURL)
	if err != nil {
		writeCoordinatorError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createStreamResponse{
		StreamID:  stream.ID,
		Status:    string(stream.Status),
		HLSURL:    "/stream/" + string(stream.ID),
		StatusURL: "/stream/" + string(stream.ID) + "/status",
	})
}

// handleStreamByID dispatches the three /stream/:id... routes: the
// status sub-resource, DELETE for teardown, and GET for the playlist
// itself.
func (s *Server) handleStreamByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/stream/")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		writeError(w, http.StatusNotFound, "not_found", "stream id is required")
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	id := domain.StreamID(parts[0])

	if len(parts) == 2 && parts[1] == "status" {
		s.handleStreamStatus(w, r, id)
		return
	}
	if len(parts) > 1 {
		writeError(w, http.StatusNotFound, "not_found", "unknown route")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleStreamPlaylist(w, r, id)
	case http.MethodDelete:
		s.handleStreamDelete(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET or DELETE only")
	}
}

type streamStatusResponse struct {
	StreamID  domain.StreamID `json:"streamId"`
	Status    string          `json:"status"`
	Progress  float64         `json:"progress"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (s *Server) handleStreamStatus(w http.ResponseWriter, r *http.Request, id domain.StreamID) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET only")
		return
	}
	stream, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown stream id")
		return
	}
	_ = s.registry.KeepAlive(id)
	writeJSON(w, http.StatusOK, streamStatusResponse{
		StreamID:  stream.ID,
		Status:    string(stream.Status),
		Progress:  stream.Progress,
		Error:     stream.Error,
		CreatedAt: stream.CreatedAt,
		UpdatedAt: stream.UpdatedAt,
	})
}

type streamPendingResponse struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// handleStreamPlaylist serves the stream's HLS playlist once the stream
// is ready, a 404 once it has failed, or a 202 with the current status
// while it is still being prepared.
func (s *Server) handleStreamPlaylist(w http.ResponseWriter, r *http.Request, id domain.StreamID) {
	stream, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown stream id")
		return
	}
	_ = s.registry.KeepAlive(id)

	if stream.Status == domain.StreamError {
		writeError(w, http.StatusNotFound, "not_found", "stream failed and is no longer available")
		return
	}
	if stream.Status != domain.StreamReady {
		writeJSON(w, http.StatusAccepted, streamPendingResponse{
			Status:   string(stream.Status),
			Progress: stream.Progress,
			Message:  "stream is not ready yet, poll the status endpoint",
		})
		return
	}

	playlistPath := s.paths.PlaylistPath(id)
	w.Header().Set("Content-Type", contentTypeFor(playlistPath))
	w.Header().Set("Cache-Control", cacheControlFor(playlistPath))
	http.ServeFile(w, r, playlistPath)
}

func (s *Server) handleStreamDelete(w http.ResponseWriter, r *http.Request, id domain.StreamID) {
	if _, ok := s.registry.Get(id); !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown stream id")
		return
	}
	s.coord.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// handleHLSFile serves playlist and segment files named like
// /hls/:id/:file, with Range support delegated to http.ServeContent's
// os.File-backed ServeFile path.
func (s *Server) handleHLSFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET or HEAD only")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/hls/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusNotFound, "not_found", "expected /hls/:id/:file")
		return
	}
	id := domain.StreamID(parts[0])
	file := parts[1]

	stream, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown stream id")
		return
	}
	_ = s.registry.KeepAlive(id)
	if stream.Status == domain.StreamError {
		writeError(w, http.StatusNotFound, "not_found", "stream failed and is no longer available")
		return
	}

	fullPath, err := resolveDataFilePath(s.paths.HLSDir(id), file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid file path")
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(file))
	w.Header().Set("Cache-Control", cacheControlFor(file))
	http.ServeFile(w, r, fullPath)
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Streams   int       `json:"activeStreams"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, _, _ := s.coord.Stats()
	total := 0
	for _, n := range stats {
		total += n
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Timestamp: time.Now(),
		Streams:   total,
	})
}
