package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"torrentstream/internal/coordinator"
)

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeCoordinatorError maps a synchronous Coordinator.Create failure to
// an HTTP status. Every other failure kind is only ever reported
// asynchronously through the registry's (status, error) pair — creation
// itself never fails for those reasons.
func writeCoordinatorError(w http.ResponseWriter, err error) {
	if errors.Is(err, coordinator.ErrTooManyStreams) {
		w.Header().Set("Retry-After", strconv.Itoa(int(coordinator.RetryAfter().Seconds())))
		writeError(w, http.StatusServiceUnavailable, "too_many_streams", "server is at capacity, try again shortly")
		return
	}
	if kind, ok := coordinator.KindOf(err); ok && kind == coordinator.KindInvalidInput {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// resolveDataFilePath joins dataDir and filePath and guards against the
// joined result escaping dataDir (e.g. filePath containing "..").
func resolveDataFilePath(dataDir, filePath string) (string, error) {
	base := strings.TrimSpace(dataDir)
	if base == "" {
		return "", errors.New("data dir is required")
	}
	base = filepath.Clean(base)
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}

	joined := filepath.Join(base, filepath.FromSlash(filePath))
	joined = filepath.Clean(joined)
	if abs, err := filepath.Abs(joined); err == nil {
		joined = abs
	}

	if joined != base && !strings.HasPrefix(joined, base+string(filepath.Separator)) {
		return "", errors.New("path escapes data dir")
	}
	return joined, nil
}

func contentTypeFor(name string) string {
	switch filepath.Ext(name) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	default:
		return "application/octet-stream"
	}
}

func cacheControlFor(name string) string {
	if filepath.Ext(name) == ".m3u8" {
		return "no-cache"
	}
	return "public, max-age=31536000"
}
