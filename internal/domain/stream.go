package domain

import "time"

// StreamID is an opaque UUID identifying a stream, unique within a process.
type StreamID string

// StreamStatus is the lifecycle state of a Stream, as tracked by the registry.
type StreamStatus string

const (
	StreamInitializing    StreamStatus = "initializing"
	StreamDownloading     StreamStatus = "downloading"
	StreamConverting      StreamStatus = "converting"
	StreamWaitingForData  StreamStatus = "waiting_for_data"
	StreamReady           StreamStatus = "ready"
	StreamError           StreamStatus = "error"
)

// validTransitions is the adjacency list of allowed forward transitions
// between StreamStatus values, mirroring spec.md §4.5's state machine.
// Cleanup (removal from the registry) is not modeled here: it is valid
// from any status and is handled by the registry's remove operation,
// not by a status transition.
var validTransitions = map[StreamStatus][]StreamStatus{
	StreamInitializing:   {StreamDownloading, StreamError},
	StreamDownloading:    {StreamWaitingForData, StreamConverting, StreamError},
	StreamWaitingForData: {StreamConverting, StreamError},
	// Converting can fall back to WaitingForData when the packager
	// fails early because too little of the source has downloaded yet;
	// the Coordinator retries packaging once more data lands, moving
	// back to Converting.
	StreamConverting: {StreamWaitingForData, StreamReady, StreamError},
	StreamReady:      {},
	StreamError:      {},
}

// CanTransition reports whether a forward transition from one status to
// another is permitted. Once a stream reaches StreamError or StreamReady,
// no further forward transition is allowed: an error is terminal, and a
// ready stream can only go away via cleanup.
func CanTransition(from, to StreamStatus) bool {
	if from == to {
		return true
	}
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Stream is the central entity of the gateway: one row per in-flight or
// completed on-demand playback request. It is created exclusively by the
// Coordinator and mutated only through the Registry's update operations.
type Stream struct {
	ID           StreamID     `json:"streamId"`
	MagnetURI    string       `json:"-"`
	Status       StreamStatus `json:"status"`
	Progress     float64      `json:"progress"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	AccessCount  int64        `json:"-"`
	LastAccessAt time.Time    `json:"-"`
}

// Stats summarizes the registry's contents, keyed by status, for the
// janitor and for operational dashboards.
type Stats map[StreamStatus]int
