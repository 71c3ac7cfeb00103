package coordinator

import (
	"errors"
	"fmt"
)

// Kind classifies a Coordinator failure so the HTTP layer can map it to
// the right status code without string-matching error messages.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindNoMedia      Kind = "no_media"
	KindDeadTorrent  Kind = "dead_torrent"
	KindEngineError  Kind = "engine_error"
	KindFileNotReady Kind = "file_not_ready"
	KindCodecError   Kind = "codec_error"
	KindIOError      Kind = "io_error"
	KindCancelled    Kind = "cancelled"
)

// Error is a Coordinator failure tagged with a Kind and wrapping the
// underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("coordinator: %s", e.Kind)
	}
	return fmt.Sprintf("coordinator: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error, and reports ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}
