// Package probe wraps the ffprobe binary to sniff codec and duration
// metadata from a partially-downloaded media file.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"torrentstream/internal/domain"
)

// Prober shells out to ffprobe to extract stream metadata.
type Prober struct {
	binary string
}

// New returns a Prober that invokes binary, defaulting to "ffprobe" on
// the PATH when binary is empty.
func New(binary string) *Prober {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{binary: bin}
}

const maxProbeTimeout = 30 * time.Second

// Probe inspects filePath and returns its track and duration metadata.
// A partially-downloaded file that still yields usable stream metadata
// is reported as success even if ffprobe itself exits non-zero.
func (p *Prober) Probe(ctx context.Context, filePath string) (domain.MediaInfo, error) {
	path := strings.TrimSpace(filePath)
	if path == "" {
		return domain.MediaInfo{}, errors.New("probe: file path is required")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxProbeTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-probesize", "50M",
		"-analyzeduration", "50M",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	info, parseErr := parseProbeOutput(stdout.Bytes())
	if parseErr != nil || len(info.Tracks) == 0 {
		if runErr != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				return domain.MediaInfo{}, fmt.Errorf("probe: ffprobe failed: %w", runErr)
			}
			return domain.MediaInfo{}, fmt.Errorf("probe: ffprobe failed: %w: %s", runErr, msg)
		}
		if parseErr != nil {
			return domain.MediaInfo{}, fmt.Errorf("probe: parse ffprobe output: %w", parseErr)
		}
	}

	return info, nil
}

type probePayload struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

func parseProbeOutput(data []byte) (domain.MediaInfo, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.MediaInfo{}, err
	}

	tracks := make([]domain.MediaTrack, 0, len(payload.Streams))
	videoIndex, audioIndex := 0, 0
	for _, s := range payload.Streams {
		switch s.CodecType {
		case "video":
			tracks = append(tracks, domain.MediaTrack{Index: videoIndex, Type: "video", Codec: s.CodecName})
			videoIndex++
		case "audio":
			tracks = append(tracks, domain.MediaTrack{Index: audioIndex, Type: "audio", Codec: s.CodecName})
			audioIndex++
		}
	}

	var duration float64
	if payload.Format.Duration != "" {
		if d, err := strconv.ParseFloat(payload.Format.Duration, 64); err == nil && d > 0 {
			duration = d
		}
	}

	return domain.MediaInfo{Tracks: tracks, Duration: duration}, nil
}

// CodecMismatch reports whether info's video codec differs from the
// codec FFmpeg's stderr substring match inferred, per the re-encode
// heuristic refinement: ffprobe's own codec_name is authoritative
// whenever it could be obtained.
func CodecMismatch(info domain.MediaInfo, ffmpegInferredCodec string) bool {
	actual := info.VideoCodec()
	if actual == "" || ffmpegInferredCodec == "" {
		return false
	}
	return !strings.EqualFold(actual, ffmpegInferredCodec)
}
