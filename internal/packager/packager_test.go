package packager

import (
	"strings"
	"testing"

	"torrentstream/internal/domain"
)

func TestBuildFFmpegArgsStreamCopy(t *testing.T) {
	args := buildFFmpegArgs(ArgConfig{Input: "in.mkv", StreamCopy: true, IsAACSource: true, SegmentDuration: 4})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-c:v copy") {
		t.Fatalf("expected stream-copy video codec, got: %s", joined)
	}
	if !strings.Contains(joined, "-c:a copy") {
		t.Fatalf("expected copied audio for AAC source, got: %s", joined)
	}
	if !strings.Contains(joined, "-hls_time 4") {
		t.Fatalf("expected segment duration 4, got: %s", joined)
	}
}

func TestBuildFFmpegArgsStreamCopyTranscodesNonAACAudio(t *testing.T) {
	args := buildFFmpegArgs(ArgConfig{Input: "in.mkv", StreamCopy: true, IsAACSource: false})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-c:a aac") {
		t.Fatalf("expected aac transcode for non-AAC source, got: %s", joined)
	}
}

func TestBuildFFmpegArgsFullReencode(t *testing.T) {
	args := buildFFmpegArgs(ArgConfig{Input: "in.avi", StreamCopy: false, CRF: 20, Preset: "fast"})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-c:v libx264") {
		t.Fatalf("expected libx264 re-encode, got: %s", joined)
	}
	if !strings.Contains(joined, "-crf 20") {
		t.Fatalf("expected crf 20, got: %s", joined)
	}
	if !strings.Contains(joined, "-preset fast") {
		t.Fatalf("expected preset fast, got: %s", joined)
	}
}

func TestBuildFFmpegArgsDefaults(t *testing.T) {
	args := buildFFmpegArgs(ArgConfig{Input: "in.mkv", StreamCopy: false})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-crf 23") {
		t.Fatalf("expected default crf 23, got: %s", joined)
	}
	if !strings.Contains(joined, "-preset veryfast") {
		t.Fatalf("expected default preset veryfast, got: %s", joined)
	}
	if !strings.Contains(joined, "-hls_time 4") {
		t.Fatalf("expected default segment duration 4, got: %s", joined)
	}
}

func TestIsStreamCopyCandidate(t *testing.T) {
	h264 := domain.MediaInfo{Tracks: []domain.MediaTrack{{Type: "video", Codec: "h264"}}}
	if !isStreamCopyCandidate(h264) {
		t.Fatal("expected h264 to be stream-copy candidate")
	}
	hevc := domain.MediaInfo{Tracks: []domain.MediaTrack{{Type: "video", Codec: "hevc"}}}
	if isStreamCopyCandidate(hevc) {
		t.Fatal("expected hevc not to be stream-copy candidate")
	}
	unknown := domain.MediaInfo{}
	if !isStreamCopyCandidate(unknown) {
		t.Fatal("expected unknown codec to default to stream-copy attempt")
	}
}

func TestIsAACSource(t *testing.T) {
	aac := domain.MediaInfo{Tracks: []domain.MediaTrack{{Type: "audio", Codec: "aac"}}}
	if !isAACSource(aac) {
		t.Fatal("expected aac source to be detected")
	}
	ac3 := domain.MediaInfo{Tracks: []domain.MediaTrack{{Type: "audio", Codec: "ac3"}}}
	if isAACSource(ac3) {
		t.Fatal("expected ac3 source not to be detected as aac")
	}
}

func TestMatchesAnyCaseInsensitive(t *testing.T) {
	if !matchesAny("ERROR OPENING INPUT: no such file", fileNotReadySubstrings) {
		t.Fatal("expected case-insensitive match")
	}
	if matchesAny("all good", fileNotReadySubstrings) {
		t.Fatal("expected no match")
	}
}

func TestLooksLikeCodecError(t *testing.T) {
	if !looksLikeCodecError("Error while decoding stream #0:0") {
		t.Fatal("expected codec error to be detected")
	}
	if looksLikeCodecError("No space left on device") {
		t.Fatal("expected unrelated error not to be classified as codec error")
	}
}

func TestProgressUnknownDurationReportsReadyThresholdOnceEncoding(t *testing.T) {
	p := New(Config{}, nil, nil)
	j := &job{id: "s1", duration: 0}
	j.proc = &process{}
	j.proc.progressUs = 5_000_000 // 5s encoded, duration unknown
	p.jobs["s1"] = j

	pct, err := p.Progress("s1")
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if pct != readyProgressPct {
		t.Fatalf("pct = %v, want %v", pct, readyProgressPct)
	}
}

func TestProgressKnownDurationComputesFraction(t *testing.T) {
	p := New(Config{}, nil, nil)
	j := &job{id: "s1", duration: 100}
	j.proc = &process{}
	j.proc.progressUs = 25_000_000 // 25s of 100s
	p.jobs["s1"] = j

	pct, err := p.Progress("s1")
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if pct != 25 {
		t.Fatalf("pct = %v, want 25", pct)
	}
}

func TestProgressNotFound(t *testing.T) {
	p := New(Config{}, nil, nil)
	if _, err := p.Progress("missing"); err != domain.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConfirmCodecMismatchWithoutProberIsUnconfirmed(t *testing.T) {
	p := New(Config{}, nil, nil)
	if p.confirmCodecMismatch("in.mkv") {
		t.Fatal("expected no confirmation without a prober")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	p := New(Config{}, nil, nil)
	p.Stop("never-started")
	p.Stop("never-started")
}
