package apihttp

import "testing"

func TestCorsOriginNoAllowlistEchoesRequestOrigin(t *testing.T) {
	if got := corsOrigin(nil, "https://player.example"); got != "https://player.example" {
		t.Fatalf("corsOrigin = %q", got)
	}
	if got := corsOrigin(nil, ""); got != "*" {
		t.Fatalf("corsOrigin with no Origin header = %q, want *", got)
	}
}

func TestCorsOriginAllowlistRestricts(t *testing.T) {
	allowed := []string{"https://player.example", "https://admin.example"}
	if got := corsOrigin(allowed, "https://player.example"); got != "https://player.example" {
		t.Fatalf("corsOrigin = %q, want match", got)
	}
	if got := corsOrigin(allowed, "https://evil.example"); got != "" {
		t.Fatalf("corsOrigin = %q, want empty for disallowed origin", got)
	}
}

func TestNormalizeRoute(t *testing.T) {
	cases := map[string]string{
		"/metrics":               "/metrics",
		"/health":                "/health",
		"/ws":                    "/ws",
		"/stream":                "/stream",
		"/stream/abc-123":        "/stream/:id",
		"/stream/abc-123/status": "/stream/:id/status",
		"/hls/abc-123/playlist.m3u8": "/hls/:id/:file",
		"/unknown":               "/other",
	}
	for path, want := range cases {
		if got := normalizeRoute(path); got != want {
			t.Errorf("normalizeRoute(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestIsNoisyPath(t *testing.T) {
	if !isNoisyPath("/hls/abc-123/segment000.ts") {
		t.Fatal("expected hls segment path to be noisy")
	}
	if !isNoisyPath("/health") {
		t.Fatal("expected health check to be noisy")
	}
	if isNoisyPath("/stream") {
		t.Fatal("expected /stream to not be noisy")
	}
}
