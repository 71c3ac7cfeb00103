package apihttp

import "testing"

func TestResolveDataFilePathRejectsEscape(t *testing.T) {
	cases := []struct {
		name     string
		filePath string
		wantErr  bool
	}{
		{"simple segment", "segment000.ts", false},
		{"nested but still inside", "sub/segment000.ts", false},
		{"parent escape", "../secret", true},
		{"double parent escape", "../../etc/passwd", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolveDataFilePath("/data/hls/abc123", tc.filePath)
			if (err != nil) != tc.wantErr {
				t.Fatalf("resolveDataFilePath(%q) err = %v, wantErr = %v", tc.filePath, err, tc.wantErr)
			}
		})
	}
}

func TestContentTypeAndCacheControlRules(t *testing.T) {
	if ct := contentTypeFor("playlist.m3u8"); ct != "application/vnd.apple.mpegurl" {
		t.Fatalf("playlist content-type = %q", ct)
	}
	if ct := contentTypeFor("segment000.ts"); ct != "video/mp2t" {
		t.Fatalf("segment content-type = %q", ct)
	}
	if cc := cacheControlFor("playlist.m3u8"); cc != "no-cache" {
		t.Fatalf("playlist cache-control = %q", cc)
	}
	if cc := cacheControlFor("segment000.ts"); cc != "public, max-age=31536000" {
		t.Fatalf("segment cache-control = %q", cc)
	}
}
