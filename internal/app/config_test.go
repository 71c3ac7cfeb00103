package app

import (
	"os"
	"testing"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"PORT", "LOG_LEVEL", "LOG_FORMAT", "TORRENT_DATA_DIR", "TEMP_ROOT", "APP_ENV",
		"FFMPEG_PATH", "FFPROBE_PATH",
		"HLS_PRESET", "HLS_CRF", "HLS_AUDIO_BITRATE", "HLS_SEGMENT_DURATION",
		"MAX_CONCURRENT_STREAMS",
		"JANITOR_INTERVAL_MINUTES", "JANITOR_IDLE_THRESHOLD_MINUTES",
		"CORS_ALLOWED_ORIGINS",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"OTEL_SERVICE_NAME",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"Port", cfg.Port, "3000"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "text"},
		{"TorrentDataDir", cfg.TorrentDataDir, "data/torrents"},
		{"TempRoot", cfg.TempRoot, "tmp/torrentstream"},
		{"FFMPEGPath", cfg.FFMPEGPath, "ffmpeg"},
		{"FFProbePath", cfg.FFProbePath, "ffprobe"},
		{"HLSPreset", cfg.HLSPreset, "veryfast"},
		{"HLSCRF", cfg.HLSCRF, 23},
		{"HLSAudioBitrate", cfg.HLSAudioBitrate, "128k"},
		{"HLSSegmentDuration", cfg.HLSSegmentDuration, 4},
		{"MaxConcurrentStreams", cfg.MaxConcurrentStreams, 4},
		{"JanitorInterval", cfg.JanitorInterval, 10},
		{"JanitorIdleThreshold", cfg.JanitorIdleThreshold, 30},
		{"RateLimitRPS", cfg.RateLimitRPS, 10.0},
		{"RateLimitBurst", cfg.RateLimitBurst, 20},
		{"OTelServiceName", cfg.OTelServiceName, "torrentstream-gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}

	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins: got %v, want nil/empty", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearConfigEnv(t)
	setEnvs(t, map[string]string{
		"PORT":                     "9090",
		"LOG_LEVEL":                "DEBUG",
		"LOG_FORMAT":               "JSON",
		"TORRENT_DATA_DIR":         "/mnt/data",
		"TEMP_ROOT":                "/mnt/tmp",
		"FFMPEG_PATH":              "/usr/bin/ffmpeg",
		"FFPROBE_PATH":             "/usr/bin/ffprobe",
		"HLS_PRESET":               "medium",
		"HLS_CRF":                  "18",
		"HLS_AUDIO_BITRATE":        "256k",
		"HLS_SEGMENT_DURATION":     "6",
		"MAX_CONCURRENT_STREAMS":   "10",
		"JANITOR_INTERVAL_MINUTES": "5",
		"JANITOR_IDLE_THRESHOLD_MINUTES": "15",
		"CORS_ALLOWED_ORIGINS":     "http://localhost:3000, https://example.com",
		"RATE_LIMIT_RPS":           "25.5",
		"RATE_LIMIT_BURST":         "50",
		"OTEL_SERVICE_NAME":        "torrentstream-gateway-staging",
	})

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"Port", cfg.Port, "9090"},
		{"LogLevel", cfg.LogLevel, "debug"},
		{"LogFormat", cfg.LogFormat, "json"},
		{"TorrentDataDir", cfg.TorrentDataDir, "/mnt/data"},
		{"TempRoot", cfg.TempRoot, "/mnt/tmp"},
		{"FFMPEGPath", cfg.FFMPEGPath, "/usr/bin/ffmpeg"},
		{"FFProbePath", cfg.FFProbePath, "/usr/bin/ffprobe"},
		{"HLSPreset", cfg.HLSPreset, "medium"},
		{"HLSCRF", cfg.HLSCRF, 18},
		{"HLSAudioBitrate", cfg.HLSAudioBitrate, "256k"},
		{"HLSSegmentDuration", cfg.HLSSegmentDuration, 6},
		{"MaxConcurrentStreams", cfg.MaxConcurrentStreams, 10},
		{"JanitorInterval", cfg.JanitorInterval, 5},
		{"JanitorIdleThreshold", cfg.JanitorIdleThreshold, 15},
		{"RateLimitRPS", cfg.RateLimitRPS, 25.5},
		{"RateLimitBurst", cfg.RateLimitBurst, 50},
		{"OTelServiceName", cfg.OTelServiceName, "torrentstream-gateway-staging"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}

	wantOrigins := []string{"http://localhost:3000", "https://example.com"}
	if len(cfg.CORSAllowedOrigins) != len(wantOrigins) {
		t.Fatalf("CORSAllowedOrigins: got %d entries, want %d", len(cfg.CORSAllowedOrigins), len(wantOrigins))
	}
	for i, got := range cfg.CORSAllowedOrigins {
		if got != wantOrigins[i] {
			t.Errorf("CORSAllowedOrigins[%d]: got %q, want %q", i, got, wantOrigins[i])
		}
	}
}

func TestDefaultTempRootProductionVsDevelopment(t *testing.T) {
	clearConfigEnv(t)

	t.Setenv("APP_ENV", "production")
	if got := defaultTempRoot(); got != "/app/temp" {
		t.Errorf("defaultTempRoot() in production = %q, want /app/temp", got)
	}

	t.Setenv("APP_ENV", "development")
	if got := defaultTempRoot(); got != "tmp/torrentstream" {
		t.Errorf("defaultTempRoot() in development = %q, want tmp/torrentstream", got)
	}

	os.Unsetenv("APP_ENV")
	if got := defaultTempRoot(); got != "tmp/torrentstream" {
		t.Errorf("defaultTempRoot() with APP_ENV unset = %q, want tmp/torrentstream", got)
	}
}

func TestGetEnvInt64InvalidFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		fallback int64
		want     int64
	}{
		{"empty string", "", 42, 42},
		{"not a number", "abc", 42, 42},
		{"negative number", "-5", 42, 42},
		{"zero", "0", 42, 0},
		{"valid positive", "100", 42, 100},
		{"whitespace around number", "  50  ", 42, 50},
		{"float", "3.14", 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT_VAR", tt.envVal)
			got := getEnvInt64("TEST_INT_VAR", tt.fallback)
			if got != tt.want {
				t.Errorf("getEnvInt64(%q, %d) = %d, want %d", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestGetEnvFloatInvalidFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		fallback float64
		want     float64
	}{
		{"empty string", "", 10, 10},
		{"not a number", "abc", 10, 10},
		{"negative number", "-1.5", 10, 10},
		{"zero", "0", 10, 0},
		{"valid float", "12.5", 10, 12.5},
		{"valid integer-looking", "20", 10, 20},
		{"whitespace around number", "  7.5  ", 10, 7.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_FLOAT_VAR", tt.envVal)
			got := getEnvFloat("TEST_FLOAT_VAR", tt.fallback)
			if got != tt.want {
				t.Errorf("getEnvFloat(%q, %v) = %v, want %v", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", nil},
		{"whitespace only", "   ", nil},
		{"single value", "http://localhost:3000", []string{"http://localhost:3000"}},
		{"multiple values", "a,b,c", []string{"a", "b", "c"}},
		{"values with spaces", " a , b , c ", []string{"a", "b", "c"}},
		{"trailing comma", "a,b,", []string{"a", "b"}},
		{"empty entries filtered", "a,,b,,c", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCSV(tt.input)
			if tt.want == nil {
				if got != nil {
					t.Errorf("parseCSV(%q) = %v, want nil", tt.input, got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseCSV(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseCSV(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_GETENV_VAR", "")
	if got := getEnv("TEST_GETENV_VAR", "fallback"); got != "fallback" {
		t.Errorf("getEnv with empty value = %q, want fallback", got)
	}

	t.Setenv("TEST_GETENV_VAR", "set")
	if got := getEnv("TEST_GETENV_VAR", "fallback"); got != "set" {
		t.Errorf("getEnv with set value = %q, want set", got)
	}
}
