package app

import (
	"os"
	"strconv"
	"strings"
)

// Config holds every environment-driven setting for the gateway.
type Config struct {
	Port                  string
	LogLevel              string
	LogFormat             string
	TorrentDataDir        string
	TempRoot              string
	FFMPEGPath            string
	FFProbePath           string
	HLSPreset             string
	HLSCRF                int
	HLSAudioBitrate       string
	HLSSegmentDuration    int
	MaxConcurrentStreams  int
	JanitorInterval       int // minutes
	JanitorIdleThreshold  int // minutes
	CORSAllowedOrigins    []string
	RateLimitRPS          float64
	RateLimitBurst        int
	OTelServiceName       string
}

// LoadConfig reads the process environment into a Config, applying the
// same defaults the gateway ships with in development.
func LoadConfig() Config {
	return Config{
		Port:                 getEnv("PORT", "3000"),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(getEnv("LOG_FORMAT", "text")),
		TorrentDataDir:       getEnv("TORRENT_DATA_DIR", "data/torrents"),
		TempRoot:             getEnv("TEMP_ROOT", defaultTempRoot()),
		FFMPEGPath:           getEnv("FFMPEG_PATH", "ffmpeg"),
		FFProbePath:          getEnv("FFPROBE_PATH", "ffprobe"),
		HLSPreset:            getEnv("HLS_PRESET", "veryfast"),
		HLSCRF:               int(getEnvInt64("HLS_CRF", 23)),
		HLSAudioBitrate:      getEnv("HLS_AUDIO_BITRATE", "128k"),
		HLSSegmentDuration:   int(getEnvInt64("HLS_SEGMENT_DURATION", 4)),
		MaxConcurrentStreams: int(getEnvInt64("MAX_CONCURRENT_STREAMS", 4)),
		JanitorInterval:      int(getEnvInt64("JANITOR_INTERVAL_MINUTES", 10)),
		JanitorIdleThreshold: int(getEnvInt64("JANITOR_IDLE_THRESHOLD_MINUTES", 30)),
		CORSAllowedOrigins:   parseCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		RateLimitRPS:         getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:       int(getEnvInt64("RATE_LIMIT_BURST", 20)),
		OTelServiceName:      getEnv("OTEL_SERVICE_NAME", "torrentstream-gateway"),
	}
}

// defaultTempRoot mirrors the production/dev split: a fixed container
// path in production, a repo-local directory otherwise.
func defaultTempRoot() string {
	if getEnv("APP_ENV", "development") == "production" {
		return "/app/temp"
	}
	return "tmp/torrentstream"
}

func parseCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
