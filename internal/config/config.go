package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the interview client.
type Config struct {
	Backend  BackendConfig
	Storage  StorageConfig
	Identity IdentityConfig
	Media    MediaConfig
	Session  SessionConfig
}

type BackendConfig struct {
	APIBaseURL string
	AuthToken  string
}

type StorageConfig struct {
	ProjectID string
}

type IdentityConfig struct {
	UserID string
	Token  string
}

type MediaConfig struct {
	CaptureCommand string
	VideoFormat    string
	VideoDevice    string
	AudioFormat    string
	AudioDevice    string
	Width          int
	Height         int
	FrameRate      int
	SampleRate     int
	Channels       int
}

type SessionConfig struct {
	ConnectTimeout time.Duration
	DetachTimeout  time.Duration
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	authToken := strings.TrimSpace(os.Getenv("INTERVOX_AUTH_TOKEN"))

	cfg := Config{
		Backend: BackendConfig{
			APIBaseURL: envOrDefault("INTERVOX_BACKEND_URL", "http://localhost:5000"),
			AuthToken:  authToken,
		},
		Storage: StorageConfig{
			ProjectID: strings.TrimSpace(os.Getenv("INTERVOX_GCP_PROJECT")),
		},
		Identity: IdentityConfig{
			UserID: strings.TrimSpace(os.Getenv("INTERVOX_USER_ID")),
			Token:  authToken,
		},
		Media: MediaConfig{
			CaptureCommand: envOrDefault("INTERVOX_FFMPEG_COMMAND", "ffmpeg"),
			VideoFormat:    envOrDefault("INTERVOX_VIDEO_FORMAT", "v4l2"),
			VideoDevice:    envOrDefault("INTERVOX_VIDEO_DEVICE", "/dev/video0"),
			AudioFormat:    envOrDefault("INTERVOX_AUDIO_FORMAT", "pulse"),
			AudioDevice: firstNonEmpty(
				os.Getenv("INTERVOX_AUDIO_DEVICE"),
				os.Getenv("PULSE_SOURCE"),
				"default",
			),
			Width:      envOrDefaultInt("INTERVOX_VIDEO_WIDTH", 1280),
			Height:     envOrDefaultInt("INTERVOX_VIDEO_HEIGHT", 720),
			FrameRate:  envOrDefaultInt("INTERVOX_VIDEO_FRAMERATE", 30),
			SampleRate: envOrDefaultInt("INTERVOX_SAMPLE_RATE", 24000),
			Channels:   envOrDefaultInt("INTERVOX_CHANNELS", 1),
		},
		Session: SessionConfig{
			ConnectTimeout: time.Duration(envOrDefaultInt("INTERVOX_CONNECT_TIMEOUT_MS", 30000)) * time.Millisecond,
			DetachTimeout:  time.Duration(envOrDefaultInt("INTERVOX_DETACH_TIMEOUT_MS", 10000)) * time.Millisecond,
		},
	}

	if cfg.Media.Width <= 0 {
		cfg.Media.Width = 1280
	}
	if cfg.Media.Height <= 0 {
		cfg.Media.Height = 720
	}
	if cfg.Media.FrameRate <= 0 {
		cfg.Media.FrameRate = 30
	}
	if cfg.Media.SampleRate <= 0 {
		cfg.Media.SampleRate = 24000
	}
	if cfg.Media.Channels <= 0 {
		cfg.Media.Channels = 1
	}
	if cfg.Session.ConnectTimeout <= 0 {
		cfg.Session.ConnectTimeout = 30 * time.Second
	}
	if cfg.Session.DetachTimeout <= 0 {
		cfg.Session.DetachTimeout = 10 * time.Second
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
