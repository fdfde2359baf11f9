// Package config loads the client configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Codec string

const (
	CodecPCM  Codec = "pcm"
	CodecOpus Codec = "opus"
)

type Config struct {
	// ServerURL is the call endpoint. http(s) URLs are accepted and
	// normalized to ws(s) at dial time.
	ServerURL string

	// Credential is the opaque auth token sent with the connection attempt.
	// Empty means unauthenticated.
	Credential string

	// Codec selects the capture/playback wire codec.
	Codec Codec

	// SampleRate of the conversational audio path, in Hz.
	SampleRate int

	// SpeechCooldown is how long the microphone stays gated after the server
	// signals end of agent speech.
	SpeechCooldown time.Duration

	DialTimeout time.Duration

	// GateOnQueuedAudio additionally gates the microphone while agent audio
	// is still queued for playback.
	GateOnQueuedAudio bool

	LogLevel slog.Level
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		ServerURL:         envOr("SHRUDAYA_SERVER_URL", "ws://localhost:8000/ws"),
		Credential:        strings.TrimSpace(os.Getenv("SHRUDAYA_TOKEN")),
		Codec:             Codec(envOr("SHRUDAYA_CODEC", string(CodecPCM))),
		SampleRate:        envIntOr("SHRUDAYA_SAMPLE_RATE", 16000),
		SpeechCooldown:    envDurationOr("SHRUDAYA_SPEECH_COOLDOWN", 2*time.Second),
		DialTimeout:       envDurationOr("SHRUDAYA_DIAL_TIMEOUT", 15*time.Second),
		GateOnQueuedAudio: envBoolOr("SHRUDAYA_GATE_ON_QUEUED_AUDIO", false),
	}

	switch cfg.Codec {
	case CodecPCM, CodecOpus:
	default:
		return Config{}, fmt.Errorf("SHRUDAYA_CODEC must be one of pcm|opus")
	}
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return Config{}, fmt.Errorf("SHRUDAYA_SERVER_URL must not be empty")
	}
	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("SHRUDAYA_SAMPLE_RATE must be > 0")
	}
	// The controller treats a non-positive cooldown as "use the default",
	// so an explicit zero cannot be honored; reject it instead of silently
	// overriding it.
	if cfg.SpeechCooldown <= 0 {
		return Config{}, fmt.Errorf("SHRUDAYA_SPEECH_COOLDOWN must be > 0")
	}
	if cfg.DialTimeout <= 0 {
		return Config{}, fmt.Errorf("SHRUDAYA_DIAL_TIMEOUT must be > 0")
	}

	level, err := parseLogLevel(envOr("SHRUDAYA_LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	return cfg, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("SHRUDAYA_LOG_LEVEL must be one of debug|info|warn|error")
	}
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
