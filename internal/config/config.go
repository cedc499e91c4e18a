package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice RAG gateway.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	AWSRoleARN         string
	BedrockAPIKey      string

	NovaSonicModelID     string
	NovaLiteModelID      string
	NovaGroundingModelID string
	TitanEmbedModelID    string

	DefaultVoice     string
	InputSampleRate  int
	OutputSampleRate int
	Channels         int

	UploadMaxBytes int64

	ChunkSize           int
	ChunkOverlap        int
	RetrieveTopK        int
	EmbeddingDim        int
	WebSearchMaxSources int

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8000"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "voicerag"),
		AllowAnyOrigin:   false,
		ShutdownTimeout:  15 * time.Second,

		AWSRegion:          envOrDefault("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     trimmedEnv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: trimmedEnv("AWS_SECRET_ACCESS_KEY"),
		AWSSessionToken:    trimmedEnv("AWS_SESSION_TOKEN"),
		AWSRoleARN:         trimmedEnv("AWS_ROLE_ARN"),
		BedrockAPIKey:      trimmedEnv("BEDROCK_API_KEY"),

		NovaSonicModelID: envOrDefault("NOVA_SONIC_MODEL_ID", "amazon.nova-2-sonic-v1:0"),
		NovaLiteModelID:  envOrDefault("NOVA_LITE_MODEL_ID", "amazon.nova-lite-v1:0"),
		// Web grounding is currently US-region only and may need a "us." model prefix.
		NovaGroundingModelID: envOrDefault("NOVA_GROUNDING_MODEL_ID", "us.amazon.nova-2-lite-v1:0"),
		TitanEmbedModelID:    envOrDefault("TITAN_EMBED_MODEL_ID", "amazon.titan-embed-text-v2:0"),

		DefaultVoice:     envOrDefault("VOICE_ID", "matthew"),
		InputSampleRate:  16000,
		OutputSampleRate: 24000,
		Channels:         1,

		UploadMaxBytes: 25 << 20,

		ChunkSize:           1000,
		ChunkOverlap:        200,
		RetrieveTopK:        2,
		EmbeddingDim:        1024,
		WebSearchMaxSources: 3,

		DatabaseURL: trimmedEnv("DATABASE_URL"),
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.InputSampleRate, err = intFromEnv("INPUT_SAMPLE_RATE", cfg.InputSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.OutputSampleRate, err = intFromEnv("OUTPUT_SAMPLE_RATE", cfg.OutputSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.Channels, err = intFromEnv("CHANNELS", cfg.Channels)
	if err != nil {
		return Config{}, err
	}
	maxMB, err := intFromEnv("MEDIA_UPLOAD_MAX_MB", int(cfg.UploadMaxBytes>>20))
	if err != nil {
		return Config{}, err
	}
	cfg.UploadMaxBytes = int64(maxMB) << 20
	cfg.ChunkSize, err = intFromEnv("CHUNK_SIZE", cfg.ChunkSize)
	if err != nil {
		return Config{}, err
	}
	cfg.ChunkOverlap, err = intFromEnv("CHUNK_OVERLAP", cfg.ChunkOverlap)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrieveTopK, err = intFromEnv("RETRIEVE_TOP_K", cfg.RetrieveTopK)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingDim, err = intFromEnv("EMBEDDING_DIM", cfg.EmbeddingDim)
	if err != nil {
		return Config{}, err
	}
	cfg.WebSearchMaxSources, err = intFromEnv("WEB_SEARCH_MAX_SOURCES", cfg.WebSearchMaxSources)
	if err != nil {
		return Config{}, err
	}

	if cfg.UploadMaxBytes <= 0 {
		return Config{}, fmt.Errorf("MEDIA_UPLOAD_MAX_MB must be positive")
	}
	if cfg.ChunkSize <= 0 {
		return Config{}, fmt.Errorf("CHUNK_SIZE must be positive")
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return Config{}, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	if cfg.EmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_DIM must be positive")
	}
	if cfg.InputSampleRate <= 0 || cfg.OutputSampleRate <= 0 {
		return Config{}, fmt.Errorf("sample rates must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
