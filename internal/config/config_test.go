package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8000" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8000")
	}
	if cfg.InputSampleRate != 16000 || cfg.OutputSampleRate != 24000 || cfg.Channels != 1 {
		t.Fatalf("unexpected audio defaults: %+v", cfg)
	}
	if cfg.UploadMaxBytes != 25<<20 {
		t.Fatalf("UploadMaxBytes = %d, want %d", cfg.UploadMaxBytes, 25<<20)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Fatalf("unexpected chunking defaults: size=%d overlap=%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Fatalf("ShutdownTimeout = %v, want 15s", cfg.ShutdownTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_BIND_ADDR", ":9999")
	t.Setenv("MEDIA_UPLOAD_MAX_MB", "2")
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9999" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9999")
	}
	if cfg.UploadMaxBytes != 2<<20 {
		t.Fatalf("UploadMaxBytes = %d, want %d", cfg.UploadMaxBytes, 2<<20)
	}
	if cfg.AWSRegion != "eu-west-1" {
		t.Fatalf("AWSRegion = %q, want %q", cfg.AWSRegion, "eu-west-1")
	}
}

func TestLoadRejectsBadOverlap(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject overlap >= chunk size")
	}
}

func TestLoadRejectsBadInt(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject non-integer CHUNK_SIZE")
	}
}
