// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Server holds the file service configuration.
type Server struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Storage backend ("local" or "s3", default: "local")
	StorageBackend   string
	LocalStoragePath string

	// S3 storage
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	// Uploads
	MaxUploadSize int64

	// Static bearer token; empty disables the check.
	APIToken string
}

// Console holds the command-line console configuration.
type Console struct {
	ServerURL     string
	Token         string
	Project       string
	AutosaveDelay time.Duration
	Timeout       time.Duration
	LogLevel      string
}

// LoadServer reads server configuration from environment variables with defaults.
func LoadServer() (*Server, error) {
	cfg := &Server{
		ListenAddr:       envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:      envOr("METRICS_ADDR", ":9090"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFormat:        envOr("LOG_FORMAT", "json"),
		StorageBackend:   envOr("STORAGE_BACKEND", "local"),
		LocalStoragePath: envOr("LOCAL_STORAGE_PATH", "/data/projects"),
		S3Endpoint:       envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:         envOr("S3_BUCKET", "staticforge"),
		S3AccessKey:      envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:      envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:         envOr("S3_REGION", "us-east-1"),
		S3UseSSL:         envBool("S3_USE_SSL", false),
		MaxUploadSize:    envInt64("MAX_UPLOAD_SIZE", 32*1024*1024), // 32MB default
		APIToken:         envOr("API_TOKEN", ""),
	}

	switch cfg.StorageBackend {
	case "local", "s3":
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required for the s3 backend")
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}

	return cfg, nil
}

// LoadConsole reads console configuration from environment variables with
// defaults. Command-line flags override these values.
func LoadConsole() *Console {
	return &Console{
		ServerURL:     envOr("CONSOLE_SERVER", "http://localhost:8080"),
		Token:         envOr("CONSOLE_TOKEN", ""),
		Project:       envOr("CONSOLE_PROJECT", ""),
		AutosaveDelay: envDuration("CONSOLE_AUTOSAVE_DELAY", 2*time.Second),
		Timeout:       envDuration("CONSOLE_TIMEOUT", 30*time.Second),
		LogLevel:      envOr("CONSOLE_LOG_LEVEL", "warn"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
