// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/coverkit/internal/export"
	"github.com/maauso/coverkit/internal/render"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside 1..65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidBodyLimit is returned when MAX_BODY_BYTES is not positive.
	ErrInvalidBodyLimit = errors.New("config: MAX_BODY_BYTES must be positive")
	// ErrInvalidConcurrency is returned when MAX_CONCURRENT_RENDERS is not positive.
	ErrInvalidConcurrency = errors.New("config: MAX_CONCURRENT_RENDERS must be positive")
	// ErrUnsupportedFormat is returned when DEFAULT_FORMAT cannot be exported.
	ErrUnsupportedFormat = errors.New("config: DEFAULT_FORMAT is not a supported image type")
	// ErrInvalidQuality is returned when DEFAULT_QUALITY is outside [0,1].
	ErrInvalidQuality = errors.New("config: DEFAULT_QUALITY must be between 0 and 1")
	// ErrUnknownResample is returned when RESAMPLE names no known kernel.
	ErrUnknownResample = errors.New("config: RESAMPLE is not a known kernel")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=*" json:"allowed_origins"`
	MaxBodyBytes   int64    `env:"MAX_BODY_BYTES, default=67108864" json:"max_body_bytes"`

	// Storage settings
	OutputDir string `env:"OUTPUT_DIR, default=/tmp/coverkit" json:"output_dir"`

	// Rendering settings
	MaxConcurrentRenders int     `env:"MAX_CONCURRENT_RENDERS, default=4" json:"max_concurrent_renders"`
	DefaultFormat        string  `env:"DEFAULT_FORMAT, default=image/jpeg" json:"default_format"`
	DefaultQuality       float64 `env:"DEFAULT_QUALITY, default=0.9" json:"default_quality"`
	Resample             string  `env:"RESAMPLE, default=catmull-rom" json:"resample"`

	// External tools
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.MaxBodyBytes < 1 {
		return ErrInvalidBodyLimit
	}
	if c.MaxConcurrentRenders < 1 {
		return ErrInvalidConcurrency
	}
	if !export.Supported(c.DefaultFormat) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, c.DefaultFormat)
	}
	if math.IsNaN(c.DefaultQuality) || c.DefaultQuality < 0 || c.DefaultQuality > 1 {
		return ErrInvalidQuality
	}
	if _, err := render.ParseKernel(c.Resample); err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownResample, c.Resample)
	}
	return nil
}

// Kernel returns the configured resampling kernel, falling back to the default.
func (c *Config) Kernel() render.Kernel {
	k, err := render.ParseKernel(c.Resample)
	if err != nil {
		return render.DefaultKernel
	}
	return k
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, OutputDir: %s, MaxConcurrentRenders: %d, DefaultFormat: %s, DefaultQuality: %.2f, Resample: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.OutputDir,
		c.MaxConcurrentRenders,
		c.DefaultFormat,
		c.DefaultQuality,
		c.Resample,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
