// Package bootstrap provides dependency initialization for the coverkit server.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/coverkit/internal/config"
	"github.com/maauso/coverkit/internal/job"
	"github.com/maauso/coverkit/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	RenderService *job.RenderService
	Storage       storage.Storage
	// PublishEnabled is true when outputs can be published to S3.
	PublishEnabled bool
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	repo := job.NewMemoryRepository()

	svc := job.NewRenderService(
		repo,
		store,
		logger,
		job.WithMaxConcurrentRenders(cfg.MaxConcurrentRenders),
		job.WithKernel(cfg.Kernel()),
		job.WithDefaultFormat(cfg.DefaultFormat),
		job.WithDefaultQuality(cfg.DefaultQuality),
	)

	return &Dependencies{
		RenderService:  svc,
		Storage:        store,
		PublishEnabled: cfg.S3Enabled(),
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.OutputDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("output_dir", cfg.OutputDir),
	)
	return localStore, nil
}
