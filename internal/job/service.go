package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/maauso/coverkit/internal/cover"
	"github.com/maauso/coverkit/internal/export"
	"github.com/maauso/coverkit/internal/render"
	"github.com/maauso/coverkit/internal/storage"
)

// Service errors.
var (
	// ErrNoTargets is returned when a job is created without targets.
	ErrNoTargets = errors.New("at least one target is required")
	// ErrInvalidImage is returned when the source image cannot be decoded.
	ErrInvalidImage = errors.New("source image could not be decoded")
	// ErrUnsupportedFormat is returned when the output format cannot be exported.
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrJobActive is returned when deleting a job that has not finished.
	ErrJobActive = errors.New("job is still active")
	// ErrOutputNotStored is returned when reading an output that has no stored file.
	ErrOutputNotStored = errors.New("output has no stored file")
)

// defaultMaxConcurrentRenders bounds parallel target renders when unset.
const defaultMaxConcurrentRenders = 4

// Target is one requested output size in pixels.
type Target struct {
	Width  int
	Height int
}

// RenderInput contains the input parameters for a batch render.
type RenderInput struct {
	// Image is the encoded source image (JPEG, PNG, WebP, GIF, BMP or TIFF).
	Image []byte
	// Targets lists the output sizes.
	Targets []Target
	// Format is the output MIME type; empty selects the service default.
	Format string
	// Quality is the encoder quality in [0,1]; nil selects the service default.
	Quality *float64
	// AutoQuality picks the quality per target from its pixel count.
	AutoQuality bool
	// Publish uploads every output to the remote store.
	Publish bool
}

// RenderService orchestrates batch render jobs: it stores the source, renders
// each target's cover crop with bounded concurrency, exports it and stores the
// encoded bytes.
type RenderService struct {
	repo   Repository
	store  storage.Storage
	logger *slog.Logger

	maxConcurrentRenders int
	kernel               render.Kernel
	defaultFormat        string
	defaultQuality       float64

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// ServiceOption is a functional option for configuring RenderService.
type ServiceOption func(*RenderService)

// WithMaxConcurrentRenders limits how many targets of a job render at once.
// Non-positive values are ignored.
func WithMaxConcurrentRenders(n int) ServiceOption {
	return func(s *RenderService) {
		if n > 0 {
			s.maxConcurrentRenders = n
		}
	}
}

// WithKernel sets the resampling kernel.
func WithKernel(k render.Kernel) ServiceOption {
	return func(s *RenderService) {
		s.kernel = k
	}
}

// WithDefaultFormat sets the output format used when a request names none.
func WithDefaultFormat(mimeType string) ServiceOption {
	return func(s *RenderService) {
		if mimeType != "" {
			s.defaultFormat = mimeType
		}
	}
}

// WithDefaultQuality sets the quality used when a request names none.
func WithDefaultQuality(q float64) ServiceOption {
	return func(s *RenderService) {
		s.defaultQuality = q
	}
}

// NewRenderService creates a new RenderService.
func NewRenderService(repo Repository, store storage.Storage, logger *slog.Logger, opts ...ServiceOption) *RenderService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RenderService{
		repo:                 repo,
		store:                store,
		logger:               logger,
		maxConcurrentRenders: defaultMaxConcurrentRenders,
		kernel:               render.DefaultKernel,
		defaultFormat:        export.DefaultMIMEType,
		defaultQuality:       export.DefaultQuality,
		running:              make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob validates input, stores the source image and persists a QUEUED job
// with one pending output per target.
func (s *RenderService) CreateJob(ctx context.Context, input RenderInput) (*Job, error) {
	if len(input.Targets) == 0 {
		return nil, ErrNoTargets
	}
	for i, t := range input.Targets {
		if t.Width < 1 || t.Height < 1 {
			return nil, fmt.Errorf("target %d (%dx%d): %w", i, t.Width, t.Height, cover.ErrInvalidDimension)
		}
	}

	format := input.Format
	if format == "" {
		format = s.defaultFormat
	}
	if !export.Supported(format) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	quality := s.defaultQuality
	if input.Quality != nil {
		quality = *input.Quality
	}

	src, err := render.Decode(bytes.NewReader(input.Image))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	size := src.NaturalSize()

	job := New()
	ext := mimetype.Detect(input.Image).Extension()
	sourcePath, err := s.store.Save(ctx, job.ID+"_source"+ext, bytes.NewReader(input.Image))
	if err != nil {
		return nil, fmt.Errorf("save source: %w", err)
	}

	job.SourcePath = sourcePath
	job.SourceWidth = int(size.Width)
	job.SourceHeight = int(size.Height)
	job.Format = format
	job.Quality = quality
	job.AutoQuality = input.AutoQuality
	job.Publish = input.Publish

	outputs := make([]Output, len(input.Targets))
	for i, t := range input.Targets {
		outputs[i] = Output{
			Index:    i,
			Width:    t.Width,
			Height:   t.Height,
			Status:   OutputPending,
			MIMEType: format,
		}
	}
	job.SetOutputs(outputs)

	s.logger.Info("creating render job",
		slog.String("job_id", job.ID),
		slog.String("source", size.String()),
		slog.Int("targets", len(outputs)),
		slog.String("format", format),
		slog.Bool("publish", input.Publish),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		_ = s.store.Cleanup(context.WithoutCancel(ctx), []string{sourcePath})
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *RenderService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ReadOutput returns the stored bytes of a completed output.
func (s *RenderService) ReadOutput(ctx context.Context, out Output) ([]byte, error) {
	if out.Status != OutputCompleted || out.Path == "" {
		return nil, fmt.Errorf("%w: output %d", ErrOutputNotStored, out.Index)
	}
	rc, err := s.store.Open(ctx, out.Path)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	return data, nil
}

// ListJobs returns all jobs, newest first.
func (s *RenderService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Process creates a job and renders it synchronously.
func (s *RenderService) Process(ctx context.Context, input RenderInput) (*Job, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, job.ID)
}

// ProcessExistingJob renders every target of a QUEUED job and returns the job
// in its final state. A job whose targets fail is returned with status FAILED
// and a nil error; errors are reserved for jobs that could not be run at all.
func (s *RenderService) ProcessExistingJob(ctx context.Context, jobID string) (*Job, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	persist := context.WithoutCancel(ctx)

	job, err := s.begin(ctx, jobID, cancel)
	if err != nil {
		return nil, err
	}
	defer s.untrack(jobID)

	s.logger.Info("processing render job",
		slog.String("job_id", jobID),
		slog.Int("targets", len(job.Outputs)),
		slog.Int("max_concurrent", s.maxConcurrentRenders),
	)

	src, err := s.loadSource(ctx, job.SourcePath)
	if err != nil {
		return s.finish(ctx, persist, job, err)
	}

	s.renderTargets(ctx, persist, job, src)
	return s.finish(ctx, persist, job, nil)
}

// CancelJob cancels a queued or running job. A running job stops rendering
// and is marked CANCELLED by its processor.
func (s *RenderService) CancelJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.running[jobID]; ok {
		cancel()
		s.logger.Info("cancelling running job", slog.String("job_id", jobID))
		return nil
	}

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := job.Cancel(); err != nil {
		return fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	s.logger.Info("cancelled queued job", slog.String("job_id", jobID))
	return s.repo.Save(ctx, job)
}

// DeleteJob removes a finished job and all files it wrote.
func (s *RenderService) DeleteJob(ctx context.Context, jobID string) error {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return ErrJobActive
	}

	paths := []string{job.SourcePath}
	for _, o := range job.Outputs {
		if o.Path != "" {
			paths = append(paths, o.Path)
		}
	}
	if err := s.store.Cleanup(ctx, paths); err != nil {
		s.logger.Warn("failed to remove job files",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("deleted job", slog.String("job_id", jobID), slog.Int("files", len(paths)))
	return s.repo.Delete(ctx, jobID)
}

// begin moves a job to RUNNING and registers its cancel func. Holding s.mu
// makes this atomic with respect to CancelJob.
func (s *RenderService) begin(ctx context.Context, jobID string, cancel context.CancelFunc) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.Start(); err != nil {
		return nil, fmt.Errorf("start job %s: %w", jobID, err)
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}
	s.running[jobID] = cancel
	return job, nil
}

func (s *RenderService) untrack(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, jobID)
}

func (s *RenderService) loadSource(ctx context.Context, path string) (*render.Raster, error) {
	rc, err := s.store.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = rc.Close() }()

	src, err := render.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return src, nil
}

// renderTargets renders all outputs, at most maxConcurrentRenders at a time.
func (s *RenderService) renderTargets(ctx, persist context.Context, job *Job, src *render.Raster) {
	snapshot := job.Clone()
	sem := make(chan struct{}, s.maxConcurrentRenders)
	var wg sync.WaitGroup

	for i := range snapshot.Outputs {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				s.failOutput(persist, job, index, ctx.Err())
				return
			}
			defer func() { <-sem }()

			s.renderTarget(ctx, persist, snapshot, job, src, index)
		}(i)
	}

	wg.Wait()
}

// renderTarget produces one output: cover render, export, store, publish.
func (s *RenderService) renderTarget(ctx, persist context.Context, snapshot, job *Job, src *render.Raster, index int) {
	out, _ := job.Output(index)
	out.Status = OutputRendering
	out.StartedAt = time.Now()
	job.UpdateOutput(index, out)
	s.save(persist, job)

	if err := ctx.Err(); err != nil {
		s.failOutput(persist, job, index, err)
		return
	}

	buf, window, err := render.ToBuffer(src, out.Width, out.Height,
		render.WithKernel(s.kernel),
		render.WithLogger(s.logger),
	)
	if err != nil {
		s.failOutput(persist, job, index, err)
		return
	}

	quality := snapshot.Quality
	if snapshot.AutoQuality {
		quality = export.OptimalQuality(out.Width, out.Height)
	}

	res, err := export.Await(ctx, export.Buffer(buf, snapshot.Format, quality))
	if err != nil {
		s.failOutput(persist, job, index, err)
		return
	}
	if res.Empty() {
		s.failOutput(persist, job, index, render.ErrEncodingFailed)
		return
	}

	name := fmt.Sprintf("%s_%dx%d.%s", snapshot.ID, out.Width, out.Height, export.Extension(res.MIMEType))
	path, err := s.store.Save(ctx, name, bytes.NewReader(res.Data))
	if err != nil {
		s.failOutput(persist, job, index, fmt.Errorf("save output: %w", err))
		return
	}

	var url string
	if snapshot.Publish {
		url, err = s.store.Publish(ctx, snapshot.ID+"/"+name, res.Data)
		if err != nil {
			s.failOutput(persist, job, index, fmt.Errorf("publish output: %w", err))
			return
		}
	}

	out, _ = job.Output(index)
	out.Status = OutputCompleted
	out.Window = window
	out.MIMEType = res.MIMEType
	out.Quality = quality
	out.Size = len(res.Data)
	out.Path = path
	out.URL = url
	out.CompletedAt = time.Now()
	job.UpdateOutput(index, out)
	s.save(persist, job)

	s.logger.Info("target rendered",
		slog.String("job_id", snapshot.ID),
		slog.Int("index", index),
		slog.Int("width", out.Width),
		slog.Int("height", out.Height),
		slog.Int("bytes", out.Size),
		slog.Float64("quality", quality),
	)
}

func (s *RenderService) failOutput(persist context.Context, job *Job, index int, cause error) {
	out, ok := job.Output(index)
	if !ok {
		return
	}
	out.Status = OutputFailed
	out.Error = cause.Error()
	out.CompletedAt = time.Now()
	job.UpdateOutput(index, out)
	s.save(persist, job)

	s.logger.Warn("target failed",
		slog.String("job_id", job.ID),
		slog.Int("index", index),
		slog.Int("width", out.Width),
		slog.Int("height", out.Height),
		slog.String("error", out.Error),
	)
}

// finish moves the job to its terminal state. A job whose outputs all
// completed is COMPLETED even if cancellation arrived late.
func (s *RenderService) finish(ctx, persist context.Context, job *Job, cause error) (*Job, error) {
	snapshot := job.Clone()
	completed, firstErr := 0, ""
	for _, o := range snapshot.Outputs {
		switch o.Status {
		case OutputCompleted:
			completed++
		case OutputFailed:
			if firstErr == "" {
				firstErr = o.Error
			}
		}
	}
	failed := len(snapshot.Outputs) - completed

	var transitionErr error
	switch {
	case cause == nil && failed == 0:
		transitionErr = job.Complete()
	case ctx.Err() != nil:
		transitionErr = job.Cancel()
	case cause != nil:
		transitionErr = job.Fail(cause.Error())
	default:
		transitionErr = job.Fail(fmt.Sprintf("%d of %d targets failed: %s", failed, len(snapshot.Outputs), firstErr))
	}
	if transitionErr != nil {
		return nil, fmt.Errorf("finish job %s: %w", job.ID, transitionErr)
	}

	if err := s.repo.Save(persist, job); err != nil {
		return nil, err
	}

	final := job.Clone()
	s.logger.Info("render job finished",
		slog.String("job_id", final.ID),
		slog.String("status", string(final.Status)),
		slog.Int("completed", completed),
		slog.Int("failed", failed),
		slog.Duration("duration", final.CompletedAt.Sub(final.StartedAt)),
	)
	return final, nil
}

func (s *RenderService) save(ctx context.Context, job *Job) {
	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Rendition is the result of a single synchronous render.
type Rendition struct {
	Source  cover.Dimensions
	Window  cover.CropWindow
	Quality float64
	Result  export.Result
}

// RenderOnce renders one target from an encoded image without creating a job.
// A nil quality selects the service default; autoQuality overrides both.
// Invalid target sizes return cover.ErrInvalidDimension; an empty export
// returns render.ErrEncodingFailed.
func (s *RenderService) RenderOnce(ctx context.Context, image []byte, target Target, format string, quality *float64, autoQuality bool) (*Rendition, error) {
	if format == "" {
		format = s.defaultFormat
	}
	if !export.Supported(format) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	q := s.defaultQuality
	switch {
	case autoQuality:
		q = export.OptimalQuality(target.Width, target.Height)
	case quality != nil:
		q = *quality
	}

	src, err := render.Decode(bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	buf, window, err := render.ToBuffer(src, target.Width, target.Height,
		render.WithKernel(s.kernel),
		render.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}

	res, err := export.Await(ctx, export.Buffer(buf, format, q))
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, fmt.Errorf("render %dx%d: %w", target.Width, target.Height, render.ErrEncodingFailed)
	}

	return &Rendition{
		Source:  src.NaturalSize(),
		Window:  window,
		Quality: q,
		Result:  res,
	}, nil
}
