// Package job provides the Job aggregate for batch render jobs: one source
// image rendered into several cover-cropped target sizes.
// It includes the Job entity with its state machine and the repository port.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/coverkit/internal/cover"
	"github.com/maauso/coverkit/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusQueued indicates the job is waiting to be processed.
	StatusQueued Status = "QUEUED"
	// StatusRunning indicates the job's targets are being rendered.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates every target rendered successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates at least one target failed.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was cancelled before it finished.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OutputStatus represents the status of a single target rendition.
type OutputStatus string

const (
	// OutputPending indicates the target is waiting for a render slot.
	OutputPending OutputStatus = "PENDING"
	// OutputRendering indicates the target is being rendered or encoded.
	OutputRendering OutputStatus = "RENDERING"
	// OutputCompleted indicates the target was encoded and stored.
	OutputCompleted OutputStatus = "COMPLETED"
	// OutputFailed indicates the target could not be produced.
	OutputFailed OutputStatus = "FAILED"
)

// Output is one target rendition of the job's source.
type Output struct {
	// Index is the position of the target in the request.
	Index int
	// Width is the target width in pixels.
	Width int
	// Height is the target height in pixels.
	Height int
	// Status is the current rendition status.
	Status OutputStatus
	// Window is the source crop window used for this target.
	Window cover.CropWindow
	// MIMEType is the encoded image type.
	MIMEType string
	// Quality is the encoder quality used, in [0,1].
	Quality float64
	// Size is the encoded size in bytes.
	Size int
	// Path is the stored file path.
	Path string
	// URL is the published object URL, if the job was published.
	URL string
	// Error contains any error message if the rendition failed.
	Error string
	// StartedAt is when rendering started.
	StartedAt time.Time
	// CompletedAt is when rendering finished.
	CompletedAt time.Time
}

// Job represents a batch render job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// SourcePath is the stored location of the source image.
	SourcePath string
	// SourceWidth is the natural width of the source image.
	SourceWidth int
	// SourceHeight is the natural height of the source image.
	SourceHeight int
	// Format is the MIME type every output is encoded as.
	Format string
	// Quality is the encoder quality applied to every output unless AutoQuality is set.
	Quality float64
	// AutoQuality derives each output's quality from its pixel count.
	AutoQuality bool
	// Publish indicates whether outputs are published to the remote store.
	Publish bool
	// Outputs holds one entry per requested target.
	Outputs []Output
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains any error message if the job failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial QUEUED status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial QUEUED status.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusQueued,
		Outputs:   make([]Output, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from QUEUED to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED and sets progress to 100.
func (j *Job) Complete() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusCompleted); err != nil {
		return err
	}
	j.Progress = 100
	return nil
}

// Fail transitions the job to FAILED with an error message.
// The message is only recorded when the transition succeeds.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// Cancel transitions the job to CANCELLED.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetOutputs replaces the job's outputs.
func (j *Job) SetOutputs(outputs []Output) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Outputs = outputs
	j.UpdatedAt = time.Now()
}

// UpdateOutput replaces the output at index and recomputes progress from the
// number of outputs that reached a final state.
func (j *Job) UpdateOutput(index int, out Output) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if index < 0 || index >= len(j.Outputs) {
		return
	}
	j.Outputs[index] = out
	j.UpdatedAt = time.Now()

	done := 0
	for _, o := range j.Outputs {
		if o.Status == OutputCompleted || o.Status == OutputFailed {
			done++
		}
	}
	j.Progress = done * 100 / len(j.Outputs)
}

// Output returns a copy of the output at index.
func (j *Job) Output(index int) (Output, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if index < 0 || index >= len(j.Outputs) {
		return Output{}, false
	}
	return j.Outputs[index], true
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// FailedOutputs returns the number of outputs in OutputFailed state.
func (j *Job) FailedOutputs() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	n := 0
	for _, o := range j.Outputs {
		if o.Status == OutputFailed {
			n++
		}
	}
	return n
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	outputs := make([]Output, len(j.Outputs))
	copy(outputs, j.Outputs)

	return &Job{
		ID:           j.ID,
		Status:       j.Status,
		SourcePath:   j.SourcePath,
		SourceWidth:  j.SourceWidth,
		SourceHeight: j.SourceHeight,
		Format:       j.Format,
		Quality:      j.Quality,
		AutoQuality:  j.AutoQuality,
		Publish:      j.Publish,
		Outputs:      outputs,
		Progress:     j.Progress,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
