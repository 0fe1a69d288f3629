package job

import (
	"strings"
	"testing"
	"time"

	"github.com/maauso/coverkit/internal/job/id"
)

func TestNew(t *testing.T) {
	job := New()

	if !strings.HasPrefix(job.ID, id.Prefix) {
		t.Errorf("expected job ID with prefix %q, got %s", id.Prefix, job.ID)
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %s, got %s", StatusQueued, job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if job.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
	if job.Outputs == nil {
		t.Error("expected Outputs to be initialized")
	}
}

func TestNewWithID(t *testing.T) {
	job := NewWithID("render-test-123")

	if job.ID != "render-test-123" {
		t.Errorf("expected ID render-test-123, got %s", job.ID)
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %s, got %s", StatusQueued, job.Status)
	}
}

func TestJob_ValidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"QUEUED to RUNNING", StatusQueued, StatusRunning, false},
		{"QUEUED to CANCELLED", StatusQueued, StatusCancelled, false},
		{"RUNNING to COMPLETED", StatusRunning, StatusCompleted, false},
		{"RUNNING to FAILED", StatusRunning, StatusFailed, false},
		{"RUNNING to CANCELLED", StatusRunning, StatusCancelled, false},
		{"QUEUED to COMPLETED", StatusQueued, StatusCompleted, true},
		{"QUEUED to FAILED", StatusQueued, StatusFailed, true},
		{"RUNNING to QUEUED", StatusRunning, StatusQueued, true},
		{"COMPLETED to RUNNING", StatusCompleted, StatusRunning, true},
		{"FAILED to COMPLETED", StatusFailed, StatusCompleted, true},
		{"CANCELLED to RUNNING", StatusCancelled, StatusRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewWithID("test")
			job.Status = tt.from

			err := job.TransitionTo(tt.to)

			if tt.wantErr && err != ErrInvalidTransition {
				t.Errorf("expected ErrInvalidTransition for %s -> %s, got %v", tt.from, tt.to, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for transition %s -> %s: %v", tt.from, tt.to, err)
			}
		})
	}
}

func TestJob_Start(t *testing.T) {
	job := New()
	beforeStart := time.Now()

	if err := job.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Status != StatusRunning {
		t.Errorf("expected status %s, got %s", StatusRunning, job.Status)
	}
	if job.StartedAt.Before(beforeStart) {
		t.Error("expected StartedAt to be set after test start")
	}
}

func TestJob_Complete(t *testing.T) {
	job := New()
	_ = job.Start()

	if err := job.Complete(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Status != StatusCompleted {
		t.Errorf("expected status %s, got %s", StatusCompleted, job.Status)
	}
	if job.Progress != 100 {
		t.Errorf("expected progress 100, got %d", job.Progress)
	}
	if job.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set")
	}
}

func TestJob_Fail(t *testing.T) {
	job := New()
	_ = job.Start()

	errMsg := "1 of 2 targets failed"
	if err := job.Fail(errMsg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, job.Status)
	}
	if job.Error != errMsg {
		t.Errorf("expected error %q, got %q", errMsg, job.Error)
	}
	if job.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set on failure")
	}
}

func TestJob_Fail_FromQueuedKeepsError(t *testing.T) {
	job := New()

	if err := job.Fail("boom"); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if job.Error != "" {
		t.Errorf("expected no error message on rejected transition, got %q", job.Error)
	}
}

func TestJob_Cancel(t *testing.T) {
	for _, from := range []Status{StatusQueued, StatusRunning} {
		t.Run(string(from), func(t *testing.T) {
			job := NewWithID("test")
			job.Status = from

			if err := job.Cancel(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if job.Status != StatusCancelled {
				t.Errorf("expected status %s, got %s", StatusCancelled, job.Status)
			}
		})
	}
}

func TestJob_CannotTransitionFromTerminalState(t *testing.T) {
	terminalStates := []Status{StatusCompleted, StatusFailed, StatusCancelled}
	allStates := []Status{StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}

	for _, terminal := range terminalStates {
		for _, target := range allStates {
			t.Run(string(terminal)+"_to_"+string(target), func(t *testing.T) {
				job := NewWithID("test")
				job.Status = terminal

				if err := job.TransitionTo(target); err != ErrInvalidTransition {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
			})
		}
	}
}

func TestJob_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusQueued, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			job := NewWithID("test")
			job.Status = tt.status

			if got := job.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestJob_UpdateOutput_Progress(t *testing.T) {
	job := New()
	job.SetOutputs([]Output{
		{Index: 0, Width: 100, Height: 100, Status: OutputPending},
		{Index: 1, Width: 200, Height: 100, Status: OutputPending},
		{Index: 2, Width: 300, Height: 100, Status: OutputPending},
		{Index: 3, Width: 400, Height: 100, Status: OutputPending},
	})

	job.UpdateOutput(0, Output{Index: 0, Status: OutputRendering})
	if job.Progress != 0 {
		t.Errorf("expected progress 0 while rendering, got %d", job.Progress)
	}

	job.UpdateOutput(0, Output{Index: 0, Status: OutputCompleted, Size: 42})
	if job.Progress != 25 {
		t.Errorf("expected progress 25, got %d", job.Progress)
	}

	job.UpdateOutput(1, Output{Index: 1, Status: OutputFailed, Error: "encoding failed"})
	if job.Progress != 50 {
		t.Errorf("expected progress 50, got %d", job.Progress)
	}
	if n := job.FailedOutputs(); n != 1 {
		t.Errorf("expected 1 failed output, got %d", n)
	}

	out, ok := job.Output(0)
	if !ok || out.Size != 42 {
		t.Errorf("expected output 0 with size 42, got %+v (ok=%v)", out, ok)
	}

	// Out of range updates are ignored
	job.UpdateOutput(10, Output{Status: OutputCompleted})
	if job.Progress != 50 {
		t.Errorf("expected progress unchanged at 50, got %d", job.Progress)
	}
	if _, ok := job.Output(-1); ok {
		t.Error("expected no output at index -1")
	}
}

func TestJob_UpdateProgress(t *testing.T) {
	job := New()

	tests := []struct {
		input    int
		expected int
	}{
		{50, 50},
		{0, 0},
		{100, 100},
		{-10, 0},   // Clamped to 0
		{150, 100}, // Clamped to 100
	}

	for _, tt := range tests {
		job.UpdateProgress(tt.input)
		if job.Progress != tt.expected {
			t.Errorf("UpdateProgress(%d): expected %d, got %d", tt.input, tt.expected, job.Progress)
		}
	}
}

func TestJob_Clone(t *testing.T) {
	job := New()
	job.Status = StatusRunning
	job.Progress = 50
	job.Format = "image/png"
	job.SourceWidth = 1920
	job.SourceHeight = 1080
	job.SetOutputs([]Output{
		{Index: 0, Width: 500, Height: 500, Status: OutputCompleted},
	})

	clone := job.Clone()

	if clone.ID != job.ID {
		t.Errorf("expected ID %s, got %s", job.ID, clone.ID)
	}
	if clone.Status != job.Status {
		t.Errorf("expected Status %s, got %s", job.Status, clone.Status)
	}
	if clone.Format != "image/png" || clone.SourceWidth != 1920 || clone.SourceHeight != 1080 {
		t.Errorf("expected source fields copied, got %+v", clone)
	}

	clone.Status = StatusCompleted
	if job.Status == StatusCompleted {
		t.Error("modifying clone should not affect original")
	}

	clone.Outputs[0].Status = OutputFailed
	if job.Outputs[0].Status == OutputFailed {
		t.Error("modifying clone outputs should not affect original")
	}
}

func TestJob_GetStatus_ThreadSafe(t *testing.T) {
	job := New()

	done := make(chan bool)
	go func() {
		for i := 0; i < 100; i++ {
			_ = job.GetStatus()
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			_ = job.Start()
		}
		done <- true
	}()

	<-done
	<-done
}
