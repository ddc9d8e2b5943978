package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Step is one stage of the conversion pipeline.
type Step interface {
	// ID returns the unique identifier for this step.
	ID() string

	// Name returns the human-readable name for this step.
	Name() string

	// Execute runs the step. It reads the current file from state,
	// writes its output file, and advances state.CurrentPath.
	Execute(ctx context.Context, state *State) error

	// Validate checks whether the step can run against the current state.
	Validate(state *State) error

	// Dependencies returns the IDs of steps that must complete first.
	Dependencies() []string
}

// StepStatus represents the current status of a step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState is the runtime state of a step within one run.
type StepState struct {
	mu        sync.RWMutex
	ID        string
	Name      string
	Status    StepStatus
	StartTime *time.Time
	EndTime   *time.Time
	Progress  float64
	Message   string
	Err       error
	Metadata  map[string]interface{}
}

// NewStepState creates a pending step state.
func NewStepState(id, name string) *StepState {
	return &StepState{
		ID:       id,
		Name:     name,
		Status:   StepStatusPending,
		Metadata: make(map[string]interface{}),
	}
}

// Start marks the step active and stamps the start time.
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
	s.Progress = 0
}

// Complete marks the step completed and stamps the end time.
func (s *StepState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusCompleted
	s.Progress = 100
}

// Fail marks the step failed with the given error.
func (s *StepState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusFailed
	s.Err = err
}

// Skip marks the step skipped with a reason.
func (s *StepState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusSkipped
	s.Message = reason
}

// UpdateProgress updates the progress percentage and message.
func (s *StepState) UpdateProgress(progress float64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Progress = progress
	s.Message = message
}

// SetMetadata records a named value on the step, such as an output path
// or a row count.
func (s *StepState) SetMetadata(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Metadata == nil {
		s.Metadata = make(map[string]interface{})
	}
	s.Metadata[key] = value
}

// Duration returns how long the step has run, or ran.
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// Snapshot returns a copy safe to hand outside the run.
func (s *StepState) Snapshot() StepSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StepSnapshot{
		ID:       s.ID,
		Name:     s.Name,
		Status:   s.Status,
		Progress: s.Progress,
		Message:  s.Message,
	}
	if s.StartTime != nil {
		t := *s.StartTime
		snap.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		snap.EndTime = &t
	}
	if s.Err != nil {
		snap.Error = s.Err.Error()
	}
	if len(s.Metadata) > 0 {
		snap.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			snap.Metadata[k] = v
		}
	}
	return snap
}

// StepSnapshot is the externally visible form of a StepState.
type StepSnapshot struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Status    StepStatus             `json:"status"`
	StartTime *time.Time             `json:"start_time,omitempty"`
	EndTime   *time.Time             `json:"end_time,omitempty"`
	Progress  float64                `json:"progress"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// BaseStep provides common functionality for Step implementations.
type BaseStep struct {
	id           string
	name         string
	dependencies []string
}

// NewBaseStep creates an embeddable step base.
func NewBaseStep(id, name string, dependencies []string) BaseStep {
	if dependencies == nil {
		dependencies = []string{}
	}
	return BaseStep{
		id:           id,
		name:         name,
		dependencies: dependencies,
	}
}

// ID returns the step ID.
func (b *BaseStep) ID() string {
	if b == nil {
		return ""
	}
	return b.id
}

// Name returns the step name.
func (b *BaseStep) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// Dependencies returns the step dependencies.
func (b *BaseStep) Dependencies() []string {
	if b == nil {
		return nil
	}
	return b.dependencies
}

// Validate provides a default validation that checks the state carries a
// current file for the step to consume.
func (b *BaseStep) Validate(state *State) error {
	if b == nil {
		return fmt.Errorf("step is nil")
	}
	if state == nil {
		return fmt.Errorf("state is nil")
	}
	if state.CurrentPath() == "" {
		return fmt.Errorf("no input file on run state")
	}
	return nil
}
