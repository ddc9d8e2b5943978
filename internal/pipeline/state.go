package pipeline

import (
	"sync"
	"time"

	"github.com/briantruongvn/ngocson-tss-converter/internal/quality"
)

// Status represents the overall run status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// State is the complete state of one conversion run. The pipeline itself
// is single-threaded; the mutex exists because the HTTP and WebSocket
// layers read snapshots while a run executes.
type State struct {
	mu sync.RWMutex

	ID        string
	Status    Status
	StartTime time.Time
	EndTime   *time.Time

	// File handoff between steps. inputPath never changes; currentPath
	// advances as each step writes its output.
	inputPath   string
	currentPath string
	outputDir   string

	// Fingerprint of the input file, for the quality report.
	fingerprint string

	steps     map[string]*StepState
	stepOrder []string
	artifacts []string

	Reporter *quality.Reporter

	Err error
}

// NewState creates a run state for the given input file.
func NewState(id, inputPath string, reporter *quality.Reporter) *State {
	return &State{
		ID:          id,
		Status:      StatusPending,
		StartTime:   time.Now(),
		inputPath:   inputPath,
		currentPath: inputPath,
		steps:       make(map[string]*StepState),
		Reporter:    reporter,
	}
}

// Start marks the run as running.
func (s *State) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = StatusRunning
	s.StartTime = time.Now()
}

// Complete marks the run as completed.
func (s *State) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = StatusCompleted
}

// Fail marks the run as failed.
func (s *State) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = StatusFailed
	s.Err = err
}

// Cancel marks the run as cancelled.
func (s *State) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = StatusCancelled
}

// CurrentStatus returns the run status.
func (s *State) CurrentStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// AddStep registers a step state in execution order.
func (s *State) AddStep(step *StepState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.steps[step.ID]; !exists {
		s.stepOrder = append(s.stepOrder, step.ID)
	}
	s.steps[step.ID] = step
}

// Step returns the state of one step, or nil.
func (s *State) Step(stepID string) *StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps[stepID]
}

// InputPath returns the original input file of the run.
func (s *State) InputPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inputPath
}

// CurrentPath returns the file the next step should consume.
func (s *State) CurrentPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPath
}

// OutputDir returns the directory steps should write to, or "" to write
// alongside the input file.
func (s *State) OutputDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outputDir
}

// SetOutputDir sets the directory steps write their outputs to.
func (s *State) SetOutputDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputDir = dir
}

// Fingerprint returns the input file fingerprint, when computed.
func (s *State) Fingerprint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerprint
}

// SetFingerprint records the input file fingerprint.
func (s *State) SetFingerprint(fp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerprint = fp
}

// AdvanceTo records a produced file and hands it to the next step.
func (s *State) AdvanceTo(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPath = path
	s.artifacts = append(s.artifacts, path)
}

// Artifacts returns every file produced so far, in order.
func (s *State) Artifacts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.artifacts))
	copy(out, s.artifacts)
	return out
}

// Duration returns how long the run has been executing, or executed.
func (s *State) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// HasFailures reports whether any step failed.
func (s *State) HasFailures() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, step := range s.steps {
		if step.Status == StepStatusFailed {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the run state safe to serialize.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:          s.ID,
		Status:      s.Status,
		StartTime:   s.StartTime,
		InputPath:   s.inputPath,
		CurrentPath: s.currentPath,
		Fingerprint: s.fingerprint,
		Artifacts:   make([]string, len(s.artifacts)),
		Steps:       make([]StepSnapshot, 0, len(s.stepOrder)),
	}
	copy(snap.Artifacts, s.artifacts)
	if s.EndTime != nil {
		t := *s.EndTime
		snap.EndTime = &t
	}
	for _, id := range s.stepOrder {
		snap.Steps = append(snap.Steps, s.steps[id].Snapshot())
	}
	if s.Err != nil {
		snap.Error = s.Err.Error()
	}
	if s.Reporter != nil {
		snap.QualityScore = s.Reporter.QualityScore()
	}
	return snap
}

// Snapshot is the externally visible form of a run.
type Snapshot struct {
	ID           string         `json:"id"`
	Status       Status         `json:"status"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      *time.Time     `json:"end_time,omitempty"`
	InputPath    string         `json:"input_path"`
	CurrentPath  string         `json:"current_path"`
	Fingerprint  string         `json:"fingerprint,omitempty"`
	Artifacts    []string       `json:"artifacts"`
	Steps        []StepSnapshot `json:"steps"`
	QualityScore float64        `json:"quality_score"`
	Error        string         `json:"error,omitempty"`
}

// Duration returns the elapsed run time recorded in the snapshot.
func (s Snapshot) Duration() time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}
