package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/briantruongvn/ngocson-tss-converter/internal/quality"
)

// StepFactory builds a fresh step chain for one run. Steps hold the
// run's reporter, so they cannot be shared across runs.
type StepFactory func(reporter *quality.Reporter) []Step

// InputValidator vets an uploaded file before a run is created.
type InputValidator interface {
	ValidateInput(path string) error
}

// RunDirFunc maps a run ID to the directory its artifacts land in.
type RunDirFunc func(runID string) string

// Manager creates, tracks and cancels conversion runs. Each run
// executes on its own goroutine with a private state, step chain and
// quality reporter; the manager only shares the registry.
type Manager struct {
	mu      sync.RWMutex
	runs    map[string]*managedRun
	order   []string
	logger  *slog.Logger
	factory StepFactory
	runDir  RunDirFunc

	validator InputValidator
	recorder  Recorder
	progress  ProgressFunc
	rps       float64
	burst     int
	tracer    trace.Tracer
}

type managedRun struct {
	state    *State
	reporter *quality.Reporter
	cancel   context.CancelFunc
	done     chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithInputValidator vets inputs before a run starts.
func WithInputValidator(v InputValidator) ManagerOption {
	return func(m *Manager) { m.validator = v }
}

// WithRunRecorder forwards run metrics to rec.
func WithRunRecorder(rec Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = rec }
}

// WithRunProgress forwards throttled run snapshots to fn.
func WithRunProgress(fn ProgressFunc, rps float64, burst int) ManagerOption {
	return func(m *Manager) {
		m.progress = fn
		m.rps = rps
		m.burst = burst
	}
}

// WithRunTracer opens one span per run and per step on tracer.
func WithRunTracer(tracer trace.Tracer) ManagerOption {
	return func(m *Manager) { m.tracer = tracer }
}

// NewManager creates a run manager. runDir decides where each run
// writes its artifacts; a nil runDir writes next to the input file.
func NewManager(factory StepFactory, runDir RunDirFunc, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		runs:    make(map[string]*managedRun),
		logger:  logger.With(slog.String("component", "run_manager")),
		factory: factory,
		runDir:  runDir,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start validates inputPath, registers a new run and executes it on a
// background goroutine. The returned snapshot shows the pending run;
// callers poll Get or subscribe to progress for completion.
func (m *Manager) Start(inputPath string) (Snapshot, error) {
	if m.validator != nil {
		if err := m.validator.ValidateInput(inputPath); err != nil {
			return Snapshot{}, fmt.Errorf("input validation: %w", err)
		}
	}

	runID := uuid.New().String()
	reporter := quality.NewReporter(m.logger)
	state := NewState(runID, inputPath, reporter)
	if m.runDir != nil {
		state.SetOutputDir(m.runDir(runID))
	}
	if fp, err := quality.FileFingerprint(inputPath); err == nil {
		state.SetFingerprint(fp)
	} else {
		m.logger.Warn("input fingerprint failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &managedRun{
		state:    state,
		reporter: reporter,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	m.runs[runID] = run
	m.order = append(m.order, runID)
	m.mu.Unlock()

	var runnerOpts []RunnerOption
	if m.recorder != nil {
		runnerOpts = append(runnerOpts, WithRecorder(m.recorder))
	}
	if m.progress != nil {
		runnerOpts = append(runnerOpts, WithProgress(m.progress, m.rps, m.burst))
	}
	if m.tracer != nil {
		runnerOpts = append(runnerOpts, WithTracer(m.tracer))
	}
	runner := NewRunner(m.factory(reporter), m.logger, runnerOpts...)

	go func() {
		defer cancel()
		defer close(run.done)
		if err := runner.Run(ctx, state); err != nil {
			m.logger.Error("run finished with error",
				slog.String("run_id", runID),
				slog.String("error", err.Error()))
		}
	}()

	return state.Snapshot(), nil
}

// Get returns the snapshot of one run.
func (m *Manager) Get(runID string) (Snapshot, error) {
	run, err := m.lookup(runID)
	if err != nil {
		return Snapshot{}, err
	}
	return run.state.Snapshot(), nil
}

// List returns snapshots of all runs, newest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	runs := make([]*managedRun, 0, len(ids))
	for _, id := range ids {
		runs = append(runs, m.runs[id])
	}
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(runs))
	for _, run := range runs {
		out = append(out, run.state.Snapshot())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

// Cancel aborts an active run. Partial stage output already written to
// disk is the run directory's concern; the run itself never advances
// past the step that observed the cancellation.
func (m *Manager) Cancel(runID string) error {
	run, err := m.lookup(runID)
	if err != nil {
		return err
	}
	switch run.state.CurrentStatus() {
	case StatusPending, StatusRunning:
		run.cancel()
		return nil
	default:
		return ErrRunNotRunning
	}
}

// Report returns the quality report of one run.
func (m *Manager) Report(runID string) (quality.Report, error) {
	run, err := m.lookup(runID)
	if err != nil {
		return quality.Report{}, err
	}
	return run.reporter.Report(run.state.Fingerprint()), nil
}

// FinalArtifact returns the deliverable path of a completed run.
func (m *Manager) FinalArtifact(runID string) (string, error) {
	run, err := m.lookup(runID)
	if err != nil {
		return "", err
	}
	if run.state.CurrentStatus() != StatusCompleted {
		return "", ErrRunNotCompleted
	}
	arts := run.state.Artifacts()
	if len(arts) == 0 {
		return "", ErrRunNotCompleted
	}
	return arts[len(arts)-1], nil
}

// Wait blocks until the run finishes or ctx expires. Used by tests and
// the synchronous CLI path.
func (m *Manager) Wait(ctx context.Context, runID string) error {
	run, err := m.lookup(runID)
	if err != nil {
		return err
	}
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) lookup(runID string) (*managedRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}
