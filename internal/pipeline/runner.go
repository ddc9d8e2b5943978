package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Recorder receives run and step outcomes for metrics. Implementations
// must be safe for concurrent use across runs.
type Recorder interface {
	RunStarted()
	RunFinished(status string, duration time.Duration)
	StepObserved(stepID, status string, duration time.Duration)
}

// ProgressFunc receives run snapshots as steps start, advance and
// finish. Intermediate snapshots are throttled; terminal ones always
// arrive.
type ProgressFunc func(Snapshot)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

// WithProgress attaches a progress callback. Rate limits intermediate
// snapshots to rps per second with the given burst, so tight stage
// loops cannot flood a broadcast hub.
func WithProgress(fn ProgressFunc, rps float64, burst int) RunnerOption {
	return func(r *Runner) {
		r.progress = fn
		if rps > 0 && burst > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithTracer attaches an OpenTelemetry tracer; the runner then opens
// one span per run and one per step.
func WithTracer(tracer trace.Tracer) RunnerOption {
	return func(r *Runner) { r.tracer = tracer }
}

// Runner executes the registered steps strictly in order against one
// run state. A step failure stops the run; later steps never execute
// against a partial handoff.
type Runner struct {
	steps    []Step
	logger   *slog.Logger
	recorder Recorder
	progress ProgressFunc
	limiter  *rate.Limiter
	tracer   trace.Tracer
}

// NewRunner creates a runner over the given steps, kept in slice order.
func NewRunner(stepList []Step, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		steps:  stepList,
		logger: logger.With(slog.String("component", "pipeline_runner")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Steps returns the registered steps in execution order.
func (r *Runner) Steps() []Step {
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// Run executes every step against state. The run fails on the first
// validation or execution error; a cancelled context between steps
// marks the run cancelled. The caller owns persisting the quality
// report afterwards.
func (r *Runner) Run(ctx context.Context, state *State) error {
	// Register all steps upfront so snapshots show the pending tail.
	for _, step := range r.steps {
		state.AddStep(NewStepState(step.ID(), step.Name()))
	}

	state.Start()
	if state.Reporter != nil {
		state.Reporter.Start()
	}
	if r.recorder != nil {
		r.recorder.RunStarted()
	}
	r.logger.InfoContext(ctx, "run started",
		slog.String("run_id", state.ID),
		slog.String("input", state.InputPath()),
		slog.Int("steps", len(r.steps)))

	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.Start(ctx, "pipeline.run",
			trace.WithAttributes(attribute.String("run.id", state.ID)))
		defer span.End()
	}
	r.notify(state, true)

	err := r.runSteps(ctx, state)

	if state.Reporter != nil {
		state.Reporter.End()
	}
	switch {
	case err == nil:
		state.Complete()
		r.logger.InfoContext(ctx, "run completed",
			slog.String("run_id", state.ID),
			slog.String("output", state.CurrentPath()),
			slog.Duration("duration", state.Duration()))
	case GetErrorType(err) == ErrorTypeCancellation:
		state.Cancel()
		r.logger.WarnContext(ctx, "run cancelled",
			slog.String("run_id", state.ID))
	default:
		state.Fail(err)
		r.logger.ErrorContext(ctx, "run failed",
			slog.String("run_id", state.ID),
			slog.String("error", err.Error()))
	}

	if r.recorder != nil {
		r.recorder.RunFinished(string(state.CurrentStatus()), state.Duration())
	}
	r.notify(state, true)
	return err
}

// runSteps drives the step sequence and returns the first failure.
func (r *Runner) runSteps(ctx context.Context, state *State) error {
	completed := make(map[string]bool, len(r.steps))

	for _, step := range r.steps {
		stepState := state.Step(step.ID())

		if ctx.Err() != nil {
			stepState.Skip("run cancelled")
			r.observeStep(step.ID(), stepState)
			return NewCancellationError(step.ID())
		}

		for _, dep := range step.Dependencies() {
			if !completed[dep] {
				err := NewDependencyError(step.ID(), dep, "dependency did not complete")
				stepState.Fail(err)
				r.observeStep(step.ID(), stepState)
				return err
			}
		}

		if err := step.Validate(state); err != nil {
			vErr := WrapError(err, step.ID(), "validation failed")
			vErr.Type = ErrorTypeValidation
			stepState.Fail(vErr)
			r.observeStep(step.ID(), stepState)
			return vErr
		}

		if err := r.runStep(ctx, step, state, stepState); err != nil {
			return err
		}
		completed[step.ID()] = true
	}
	return nil
}

// runStep executes one step with timing, tracing and progress.
func (r *Runner) runStep(ctx context.Context, step Step, state *State, stepState *StepState) error {
	stepCtx := ctx
	if r.tracer != nil {
		var span trace.Span
		stepCtx, span = r.tracer.Start(ctx, "pipeline.step",
			trace.WithAttributes(
				attribute.String("run.id", state.ID),
				attribute.String("step.id", step.ID())))
		defer span.End()
		defer func() {
			if stepState.Snapshot().Status == StepStatusFailed {
				span.SetStatus(codes.Error, "step failed")
			}
		}()
	}

	stepState.Start()
	r.notify(state, false)
	r.logger.InfoContext(stepCtx, "step started",
		slog.String("run_id", state.ID),
		slog.String("step", step.ID()))

	err := step.Execute(stepCtx, state)
	if err != nil {
		if stepCtx.Err() != nil && GetErrorType(err) != ErrorTypeValidation {
			err = NewCancellationError(step.ID())
		} else if pErr, ok := err.(*PipelineError); ok {
			err = WrapError(pErr, step.ID(), "")
		} else {
			err = NewExecutionError(step.ID(), err)
		}
		stepState.Fail(err)
		r.observeStep(step.ID(), stepState)
		r.notify(state, true)
		return err
	}

	stepState.SetMetadata("output_path", state.CurrentPath())
	stepState.Complete()
	r.observeStep(step.ID(), stepState)
	r.logger.InfoContext(stepCtx, "step completed",
		slog.String("run_id", state.ID),
		slog.String("step", step.ID()),
		slog.Duration("duration", stepState.Duration()))
	r.notify(state, false)
	return nil
}

func (r *Runner) observeStep(stepID string, stepState *StepState) {
	if r.recorder == nil {
		return
	}
	snap := stepState.Snapshot()
	r.recorder.StepObserved(stepID, string(snap.Status), stepState.Duration())
}

// notify hands a snapshot to the progress callback. Forced snapshots
// bypass the rate limiter so terminal events always go out.
func (r *Runner) notify(state *State, force bool) {
	if r.progress == nil {
		return
	}
	if !force && r.limiter != nil && !r.limiter.Allow() {
		return
	}
	r.progress(state.Snapshot())
}
