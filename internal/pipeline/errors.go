package pipeline

import (
	"fmt"
)

// ErrorType classifies a pipeline error.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeDependency   ErrorType = "dependency"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeFatal        ErrorType = "fatal"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInvalidState ErrorType = "invalid_state"
)

// PipelineError is a step-scoped error with classification and context.
type PipelineError struct {
	Type    ErrorType              `json:"type"`
	Step    string                 `json:"step,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e == nil {
		return "unknown pipeline error"
	}
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Step, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another PipelineError by type, and by step when the target
// names one. This lets callers write errors.Is(err, ErrRunNotFound).
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok || e == nil {
		return false
	}
	if t == e {
		return true
	}
	if t.Type != "" && t.Type != e.Type {
		return false
	}
	if t.Step != "" && t.Step != e.Step {
		return false
	}
	return true
}

// WithContext attaches a named value to the error.
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewValidationError creates a validation error for a step.
func NewValidationError(step, message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeValidation,
		Step:    step,
		Message: message,
	}
}

// NewDependencyError creates a dependency error for a step.
func NewDependencyError(step, dependsOn, message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeDependency,
		Step:    step,
		Message: message,
		Context: map[string]interface{}{
			"depends_on": dependsOn,
		},
	}
}

// NewExecutionError creates an execution error for a step.
func NewExecutionError(step string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeExecution,
		Step:    step,
		Message: "step execution failed",
		Cause:   cause,
	}
}

// NewCancellationError creates a cancellation error for a step.
func NewCancellationError(step string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeCancellation,
		Step:    step,
		Message: "run was cancelled",
	}
}

// NewFatalError creates an error no step can recover from.
func NewFatalError(message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeFatal,
		Message: message,
		Cause:   cause,
	}
}

// GetErrorType returns the classification of err.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	if pErr, ok := err.(*PipelineError); ok {
		return pErr.Type
	}
	return ErrorTypeExecution
}

// WrapError wraps an error with step context, enhancing an existing
// PipelineError in place.
func WrapError(err error, step string, message string) *PipelineError {
	if err == nil {
		return nil
	}

	if pErr, ok := err.(*PipelineError); ok {
		if pErr.Step == "" {
			pErr.Step = step
		}
		if message != "" {
			pErr.Message = fmt.Sprintf("%s: %s", message, pErr.Message)
		}
		return pErr
	}

	return &PipelineError{
		Type:    ErrorTypeExecution,
		Step:    step,
		Message: message,
		Cause:   err,
	}
}

// ErrorList aggregates errors from multiple steps or runs.
type ErrorList struct {
	Errors []*PipelineError `json:"errors"`
}

// Error implements the error interface.
func (e *ErrorList) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors: %d errors occurred", len(e.Errors))
}

// Add appends an error to the list.
func (e *ErrorList) Add(err *PipelineError) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors reports whether any error was collected.
func (e *ErrorList) HasErrors() bool {
	return len(e.Errors) > 0
}

// ByStep returns the errors recorded for one step.
func (e *ErrorList) ByStep(step string) []*PipelineError {
	var out []*PipelineError
	for _, err := range e.Errors {
		if err.Step == step {
			out = append(out, err)
		}
	}
	return out
}

// Common run lifecycle errors.
var (
	// ErrRunNotFound is returned when a run ID is unknown.
	ErrRunNotFound = &PipelineError{
		Type:    ErrorTypeNotFound,
		Message: "run not found",
	}

	// ErrRunCompleted is returned when modifying a finished run.
	ErrRunCompleted = &PipelineError{
		Type:    ErrorTypeInvalidState,
		Message: "run has already completed",
	}

	// ErrRunNotRunning is returned when cancelling a run that is not active.
	ErrRunNotRunning = &PipelineError{
		Type:    ErrorTypeInvalidState,
		Message: "run is not active",
	}

	// ErrRunNotCompleted is returned when asking a run for its deliverable
	// before it has one.
	ErrRunNotCompleted = &PipelineError{
		Type:    ErrorTypeInvalidState,
		Message: "run has not completed",
	}
)
