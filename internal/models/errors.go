package models

import "fmt"

// ErrorType identifies the category of failure that ended a run.
type ErrorType string

const (
	// Configuration generation
	ErrGeneratorFailed ErrorType = "generator_failed"
	ErrDumpFailed      ErrorType = "dump_failed"

	// Path discovery and derivation
	ErrNoPathsFound     ErrorType = "no_paths_found"
	ErrNoPatternMatch   ErrorType = "no_pattern_match"
	ErrScheduleNotFound ErrorType = "schedule_not_found"
	ErrOutputNotFound   ErrorType = "output_not_found"

	// Baseline events
	ErrBaselineGenFailed ErrorType = "baseline_generation_failed"
	ErrMissingInput      ErrorType = "missing_input"

	// Execution and comparison
	ErrMissingDirectory   ErrorType = "missing_directory"
	ErrMissingBaseline    ErrorType = "missing_baseline"
	ErrJobFailed          ErrorType = "job_failed"
	ErrComparisonMismatch ErrorType = "comparison_mismatch"

	// Catch-all
	ErrInternalError ErrorType = "internal_error"
)

// StageError is a typed failure raised by one of the pipeline stages.
type StageError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// NewStageError creates a StageError with a formatted message.
func NewStageError(typ ErrorType, format string, args ...any) *StageError {
	return &StageError{Type: typ, Message: fmt.Sprintf(format, args...)}
}

// WrapStageError creates a StageError that wraps an underlying cause.
func WrapStageError(typ ErrorType, err error, format string, args ...any) *StageError {
	return &StageError{Type: typ, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a StageError of the same type.
func (e *StageError) Is(target error) bool {
	t, ok := target.(*StageError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}
