package generation

import (
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrJobNotRetryable = errors.New("only failed jobs can be retried")
	ErrResultNotReady  = errors.New("result not available")
)

// Stage names the pipeline step a failure came from.
type Stage string

const (
	StageFetch      Stage = "fetch"
	StageAnalysis   Stage = "analysis"
	StageGeneration Stage = "generation"
)

// StageError tags a pipeline failure with its stage. Only fetch failures are
// retried.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil || strings.TrimSpace(e.Err.Error()) == "" {
		return string(e.Stage) + " failed"
	}
	switch e.Stage {
	case StageAnalysis:
		return e.Err.Error()
	case StageGeneration:
		return "generation failed: " + e.Err.Error()
	default:
		return string(e.Stage) + ": " + e.Err.Error()
	}
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Retryable() bool { return e.Stage == StageFetch }

func stageErr(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
