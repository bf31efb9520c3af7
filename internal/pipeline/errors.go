package pipeline

import "fmt"

// Stage names the pipeline stage a fatal error occurred in.
type Stage string

const (
	StageLoad    Stage = "load"
	StageCompact Stage = "compact"
	StagePersist Stage = "persist"
)

// FatalError aborts a pipeline run. Callers still receive every event
// emitted before the failure; the error itself arrives on the run's error
// channel, distinguishable from a run that merely produced no answer.
type FatalError struct {
	Stage Stage
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("pipeline %s stage: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
