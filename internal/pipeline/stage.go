package pipeline

import "fmt"

// Stage is a state of a pipeline run.
type Stage int

const (
	StageInit Stage = iota
	StageComputeWindow
	StageExtract
	StageTransform
	StagePublish
	StageCommitWatermark
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageInit:            "init",
	StageComputeWindow:   "compute_window",
	StageExtract:         "extract",
	StageTransform:       "transform",
	StagePublish:         "publish",
	StageCommitWatermark: "commit_watermark",
	StageDone:            "done",
	StageFailed:          "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError is returned by Run when a stage fails. The run stops at the
// first failing stage; nothing after it has happened.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
