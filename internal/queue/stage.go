// Package queue provides Redis Streams-based orchestration of the
// audit pipeline: one stream per stage, consumer groups for delivery,
// and a worker that dispatches stage messages and chains completed
// stages to the next one.
package queue

import "errors"

// Stage identifies one step of the audit pipeline.
type Stage string

const (
	// StageCrawl fetches and persists a run's pages.
	StageCrawl Stage = "crawl"

	// StageAnalyze runs checks over the crawled pages.
	StageAnalyze Stage = "analyze"

	// StageScore aggregates findings into the run's scorecard.
	StageScore Stage = "score"
)

// ErrInvalidStage indicates an unrecognized stage value.
var ErrInvalidStage = errors.New("invalid pipeline stage")

// String returns the stage name used in stream keys.
func (s Stage) String() string {
	return string(s)
}

// IsValid reports whether the stage is a known pipeline step.
func (s Stage) IsValid() bool {
	switch s {
	case StageCrawl, StageAnalyze, StageScore:
		return true
	default:
		return false
	}
}

// Next returns the stage that follows this one, and false after the
// final stage.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageCrawl:
		return StageAnalyze, true
	case StageAnalyze:
		return StageScore, true
	default:
		return "", false
	}
}

// ParseStage converts a string to a Stage.
func ParseStage(value string) (Stage, error) {
	stage := Stage(value)
	if !stage.IsValid() {
		return "", ErrInvalidStage
	}
	return stage, nil
}

// AllStages returns the pipeline stages in execution order.
func AllStages() []Stage {
	return []Stage{StageCrawl, StageAnalyze, StageScore}
}
