package agent

import (
	"fmt"
	"strings"
)

// Stage identifies one node of the fixed sales conversation flow.
type Stage string

const (
	StageGreeting      Stage = "greeting"
	StageQualification Stage = "qualification"
	StageProblem       Stage = "problem"
	StageSolution      Stage = "solution"
	StageObjection     Stage = "objection"
	StageClosing       Stage = "closing"
)

// allowedTransitions maps each stage to its single permitted successor.
// Modeled as an adjacency map rather than enum ordering so the flow can
// branch later without touching the advance logic.
var allowedTransitions = map[Stage]Stage{
	StageGreeting:      StageQualification,
	StageQualification: StageProblem,
	StageProblem:       StageSolution,
	StageSolution:      StageObjection,
	StageObjection:     StageClosing,
}

// Next returns the successor stage. The second return is false for the
// terminal stage (closing), which has no outgoing edge.
func (s Stage) Next() (Stage, bool) {
	next, ok := allowedTransitions[s]
	return next, ok
}

// Terminal reports whether the stage has no successor.
func (s Stage) Terminal() bool {
	_, ok := allowedTransitions[s]
	return !ok
}

func (s Stage) String() string {
	return string(s)
}

// ParseStage normalizes a raw stored value into a Stage. An unrecognized
// value is a corruption error, never a silent default.
func ParseStage(raw string) (Stage, error) {
	switch Stage(strings.ToLower(strings.TrimSpace(raw))) {
	case StageGreeting:
		return StageGreeting, nil
	case StageQualification:
		return StageQualification, nil
	case StageProblem:
		return StageProblem, nil
	case StageSolution:
		return StageSolution, nil
	case StageObjection:
		return StageObjection, nil
	case StageClosing:
		return StageClosing, nil
	}
	return "", fmt.Errorf("agent: unknown stage %q", raw)
}
