// Package pipeline defines the core model of a strand run: trigger inputs,
// the stage/step definition schema, the status state machine, and the
// planner that freezes conditional dispatch decisions before execution.
package pipeline

// Status is the state of a stage within a run.
//
// Lifecycle: pending -> running | skipped -> {success, failure, cancelled}.
// skipped is itself terminal: a stage whose predicate evaluated false, or
// whose dependency did not succeed, never executes.
type Status string

const (
	// StatusPending indicates the stage has not been dispatched yet.
	StatusPending Status = "pending"

	// StatusRunning indicates the stage is currently executing.
	StatusRunning Status = "running"

	// StatusSkipped indicates the stage was never executed, either because
	// its predicate evaluated false or because a dependency did not succeed.
	StatusSkipped Status = "skipped"

	// StatusSuccess indicates every effective step of the stage succeeded.
	StatusSuccess Status = "success"

	// StatusFailure indicates a step failed and permanently failed the stage.
	StatusFailure Status = "failure"

	// StatusCancelled indicates an external abort reached the stage before
	// it could resolve.
	StatusCancelled Status = "cancelled"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status is final for the run.
func (s Status) Terminal() bool {
	switch s {
	case StatusSkipped, StatusSuccess, StatusFailure, StatusCancelled:
		return true
	default:
		return false
	}
}

// Failing reports whether the status counts against the run's aggregate
// result. Skipped stages are non-failing: optional fan-outs that were never
// selected must not fail the run.
func (s Status) Failing() bool {
	return s == StatusFailure || s == StatusCancelled
}
