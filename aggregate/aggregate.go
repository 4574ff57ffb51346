// Package aggregate reduces the terminal statuses of a run's stages to the
// single pass/fail signal that is the run's only external contract.
//
// The reduction is a pure function of the status set: success and skipped
// both count as non-failing, failure and cancellation both fail the run.
// Skipped counting as non-failing is what keeps conditionally skipped
// fan-out stages from spuriously failing the run.
package aggregate

import (
	"sort"

	"github.com/strandlabs/strand/errors"
	"github.com/strandlabs/strand/pipeline"
)

// Result is the outcome of the terminal reduction.
type Result struct {
	// Overall is StatusSuccess or StatusFailure.
	Overall pipeline.Status

	// Failing lists the observed stages that resolved to failure or
	// cancellation, sorted by name. Empty on success.
	Failing []string
}

// Passed reports whether the run passed.
func (r Result) Passed() bool {
	return r.Overall == pipeline.StatusSuccess
}

// ExitCode returns the process exit code for the run: 0 on success, 1
// otherwise.
func (r Result) ExitCode() int {
	if r.Passed() {
		return 0
	}
	return 1
}

// Reduce computes the aggregate result over the named stages. Every observed
// stage must have a terminal status; a non-terminal status is an internal
// error, since the aggregator only runs after all dependencies resolved.
//
// Stages absent from the status map are treated as skipped: a stage the
// planner never materialized cannot fail the run.
func Reduce(observes []string, statuses map[string]pipeline.Status) (Result, error) {
	result := Result{Overall: pipeline.StatusSuccess}

	for _, name := range observes {
		status, ok := statuses[name]
		if !ok {
			status = pipeline.StatusSkipped
		}
		if !status.Terminal() {
			return Result{}, errors.WrapWithContext(
				nil,
				errors.CodeInternal,
				"aggregator observed a non-terminal stage",
				map[string]any{"stage": name, "status": status.String()},
			)
		}
		if status.Failing() {
			result.Failing = append(result.Failing, name)
		}
	}

	if len(result.Failing) > 0 {
		sort.Strings(result.Failing)
		result.Overall = pipeline.StatusFailure
	}
	return result, nil
}
