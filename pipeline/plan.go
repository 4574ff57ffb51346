package pipeline

import (
	"github.com/strandlabs/strand/errors"
)

// Plan is a frozen dispatch decision: every stage predicate has been
// evaluated exactly once against the run's immutable inputs, before any
// stage executes. The engine consumes the plan and never re-reads inputs.
type Plan struct {
	// Run is the invocation the plan was built for.
	Run *Run

	// Stages in definition order, each marked planned or skipped.
	Stages []PlannedStage

	// Result is the terminal aggregation stage, carried over unchanged.
	Result ResultDef

	// Selected is the frozen fan-out selection the plan was built with,
	// keyed by suite tag. Step conditions are evaluated against it during
	// execution so no predicate ever re-reads mutable state.
	Selected map[string]bool
}

// PlannedStage pairs a stage definition with its dispatch decision.
type PlannedStage struct {
	// Def is the stage definition.
	Def StageDef

	// Planned is true when the stage's condition evaluated true at planning
	// time. Unplanned stages resolve to skipped without executing.
	Planned bool
}

// BuildPlan evaluates every stage condition against the run inputs and the
// fan-out selection, producing the frozen plan. The selection set maps suite
// tags (e.g. "wpt-2020") to their dispatch decision; it is computed by the
// fan-out selector from the same immutable inputs.
func BuildPlan(run *Run, def *Definition, selected map[string]bool) (*Plan, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	plan := &Plan{
		Run:      run,
		Stages:   make([]PlannedStage, 0, len(def.Stages)),
		Result:   def.Result,
		Selected: selected,
	}

	for _, stage := range def.Stages {
		planned, err := EvalCondition(stage.If, run, selected)
		if err != nil {
			return nil, errors.WrapWithContext(
				err,
				errors.CodeUnknownPredicate,
				"failed to evaluate stage condition",
				map[string]any{"stage": stage.Name},
			)
		}
		plan.Stages = append(plan.Stages, PlannedStage{Def: stage, Planned: planned})
	}

	return plan, nil
}

// Stage returns the planned stage with the given name, or nil.
func (p *Plan) Stage(name string) *PlannedStage {
	for i := range p.Stages {
		if p.Stages[i].Def.Name == name {
			return &p.Stages[i]
		}
	}
	return nil
}

// EvalCondition evaluates a named condition against the run and the fan-out
// selection. Suite conditions consult the selection set; input conditions
// consult the run inputs; branch-derived decisions are already folded into
// the selection by the fan-out selector.
func EvalCondition(cond Condition, run *Run, selected map[string]bool) (bool, error) {
	switch cond {
	case "", CondAlways:
		return true, nil
	case CondUnitTests:
		return run.Inputs.UnitTests, nil
	case CondUpload:
		return run.Inputs.Upload, nil
	case CondRelease:
		return run.Inputs.GithubReleaseID != "", nil
	case CondSuite2020:
		return selected["wpt-2020"], nil
	case CondSuite2013:
		return selected["wpt-2013"], nil
	default:
		return false, errors.Newf(errors.CodeUnknownPredicate, "unknown condition %q", cond)
	}
}
