// Package dispatch decides which conformance fan-out suites a run executes.
//
// The decision is a pure function of the run's immutable inputs and its
// triggering branch, kept separate from execution so it can be tested in
// isolation: what to run is decided here, how to run it belongs to the
// engine.
package dispatch

import (
	"github.com/strandlabs/strand/pipeline"
)

// Suite describes one conformance fan-out sub-pipeline.
type Suite struct {
	// Tag identifies the suite ("wpt-2020", "wpt-2013") and is the stage
	// name the selection keys on.
	Tag string

	// Layout is the layout selector value that picks this suite.
	Layout pipeline.LayoutSelector

	// TriggerBranch is the push branch that implies this suite.
	TriggerBranch string
}

// Suites is the fixed set of conformance fan-outs.
var Suites = []Suite{
	{
		Tag:           "wpt-2020",
		Layout:        pipeline.Layout2020,
		TriggerBranch: pipeline.BranchTryWPT2020,
	},
	{
		Tag:           "wpt-2013",
		Layout:        pipeline.Layout2013,
		TriggerBranch: pipeline.BranchTryWPT,
	},
}

// Select returns the dispatch decision for every suite, keyed by tag.
// A suite is selected when the triggering branch matches its trigger branch,
// when the layout selector names it, or when the selector is "all". Each
// suite is decided independently; selecting one never implies the other.
func Select(inputs pipeline.Inputs, branch string) map[string]bool {
	selected := make(map[string]bool, len(Suites))
	for _, suite := range Suites {
		selected[suite.Tag] = suite.Selected(inputs, branch)
	}
	return selected
}

// Selected reports this suite's dispatch decision for the given inputs and
// branch.
func (s Suite) Selected(inputs pipeline.Inputs, branch string) bool {
	if branch == s.TriggerBranch {
		return true
	}
	if inputs.Layout == s.Layout {
		return true
	}
	return inputs.Layout == pipeline.LayoutAll
}

// Params are the parameters a dispatched suite sub-pipeline receives: the
// run's WPT mode and the suite's fixed layout tag.
type Params struct {
	WPT    pipeline.WPTMode
	Layout pipeline.LayoutSelector
}

// ParamsFor returns the sub-pipeline parameters for a dispatched suite.
func ParamsFor(s Suite, inputs pipeline.Inputs) Params {
	return Params{
		WPT:    inputs.WPT,
		Layout: s.Layout,
	}
}
