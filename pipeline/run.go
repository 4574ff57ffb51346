package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trigger identifies what started a run.
type Trigger string

const (
	// TriggerDispatch is a manual invocation with explicit inputs.
	TriggerDispatch Trigger = "dispatch"

	// TriggerCall is an invocation from an enclosing pipeline, carrying the
	// same inputs plus an optional release identifier.
	TriggerCall Trigger = "call"

	// TriggerPush is an automatic invocation from a push to one of the
	// special branches, each of which implies a fixed input combination.
	TriggerPush Trigger = "push"
)

// WPTMode selects what the conformance fan-outs do with the test corpus.
type WPTMode string

const (
	// WPTTest runs the Web Platform Tests against the built engine.
	WPTTest WPTMode = "test"

	// WPTSync runs the corpus in sync mode, updating expectations.
	WPTSync WPTMode = "sync"
)

// LayoutSelector chooses which layout-engine conformance suites to dispatch.
type LayoutSelector string

const (
	// LayoutNone dispatches no conformance suite.
	LayoutNone LayoutSelector = "none"

	// Layout2013 dispatches the legacy 2013 layout suite.
	Layout2013 LayoutSelector = "2013"

	// Layout2020 dispatches the 2020 layout suite.
	Layout2020 LayoutSelector = "2020"

	// LayoutAll dispatches every conformance suite.
	LayoutAll LayoutSelector = "all"
)

// Inputs are the immutable parameters of a run. Stage predicates are
// evaluated against them exactly once, at planning time.
type Inputs struct {
	// WPT selects test or sync mode for dispatched conformance suites.
	WPT WPTMode `yaml:"wpt"`

	// Layout selects which conformance suites to dispatch.
	Layout LayoutSelector `yaml:"layout"`

	// UnitTests enables the optional unit-test step of the build stage.
	UnitTests bool `yaml:"unit-tests"`

	// Upload enables the optional nightly publish step of the build stage.
	Upload bool `yaml:"upload"`

	// GithubReleaseID is forwarded to the release archival step when the run
	// was started by an enclosing pipeline. Empty otherwise.
	GithubReleaseID string `yaml:"github-release-id"`
}

// DefaultInputs returns the input defaults used by manual dispatch.
func DefaultInputs() Inputs {
	return Inputs{
		WPT:    WPTTest,
		Layout: LayoutNone,
	}
}

// Validate checks that enumerated inputs hold known values.
func (in Inputs) Validate() error {
	switch in.WPT {
	case WPTTest, WPTSync:
	default:
		return fmt.Errorf("invalid wpt mode %q (want %q or %q)", in.WPT, WPTTest, WPTSync)
	}
	switch in.Layout {
	case LayoutNone, Layout2013, Layout2020, LayoutAll:
	default:
		return fmt.Errorf("invalid layout selector %q", in.Layout)
	}
	return nil
}

// Run is one invocation of the pipeline.
type Run struct {
	// ID uniquely identifies the run. Artifact names are scoped to it.
	ID string

	// Trigger records what started the run.
	Trigger Trigger

	// Branch is the branch the run was triggered from.
	Branch string

	// Inputs are the run parameters, frozen at creation.
	Inputs Inputs

	// CreatedAt is the run creation time.
	CreatedAt time.Time
}

// NewRun creates a run with a fresh ID.
func NewRun(trigger Trigger, branch string, inputs Inputs) (*Run, error) {
	if err := inputs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run inputs: %w", err)
	}
	return &Run{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Branch:    branch,
		Inputs:    inputs,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Push-trigger branches and the input combinations they imply.
const (
	// BranchTry builds without dispatching any conformance suite.
	BranchTry = "try"

	// BranchTryWPT builds and dispatches the legacy 2013 suite.
	BranchTryWPT = "try-wpt"

	// BranchTryWPT2020 builds and dispatches the 2020 suite.
	BranchTryWPT2020 = "try-wpt-2020"
)

// InputsForBranch returns the fixed input combination implied by a push to
// the given branch. ok is false for branches that do not trigger runs.
func InputsForBranch(branch string) (Inputs, bool) {
	switch branch {
	case BranchTry:
		return Inputs{WPT: WPTTest, Layout: LayoutNone}, true
	case BranchTryWPT:
		return Inputs{WPT: WPTTest, Layout: Layout2013}, true
	case BranchTryWPT2020:
		return Inputs{WPT: WPTTest, Layout: Layout2020}, true
	default:
		return Inputs{}, false
	}
}
