package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strandlabs/strand/pipeline"
)

func inputs(layout pipeline.LayoutSelector) pipeline.Inputs {
	return pipeline.Inputs{WPT: pipeline.WPTTest, Layout: layout}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		layout   pipeline.LayoutSelector
		branch   string
		want2020 bool
		want2013 bool
	}{
		{"none on ordinary branch", pipeline.LayoutNone, "feature/x", false, false},
		{"layout 2020", pipeline.Layout2020, "feature/x", true, false},
		{"layout 2013", pipeline.Layout2013, "feature/x", false, true},
		{"layout all", pipeline.LayoutAll, "feature/x", true, true},
		{"try branch selects nothing", pipeline.LayoutNone, pipeline.BranchTry, false, false},
		{"try-wpt branch selects 2013", pipeline.LayoutNone, pipeline.BranchTryWPT, false, true},
		{"try-wpt-2020 branch selects 2020", pipeline.LayoutNone, pipeline.BranchTryWPT2020, true, false},
		{"branch and layout combine", pipeline.Layout2020, pipeline.BranchTryWPT, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selected := Select(inputs(tt.layout), tt.branch)
			assert.Equal(t, tt.want2020, selected["wpt-2020"], "wpt-2020")
			assert.Equal(t, tt.want2013, selected["wpt-2013"], "wpt-2013")
		})
	}
}

func TestSelectionIsIndependentPerSuite(t *testing.T) {
	// Each suite is decided on its own disjunction; selecting one never
	// implies the other.
	selected := Select(inputs(pipeline.Layout2020), "feature/x")
	assert.True(t, selected["wpt-2020"])
	assert.False(t, selected["wpt-2013"])

	selected = Select(inputs(pipeline.Layout2013), pipeline.BranchTryWPT2020)
	assert.True(t, selected["wpt-2020"])
	assert.True(t, selected["wpt-2013"])
}

func TestSelectIsPure(t *testing.T) {
	in := inputs(pipeline.LayoutAll)
	first := Select(in, "main")
	second := Select(in, "main")
	assert.Equal(t, first, second)
}

func TestParamsFor(t *testing.T) {
	in := pipeline.Inputs{WPT: pipeline.WPTSync, Layout: pipeline.LayoutAll}
	for _, suite := range Suites {
		params := ParamsFor(suite, in)
		assert.Equal(t, pipeline.WPTSync, params.WPT)
		assert.Equal(t, suite.Layout, params.Layout)
	}
}
