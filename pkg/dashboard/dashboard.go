// Package dashboard turns institution statistics into summary figures and
// Plotly chart specifications for the analytics tabs.
package dashboard

import (
	"math"

	"github.com/hsche/edureg/pkg/catalog"
)

// Tab identifiers.
const (
	TabOverview   = "overview"
	TabPrograms   = "programs"
	TabCompliance = "compliance"
	TabAlignment  = "alignment"
)

// Tab describes one dashboard tab.
type Tab struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Tabs lists the dashboard tabs in display order.
var Tabs = []Tab{
	{TabOverview, "Overview", "System overview and key metrics"},
	{TabPrograms, "Institute Programs", "Program distribution analysis"},
	{TabCompliance, "UGC Compliance", "Compliance tracking and monitoring"},
	{TabAlignment, "Program Alignment", "Council alignment and performance"},
}

// LookupTab returns the tab with the given id, falling back to the overview.
func LookupTab(id string) Tab {
	for _, t := range Tabs {
		if t.ID == id {
			return t
		}
	}
	return Tabs[0]
}

// Summary holds the overview cards.
type Summary struct {
	Institutes        int     `json:"institutes"`
	TotalPrograms     float64 `json:"total_programs"`
	AverageCompliance float64 `json:"average_compliance"`
	TotalBVoc         float64 `json:"total_bvoc"`
}

// Summarize computes the overview cards. Average compliance is the mean of
// the UG alignment percentages, rounded to a whole percent.
func Summarize(insts []catalog.Institution) Summary {
	s := Summary{Institutes: len(insts)}
	var pct float64
	for _, in := range insts {
		s.TotalPrograms += in.Programs
		s.TotalBVoc += in.BVocPrograms
		pct += in.UGPercentage
	}
	if len(insts) > 0 {
		s.AverageCompliance = math.Round(pct / float64(len(insts)))
	}
	return s
}

// Dashboard is everything one tab displays.
type Dashboard struct {
	Tab     Tab      `json:"tab"`
	Tabs    []Tab    `json:"tabs"`
	Summary *Summary `json:"summary,omitempty"`
	Charts  []Chart  `json:"charts"`
}

// Build assembles the dashboard for tab. Unknown tabs show the overview.
func Build(insts []catalog.Institution, tab string) Dashboard {
	t := LookupTab(tab)
	d := Dashboard{Tab: t, Tabs: Tabs}

	switch t.ID {
	case TabPrograms:
		d.Charts = []Chart{programsPie(insts), programTypesBar(insts)}
	case TabCompliance:
		d.Charts = []Chart{complianceGauges(insts), complianceBreakdown(insts)}
	case TabAlignment:
		d.Charts = []Chart{councilRadar(insts), programTypesHeatmap(insts)}
	default:
		s := Summarize(insts)
		d.Summary = &s
		d.Charts = []Chart{programTrend(insts), complianceDonut(insts)}
	}
	return d
}
