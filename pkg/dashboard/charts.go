package dashboard

import (
	"fmt"
	"math"

	"github.com/hsche/edureg/pkg/catalog"
)

// Object is a JSON object in a Plotly figure.
type Object = map[string]any

// Chart is one Plotly figure with the heading of the card it sits in.
type Chart struct {
	ID      string   `json:"id"`
	Heading string   `json:"heading"`
	Data    []Object `json:"data"`
	Layout  Object   `json:"layout"`
	Config  Object   `json:"config"`
}

// Palette used across the charts.
const (
	colorOrange = "#FF6B35"
	colorBlue   = "#1E40AF"
	colorRed    = "#EF4444"
	colorGreen  = "#10B981"
	colorAmber  = "#F59E0B"
)

var sliceColors = []string{colorOrange, colorBlue, colorRed, colorGreen, colorAmber}

func baseLayout(title string) Object {
	return Object{
		"title":         title,
		"height":        400,
		"font":          Object{"family": "Inter, sans-serif"},
		"paper_bgcolor": "rgba(0,0,0,0)",
		"plot_bgcolor":  "rgba(0,0,0,0)",
		"margin":        Object{"t": 40, "r": 40, "b": 40, "l": 40},
	}
}

func newChart(id, heading string, layout Object, data ...Object) Chart {
	return Chart{
		ID:      id,
		Heading: heading,
		Data:    data,
		Layout:  layout,
		Config:  Object{"displayModeBar": false},
	}
}

func names(insts []catalog.Institution) []string {
	out := make([]string, len(insts))
	for i, in := range insts {
		out[i] = in.Name
	}
	return out
}

func column(insts []catalog.Institution, get func(catalog.Institution) float64) []float64 {
	out := make([]float64, len(insts))
	for i, in := range insts {
		out[i] = get(in)
	}
	return out
}

func axes(layout Object, x, y string) Object {
	layout["xaxis"] = Object{"title": x}
	layout["yaxis"] = Object{"title": y}
	return layout
}

func programTrend(insts []catalog.Institution) Chart {
	return newChart("program-trend", "Program Trends",
		axes(baseLayout("Total Programs by Institute"), "Institutes", "Number of Programs"),
		Object{
			"x":      names(insts),
			"y":      column(insts, func(i catalog.Institution) float64 { return i.Programs }),
			"type":   "scatter",
			"mode":   "lines+markers",
			"marker": Object{"color": colorOrange, "size": 10},
			"line":   Object{"color": colorOrange, "width": 3},
			"name":   "Total Programs",
		})
}

// RemainingShare is the donut slice left after the institutions' UG
// percentages, never negative.
func RemainingShare(insts []catalog.Institution) float64 {
	var sum float64
	for _, in := range insts {
		sum += in.UGPercentage
	}
	return math.Max(0, 100-sum)
}

func complianceDonut(insts []catalog.Institution) Chart {
	values := make([]float64, 0, len(insts)+1)
	labels := make([]string, 0, len(insts)+1)
	for _, in := range insts {
		values = append(values, in.UGPercentage)
		labels = append(labels, fmt.Sprintf("%s (%s%%)", in.Name, percent(in.UGPercentage)))
	}
	rest := RemainingShare(insts)
	values = append(values, rest)
	labels = append(labels, fmt.Sprintf("Remaining (%s%%)", percent(rest)))

	layout := baseLayout("UGC Compliance Percentage")
	layout["showlegend"] = false
	return newChart("compliance-donut", "Compliance Distribution", layout, Object{
		"values":       values,
		"labels":       labels,
		"type":         "pie",
		"hole":         0.4,
		"marker":       Object{"colors": colors(len(values))},
		"textinfo":     "label",
		"textposition": "auto",
	})
}

func programsPie(insts []catalog.Institution) Chart {
	return newChart("programs-pie", "Program Distribution", baseLayout("Programs by Institute"), Object{
		"values":       column(insts, func(i catalog.Institution) float64 { return i.Programs }),
		"labels":       names(insts),
		"type":         "pie",
		"marker":       Object{"colors": colors(len(insts))},
		"textinfo":     "label+percent",
		"textposition": "auto",
	})
}

func programTypesBar(insts []catalog.Institution) Chart {
	layout := axes(baseLayout("Program Types Comparison"), "Institutes", "Number of Programs")
	layout["barmode"] = "group"
	return newChart("program-types", "UG vs B.VOC Programs", layout,
		Object{
			"x":      names(insts),
			"y":      column(insts, func(i catalog.Institution) float64 { return i.UGPrograms }),
			"type":   "bar",
			"marker": Object{"color": colorOrange},
			"name":   "UG Programs",
		},
		Object{
			"x":      names(insts),
			"y":      column(insts, func(i catalog.Institution) float64 { return i.BVocPrograms }),
			"type":   "bar",
			"marker": Object{"color": colorBlue},
			"name":   "B.VOC Programs",
		})
}

// ComplianceThreshold is the target UG alignment percentage marked on the
// gauges.
const ComplianceThreshold = 50

func complianceGauges(insts []catalog.Institution) Chart {
	rows := (len(insts) + 1) / 2
	if rows == 0 {
		rows = 1
	}
	h := 1 / float64(rows)

	data := make([]Object, 0, len(insts))
	for i, in := range insts {
		col, row := i%2, i/2
		data = append(data, Object{
			"type":  "indicator",
			"mode":  "gauge+number+delta",
			"value": in.UGPercentage,
			"domain": Object{
				"x": []float64{float64(col) * 0.5, float64(col+1) * 0.5},
				"y": []float64{float64(row) * h, float64(row+1) * h},
			},
			"title": Object{"text": in.Name, "font": Object{"size": 16}},
			"gauge": Object{
				"axis": Object{"range": []any{nil, 100}},
				"bar":  Object{"color": colorOrange},
				"steps": []Object{
					{"range": []int{0, 25}, "color": "#FEE2E2"},
					{"range": []int{25, 50}, "color": "#FED7AA"},
					{"range": []int{50, 75}, "color": "#D1FAE5"},
					{"range": []int{75, 100}, "color": "#A7F3D0"},
				},
				"threshold": Object{
					"line":      Object{"color": colorBlue, "width": 4},
					"thickness": 0.75,
					"value":     ComplianceThreshold,
				},
			},
		})
	}

	layout := baseLayout("Compliance Performance")
	layout["grid"] = Object{"rows": rows, "columns": 2, "pattern": "independent"}
	return newChart("compliance-gauges", "UGC Compliance Rates", layout, data...)
}

func complianceBreakdown(insts []catalog.Institution) Chart {
	layout := axes(baseLayout("Compliant vs Non-Compliant Programs"), "Institutes", "Number of Programs")
	layout["barmode"] = "stack"
	return newChart("compliance-breakdown", "Compliance Breakdown", layout,
		Object{
			"x":      names(insts),
			"y":      column(insts, func(i catalog.Institution) float64 { return i.UGPrograms }),
			"type":   "bar",
			"name":   "UGC Compliant",
			"marker": Object{"color": colorGreen},
		},
		Object{
			"x":      names(insts),
			"y":      column(insts, NonCompliant),
			"type":   "bar",
			"name":   "Non-Compliant",
			"marker": Object{"color": colorRed},
		})
}

// NonCompliant is the number of programmes not aligned to UGC CCFUGP.
func NonCompliant(in catalog.Institution) float64 {
	return math.Max(0, in.Programs-in.UGPrograms)
}

func councilRadar(insts []catalog.Institution) Chart {
	layout := baseLayout("Council Alignment by Institute")
	layout["polar"] = Object{"radialaxis": Object{"visible": true, "range": []int{0, 100}}}
	return newChart("council-radar", "Regulating Council Alignment", layout, Object{
		"type":   "scatterpolar",
		"r":      column(insts, func(i catalog.Institution) float64 { return math.Round(i.CouncilPercentage) }),
		"theta":  names(insts),
		"fill":   "toself",
		"marker": Object{"color": colorOrange},
		"name":   "Council Alignment %",
	})
}

func programTypesHeatmap(insts []catalog.Institution) Chart {
	return newChart("program-heatmap", "Program Categories",
		axes(baseLayout("Program Types Distribution"), "Institutes", "Program Categories"),
		Object{
			"z": [][]float64{
				column(insts, func(i catalog.Institution) float64 { return i.CouncilPrograms }),
				column(insts, func(i catalog.Institution) float64 { return i.Councils }),
				column(insts, func(i catalog.Institution) float64 { return i.BachelorPrograms }),
			},
			"x":          names(insts),
			"y":          []string{"Regulating Programs", "Councils Number", "Bachelor Programs"},
			"type":       "heatmap",
			"colorscale": [][]any{{0, "#FEE2E2"}, {0.5, "#FED7AA"}, {1, colorOrange}},
		})
}

func colors(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = sliceColors[i%len(sliceColors)]
	}
	return out
}

// percent formats a percentage without trailing zeros.
func percent(v float64) string {
	return fmt.Sprintf("%g", math.Round(v*10)/10)
}
