package components

import (
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/hsche/edureg/pkg/dashboard"
)

// RenderDashboard renders the tab bar, the summary cards of the overview
// and one container per chart. Chart specs travel as JSON the client
// script hands to the chart library.
func RenderDashboard(d dashboard.Dashboard) (string, error) {
	var sb strings.Builder

	sb.WriteString(`<div class="dashboard" data-live-view="dashboard">` + "\n")
	sb.WriteString(fmt.Sprintf("<h1>%s</h1>\n<p>%s</p>\n", html.EscapeString(d.Tab.Label), html.EscapeString(d.Tab.Description)))

	sb.WriteString(`<div class="tabs" role="tablist">` + "\n")
	for _, t := range d.Tabs {
		class := "tab"
		selected := "false"
		if t.ID == d.Tab.ID {
			class += " active"
			selected = "true"
		}
		sb.WriteString(fmt.Sprintf(`<a class="%s" role="tab" aria-selected="%s" href="/dashboard?tab=%s" lv-click="select_tab" lv-value-tab="%s">%s</a>`+"\n",
			class, selected, html.EscapeString(t.ID), html.EscapeString(t.ID), html.EscapeString(t.Label)))
	}
	sb.WriteString(`</div>` + "\n")

	if d.Summary != nil {
		sb.WriteString(RenderSummaryCards(*d.Summary))
	}

	sb.WriteString(`<div class="grid grid-2">` + "\n")
	for _, c := range d.Charts {
		chart, err := renderChart(c)
		if err != nil {
			return "", err
		}
		sb.WriteString(chart)
	}
	sb.WriteString(`</div>` + "\n")
	sb.WriteString(`</div>` + "\n")
	return sb.String(), nil
}

// RenderSummaryCards renders the four overview cards.
func RenderSummaryCards(s dashboard.Summary) string {
	cards := []struct {
		value string
		label string
	}{
		{strconv.Itoa(s.Institutes), "Total Institutes"},
		{strconv.FormatFloat(s.TotalPrograms, 'f', -1, 64), "Total Programs"},
		{strconv.FormatFloat(s.AverageCompliance, 'f', -1, 64) + "%", "Avg UGC Compliance"},
		{strconv.FormatFloat(s.TotalBVoc, 'f', -1, 64), "B.Voc Programs"},
	}

	var sb strings.Builder
	sb.WriteString(`<div class="cards" role="list">` + "\n")
	for _, c := range cards {
		sb.WriteString(fmt.Sprintf(`<article class="card" role="listitem"><div class="card-value">%s</div><div class="card-label">%s</div></article>`+"\n",
			html.EscapeString(c.value), html.EscapeString(c.label)))
	}
	sb.WriteString(`</div>` + "\n")
	return sb.String()
}

func renderChart(c dashboard.Chart) (string, error) {
	// json.Marshal escapes <, > and &, so the spec cannot close the script.
	spec, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding chart %s: %w", c.ID, err)
	}
	id := html.EscapeString(c.ID)
	return fmt.Sprintf(`<section class="card">
<h3>%s</h3>
<div class="chart" id="chart-%s" data-chart="%s" role="img" aria-label="%s"></div>
<script type="application/json" id="chart-data-%s">%s</script>
</section>
`, html.EscapeString(c.Heading), id, id, html.EscapeString(c.Heading), id, spec), nil
}
