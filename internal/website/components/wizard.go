package components

import (
	"fmt"
	"html"
	"strings"

	"github.com/hsche/edureg/pkg/forms"
	"github.com/hsche/edureg/pkg/wizard"
)

// SubmittedMessage is shown between a successful submission and the
// automatic reset.
const SubmittedMessage = "Form submitted successfully! The form will reset automatically."

// WizardOptions configures the section renderer.
type WizardOptions struct {
	// Action is where the no-script fallback posts, e.g. /forms/university.
	Action string
	// CSRFField and CSRFToken go into a hidden input.
	CSRFField string
	CSRFToken string
}

// RenderWizard projects a wizard view to HTML: header, progress, step
// list, the current section (or the review on a field-less last section)
// and the navigation buttons. The same markup works as a plain form post
// and as a live view.
func RenderWizard(v wizard.View, opts WizardOptions) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<div class="wizard" data-live-view="wizard" id="wizard-%s">`+"\n", html.EscapeString(v.Schema.Slug)))

	sb.WriteString(`<div class="wizard-header">` + "\n")
	sb.WriteString(fmt.Sprintf("<h1>%s</h1>\n", html.EscapeString(v.Schema.Title)))
	if v.Schema.Description != "" {
		sb.WriteString(fmt.Sprintf("<p>%s</p>\n", html.EscapeString(v.Schema.Description)))
	}
	sb.WriteString(`</div>` + "\n")

	sb.WriteString(renderProgress(v))

	sb.WriteString(fmt.Sprintf(`<form method="post" action="%s" novalidate>`+"\n", html.EscapeString(opts.Action)))
	if opts.CSRFField != "" {
		sb.WriteString(fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`+"\n",
			html.EscapeString(opts.CSRFField), html.EscapeString(opts.CSRFToken)))
	}

	sb.WriteString(renderSteps(v))

	sb.WriteString(`<div class="wizard-card">` + "\n")
	if v.Submitted {
		sb.WriteString(fmt.Sprintf(`<div class="banner banner-success" role="status">%s</div>`+"\n", SubmittedMessage))
	}
	if msg := v.FormError(); msg != "" {
		sb.WriteString(fmt.Sprintf(`<div class="banner banner-error" role="alert">%s</div>`+"\n", html.EscapeString(msg)))
	}

	section := v.Section()
	sb.WriteString(fmt.Sprintf(`<h2 class="wizard-card-title">%s</h2>`+"\n", html.EscapeString(section.Title)))
	if section.Description != "" {
		sb.WriteString(fmt.Sprintf(`<p class="wizard-card-subtitle">%s</p>`+"\n", html.EscapeString(section.Description)))
	}

	if len(section.Fields) == 0 && v.IsLast() {
		sb.WriteString(RenderReview(v))
	} else {
		for _, f := range v.Schema.SectionFields(v.Current) {
			if !v.Schema.Visible(f, v.Values) {
				continue
			}
			sb.WriteString(RenderField(f, v.Values, v.Error(f.Name)))
		}
	}

	sb.WriteString(renderActions(v))
	sb.WriteString(`</div>` + "\n")
	sb.WriteString(`</form>` + "\n")
	sb.WriteString(`</div>` + "\n")
	return sb.String()
}

func renderProgress(v wizard.View) string {
	pct := v.Progress()
	return fmt.Sprintf(`<div class="flex justify-between"><span>Step %d of %d</span><span>%.0f%% complete</span></div>
<progress class="progress" max="100" value="%.0f" aria-label="Form progress">%.0f%%</progress>
`, v.Current+1, v.SectionCount(), pct, pct, pct)
}

func renderSteps(v wizard.View) string {
	var sb strings.Builder
	sb.WriteString(`<div class="steps">` + "\n")
	for i, s := range v.Schema.Sections {
		class := "step"
		marker := fmt.Sprintf("%d", i+1)
		switch {
		case i == v.Current:
			class += " active"
		case v.IsCompleted(i):
			class += " completed"
			marker = "✓"
		}
		disabled := ""
		if !v.Reachable[i] {
			disabled = " disabled"
		}
		sb.WriteString(fmt.Sprintf(`<button type="submit" class="%s" name="_event" value="goto_step:%d" lv-click="goto_step" lv-value-step="%d"%s><span aria-hidden="true">%s</span> %s</button>`+"\n",
			class, i, i, disabled, marker, html.EscapeString(s.Title)))
	}
	sb.WriteString(`</div>` + "\n")
	return sb.String()
}

func renderActions(v wizard.View) string {
	var sb strings.Builder
	sb.WriteString(`<div class="wizard-actions">` + "\n")

	prevDisabled := ""
	if v.IsFirst() {
		prevDisabled = " disabled"
	}
	sb.WriteString(fmt.Sprintf(`<button type="submit" class="btn btn-secondary" name="_event" value="prev_step" lv-click="prev_step"%s>Previous</button>`+"\n", prevDisabled))

	switch {
	case v.Submitted:
		sb.WriteString(`<button type="submit" class="btn btn-secondary" name="_event" value="reset" lv-click="reset">Start over</button>` + "\n")
	case v.IsLast():
		sb.WriteString(`<button type="submit" class="btn btn-primary" name="_event" value="submit" lv-click="submit">Submit</button>` + "\n")
	default:
		sb.WriteString(`<button type="submit" class="btn btn-primary" name="_event" value="next_step" lv-click="next_step">Next</button>` + "\n")
	}

	sb.WriteString(`</div>` + "\n")
	return sb.String()
}

// RenderReview lists every answered section with the visible fields and
// their display values.
func RenderReview(v wizard.View) string {
	var sb strings.Builder
	for i, s := range v.Schema.Sections {
		fields := v.Schema.SectionFields(i)
		if len(fields) == 0 {
			continue
		}
		sb.WriteString(`<div class="review-section">` + "\n")
		sb.WriteString(fmt.Sprintf("<h3>%s</h3>\n", html.EscapeString(s.Title)))
		sb.WriteString(`<dl class="review-list">` + "\n")
		for _, f := range fields {
			if f.Type == forms.FieldHidden || !v.Schema.Visible(f, v.Values) {
				continue
			}
			sb.WriteString(fmt.Sprintf("<dt>%s</dt><dd>%s</dd>\n",
				html.EscapeString(f.Label), html.EscapeString(DisplayValue(f, v.Values))))
		}
		sb.WriteString(`</dl>` + "\n")
		sb.WriteString(`</div>` + "\n")
	}
	return sb.String()
}

// DisplayValue is the human-readable value of f: option labels for
// choices, comma-joined lists, "Not provided" when empty.
func DisplayValue(f forms.Field, values forms.Values) string {
	if values.IsEmpty(f.Name) {
		return "Not provided"
	}
	if f.Multiple {
		return strings.Join(values.Strings(f.Name), ", ")
	}
	s := values.String(f.Name)
	if f.Type.Choice() {
		return f.OptionLabel(s)
	}
	return s
}
