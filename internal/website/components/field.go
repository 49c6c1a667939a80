package components

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/hsche/edureg/pkg/forms"
)

// RenderField renders one input with its label, help text and error.
// Inputs send update_field on change when the live client is attached and
// post normally otherwise.
func RenderField(f forms.Field, values forms.Values, errMsg string) string {
	var sb strings.Builder

	id := "field-" + f.Name
	if f.Type == forms.FieldHidden {
		return fmt.Sprintf(`<input type="hidden" id="%s" name="%s" value="%s">`,
			id, html.EscapeString(f.Name), html.EscapeString(values.String(f.Name)))
	}

	sb.WriteString(`<div class="form-group">` + "\n")
	required := ""
	if f.Required {
		required = ` <span class="required" aria-hidden="true">*</span>`
	}
	if f.Type == forms.FieldRadio {
		sb.WriteString(fmt.Sprintf(`<fieldset><legend class="form-label">%s%s</legend>`+"\n", html.EscapeString(f.Label), required))
	} else {
		sb.WriteString(fmt.Sprintf(`<label class="form-label" for="%s">%s%s</label>`+"\n", id, html.EscapeString(f.Label), required))
	}

	class := "form-input"
	aria := ""
	if errMsg != "" {
		class += " error"
		aria = fmt.Sprintf(` aria-invalid="true" aria-describedby="%s-error"`, id)
	}
	live := fmt.Sprintf(`lv-change="update_field" lv-value-field="%s"`, html.EscapeString(f.Name))

	switch f.Type {
	case forms.FieldSelect:
		sb.WriteString(fmt.Sprintf(`<select id="%s" name="%s" class="%s" %s%s>`+"\n", id, html.EscapeString(f.Name), class, live, aria))
		placeholder := f.Placeholder
		if placeholder == "" {
			placeholder = "Select " + f.Label
		}
		sb.WriteString(fmt.Sprintf(`<option value="">%s</option>`+"\n", html.EscapeString(placeholder)))
		current := values.String(f.Name)
		for _, o := range f.Options {
			sb.WriteString(fmt.Sprintf(`<option value="%s"%s>%s</option>`+"\n",
				html.EscapeString(o.Value), selected(o.Value == current, " selected"), html.EscapeString(o.Label)))
		}
		sb.WriteString(`</select>` + "\n")

	case forms.FieldRadio:
		current := values.String(f.Name)
		for _, o := range f.Options {
			sb.WriteString(fmt.Sprintf(`<label class="choice"><input type="radio" name="%s" value="%s" %s%s> %s</label>`+"\n",
				html.EscapeString(f.Name), html.EscapeString(o.Value), live, selected(o.Value == current, " checked"), html.EscapeString(o.Label)))
		}
		sb.WriteString(`</fieldset>` + "\n")

	case forms.FieldTextarea:
		text := values.String(f.Name)
		if f.Multiple {
			text = strings.Join(values.Strings(f.Name), "\n")
		}
		sb.WriteString(fmt.Sprintf(`<textarea id="%s" name="%s" class="%s" rows="4" placeholder="%s" %s lv-debounce="300"%s>%s</textarea>`+"\n",
			id, html.EscapeString(f.Name), class, html.EscapeString(f.Placeholder), live, aria, html.EscapeString(text)))

	default:
		attrs := ""
		if f.Type == forms.FieldNumber {
			if f.Min != nil {
				attrs += ` min="` + formatNumber(*f.Min) + `"`
			}
			if f.Max != nil {
				attrs += ` max="` + formatNumber(*f.Max) + `"`
			}
			if f.Step != "" {
				attrs += ` step="` + html.EscapeString(f.Step) + `"`
			}
		}
		sb.WriteString(fmt.Sprintf(`<input type="%s" id="%s" name="%s" class="%s" value="%s" placeholder="%s"%s %s lv-debounce="300"%s>`+"\n",
			inputType(f.Type), id, html.EscapeString(f.Name), class, html.EscapeString(values.String(f.Name)),
			html.EscapeString(f.Placeholder), attrs, live, aria))
	}

	switch {
	case f.HelpHTML != "":
		sb.WriteString(`<div class="form-hint">` + f.HelpHTML + "</div>\n")
	case f.Help != "":
		sb.WriteString(fmt.Sprintf(`<div class="form-hint">%s</div>`+"\n", html.EscapeString(f.Help)))
	}
	if errMsg != "" {
		sb.WriteString(fmt.Sprintf(`<div class="form-error" id="%s-error" role="alert">%s</div>`+"\n", id, html.EscapeString(errMsg)))
	}
	sb.WriteString(`</div>` + "\n")
	return sb.String()
}

func inputType(t forms.FieldType) string {
	switch t {
	case forms.FieldNumber, forms.FieldEmail, forms.FieldURL, forms.FieldTel:
		return string(t)
	default:
		return "text"
	}
}

func selected(ok bool, attr string) string {
	if ok {
		return attr
	}
	return ""
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
