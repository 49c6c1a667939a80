package catalog

import (
	"fmt"
	"sort"

	"github.com/hsche/edureg/pkg/forms"
	"github.com/hsche/edureg/pkg/security"
)

// helpSanitizer cleans the help markup of form definitions.
var helpSanitizer = security.NewSanitizer()

type formDef struct {
	Slug        string       `yaml:"slug"`
	Title       string       `yaml:"title"`
	Description string       `yaml:"description"`
	Page        int          `yaml:"page"`
	Lookup      *lookupDef   `yaml:"lookup"`
	Sections    []sectionDef `yaml:"sections"`
}

type lookupDef struct {
	Key    string            `yaml:"key"`
	Source string            `yaml:"source"`
	Map    map[string]string `yaml:"map"`
}

type sectionDef struct {
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Fields      []fieldDef `yaml:"fields"`
}

type fieldDef struct {
	Name            string            `yaml:"name"`
	Type            string            `yaml:"type"`
	Label           string            `yaml:"label"`
	Placeholder     string            `yaml:"placeholder"`
	Help            string            `yaml:"help"`
	Required        bool              `yaml:"required"`
	RequiredMessage string            `yaml:"required_message"`
	Options         []forms.Option    `yaml:"options"`
	OptionsFrom     string            `yaml:"options_from"`
	VisibleWhen     string            `yaml:"visible_when"`
	Multiple        bool              `yaml:"multiple"`
	Step            string            `yaml:"step"`
	Default         any               `yaml:"default"`
	Rules           ruleDef           `yaml:"rules"`
	Messages        map[string]string `yaml:"messages"`
}

type ruleDef struct {
	MinLength *int     `yaml:"min_length"`
	MaxLength *int     `yaml:"max_length"`
	Min       *float64 `yaml:"min"`
	Max       *float64 `yaml:"max"`
	Integer   bool     `yaml:"integer"`
	Positive  bool     `yaml:"positive"`
	Pattern   string   `yaml:"pattern"`
}

const sourceInstitutions = "institutions"

func (d formDef) build(institutions []Institution, raw []map[string]any) (*forms.Schema, error) {
	b := forms.NewSchemaBuilder(d.Slug, d.Title).Description(d.Description)

	for _, sec := range d.Sections {
		fields := make([]forms.Field, 0, len(sec.Fields))
		for _, fd := range sec.Fields {
			f, err := fd.build(institutions)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
			if fd.Default != nil {
				b.Default(fd.Name, fd.Default)
			}
		}
		b.Section(sec.Title, sec.Description, fields...)
	}

	if d.Lookup != nil {
		table, err := d.Lookup.build(raw)
		if err != nil {
			return nil, err
		}
		b.Lookup(table)
	}

	return b.Build()
}

func (fd fieldDef) build(institutions []Institution) (forms.Field, error) {
	t := forms.FieldType(fd.Type)
	if fd.Type == "" {
		t = forms.FieldText
	}
	if !t.Valid() {
		return forms.Field{}, fmt.Errorf("field %s: unknown type %q", fd.Name, fd.Type)
	}

	opts := []forms.FieldOption{
		forms.WithPlaceholder(fd.Placeholder),
		forms.WithHelpHTML(helpSanitizer.HTML(fd.Help), helpSanitizer.Text(fd.Help)),
		forms.WithVisibleWhen(fd.VisibleWhen),
		forms.WithStep(fd.Step),
	}
	if fd.Required {
		opts = append(opts, forms.WithRequired(fd.RequiredMessage))
	}
	if fd.Multiple {
		opts = append(opts, forms.WithMultiple())
	}

	r := fd.Rules
	msg := func(rule string) []string {
		if m, ok := fd.Messages[rule]; ok {
			return []string{m}
		}
		return nil
	}
	if r.MinLength != nil {
		opts = append(opts, forms.WithMinLength(*r.MinLength, msg("min_length")...))
	}
	if r.MaxLength != nil {
		opts = append(opts, forms.WithMaxLength(*r.MaxLength, msg("max_length")...))
	}
	if r.Integer {
		opts = append(opts, forms.WithValidator(forms.Integer(msg("integer")...)))
	}
	if r.Positive {
		opts = append(opts, forms.WithValidator(forms.Positive(msg("positive")...)))
	}
	switch {
	case r.Min != nil && r.Max != nil:
		opts = append(opts, forms.WithRange(*r.Min, *r.Max), forms.WithValidator(forms.Range(*r.Min, *r.Max, msg("range")...)))
	case r.Min != nil:
		opts = append(opts, forms.WithValidator(forms.Min(*r.Min, msg("min")...)))
	case r.Max != nil:
		opts = append(opts, forms.WithValidator(forms.Max(*r.Max, msg("max")...)))
	}
	if r.Pattern != "" {
		opts = append(opts, forms.WithValidator(forms.Pattern(r.Pattern, msg("pattern")...)))
	}

	options := fd.Options
	switch fd.OptionsFrom {
	case "":
	case sourceInstitutions:
		options = make([]forms.Option, 0, len(institutions))
		for _, inst := range institutions {
			options = append(options, forms.Option{Value: inst.Name, Label: inst.Name})
		}
	default:
		return forms.Field{}, fmt.Errorf("field %s: unknown options source %q", fd.Name, fd.OptionsFrom)
	}
	opts = append(opts, forms.WithOptions(options...))

	f := forms.NewField(fd.Name, t, fd.Label, opts...)
	switch t {
	case forms.FieldEmail:
		f.Validators = append(f.Validators, forms.Email(msg("email")...))
	case forms.FieldURL:
		f.Validators = append(f.Validators, forms.URL(msg("url")...))
	case forms.FieldNumber:
		f.Validators = append([]forms.Validator{forms.Number(msg("number")...)}, f.Validators...)
	}
	return f, nil
}

func (l lookupDef) build(raw []map[string]any) (*forms.LookupTable, error) {
	if l.Source != sourceInstitutions {
		return nil, fmt.Errorf("lookup %s: unknown source %q", l.Key, l.Source)
	}

	dependent := make([]string, 0, len(l.Map))
	for field := range l.Map {
		dependent = append(dependent, field)
	}
	sort.Strings(dependent)

	table := &forms.LookupTable{
		KeyField:  l.Key,
		Dependent: dependent,
		Entries:   make(map[string]forms.Values, len(raw)),
	}
	for _, rec := range raw {
		name, _ := rec["name"].(string)
		entry := forms.Values{}
		for field, attr := range l.Map {
			v, ok := rec[attr]
			if !ok {
				return nil, fmt.Errorf("lookup %s: institution %q has no %q", l.Key, name, attr)
			}
			entry.Set(field, v)
		}
		table.Entries[name] = entry
	}
	return table, nil
}
