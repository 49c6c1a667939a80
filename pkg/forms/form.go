// Package forms provides the field registry, validation rules and value
// binding shared by every registration wizard.
package forms

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Section is one step of a multi-step form. Fields are listed in display
// order.
type Section struct {
	Title       string
	Description string
	Fields      []string
}

// Schema is the static definition of a form: its fields, its ordered
// sections, its defaults and an optional lookup table.
type Schema struct {
	// Slug identifies the form in URLs and submissions.
	Slug string

	// Title is the display title.
	Title string

	// Description is shown under the title.
	Description string

	// Fields are all the fields of the form, keyed by Field.Name.
	Fields []Field

	// Sections are the steps, in order.
	Sections []Section

	// Defaults are the initial values. Declared fields missing here start
	// as "".
	Defaults Values

	// Lookup auto-populates dependent fields from a key field.
	Lookup *LookupTable
}

// Schema definition errors.
var (
	ErrNoSections     = errors.New("forms: schema has no sections")
	ErrDuplicateField = errors.New("forms: duplicate field")
	ErrUnknownField   = errors.New("forms: unknown field")
)

// Field retrieves a field by name.
func (s *Schema) Field(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// SectionCount returns the number of sections.
func (s *Schema) SectionCount() int {
	return len(s.Sections)
}

// SectionFields returns the fields of section i in display order.
func (s *Schema) SectionFields(i int) []Field {
	if i < 0 || i >= len(s.Sections) {
		return nil
	}
	out := make([]Field, 0, len(s.Sections[i].Fields))
	for _, name := range s.Sections[i].Fields {
		if f := s.Field(name); f != nil {
			out = append(out, *f)
		}
	}
	return out
}

// InitialValues returns a fresh FieldValueMap with every declared field.
func (s *Schema) InitialValues() Values {
	values := make(Values, len(s.Fields))
	for _, f := range s.Fields {
		if f.Multiple {
			values[f.Name] = []string{}
		} else {
			values[f.Name] = ""
		}
	}
	values.Merge(s.Defaults)
	return values
}

// Visible reports whether the field is currently shown given values.
func (s *Schema) Visible(f Field, values Values) bool {
	if f.VisibleWhen == "" {
		return true
	}
	n, ok := values.Float(f.VisibleWhen)
	return ok && n > 0
}

// Validate checks the definition itself: unique field names, known field
// references in sections and lookup, and at least one section.
func (s *Schema) Validate() error {
	if len(s.Sections) == 0 {
		return fmt.Errorf("%s: %w", s.Slug, ErrNoSections)
	}

	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if seen[f.Name] {
			return fmt.Errorf("%s: %w: %s", s.Slug, ErrDuplicateField, f.Name)
		}
		if !f.Type.Valid() {
			return fmt.Errorf("%s: field %s has unknown type %q", s.Slug, f.Name, f.Type)
		}
		seen[f.Name] = true
	}

	for i, sec := range s.Sections {
		for _, name := range sec.Fields {
			if !seen[name] {
				return fmt.Errorf("%s: section %d: %w: %s", s.Slug, i, ErrUnknownField, name)
			}
		}
	}

	if s.Lookup != nil {
		if !seen[s.Lookup.KeyField] {
			return fmt.Errorf("%s: lookup key: %w: %s", s.Slug, ErrUnknownField, s.Lookup.KeyField)
		}
		for _, name := range s.Lookup.Dependent {
			if !seen[name] {
				return fmt.Errorf("%s: lookup: %w: %s", s.Slug, ErrUnknownField, name)
			}
		}
	}
	return nil
}

// ValidateSection evaluates the rules of section i against values and
// returns the resulting ErrorMap. Out-of-range sections have no rules.
// Required checks run first; field validators run only on non-empty
// values. Fields hidden by VisibleWhen are skipped.
func (s *Schema) ValidateSection(i int, values Values) map[string]string {
	if i < 0 || i >= len(s.Sections) {
		return map[string]string{}
	}

	cs := NewChangeset(values)
	for _, name := range s.Sections[i].Fields {
		f := s.Field(name)
		if f == nil || !s.Visible(*f, values) {
			continue
		}
		if f.Required {
			cs.ValidateRequired(name, f.MissingMessage())
			if cs.HasError(name) {
				continue
			}
		}
		if f.Type.Choice() && !cs.Data.IsEmpty(name) && len(f.Options) > 0 && !f.HasOption(cs.GetString(name)) {
			cs.AddError(name, "Invalid selection")
			continue
		}
		cs.ValidateWith(name, f.Validators...)
	}
	return cs.ErrorMap()
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	out := *s
	out.Fields = make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		f.Validators = append([]Validator(nil), f.Validators...)
		f.Options = append([]Option(nil), f.Options...)
		out.Fields[i] = f
	}
	out.Sections = make([]Section, len(s.Sections))
	for i, sec := range s.Sections {
		sec.Fields = append([]string(nil), sec.Fields...)
		out.Sections[i] = sec
	}
	out.Defaults = s.Defaults.Clone()
	if s.Lookup != nil {
		out.Lookup = s.Lookup.Clone()
	}
	return &out
}

// Bind reads the declared fields of the schema from an HTTP request.
func (s *Schema) Bind(r *http.Request) (Values, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return s.BindValues(r.PostForm), nil
}

// BindValues converts posted strings into Values. Only fields present in
// the request are returned. Multiple fields accept repeated keys or one
// newline-separated value.
func (s *Schema) BindValues(values url.Values) Values {
	out := Values{}
	for _, f := range s.Fields {
		if !values.Has(f.Name) {
			continue
		}
		if f.Multiple {
			var list []string
			for _, v := range values[f.Name] {
				list = append(list, SplitLines(v)...)
			}
			if list == nil {
				list = []string{}
			}
			out[f.Name] = list
			continue
		}
		out[f.Name] = strings.TrimSpace(values.Get(f.Name))
	}
	return out
}

// SchemaBuilder provides a fluent API for building schemas.
type SchemaBuilder struct {
	schema *Schema
}

// NewSchemaBuilder creates a new schema builder.
func NewSchemaBuilder(slug, title string) *SchemaBuilder {
	return &SchemaBuilder{schema: &Schema{Slug: slug, Title: title, Defaults: Values{}}}
}

// Description sets the description.
func (b *SchemaBuilder) Description(d string) *SchemaBuilder {
	b.schema.Description = d
	return b
}

// Section appends a section made of the given fields, declaring them.
func (b *SchemaBuilder) Section(title, description string, fields ...Field) *SchemaBuilder {
	sec := Section{Title: title, Description: description}
	for _, f := range fields {
		if b.schema.Field(f.Name) == nil {
			b.schema.Fields = append(b.schema.Fields, f)
		}
		sec.Fields = append(sec.Fields, f.Name)
	}
	b.schema.Sections = append(b.schema.Sections, sec)
	return b
}

// Default sets the initial value of a field.
func (b *SchemaBuilder) Default(name string, value any) *SchemaBuilder {
	b.schema.Defaults.Set(name, value)
	return b
}

// Lookup attaches a lookup table.
func (b *SchemaBuilder) Lookup(t *LookupTable) *SchemaBuilder {
	b.schema.Lookup = t
	return b
}

// Build validates and returns the schema.
func (b *SchemaBuilder) Build() (*Schema, error) {
	if err := b.schema.Validate(); err != nil {
		return nil, err
	}
	return b.schema, nil
}
