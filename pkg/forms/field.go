package forms

// FieldType identifies the type of form field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldRadio    FieldType = "radio"
	FieldTextarea FieldType = "textarea"
	FieldEmail    FieldType = "email"
	FieldURL      FieldType = "url"
	FieldTel      FieldType = "tel"
	FieldHidden   FieldType = "hidden"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldNumber, FieldSelect, FieldRadio, FieldTextarea,
		FieldEmail, FieldURL, FieldTel, FieldHidden:
		return true
	}
	return false
}

// Numeric reports whether values of this type are interpreted as numbers.
func (t FieldType) Numeric() bool {
	return t == FieldNumber
}

// Choice reports whether the field takes its value from Options.
func (t FieldType) Choice() bool {
	return t == FieldSelect || t == FieldRadio
}

// Field describes one input of a form.
type Field struct {
	// Name is the key used in the FieldValueMap.
	Name string

	// Type is the field type.
	Type FieldType

	// Label is the display label.
	Label string

	// Placeholder is the placeholder text.
	Placeholder string

	// Help is help text shown below the field.
	Help string

	// HelpHTML is the help text as sanitized markup. Renderers write it
	// unescaped in place of Help.
	HelpHTML string

	// Required indicates that an empty value fails validation.
	Required bool

	// RequiredMessage overrides the default "<Label> is required" message.
	RequiredMessage string

	// Validators run against non-empty values, in order. The first
	// failure wins.
	Validators []Validator

	// Options are the available choices for select/radio fields.
	Options []Option

	// Min/Max/Step for number fields (HTML hints; validation is done by
	// Validators).
	Min  *float64
	Max  *float64
	Step string

	// VisibleWhen names a numeric field that must be > 0 for this field
	// to be shown and validated. Empty means always visible.
	VisibleWhen string

	// Multiple means the value is a list of strings entered one per line.
	Multiple bool
}

// Option represents a select/radio option.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// OptionLabel returns the label for value, or value itself when no option
// matches.
func (f Field) OptionLabel(value string) string {
	for _, o := range f.Options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

// HasOption reports whether value is one of the field's options.
func (f Field) HasOption(value string) bool {
	for _, o := range f.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// MissingMessage returns the message used when a required field is empty.
func (f Field) MissingMessage() string {
	if f.RequiredMessage != "" {
		return f.RequiredMessage
	}
	label := f.Label
	if label == "" {
		label = f.Name
	}
	return label + " is required"
}

// FieldOption is a function that configures a field.
type FieldOption func(*Field)

// NewField creates a new field.
func NewField(name string, fieldType FieldType, label string, opts ...FieldOption) Field {
	field := Field{
		Name:  name,
		Type:  fieldType,
		Label: label,
	}

	for _, opt := range opts {
		opt(&field)
	}

	return field
}

// Field options

// WithRequired marks the field as required. An optional message replaces
// the default one.
func WithRequired(msg ...string) FieldOption {
	return func(f *Field) {
		f.Required = true
		if len(msg) > 0 {
			f.RequiredMessage = msg[0]
		}
	}
}

// WithPlaceholder sets the placeholder text.
func WithPlaceholder(placeholder string) FieldOption {
	return func(f *Field) {
		f.Placeholder = placeholder
	}
}

// WithHelp sets the help text.
func WithHelp(help string) FieldOption {
	return func(f *Field) {
		f.Help = help
	}
}

// WithHelpHTML sets already sanitized help markup and its plain text.
func WithHelpHTML(markup, text string) FieldOption {
	return func(f *Field) {
		f.HelpHTML = markup
		f.Help = text
	}
}

// WithValidator adds a validator.
func WithValidator(v Validator) FieldOption {
	return func(f *Field) {
		f.Validators = append(f.Validators, v)
	}
}

// WithMinLength adds a minimum length validator.
func WithMinLength(n int, msg ...string) FieldOption {
	return func(f *Field) {
		f.Validators = append(f.Validators, MinLength(n, msg...))
	}
}

// WithMaxLength adds a maximum length validator.
func WithMaxLength(n int, msg ...string) FieldOption {
	return func(f *Field) {
		f.Validators = append(f.Validators, MaxLength(n, msg...))
	}
}

// WithRange sets the HTML min/max hints.
func WithRange(min, max float64) FieldOption {
	return func(f *Field) {
		f.Min = &min
		f.Max = &max
	}
}

// WithStep sets the HTML step hint.
func WithStep(step string) FieldOption {
	return func(f *Field) {
		f.Step = step
	}
}

// WithOptions sets the select/radio options.
func WithOptions(options ...Option) FieldOption {
	return func(f *Field) {
		f.Options = options
	}
}

// WithVisibleWhen shows the field only while the named numeric field is
// greater than zero.
func WithVisibleWhen(name string) FieldOption {
	return func(f *Field) {
		f.VisibleWhen = name
	}
}

// WithMultiple marks the field as a list of strings.
func WithMultiple() FieldOption {
	return func(f *Field) {
		f.Multiple = true
	}
}

// TextField creates a text field.
func TextField(name, label string, opts ...FieldOption) Field {
	return NewField(name, FieldText, label, opts...)
}

// EmailField creates an email field.
func EmailField(name, label string, opts ...FieldOption) Field {
	field := NewField(name, FieldEmail, label, opts...)
	field.Validators = append(field.Validators, Email())
	return field
}

// NumberField creates a number field.
func NumberField(name, label string, opts ...FieldOption) Field {
	field := NewField(name, FieldNumber, label, opts...)
	field.Validators = append([]Validator{Number()}, field.Validators...)
	return field
}

// TextareaField creates a textarea field.
func TextareaField(name, label string, opts ...FieldOption) Field {
	return NewField(name, FieldTextarea, label, opts...)
}

// SelectField creates a select field.
func SelectField(name, label string, options []Option, opts ...FieldOption) Field {
	field := NewField(name, FieldSelect, label, opts...)
	field.Options = options
	return field
}

// RadioField creates a radio field.
func RadioField(name, label string, options []Option, opts ...FieldOption) Field {
	field := NewField(name, FieldRadio, label, opts...)
	field.Options = options
	return field
}

// TelField creates a telephone field.
func TelField(name, label string, opts ...FieldOption) Field {
	return NewField(name, FieldTel, label, opts...)
}

// HiddenField creates a hidden field.
func HiddenField(name string, opts ...FieldOption) Field {
	return NewField(name, FieldHidden, "", opts...)
}

// URLField creates a URL field.
func URLField(name, label string, opts ...FieldOption) Field {
	field := NewField(name, FieldURL, label, opts...)
	field.Validators = append(field.Validators, URL())
	return field
}
