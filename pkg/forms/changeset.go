package forms

import (
	"fmt"
	"sort"
	"strings"
)

// Changeset accumulates validation errors for a set of values.
// Checks chain; each failed check appends a message under the field name.
type Changeset struct {
	// Data is the snapshot being validated.
	Data Values

	// Errors contains validation errors keyed by field name.
	Errors map[string][]string

	// Valid indicates if the changeset has passed validation.
	Valid bool
}

// NewChangeset creates a new changeset over a copy of data.
func NewChangeset(data Values) *Changeset {
	return &Changeset{
		Data:   data.Clone(),
		Errors: make(map[string][]string),
		Valid:  true,
	}
}

// Cast builds a changeset from params, keeping only the allowed fields.
func Cast(params map[string]any, allowed []string) *Changeset {
	data := Values{}
	for _, field := range allowed {
		if v, ok := params[field]; ok {
			data.Set(field, v)
		}
	}
	return NewChangeset(data)
}

// GetField retrieves a field value.
func (cs *Changeset) GetField(key string) any {
	return cs.Data[key]
}

// GetString retrieves a field as text.
func (cs *Changeset) GetString(key string) string {
	return cs.Data.String(key)
}

// ValidateRequired validates that the field has a value.
func (cs *Changeset) ValidateRequired(field, message string) *Changeset {
	if cs.Data.IsEmpty(field) {
		cs.AddError(field, orDefault(message, field+" is required"))
	}
	return cs
}

// ValidateLength validates string length.
func (cs *Changeset) ValidateLength(field string, opts LengthOpts) *Changeset {
	length := len([]rune(cs.GetString(field)))

	if opts.Min > 0 && length < opts.Min {
		cs.AddError(field, fmt.Sprintf("should be at least %d character(s)", opts.Min))
	}

	if opts.Max > 0 && length > opts.Max {
		cs.AddError(field, fmt.Sprintf("should be at most %d character(s)", opts.Max))
	}

	return cs
}

// LengthOpts configures length validation.
type LengthOpts struct {
	Min int
	Max int
}

// ValidateNumber validates a numeric field.
func (cs *Changeset) ValidateNumber(field string, opts NumberOpts) *Changeset {
	value, ok := cs.Data.Float(field)
	if !ok {
		cs.AddError(field, "must be a number")
		return cs
	}

	if opts.GreaterThan != nil && value <= *opts.GreaterThan {
		cs.AddError(field, fmt.Sprintf("must be greater than %v", *opts.GreaterThan))
	}

	if opts.GreaterThanOrEq != nil && value < *opts.GreaterThanOrEq {
		cs.AddError(field, fmt.Sprintf("must be greater than or equal to %v", *opts.GreaterThanOrEq))
	}

	if opts.LessThanOrEq != nil && value > *opts.LessThanOrEq {
		cs.AddError(field, fmt.Sprintf("must be less than or equal to %v", *opts.LessThanOrEq))
	}

	return cs
}

// NumberOpts configures number validation.
type NumberOpts struct {
	GreaterThan     *float64
	GreaterThanOrEq *float64
	LessThanOrEq    *float64
}

// ValidateInclusion validates value is in a list.
func (cs *Changeset) ValidateInclusion(field string, values []string) *Changeset {
	value := cs.GetString(field)
	for _, v := range values {
		if value == v {
			return cs
		}
	}
	cs.AddError(field, "is invalid")
	return cs
}

// ValidateWith runs validators against a non-empty field until one fails.
func (cs *Changeset) ValidateWith(field string, validators ...Validator) *Changeset {
	value := cs.GetField(field)
	if isEmpty(value) {
		return cs
	}
	for _, v := range validators {
		if err := v.Validate(value); err != nil {
			cs.AddError(field, v.Message())
			break
		}
	}
	return cs
}

// AddError adds an error to a field.
func (cs *Changeset) AddError(field, message string) *Changeset {
	cs.Errors[field] = append(cs.Errors[field], message)
	cs.Valid = false
	return cs
}

// HasError returns true if a field has errors.
func (cs *Changeset) HasError(field string) bool {
	return len(cs.Errors[field]) > 0
}

// FirstError returns the first error for a field.
func (cs *Changeset) FirstError(field string) string {
	if errs := cs.Errors[field]; len(errs) > 0 {
		return errs[0]
	}
	return ""
}

// ErrorMap returns the first message of every failing field.
func (cs *Changeset) ErrorMap() map[string]string {
	out := make(map[string]string, len(cs.Errors))
	for field := range cs.Errors {
		out[field] = cs.FirstError(field)
	}
	return out
}

// ErrorMessages returns all errors as a single string.
func (cs *Changeset) ErrorMessages() string {
	fields := make([]string, 0, len(cs.Errors))
	for field := range cs.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var msgs []string
	for _, field := range fields {
		for _, err := range cs.Errors[field] {
			msgs = append(msgs, fmt.Sprintf("%s: %s", field, err))
		}
	}
	return strings.Join(msgs, ", ")
}

// Apply returns a copy of the data, or an error if the changeset is invalid.
func (cs *Changeset) Apply() (Values, error) {
	if !cs.Valid {
		return nil, fmt.Errorf("changeset is invalid: %s", cs.ErrorMessages())
	}
	return cs.Data.Clone(), nil
}
