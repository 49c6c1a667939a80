package wizard

import (
	"sort"

	"github.com/hsche/edureg/pkg/forms"
)

// View is a read-only copy of the controller state, the input of every
// renderer.
type View struct {
	Schema    *forms.Schema
	Values    forms.Values
	Errors    map[string]string
	Current   int
	Completed []int
	Reachable []bool
	Submitted bool
}

// View returns a consistent copy of the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Schema:    c.schema,
		Values:    c.values.Clone(),
		Errors:    make(map[string]string, len(c.errors)),
		Current:   c.current,
		Completed: c.completedListLocked(),
		Reachable: make([]bool, c.schema.SectionCount()),
		Submitted: c.submitted,
	}
	for k, msg := range c.errors {
		v.Errors[k] = msg
	}
	for i := range v.Reachable {
		v.Reachable[i] = c.reachableLocked(i)
	}
	return v
}

func (c *Controller) completedListLocked() []int {
	out := make([]int, 0, len(c.completed))
	for i := range c.completed {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Current returns the index of the displayed section.
func (c *Controller) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Submitted reports whether the form has been submitted and not yet reset.
func (c *Controller) Submitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitted
}

// Errors returns a copy of the ErrorMap.
func (c *Controller) Errors() map[string]string {
	return c.View().Errors
}

// Values returns a copy of the FieldValueMap.
func (c *Controller) Values() forms.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values.Clone()
}

// SectionCount returns the number of sections.
func (v View) SectionCount() int {
	return v.Schema.SectionCount()
}

// Section returns the current section.
func (v View) Section() forms.Section {
	return v.Schema.Sections[v.Current]
}

// IsFirst reports whether the first section is displayed.
func (v View) IsFirst() bool {
	return v.Current == 0
}

// IsLast reports whether the last section is displayed.
func (v View) IsLast() bool {
	return v.Current == v.SectionCount()-1
}

// IsCompleted reports whether section i has been completed.
func (v View) IsCompleted(i int) bool {
	for _, c := range v.Completed {
		if c == i {
			return true
		}
	}
	return false
}

// Progress is the percentage shown in the progress bar.
func (v View) Progress() float64 {
	n := v.SectionCount()
	if n == 0 {
		return 0
	}
	return float64(v.Current+1) / float64(n) * 100
}

// Error returns the message for a field, if any.
func (v View) Error(name string) string {
	return v.Errors[name]
}

// FormError returns the error that belongs to the whole form.
func (v View) FormError() string {
	return v.Errors[FormErrorKey]
}
