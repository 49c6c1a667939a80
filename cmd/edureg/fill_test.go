package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsche/edureg/pkg/catalog"
	"github.com/hsche/edureg/pkg/sink"
	"github.com/hsche/edureg/pkg/wizard"
)

// scripted answers prompts by message. Once a message has no answers left
// the default is accepted, like pressing enter.
type scripted struct {
	answers map[string][]string
	confirm bool
	asked   []string
}

func (s *scripted) next(message, def string) string {
	s.asked = append(s.asked, message)
	queue := s.answers[message]
	if len(queue) == 0 {
		return def
	}
	s.answers[message] = queue[1:]
	return queue[0]
}

func (s *scripted) Input(message, def, help string) (string, error) {
	return s.next(message, def), nil
}

func (s *scripted) Multiline(message, def, help string) (string, error) {
	return s.next(message, def), nil
}

func (s *scripted) Select(message string, options []string, def, help string) (string, error) {
	return s.next(message, def), nil
}

func (s *scripted) Confirm(message string, def bool) (bool, error) {
	s.asked = append(s.asked, message)
	return s.confirm, nil
}

func newTestController(t *testing.T, slug string, got *[]sink.Submission) *wizard.Controller {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	schema, err := c.Schema(slug)
	require.NoError(t, err)

	ctrl := wizard.New(schema,
		wizard.WithResetDelay(0),
		wizard.WithSink(sink.Func(func(_ context.Context, s sink.Submission) error {
			*got = append(*got, s)
			return nil
		})),
	)
	t.Cleanup(ctrl.Close)
	return ctrl
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFillForm(t *testing.T) {
	var got []sink.Submission
	ctrl := newTestController(t, "program", &got)
	p := &scripted{
		confirm: true,
		answers: map[string][]string{
			"University ID": {"U", "UNI-001"},
			"Faculty ID":    {"FAC-001"},
			"Department ID": {"DEP-001"},
			"Program ID":    {"PRG-001"},
			"Program Name":  {"Computer Science"},
			"Duration":      {"4 years"},
			"Program Type":  {"Postgraduate (PG)"},
		},
	}
	var out bytes.Buffer

	require.NoError(t, fillForm(testContext(t), ctrl, p, &out))

	require.Len(t, got, 1)
	assert.Equal(t, "UNI-001", got[0].Values.String("universityId"))
	assert.Equal(t, "PG", got[0].Values.String("programType"))

	text := out.String()
	assert.Contains(t, text, "Step 1 of 2: Reference Information")
	assert.Contains(t, text, "University ID must be at least 3 characters")
	assert.Contains(t, text, "Program Type: Postgraduate (PG)")
	assert.Contains(t, text, "Program Registration submitted.")
}

func TestFillFormLookup(t *testing.T) {
	var got []sink.Submission
	ctrl := newTestController(t, "college-programs", &got)
	p := &scripted{
		confirm: true,
		answers: map[string][]string{
			"Select Institution": {"GJU"},
		},
	}
	var out bytes.Buffer

	require.NoError(t, fillForm(testContext(t), ctrl, p, &out))

	require.Len(t, got, 1)
	v := got[0].Values
	assert.Equal(t, "GJU", v.String("college"))
	assert.Equal(t, "10", v.String("totalPrograms"))
	assert.Equal(t, "Yes", v.String("ugcFollowed"))
	assert.Equal(t, "30", v.String("ugProgramsPercentage"))

	assert.Contains(t, out.String(), "Step 7 of 7: Review & Submit")
	assert.NotContains(t, p.asked, "Percentage of 3-year bachelor Degree programmes (non-B.VOC)")
}

func TestFillFormDeclined(t *testing.T) {
	var got []sink.Submission
	ctrl := newTestController(t, "college-programs", &got)
	p := &scripted{answers: map[string][]string{"Select Institution": {"GJU"}}}

	err := fillForm(testContext(t), ctrl, p, &bytes.Buffer{})
	assert.ErrorIs(t, err, errAborted)
	assert.Empty(t, got)
}
