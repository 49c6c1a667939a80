package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsche/edureg/internal/website/components"
	"github.com/hsche/edureg/pkg/audit"
	"github.com/hsche/edureg/pkg/catalog"
	"github.com/hsche/edureg/pkg/core"
	"github.com/hsche/edureg/pkg/forms"
	"github.com/hsche/edureg/pkg/livetest"
	"github.com/hsche/edureg/pkg/sink"
	"github.com/hsche/edureg/pkg/wizard"
)

func mountForm(t *testing.T, a *App, slug, sessionID string) *livetest.View {
	t.Helper()
	return livetest.Mount(t, a.NewFormWizard(),
		livetest.WithParams(core.Params{"slug": slug}),
		livetest.WithSession(core.Session{core.SessionIDKey: sessionID}),
	)
}

func fillProgram(v *livetest.View) {
	v.Change("universityId", "UNI-001").
		Change("facultyId", "FAC-001").
		Change("departmentId", "DEP-001").
		MustEvent(wizard.EventNext, nil).
		Change("programId", "PRG-001").
		Change("programName", "Computer Science").
		Change("duration", "4 years").
		Change("programType", "UG")
}

func TestFormWizardLookup(t *testing.T) {
	a, rec := newTestApp(t, Options{})
	v := mountForm(t, a, "college-programs", "s1")

	v.AssertHas(`data-live-view="wizard"`, "Institution Selection", "Step 1 of 7")
	v.AssertHasNot("<!DOCTYPE html>")

	v.Change("college", "GJU")
	v.AssertHas(`<option value="GJU" selected>`, `value="10"`)

	v.MustEvent(wizard.EventNext, nil)
	v.AssertHas(
		"UGC CCFUGP Information",
		`value="Yes" lv-change="update_field" lv-value-field="ugcFollowed" checked`,
		`name="ugProgramsPercentage"`,
		`value="30"`,
	)

	st, err := a.store.Load(context.Background(), "s1", "college-programs")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Snapshot.Current)
	assert.Equal(t, "GJU", forms.Values(st.Snapshot.Values).String("college"))

	completed := rec.ofType(audit.EventSectionCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, 0, completed[0].Details["section"])
	assert.Equal(t, "s1", completed[0].SessionID)
}

func TestFormWizardValidationErrors(t *testing.T) {
	a, _ := newTestApp(t, Options{})
	v := mountForm(t, a, "program", "s1")

	v.MustEvent(wizard.EventNext, nil)
	v.AssertHas("Step 1 of 2", "University ID is required", `aria-invalid="true"`)

	v.Change("universityId", "U")
	v.AssertHasNot("University ID is required")

	v.MustEvent(wizard.EventNext, nil)
	v.AssertHas("Step 1 of 2", "University ID must be at least 3 characters")
}

func TestFormWizardRestoresAcrossMounts(t *testing.T) {
	a, _ := newTestApp(t, Options{})

	first := mountForm(t, a, "program", "s1")
	first.Change("universityId", "UNI-001")
	first.Close()

	second := mountForm(t, a, "program", "s1")
	second.AssertHas(`value="UNI-001"`)

	other := mountForm(t, a, "program", "s2")
	other.AssertHasNot(`value="UNI-001"`)
}

func TestFormWizardSubmit(t *testing.T) {
	var got []sink.Submission
	a, rec := newTestApp(t, Options{
		Sink: sink.Func(func(_ context.Context, s sink.Submission) error {
			got = append(got, s)
			return nil
		}),
		Scheduler: &manualScheduler{},
	})
	v := mountForm(t, a, "program", "s1")
	fillProgram(v)

	v.MustEvent(wizard.EventSubmit, nil)
	v.AssertHas(components.SubmittedMessage, "Start over")

	require.Len(t, got, 1)
	assert.Equal(t, "program", got[0].Form)
	assert.Equal(t, "s1", got[0].SessionID)
	assert.Equal(t, "Computer Science", got[0].Values.String("programName"))
	assert.Len(t, rec.ofType(audit.EventSubmitted), 1)
	assert.Equal(t, 1.0, a.Metrics().Submissions.Value("program"))
}

func TestFormWizardSubmitFailure(t *testing.T) {
	a, rec := newTestApp(t, Options{
		Sink: sink.Func(func(context.Context, sink.Submission) error {
			return errors.New("disk full")
		}),
	})
	v := mountForm(t, a, "program", "s1")
	fillProgram(v)

	require.NoError(t, v.Event(wizard.EventSubmit, nil))
	v.AssertHas("The submission could not be saved. Please try again.")
	v.AssertHasNot(components.SubmittedMessage)

	failed := rec.ofType(audit.EventSubmitFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, audit.SeverityWarning, failed[0].Severity)
	assert.Empty(t, rec.ofType(audit.EventSubmitted))
	assert.Equal(t, 1.0, a.Metrics().SubmitFailures.Value("program"))
}

func TestFormWizardAutoReset(t *testing.T) {
	sched := &manualScheduler{}
	a, rec := newTestApp(t, Options{Scheduler: sched})
	require.NoError(t, a.store.Save(context.Background(), "s1", wizard.Snapshot{
		Form:      "program",
		Values:    map[string]any{"universityId": "UNI-001"},
		Current:   1,
		Completed: []int{0, 1},
		Submitted: true,
	}))

	v := mountForm(t, a, "program", "s1")
	v.AssertHas(components.SubmittedMessage)
	require.Equal(t, 1, sched.len())

	sched.fire()
	require.Equal(t, 1, v.FlushInfo())

	v.AssertHasNot(components.SubmittedMessage, `value="UNI-001"`)
	v.AssertHas("Step 1 of 2")

	st, err := a.store.Load(context.Background(), "s1", "program")
	require.NoError(t, err)
	assert.False(t, st.Snapshot.Submitted)

	resets := rec.ofType(audit.EventReset)
	require.Len(t, resets, 1)
	assert.Equal(t, true, resets[0].Details["automatic"])
}

func TestFormWizardStaleSubmissionResetsOnOpen(t *testing.T) {
	a, _ := newTestApp(t, Options{
		Scheduler: &manualScheduler{},
		Now:       func() time.Time { return time.Now().Add(time.Hour) },
	})
	require.NoError(t, a.store.Save(context.Background(), "s1", wizard.Snapshot{
		Form:      "program",
		Values:    map[string]any{"universityId": "UNI-001"},
		Current:   1,
		Completed: []int{0, 1},
		Submitted: true,
	}))

	v := mountForm(t, a, "program", "s1")
	v.AssertHasNot(components.SubmittedMessage, `value="UNI-001"`)

	st, err := a.store.Load(context.Background(), "s1", "program")
	require.NoError(t, err)
	assert.False(t, st.Snapshot.Submitted)
	assert.Equal(t, 0, st.Snapshot.Current)
}

func TestFormWizardRestoredSubmissionKeepsRemainingDelay(t *testing.T) {
	now := time.Now()
	sched := &manualScheduler{}
	a, _ := newTestApp(t, Options{
		Scheduler:  sched,
		ResetDelay: 5 * time.Second,
		Now:        func() time.Time { return now },
	})
	require.NoError(t, a.store.Save(context.Background(), "s1", wizard.Snapshot{
		Form:        "program",
		Values:      map[string]any{"universityId": "UNI-001"},
		Current:     1,
		Completed:   []int{0, 1},
		Submitted:   true,
		SubmittedAt: now.Add(-4 * time.Second),
	}))

	v := mountForm(t, a, "program", "s1")
	v.AssertHas(components.SubmittedMessage)
	require.Equal(t, 1, sched.len())
	assert.Equal(t, []time.Duration{time.Second}, sched.delays)
}

func TestResolvePage(t *testing.T) {
	a, _ := newTestApp(t, Options{})

	tests := []struct {
		raw  string
		page int
		slug string
	}{
		{"", 1, "university"},
		{"page1", 1, "university"},
		{"page3", 3, "department"},
		{"4", 4, "program"},
		{"page5", 5, "college-programs"},
		{"page99", 5, "college-programs"},
		{"page0", 1, "university"},
		{"banana", 1, "university"},
		{"page99999999999999999999", 5, "college-programs"},
		{"page-99999999999999999999", 1, "university"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			schema, page, err := a.resolve("", tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.page, page)
			assert.Equal(t, tt.slug, schema.Slug)
		})
	}

	schema, page, err := a.resolve("faculty", "page4")
	require.NoError(t, err)
	assert.Equal(t, 0, page)
	assert.Equal(t, "faculty", schema.Slug)
}

func TestFormWizardUnknownForm(t *testing.T) {
	a, _ := newTestApp(t, Options{})
	err := a.NewFormWizard().Mount(context.Background(), core.Params{"slug": "nope"}, core.Session{})
	assert.ErrorIs(t, err, catalog.ErrUnknownForm)
}

func TestDashboardSelectTab(t *testing.T) {
	a, _ := newTestApp(t, Options{})
	v := livetest.Mount(t, a.NewDashboard(), livetest.WithParams(core.Params{"tab": "compliance"}))

	v.AssertHas(`data-live-view="dashboard"`, `aria-selected="true" href="/dashboard?tab=compliance"`)
	v.AssertHasNot("<!DOCTYPE html>")

	v.MustEvent(EventSelectTab, map[string]any{"tab": "overview"})
	v.AssertHas("Total Institutes", "Avg UGC Compliance")

	assert.Error(t, v.Event("explode", nil))
}
