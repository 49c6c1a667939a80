package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hsche/edureg/internal/website/components"
	"github.com/hsche/edureg/pkg/audit"
	"github.com/hsche/edureg/pkg/catalog"
	"github.com/hsche/edureg/pkg/core"
	"github.com/hsche/edureg/pkg/forms"
	"github.com/hsche/edureg/pkg/logging"
	"github.com/hsche/edureg/pkg/router"
	"github.com/hsche/edureg/pkg/state"
	"github.com/hsche/edureg/pkg/wizard"
)

// autoReset is sent to the component's socket when the deferred reset
// fires.
type autoReset struct{}

// FormWizard is the live component behind /forms/{slug} and /form/pageN.
type FormWizard struct {
	core.BaseComponent

	app       *App
	schema    *forms.Schema
	page      int
	sessionID string
	csrfToken string
	ctrl      *wizard.Controller
}

// NewFormWizard creates an unmounted FormWizard.
func (a *App) NewFormWizard() core.Component {
	return &FormWizard{app: a}
}

func (w *FormWizard) Name() string {
	return "form_wizard"
}

// Mount resolves the form from the slug or page params and restores the
// session's saved state for it.
func (w *FormWizard) Mount(ctx context.Context, params core.Params, session core.Session) error {
	schema, page, err := w.app.resolve(params.Get("slug"), params.Get("page"))
	if err != nil {
		return err
	}
	w.schema = schema
	w.page = page
	w.sessionID = session.ID()
	w.csrfToken = session.GetString(core.CSRFTokenKey)
	w.ctrl = w.app.openController(ctx, schema, w.sessionID, w.onReset)

	if core.SocketFromContext(ctx) == nil {
		w.app.metrics.FormsOpened.Inc(schema.Slug)
		w.app.record(ctx, audit.Event{Type: audit.EventFormOpened, Form: schema.Slug, SessionID: w.sessionID})
	}
	return nil
}

// onReset runs on the timer goroutine; the socket loop does the rest.
func (w *FormWizard) onReset() {
	if s := w.Socket(); s != nil {
		_ = s.SendInfo(autoReset{})
	}
}

func (w *FormWizard) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	before := w.ctrl.View()
	err := w.ctrl.HandleEvent(ctx, event, payload)
	if err != nil && event == wizard.EventSubmit {
		// Delivery failures are already shown as the form error.
		err = nil
	}
	w.app.afterEvent(ctx, w.ctrl, w.sessionID, event, before)
	return err
}

func (w *FormWizard) HandleInfo(ctx context.Context, msg any) error {
	switch msg.(type) {
	case autoReset:
		w.app.persist(ctx, w.ctrl, w.sessionID)
		w.app.metrics.Resets.Inc(w.schema.Slug)
		w.app.record(ctx, audit.Event{
			Type:      audit.EventReset,
			Form:      w.schema.Slug,
			SessionID: w.sessionID,
			Details:   map[string]any{"automatic": true},
		})
		return nil
	}
	return fmt.Errorf("form wizard: unexpected message %T", msg)
}

func (w *FormWizard) Render(ctx context.Context) core.Renderer {
	return htmlRenderer(w.app.renderWizard(ctx, w.ctrl.View(), w.page, w.action(), w.csrfToken))
}

func (w *FormWizard) Terminate(ctx context.Context, reason core.TerminateReason) error {
	if w.ctrl != nil {
		w.ctrl.Close()
	}
	return nil
}

// action is where the no-script form posts back to.
func (w *FormWizard) action() string {
	if w.page > 0 {
		return fmt.Sprintf("/form/page%d", w.page)
	}
	return "/forms/" + w.schema.Slug
}

// resolve finds the schema for a slug, or for a page number when slug is
// empty. page is 0 for slug routes.
func (a *App) resolve(slug, rawPage string) (*forms.Schema, int, error) {
	page := 0
	if slug == "" {
		page = catalog.ClampPage(router.PageNumber(rawPage), a.catalog.PageCount())
		slug = a.catalog.Page(page).Slug
	}
	schema, err := a.catalog.Schema(slug)
	if err != nil {
		return nil, 0, err
	}
	return schema, page, nil
}

// openController creates a controller for schema and restores the saved
// state of the session. A submitted snapshot keeps the rest of its reset
// delay; one older than the delay is reset right away.
func (a *App) openController(ctx context.Context, schema *forms.Schema, sessionID string, onChange func()) *wizard.Controller {
	ctrl := wizard.New(schema,
		wizard.WithSink(a.sink),
		wizard.WithScheduler(a.scheduler),
		wizard.WithResetDelay(a.resetDelay),
		wizard.WithSessionID(sessionID),
		wizard.WithClock(a.now),
		wizard.WithLogger(logging.L(ctx)),
		wizard.WithSanitizer(a.sanitizer.Text),
		wizard.WithOnChange(onChange),
	)
	if sessionID == "" {
		return ctrl
	}

	st, err := a.store.Load(ctx, sessionID, schema.Slug)
	switch {
	case errors.Is(err, state.ErrKeyNotFound):
		return ctrl
	case err != nil:
		logging.L(ctx).Warn("loading wizard state", logging.String("form", schema.Slug), logging.Err(err))
		return ctrl
	}

	snap := st.Snapshot
	if snap.Submitted && snap.SubmittedAt.IsZero() {
		snap.SubmittedAt = st.UpdatedAt
	}
	ctrl.Restore(snap)
	if snap.Submitted && !ctrl.Submitted() {
		a.persist(ctx, ctrl, sessionID)
	}
	return ctrl
}

func (a *App) persist(ctx context.Context, ctrl *wizard.Controller, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := a.store.Save(ctx, sessionID, ctrl.Snapshot()); err != nil {
		logging.L(ctx).Warn("saving wizard state", logging.String("form", ctrl.Schema().Slug), logging.Err(err))
	}
}

// afterEvent saves the new state and records the lifecycle transitions the
// event caused.
func (a *App) afterEvent(ctx context.Context, ctrl *wizard.Controller, sessionID, event string, before wizard.View) {
	a.persist(ctx, ctrl, sessionID)
	a.metrics.Events.Inc(event)

	after := ctrl.View()
	form := after.Schema.Slug
	for _, i := range after.Completed {
		if !before.IsCompleted(i) {
			a.record(ctx, audit.Event{
				Type:      audit.EventSectionCompleted,
				Form:      form,
				SessionID: sessionID,
				Details:   map[string]any{"section": i, "title": after.Schema.Sections[i].Title},
			})
		}
	}

	switch {
	case event == wizard.EventSubmit && after.Submitted && !before.Submitted:
		a.metrics.Submissions.Inc(form)
		a.record(ctx, audit.Event{Type: audit.EventSubmitted, Form: form, SessionID: sessionID})
	case event == wizard.EventSubmit && after.FormError() != "":
		a.metrics.SubmitFailures.Inc(form)
		a.record(ctx, audit.Event{
			Type:      audit.EventSubmitFailed,
			Severity:  audit.SeverityWarning,
			Form:      form,
			SessionID: sessionID,
			Details:   map[string]any{"reason": after.FormError()},
		})
	case event == wizard.EventReset:
		a.metrics.Resets.Inc(form)
		a.record(ctx, audit.Event{Type: audit.EventReset, Form: form, SessionID: sessionID})
	}
}

func (a *App) record(ctx context.Context, event audit.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = a.now().UTC()
	}
	a.audit.Log(ctx, event)
}

// renderWizard renders the wizard fragment, wrapped in the page chrome for
// plain HTTP renders.
func (a *App) renderWizard(ctx context.Context, view wizard.View, page int, action, csrfToken string) string {
	body := components.RenderWizard(view, components.WizardOptions{
		Action:    action,
		CSRFField: a.csrf.FormField(),
		CSRFToken: csrfToken,
	})
	if core.SocketFromContext(ctx) != nil {
		return body
	}

	active := "/forms/" + view.Schema.Slug
	if page > 0 {
		active = "/form/page1"
		body = components.RenderPager(page, a.catalog.PageCount(), view.Schema.Title) + body
	}
	return a.document(ctx, view.Schema.Title, active, body)
}

func htmlRenderer(s string) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}
