// Package app wires the edureg pages together: the form wizard and
// dashboard live components, the no-script form handler, the JSON API and
// the auth dialog stub.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hsche/edureg/client"
	"github.com/hsche/edureg/internal/website"
	"github.com/hsche/edureg/internal/website/components"
	"github.com/hsche/edureg/pkg/audit"
	"github.com/hsche/edureg/pkg/catalog"
	"github.com/hsche/edureg/pkg/core"
	"github.com/hsche/edureg/pkg/limits"
	"github.com/hsche/edureg/pkg/logging"
	"github.com/hsche/edureg/pkg/metrics"
	"github.com/hsche/edureg/pkg/router"
	"github.com/hsche/edureg/pkg/security"
	"github.com/hsche/edureg/pkg/sink"
	"github.com/hsche/edureg/pkg/state"
	"github.com/hsche/edureg/pkg/wizard"
)

// SiteName is shown in the navbar and page titles.
const SiteName = "HSCHE Registration"

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "edureg"

// Options holds the dependencies of an App. Zero values get in-memory
// defaults suitable for tests.
type Options struct {
	Catalog    *catalog.Catalog
	Store      *state.SnapshotStore
	Sink       sink.Sink
	Audit      audit.Logger
	CSRF       *security.CSRF
	Sanitizer  *security.Sanitizer
	Logger     logging.Logger
	Metrics    *metrics.Metrics
	ResetDelay time.Duration
	Scheduler  wizard.Scheduler
	Now        func() time.Time
}

// App serves the edureg pages.
type App struct {
	catalog    *catalog.Catalog
	store      *state.SnapshotStore
	sink       sink.Sink
	audit      audit.Logger
	csrf       *security.CSRF
	sanitizer  *security.Sanitizer
	logger     logging.Logger
	metrics    *metrics.Metrics
	resetDelay time.Duration
	scheduler  wizard.Scheduler
	now        func() time.Time
}

// New creates an App.
func New(opts Options) (*App, error) {
	a := &App{
		catalog:    opts.Catalog,
		store:      opts.Store,
		sink:       opts.Sink,
		audit:      opts.Audit,
		csrf:       opts.CSRF,
		sanitizer:  opts.Sanitizer,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		resetDelay: opts.ResetDelay,
		scheduler:  opts.Scheduler,
		now:        opts.Now,
	}
	if a.catalog == nil {
		c, err := catalog.Default()
		if err != nil {
			return nil, err
		}
		a.catalog = c
	}
	if a.store == nil {
		a.store = state.NewSnapshotStore(state.NewMemoryStore())
	}
	if a.sink == nil {
		a.sink = sink.Discard
	}
	if a.audit == nil {
		a.audit = audit.NopLogger{}
	}
	if a.csrf == nil {
		a.csrf = security.NewCSRF(security.CSRFConfig{})
	}
	if a.sanitizer == nil {
		a.sanitizer = security.NewSanitizer()
	}
	if a.logger == nil {
		a.logger = logging.NopLogger{}
	}
	if a.metrics == nil {
		a.metrics = metrics.New(MetricsNamespace)
	}
	if a.resetDelay == 0 {
		a.resetDelay = wizard.DefaultResetDelay
	}
	if a.scheduler == nil {
		a.scheduler = wizard.RealScheduler
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// Catalog returns the form catalog.
func (a *App) Catalog() *catalog.Catalog {
	return a.catalog
}

// Metrics returns the counters the app updates.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Session is the router session func: the browser session id plus a CSRF
// token for the forms rendered into the page.
func (a *App) Session(r *http.Request) core.Session {
	s := router.DefaultSession(r)
	s[core.CSRFTokenKey] = a.csrf.TokenFor(r)
	return s
}

// Routes registers every page and handler on r. liveOpts apply to the live
// routes, e.g. connection limits.
func (a *App) Routes(r *router.Router, liveOpts ...router.RouteOption) {
	r.Live("/{$}", a.NewDashboard, liveOpts...)
	r.Live("/dashboard", a.NewDashboard, liveOpts...)
	r.Live("/forms/{slug}", a.NewFormWizard, liveOpts...)
	r.Live("/form/{page}", a.NewFormWizard, liveOpts...)
	r.Live("/form", a.NewFormWizard, liveOpts...)

	r.HandleFunc("POST /forms/{slug}", a.handleFormPost)
	r.HandleFunc("POST /form/{page}", a.handleFormPost)
	r.HandleFunc("POST /auth/{mode}", a.handleAuth)
	r.HandleFunc("GET /api/forms", a.handleForms)
	r.HandleFunc("GET /api/dashboard/{tab}", a.handleDashboard)
	r.Handle("GET /_live/", http.StripPrefix("/_live/", client.Handler()))
}

// CSRFViolation is the OnFailure hook for security.CSRFConfig. m may be
// nil.
func CSRFViolation(log audit.Logger, m *metrics.Metrics) func(*http.Request, error) {
	return func(r *http.Request, err error) {
		if m != nil {
			m.CSRFRejected.Inc()
		}
		log.Log(r.Context(), audit.Event{
			Timestamp: time.Now().UTC(),
			Type:      audit.EventCSRFViolation,
			Severity:  audit.SeverityWarning,
			SessionID: security.SessionIDFromContext(r.Context()),
			SourceIP:  limits.ClientIP(r),
			Path:      r.URL.Path,
			Details:   map[string]any{"reason": err.Error()},
		})
	}
}

// RateLimited is the OnReject hook for limits.MiddlewareConfig. m may be
// nil.
func RateLimited(log audit.Logger, m *metrics.Metrics) func(*http.Request, string) {
	return func(r *http.Request, key string) {
		if m != nil {
			m.RateLimited.Inc()
		}
		log.Log(r.Context(), audit.Event{
			Timestamp: time.Now().UTC(),
			Type:      audit.EventRateLimited,
			Severity:  audit.SeverityWarning,
			SessionID: security.SessionIDFromContext(r.Context()),
			SourceIP:  key,
			Path:      r.URL.Path,
		})
	}
}

// HandleError is the router error handler. Unknown forms are 404s.
func (a *App) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, catalog.ErrUnknownForm) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	logging.L(r.Context()).Error("request failed", logging.Err(err))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// document wraps body in the site chrome.
func (a *App) document(ctx context.Context, title, active, body string, scripts ...string) string {
	session := core.SessionFromContext(ctx)

	cfg := website.DefaultPageConfig()
	cfg.Title = title + " | " + SiteName
	cfg.Nonce = router.CSPNonce(ctx)
	cfg.Scripts = append(scripts, website.LiveScript)

	page := components.RenderNavbar(components.NavbarOptions{
		Logo:     SiteName,
		Links:    website.MainNav(active),
		ShowAuth: true,
	})
	page += `<main id="main-content" class="container">` + "\n" + body + "</main>\n"
	page += components.RenderFooter("Higher Education Council registration portal")
	page += components.RenderAuthDialogs(a.csrf.FormField(), session.GetString(core.CSRFTokenKey))
	return website.RenderDocument(cfg, "", page)
}
