package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hsche/edureg/internal/website/components"
	"github.com/hsche/edureg/pkg/audit"
	"github.com/hsche/edureg/pkg/catalog"
	"github.com/hsche/edureg/pkg/dashboard"
	"github.com/hsche/edureg/pkg/forms"
	"github.com/hsche/edureg/pkg/limits"
	"github.com/hsche/edureg/pkg/logging"
	"github.com/hsche/edureg/pkg/security"
	"github.com/hsche/edureg/pkg/wizard"
)

// EventField names the form input carrying the wizard event of a plain
// form post, e.g. "next_step" or "goto_step:2".
const EventField = "_event"

// handleFormPost is the no-script path: apply the posted values of the
// current section, then the event, save, and redirect back.
func (a *App) handleFormPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schema, _, err := a.resolve(r.PathValue("slug"), r.PathValue("page"))
	if err != nil {
		a.HandleError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	event, arg, _ := strings.Cut(r.PostForm.Get(EventField), ":")
	if event == "" {
		event = wizard.EventNext
	}
	payload := map[string]any{}
	if event == wizard.EventGoto {
		payload["step"] = arg
	}

	sessionID := security.SessionIDFromContext(ctx)
	ctrl := a.openController(ctx, schema, sessionID, nil)
	defer ctrl.Close()

	before := ctrl.View()
	if event != wizard.EventReset {
		applyPosted(ctrl, schema, before, r.PostForm)
	}

	if err := ctrl.HandleEvent(ctx, event, payload); err != nil {
		if errors.Is(err, wizard.ErrUnknownEvent) || event != wizard.EventSubmit {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logging.L(ctx).Warn("form post submit failed", logging.Err(err))
	}
	a.afterEvent(ctx, ctrl, sessionID, event, before)

	http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
}

// applyPosted updates the visible fields of the current section from a
// form post. The lookup key is applied last and only when it changed, so
// auto-populated values win over the stale ones posted alongside it.
func applyPosted(ctrl *wizard.Controller, schema *forms.Schema, view wizard.View, posted url.Values) {
	key := ""
	if schema.Lookup != nil {
		key = schema.Lookup.KeyField
	}

	keyPosted, keySeen := "", false
	for _, f := range schema.SectionFields(view.Current) {
		if !schema.Visible(f, view.Values) {
			continue
		}
		vals, ok := posted[f.Name]
		if !ok || len(vals) == 0 {
			continue
		}
		if f.Name == key {
			keyPosted, keySeen = vals[0], true
			continue
		}
		ctrl.UpdateField(f.Name, vals[0])
	}

	if keySeen && keyPosted != view.Values.String(key) {
		ctrl.UpdateField(key, keyPosted)
	}
}

// FormInfo is one entry of /api/forms.
type FormInfo struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Sections    []string `json:"sections"`
	Page        int      `json:"page,omitempty"`
	URL         string   `json:"url"`
}

// FormList describes the catalog for the API and the CLI.
func FormList(c *catalog.Catalog) []FormInfo {
	out := make([]FormInfo, 0, len(c.Schemas()))
	for _, s := range c.Schemas() {
		info := FormInfo{
			Slug:        s.Slug,
			Title:       s.Title,
			Description: s.Description,
			URL:         "/forms/" + s.Slug,
		}
		for _, sec := range s.Sections {
			info.Sections = append(info.Sections, sec.Title)
		}
		if p, ok := c.PageOf(s.Slug); ok {
			info.Page = p.Number
		}
		out = append(out, info)
	}
	return out
}

func (a *App) handleForms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, FormList(a.catalog))
}

func (a *App) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, dashboard.Build(a.catalog.Institutions(), r.PathValue("tab")))
}

type authResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// handleAuth is the sign in / sign up stub. It checks the fields are
// present and well formed; no account is created or checked.
func (a *App) handleAuth(w http.ResponseWriter, r *http.Request) {
	mode := components.AuthMode(r.PathValue("mode"))
	required := []string{"email", "password"}
	switch mode {
	case components.AuthSignIn:
	case components.AuthSignUp:
		required = append([]string{"name"}, required...)
	default:
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	params := make(map[string]any, len(required))
	for _, name := range required {
		params[name] = strings.TrimSpace(r.PostForm.Get(name))
	}
	cs := forms.Cast(params, required)
	var missing []string
	for _, name := range required {
		if cs.ValidateRequired(name, "").HasError(name) {
			missing = append(missing, name)
		}
	}
	email := cs.GetString("email")
	cs.ValidateWith("email", forms.Email())

	resp := authResponse{OK: true}
	status := http.StatusOK
	switch {
	case len(missing) > 0:
		resp = authResponse{Message: "Please fill in: " + strings.Join(missing, ", ")}
		status = http.StatusUnprocessableEntity
	case !cs.Valid:
		resp = authResponse{Message: "Please enter a valid email address"}
		status = http.StatusUnprocessableEntity
	case mode == components.AuthSignUp:
		resp.Message = fmt.Sprintf("Account request received for %s", email)
	default:
		resp.Message = fmt.Sprintf("Welcome back, %s", email)
	}

	a.record(r.Context(), audit.Event{
		Type:      audit.EventAuthAttempt,
		SessionID: security.SessionIDFromContext(r.Context()),
		SourceIP:  limits.ClientIP(r),
		Path:      r.URL.Path,
		Details:   map[string]any{"mode": string(mode), "ok": resp.OK},
	})

	if !strings.Contains(r.Header.Get("Accept"), "application/json") {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, r, status, resp)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.L(r.Context()).Warn("writing response", logging.Err(err))
	}
}
