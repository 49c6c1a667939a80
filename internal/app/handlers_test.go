package app

import (
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsche/edureg/pkg/audit"
	"github.com/hsche/edureg/pkg/dashboard"
	"github.com/hsche/edureg/pkg/logging"
	"github.com/hsche/edureg/pkg/router"
	"github.com/hsche/edureg/pkg/security"
)

var csrfInput = regexp.MustCompile(`name="_csrf" value="([^"]+)"`)

type testSite struct {
	t      *testing.T
	app    *App
	audit  *recorder
	server *httptest.Server
	client *http.Client
}

// newTestSite serves the app behind the session and CSRF middleware, the
// same way the server does, with a cookie-keeping client that does not
// follow redirects.
func newTestSite(t *testing.T) *testSite {
	t.Helper()
	rec := &recorder{}
	a, _ := newTestApp(t, Options{
		Audit: rec,
		CSRF: security.NewCSRF(security.CSRFConfig{
			Secret:    []byte("test-secret"),
			OnFailure: CSRFViolation(rec, nil),
		}),
		Scheduler: &manualScheduler{},
	})

	rt := router.New(
		router.WithLogger(logging.NopLogger{}),
		router.WithSessionFunc(a.Session),
		router.WithErrorHandler(a.HandleError),
	)
	rt.Use(security.NewSessions(security.SessionConfig{}).Middleware(), a.csrf.Middleware())
	a.Routes(rt)

	srv := httptest.NewServer(rt)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testSite{
		t:      t,
		app:    a,
		audit:  rec,
		server: srv,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (s *testSite) get(path string) (*http.Response, string) {
	s.t.Helper()
	resp, err := s.client.Get(s.server.URL + path)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, string(body)
}

func (s *testSite) post(path string, form url.Values, accept string) (*http.Response, string) {
	s.t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := s.client.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, string(body)
}

// token loads path and returns the CSRF token rendered into it.
func (s *testSite) token(path string) string {
	s.t.Helper()
	resp, body := s.get(path)
	require.Equal(s.t, http.StatusOK, resp.StatusCode)
	m := csrfInput.FindStringSubmatch(body)
	require.NotNil(s.t, m, "no csrf input on %s", path)
	return html.UnescapeString(m[1])
}

func TestPages(t *testing.T) {
	site := newTestSite(t)

	tests := []struct {
		path   string
		status int
		want   []string
	}{
		{"/", http.StatusOK, []string{"<!DOCTYPE html>", `data-live-view="dashboard"`, "Total Institutes"}},
		{"/dashboard?tab=programs", http.StatusOK, []string{`aria-selected="true" href="/dashboard?tab=programs"`}},
		{"/form", http.StatusOK, []string{"Page 1 of 5: University Registration", `action="/form/page1"`}},
		{"/form/page3", http.StatusOK, []string{"Page 3 of 5: Department Registration", `href="/form/page2" rel="prev"`}},
		{"/form/page42", http.StatusOK, []string{"Page 5 of 5: College Program Details"}},
		{"/form/oops", http.StatusOK, []string{"Page 1 of 5"}},
		{"/forms/program", http.StatusOK, []string{"Program Registration", `action="/forms/program"`, `name="_csrf"`}},
		{"/forms/nope", http.StatusNotFound, nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := site.get(tt.path)
			require.Equal(t, tt.status, resp.StatusCode)
			for _, w := range tt.want {
				assert.Contains(t, body, w)
			}
		})
	}
}

func TestFormPostFlow(t *testing.T) {
	site := newTestSite(t)
	token := site.token("/forms/program")

	resp, _ := site.post("/forms/program", url.Values{
		"_csrf":  {token},
		"_event": {"next_step"},
	}, "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/forms/program", resp.Header.Get("Location"))

	_, body := site.get("/forms/program")
	assert.Contains(t, body, "University ID is required")
	assert.Contains(t, body, "Step 1 of 2")

	resp, _ = site.post("/forms/program", url.Values{
		"_csrf":        {token},
		"_event":       {"next_step"},
		"universityId": {"UNI-001"},
		"facultyId":    {"FAC-001"},
		"departmentId": {"DEP-001"},
	}, "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, body = site.get("/forms/program")
	assert.Contains(t, body, "Step 2 of 2")
	assert.NotContains(t, body, "University ID is required")

	resp, _ = site.post("/forms/program", url.Values{
		"_csrf":  {token},
		"_event": {"goto_step:0"},
	}, "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body = site.get("/forms/program")
	assert.Contains(t, body, `value="UNI-001"`)

	resp, _ = site.post("/forms/program", url.Values{
		"_csrf":  {token},
		"_event": {"explode"},
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.NotEmpty(t, site.audit.ofType(audit.EventSectionCompleted))
}

func TestFormPostPageRoute(t *testing.T) {
	site := newTestSite(t)
	token := site.token("/form/page5")

	resp, _ := site.post("/form/page5", url.Values{
		"_csrf":         {token},
		"_event":        {"next_step"},
		"college":       {"GJU"},
		"totalPrograms": {""},
	}, "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/form/page5", resp.Header.Get("Location"))

	_, body := site.get("/form/page5")
	assert.Contains(t, body, "UGC CCFUGP Information")
	assert.Contains(t, body, `value="30"`)
}

func TestFormPostRequiresCSRF(t *testing.T) {
	site := newTestSite(t)
	site.get("/forms/program")

	resp, _ := site.post("/forms/program", url.Values{"_event": {"next_step"}}, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = site.post("/forms/program", url.Values{"_event": {"next_step"}, "_csrf": {"forged"}}, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	violations := site.audit.ofType(audit.EventCSRFViolation)
	require.Len(t, violations, 2)
	assert.Equal(t, "/forms/program", violations[0].Path)
}

func TestAPI(t *testing.T) {
	site := newTestSite(t)

	resp, body := site.get("/api/forms")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var list []FormInfo
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list, 5)
	pages := map[string]int{}
	for _, f := range list {
		pages[f.Slug] = f.Page
	}
	assert.Equal(t, 1, pages["university"])
	assert.Equal(t, 5, pages["college-programs"])

	resp, body = site.get("/api/dashboard/compliance")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var d dashboard.Dashboard
	require.NoError(t, json.Unmarshal([]byte(body), &d))
	assert.Equal(t, dashboard.TabCompliance, d.Tab.ID)
	assert.NotEmpty(t, d.Charts)

	resp, body = site.get("/_live/edureg.js")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "data-live-view")
}

func TestAuth(t *testing.T) {
	site := newTestSite(t)
	token := site.token("/")

	decode := func(body string) authResponse {
		var r authResponse
		require.NoError(t, json.Unmarshal([]byte(body), &r))
		return r
	}

	resp, body := site.post("/auth/signup", url.Values{
		"_csrf": {token},
		"email": {"dean@example.edu"},
	}, "application/json")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Please fill in: name, password", decode(body).Message)

	resp, body = site.post("/auth/signin", url.Values{
		"_csrf":    {token},
		"email":    {"not-an-email"},
		"password": {"secret"},
	}, "application/json")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.False(t, decode(body).OK)

	resp, body = site.post("/auth/signin", url.Values{
		"_csrf":    {token},
		"email":    {"dean@example.edu"},
		"password": {"secret"},
	}, "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, authResponse{OK: true, Message: "Welcome back, dean@example.edu"}, decode(body))

	resp, _ = site.post("/auth/signin", url.Values{
		"_csrf":    {token},
		"email":    {"dean@example.edu"},
		"password": {"secret"},
	}, "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, _ = site.post("/auth/register", url.Values{"_csrf": {token}}, "application/json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Len(t, site.audit.ofType(audit.EventAuthAttempt), 4)
}
