package components

import (
	"fmt"
	"html"
	"strings"
)

// AuthMode is one of the two auth dialogs.
type AuthMode string

const (
	AuthSignIn AuthMode = "signin"
	AuthSignUp AuthMode = "signup"
)

// RenderAuthDialogs renders the sign in and sign up dialogs. Their forms
// post to /auth/{mode}; with the client script attached the reply is shown
// as a toast.
func RenderAuthDialogs(csrfField, csrfToken string) string {
	return renderAuthDialog(AuthSignIn, csrfField, csrfToken) + renderAuthDialog(AuthSignUp, csrfField, csrfToken)
}

func renderAuthDialog(mode AuthMode, csrfField, csrfToken string) string {
	title := "Sign in"
	fields := []struct{ name, label, kind string }{
		{"email", "Email", "email"},
		{"password", "Password", "password"},
	}
	if mode == AuthSignUp {
		title = "Create an account"
		fields = append([]struct{ name, label, kind string }{{"name", "Full name", "text"}}, fields...)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<dialog class="dialog" id="auth-%s" aria-labelledby="auth-%s-title">`+"\n", mode, mode))
	sb.WriteString(fmt.Sprintf(`<form method="post" action="/auth/%s" data-fetch>`+"\n", mode))
	sb.WriteString(fmt.Sprintf(`<h2 id="auth-%s-title">%s</h2>`+"\n", mode, title))
	sb.WriteString(fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`+"\n", html.EscapeString(csrfField), html.EscapeString(csrfToken)))
	for _, f := range fields {
		sb.WriteString(fmt.Sprintf(`<div class="form-group"><label class="form-label" for="auth-%s-%s">%s</label><input class="form-input" type="%s" id="auth-%s-%s" name="%s" required></div>`+"\n",
			mode, f.name, f.label, f.kind, mode, f.name, f.name))
	}
	sb.WriteString(`<div class="wizard-actions">` + "\n")
	sb.WriteString(`<button type="button" class="btn btn-ghost" data-close-dialog>Cancel</button>` + "\n")
	sb.WriteString(fmt.Sprintf(`<button type="submit" class="btn btn-primary">%s</button>`+"\n", title))
	sb.WriteString(`</div>` + "\n")
	sb.WriteString(`</form>` + "\n")
	sb.WriteString(`</dialog>` + "\n")
	return sb.String()
}

// RenderToast renders a transient status message.
func RenderToast(message string) string {
	return fmt.Sprintf(`<div class="toast" role="status">%s</div>`, html.EscapeString(message))
}
