// Package components renders the building blocks of edureg pages as HTML
// strings: navigation, the wizard section renderer, dashboard tabs and the
// auth dialog.
package components

import (
	"fmt"
	"html"
	"strings"

	"github.com/hsche/edureg/internal/website"
)

// NavbarOptions configures the navbar component.
type NavbarOptions struct {
	// Logo is the site name.
	Logo string
	// Links are the navigation links.
	Links []website.NavLink
	// ShowAuth adds the sign in and sign up buttons.
	ShowAuth bool
}

// RenderNavbar generates a sticky navigation bar.
func RenderNavbar(opts NavbarOptions) string {
	var sb strings.Builder

	sb.WriteString(`<a href="#main-content" class="skip-link">Skip to main content</a>` + "\n")
	sb.WriteString(`<nav class="nav" aria-label="Main navigation">` + "\n")
	sb.WriteString(`<div class="container nav-inner">` + "\n")
	sb.WriteString(fmt.Sprintf(`<a href="/" class="logo">%s</a>`+"\n", html.EscapeString(opts.Logo)))

	sb.WriteString(`<div class="nav-links">` + "\n")
	for _, link := range opts.Links {
		class := "nav-link"
		current := ""
		if link.Active {
			class += " active"
			current = ` aria-current="page"`
		}
		sb.WriteString(fmt.Sprintf(`<a href="%s" class="%s"%s>%s</a>`+"\n",
			html.EscapeString(link.URL), class, current, html.EscapeString(link.Label)))
	}
	sb.WriteString(`</div>` + "\n")

	if opts.ShowAuth {
		sb.WriteString(`<div class="flex gap-sm">` + "\n")
		sb.WriteString(`<button type="button" class="btn btn-ghost" data-open-dialog="auth-signin">Sign in</button>` + "\n")
		sb.WriteString(`<button type="button" class="btn btn-primary" data-open-dialog="auth-signup">Sign up</button>` + "\n")
		sb.WriteString(`</div>` + "\n")
	}

	sb.WriteString(`</div>` + "\n")
	sb.WriteString(`</nav>` + "\n")
	return sb.String()
}

// RenderFooter generates the page footer.
func RenderFooter(text string) string {
	return fmt.Sprintf(`<footer class="footer" role="contentinfo"><div class="container">%s</div></footer>`,
		html.EscapeString(text))
}
