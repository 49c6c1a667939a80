// Package website renders the page chrome shared by every edureg page: the
// document head, inline styles and the types the components render from.
package website

// PageConfig defines the document-level settings of a page.
type PageConfig struct {
	// Title is shown in the browser tab.
	Title string
	// Description is the meta description.
	Description string
	// Language is the page language (default: "en").
	Language string
	// ThemeColor is the mobile browser theme color.
	ThemeColor string
	// Nonce is the CSP nonce every inline script and style must carry.
	Nonce string
	// Scripts are external scripts loaded after the body, e.g. the live
	// client or the chart library.
	Scripts []string
	// InlineScript runs after Scripts have loaded.
	InlineScript string
}

// NavLink represents a navigation link.
type NavLink struct {
	Label  string
	URL    string
	Active bool
}

// Live script and chart library locations.
const (
	LiveScript   = "/_live/edureg.js"
	PlotlyScript = "https://cdn.plot.ly/plotly-2.35.2.min.js"
	PlotlySource = "https://cdn.plot.ly"
)

// DefaultPageConfig returns a PageConfig with the site defaults.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Title:      "Higher Education Registration",
		Language:   "en",
		ThemeColor: Colors["primary"],
	}
}

// MainNav returns the top navigation with the link for active marked.
func MainNav(active string) []NavLink {
	links := []NavLink{
		{Label: "Dashboard", URL: "/dashboard"},
		{Label: "Registration", URL: "/form/page1"},
		{Label: "College Programs", URL: "/forms/college-programs"},
	}
	for i := range links {
		links[i].Active = links[i].URL == active
	}
	return links
}
