package app

import (
	"context"
	"fmt"
	"io"

	"github.com/hsche/edureg/internal/website"
	"github.com/hsche/edureg/internal/website/components"
	"github.com/hsche/edureg/pkg/core"
	"github.com/hsche/edureg/pkg/dashboard"
)

// EventSelectTab switches the dashboard tab without a page load.
const EventSelectTab = "select_tab"

// Dashboard is the live analytics page.
type Dashboard struct {
	core.BaseComponent

	app *App
	tab string
}

// NewDashboard creates an unmounted Dashboard.
func (a *App) NewDashboard() core.Component {
	return &Dashboard{app: a}
}

func (d *Dashboard) Name() string {
	return "dashboard"
}

func (d *Dashboard) Mount(ctx context.Context, params core.Params, session core.Session) error {
	d.tab = dashboard.LookupTab(params.Get("tab")).ID
	return nil
}

func (d *Dashboard) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	if event != EventSelectTab {
		return fmt.Errorf("dashboard: unknown event %q", event)
	}
	tab, _ := payload["tab"].(string)
	d.tab = dashboard.LookupTab(tab).ID
	return nil
}

func (d *Dashboard) Render(ctx context.Context) core.Renderer {
	body, err := components.RenderDashboard(dashboard.Build(d.app.catalog.Institutions(), d.tab))
	if err != nil {
		return core.RendererFunc(func(context.Context, io.Writer) error { return err })
	}
	if core.SocketFromContext(ctx) != nil {
		return htmlRenderer(body)
	}
	return htmlRenderer(d.app.document(ctx, "Dashboard", "/dashboard", body, website.PlotlyScript))
}
