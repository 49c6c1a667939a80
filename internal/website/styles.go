package website

import (
	"fmt"
	"sort"
	"strings"
)

// Colors is the site palette. Text colors keep a 4.5:1 contrast on bg.
var Colors = map[string]string{
	"bg":        "#F8FAFC",
	"bgAlt":     "#FFFFFF",
	"bgHover":   "#F1F5F9",
	"text":      "#0F172A",
	"textMuted": "#475569",
	"textDim":   "#64748B",

	"primary":       "#1E40AF",
	"primaryBright": "#2563EB",
	"accent":        "#FF6B35",

	"success": "#047857",
	"warning": "#B45309",
	"danger":  "#B91C1C",
	"info":    "#1D4ED8",

	"border":      "#E2E8F0",
	"borderLight": "#CBD5E1",
}

// FontFamily uses the system font stack.
var FontFamily = `system-ui, -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif`

// RenderStyles generates the complete CSS for the site.
func RenderStyles() string {
	var sb strings.Builder
	sb.WriteString(cssReset())
	sb.WriteString(cssVariables(Colors))
	sb.WriteString(cssBase())
	sb.WriteString(cssLayout())
	sb.WriteString(cssNav())
	sb.WriteString(cssButtons())
	sb.WriteString(cssWizard())
	sb.WriteString(cssFields())
	sb.WriteString(cssDashboard())
	sb.WriteString(cssDialog())
	sb.WriteString(cssAccessibility())
	sb.WriteString(cssResponsive())
	return sb.String()
}

func cssReset() string {
	return `
*,*::before,*::after{box-sizing:border-box;margin:0;padding:0}
html{-webkit-text-size-adjust:100%;tab-size:4}
body{line-height:1.6;-webkit-font-smoothing:antialiased}
input,button,textarea,select{font:inherit}
a{color:inherit;text-decoration:none}
ul,ol{list-style:none}
`
}

func cssVariables(colors map[string]string) string {
	names := make([]string, 0, len(colors))
	for name := range colors {
		names = append(names, name)
	}
	sort.Strings(names)

	vars := make([]string, 0, len(names))
	for _, name := range names {
		vars = append(vars, fmt.Sprintf("--color-%s:%s", name, colors[name]))
	}
	return fmt.Sprintf(":root{%s;--font-sans:%s}\n", strings.Join(vars, ";"), FontFamily)
}

func cssBase() string {
	return `
body{font-family:var(--font-sans);background:var(--color-bg);color:var(--color-text);min-height:100vh}
h1{font-size:clamp(1.5rem,3vw,2.25rem);font-weight:800;line-height:1.2}
h2{font-size:1.375rem;font-weight:700;line-height:1.3}
h3{font-size:1.125rem;font-weight:600}
p{color:var(--color-textMuted)}
`
}

func cssLayout() string {
	return `
.container{width:100%;max-width:1200px;margin:0 auto;padding:0 1rem}
.section{padding:2rem 0}
.grid{display:grid;gap:1rem;grid-template-columns:1fr}
.flex{display:flex}.items-center{align-items:center}.justify-between{justify-content:space-between}.gap-sm{gap:0.5rem}
.footer{border-top:1px solid var(--color-border);padding:1.5rem 0;font-size:0.875rem;color:var(--color-textDim)}
`
}

func cssNav() string {
	return `
.nav{position:sticky;top:0;z-index:100;background:var(--color-bgAlt);border-bottom:1px solid var(--color-border)}
.nav-inner{display:flex;align-items:center;justify-content:space-between;gap:0.5rem;padding:0.75rem 0}
.nav-links{display:none;gap:0.25rem}
.nav-link{padding:0.5rem 0.75rem;border-radius:0.5rem;color:var(--color-textMuted)}
.nav-link.active,.nav-link:hover{color:var(--color-primary);background:var(--color-bgHover)}
.logo{font-weight:800;color:var(--color-primary)}
.pager{display:flex;align-items:center;justify-content:space-between;gap:1rem;padding:0.75rem 0;font-size:0.9rem}
.pager-status{color:var(--color-textMuted)}
`
}

func cssButtons() string {
	return `
.btn{display:inline-flex;align-items:center;justify-content:center;gap:0.5rem;padding:0.6rem 1.1rem;font-weight:600;border-radius:0.5rem;border:1px solid transparent;cursor:pointer;min-height:2.75rem}
.btn:focus-visible{outline:2px solid var(--color-primary);outline-offset:2px}
.btn-primary{background:var(--color-primary);color:#FFFFFF}
.btn-primary:hover{background:var(--color-primaryBright)}
.btn-secondary{background:var(--color-bgAlt);color:var(--color-text);border-color:var(--color-border)}
.btn-ghost{background:transparent;color:var(--color-textMuted)}
.btn[disabled]{opacity:0.5;cursor:not-allowed}
`
}

func cssWizard() string {
	return `
.wizard{max-width:860px;margin:0 auto}
.wizard-header{margin:1.5rem 0}
.progress{display:block;width:100%;height:0.5rem;margin:1rem 0;accent-color:var(--color-accent)}
.steps{display:flex;flex-wrap:wrap;gap:0.5rem;margin-bottom:1rem}
.step{display:flex;align-items:center;gap:0.4rem;padding:0.35rem 0.75rem;border-radius:9999px;border:1px solid var(--color-border);background:var(--color-bgAlt);font-size:0.85rem;cursor:pointer}
.step.active{border-color:var(--color-primary);color:var(--color-primary);font-weight:700}
.step.completed{border-color:var(--color-success);color:var(--color-success)}
.step[disabled]{cursor:not-allowed;opacity:0.55}
.wizard-card{background:var(--color-bgAlt);border:1px solid var(--color-border);border-radius:1rem;padding:1.5rem}
.wizard-card-subtitle{margin-bottom:1.25rem}
.wizard-actions{display:flex;justify-content:space-between;gap:0.75rem;margin-top:1.5rem}
.banner{padding:1rem 1.25rem;border-radius:0.75rem;margin-bottom:1rem}
.banner-success{background:#ECFDF5;color:var(--color-success);border:1px solid #A7F3D0}
.banner-error{background:#FEF2F2;color:var(--color-danger);border:1px solid #FECACA}
.review-section{margin-bottom:1.25rem}
.review-list{display:grid;grid-template-columns:1fr;gap:0.25rem 1rem}
.review-list dt{font-weight:600}
.review-list dd{color:var(--color-textMuted)}
`
}

func cssFields() string {
	return `
.form-group{margin-bottom:1rem}
.form-label{display:block;font-weight:600;margin-bottom:0.35rem}
.required{color:var(--color-danger)}
.form-input{width:100%;padding:0.6rem 0.75rem;border:1px solid var(--color-borderLight);border-radius:0.5rem;background:#FFFFFF}
.form-input.error{border-color:var(--color-danger)}
.form-hint{font-size:0.8rem;color:var(--color-textDim);margin-top:0.25rem}
.form-error{font-size:0.85rem;color:var(--color-danger);margin-top:0.25rem}
.choice{display:flex;align-items:center;gap:0.4rem;margin-right:1rem}
`
}

func cssDashboard() string {
	return `
.tabs{display:flex;flex-wrap:wrap;gap:0.5rem;margin:1rem 0}
.tab{padding:0.5rem 1rem;border-radius:0.5rem;border:1px solid var(--color-border);background:var(--color-bgAlt)}
.tab.active{background:var(--color-primary);color:#FFFFFF;border-color:var(--color-primary)}
.cards{display:grid;grid-template-columns:1fr;gap:1rem;margin-bottom:1rem}
.card{background:var(--color-bgAlt);border:1px solid var(--color-border);border-radius:0.75rem;padding:1.25rem}
.card-value{font-size:1.75rem;font-weight:800;color:var(--color-primary);font-variant-numeric:tabular-nums}
.card-label{font-size:0.875rem;color:var(--color-textMuted)}
.chart{min-height:400px}
`
}

func cssDialog() string {
	return `
.dialog{border:1px solid var(--color-border);border-radius:1rem;padding:1.5rem;max-width:420px;width:100%}
.dialog::backdrop{background:rgba(15,23,42,0.45)}
.toast{position:fixed;right:1rem;bottom:1rem;padding:0.75rem 1rem;border-radius:0.5rem;background:var(--color-text);color:#FFFFFF}
`
}

func cssAccessibility() string {
	return `
.sr-only{position:absolute;width:1px;height:1px;padding:0;margin:-1px;overflow:hidden;clip:rect(0,0,0,0);white-space:nowrap;border:0}
.skip-link{position:absolute;top:-40px;left:0;background:var(--color-primary);color:#FFFFFF;padding:0.5rem 1rem;z-index:1000}
.skip-link:focus{top:0}
@media(prefers-reduced-motion:reduce){*{transition-duration:0.01ms!important}}
`
}

func cssResponsive() string {
	return `
@media(min-width:640px){
.nav-links{display:flex}
.review-list{grid-template-columns:minmax(12rem,1fr) 2fr}
}
@media(min-width:768px){
.grid-2{grid-template-columns:repeat(2,1fr)}
.cards{grid-template-columns:repeat(4,1fr)}
.section{padding:3rem 0}
}
`
}
