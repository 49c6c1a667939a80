package components

import (
	"fmt"
	"html"
)

// RenderPager renders the "Page N of M" subheader with previous and next
// links. n is expected to be clamped already.
func RenderPager(n, total int, title string) string {
	prev := `<span class="btn btn-ghost" aria-disabled="true">Previous</span>`
	if n > 1 {
		prev = fmt.Sprintf(`<a class="btn btn-ghost" href="/form/page%d" rel="prev">Previous</a>`, n-1)
	}
	next := `<span class="btn btn-ghost" aria-disabled="true">Next</span>`
	if n < total {
		next = fmt.Sprintf(`<a class="btn btn-ghost" href="/form/page%d" rel="next">Next</a>`, n+1)
	}
	return fmt.Sprintf(`<div class="pager">%s<span class="pager-status">Page %d of %d: %s</span>%s</div>`+"\n",
		prev, n, total, html.EscapeString(title), next)
}
