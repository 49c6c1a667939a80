package website

import (
	"fmt"
	"html"
	"strings"
)

// RenderHead generates the <head> section with inline styles.
func RenderHead(cfg PageConfig, customCSS string) string {
	var sb strings.Builder

	themeColor := cfg.ThemeColor
	if themeColor == "" {
		themeColor = Colors["primary"]
	}

	sb.WriteString("<head>\n")
	sb.WriteString(`<meta charset="UTF-8">` + "\n")
	sb.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1.0">` + "\n")
	sb.WriteString(fmt.Sprintf("<title>%s</title>\n", html.EscapeString(cfg.Title)))
	if cfg.Description != "" {
		sb.WriteString(fmt.Sprintf(`<meta name="description" content="%s">`+"\n", html.EscapeString(cfg.Description)))
	}
	sb.WriteString(fmt.Sprintf(`<meta name="theme-color" content="%s">`+"\n", html.EscapeString(themeColor)))
	sb.WriteString(`<link rel="icon" href="data:,">` + "\n")

	sb.WriteString("<style" + nonceAttr(cfg.Nonce) + ">\n")
	sb.WriteString(RenderStyles())
	if customCSS != "" {
		sb.WriteString("\n")
		sb.WriteString(customCSS)
	}
	sb.WriteString("\n</style>\n")
	sb.WriteString("</head>\n")

	return sb.String()
}

// RenderDocument wraps content in a complete HTML document and appends the
// configured scripts.
func RenderDocument(cfg PageConfig, customCSS, bodyContent string) string {
	lang := cfg.Language
	if lang == "" {
		lang = "en"
	}

	var scripts strings.Builder
	for _, src := range cfg.Scripts {
		scripts.WriteString(fmt.Sprintf(`<script src="%s"%s defer></script>`+"\n", html.EscapeString(src), nonceAttr(cfg.Nonce)))
	}
	if cfg.InlineScript != "" {
		scripts.WriteString(fmt.Sprintf("<script%s>%s</script>\n", nonceAttr(cfg.Nonce), cfg.InlineScript))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="%s">
%s<body>
%s
%s</body>
</html>`, html.EscapeString(lang), RenderHead(cfg, customCSS), bodyContent, scripts.String())
}

func nonceAttr(nonce string) string {
	if nonce == "" {
		return ""
	}
	return fmt.Sprintf(` nonce="%s"`, html.EscapeString(nonce))
}
