// Package render turns structured edition content into a self-contained
// HTML document suitable for direct use as an email body.
package render

import (
	"fmt"
	"html/template"
	"strings"

	"TechDigest/internal/domain"
)

// UnsubscribePlaceholder is the marker emitted as the unsubscribe anchor
// target. The publisher substitutes it once per recipient; the visible
// anchor text "Unsubscribe" never changes.
const UnsubscribePlaceholder = "%%UNSUBSCRIBE_URL%%"

const editionTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="background-color:#f6f9fc;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,'Helvetica Neue',Ubuntu,sans-serif;margin:0;">
<div style="background-color:#ffffff;margin:0 auto;max-width:600px;">
<div style="background-color:#fbbf24;padding:20px;text-align:center;">
<h1 style="color:#1e293b;font-size:32px;font-weight:bold;margin:0;">TECH DIGEST</h1>
<p style="color:#475569;font-size:14px;margin:5px 0 0;text-transform:uppercase;letter-spacing:2px;">Daily Edition</p>
</div>
<div style="padding:40px;">
<h2 style="color:#111827;font-size:26px;line-height:1.3;margin:0 0 20px;">{{.Title}}</h2>
<p style="color:#374151;font-size:18px;line-height:28px;margin:0 0 20px;">{{.Intro}}</p>
<hr style="border:none;border-top:1px solid #e5e7eb;margin:30px 0;">
{{- if .QuickTakes}}
<div style="margin-bottom:40px;">
<h3 style="color:#fbbf24;font-size:14px;font-weight:bold;text-transform:uppercase;letter-spacing:1.5px;margin:0 0 20px;border-bottom:2px solid #fbbf24;padding-bottom:5px;">QUICK TAKES</h3>
<ul style="color:#4b5563;font-size:15px;line-height:24px;margin:0;padding-left:20px;">
{{- range .QuickTakes}}
<li style="margin-bottom:8px;">{{.}}</li>
{{- end}}
</ul>
</div>
{{- end}}
{{- range .Categories}}
<div style="margin-bottom:40px;">
<h3 style="color:#fbbf24;font-size:14px;font-weight:bold;text-transform:uppercase;letter-spacing:1.5px;margin:0 0 20px;border-bottom:2px solid #fbbf24;padding-bottom:5px;">{{.Name}}</h3>
{{- range .Items}}
<div style="margin-bottom:25px;">
<h4 style="color:#111827;font-size:20px;font-weight:bold;line-height:1.4;margin:0 0 12px;">{{.Headline}}</h4>
{{- range .Paragraphs}}
<p style="color:#4b5563;font-size:16px;line-height:26px;margin:0 0 12px;">{{.}}</p>
{{- end}}
<a href="{{.Link}}" style="color:#2563eb;font-size:14px;text-decoration:none;">Read the original source &rarr;</a>
</div>
{{- end}}
</div>
{{- end}}
<div style="background-color:#f8fafc;padding:30px;text-align:center;margin-top:40px;border-top:1px solid #e2e8f0;">
<p style="color:#94a3b8;font-size:12px;line-height:20px;">Tech Digest. All rights reserved.<br>
<a href="%%UNSUBSCRIBE_URL%%" style="color:#94a3b8;text-decoration:underline;">Unsubscribe</a></p>
</div>
</div>
</div>
</body>
</html>
`

type itemView struct {
	Headline   string
	Paragraphs []string
	Link       string
}

type categoryView struct {
	Name  string
	Items []itemView
}

type editionView struct {
	Title      string
	Intro      string
	QuickTakes []string
	Categories []categoryView
}

// Renderer is a pure transform; it performs no network or storage calls.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the edition template once.
func NewRenderer() *Renderer {
	return &Renderer{
		tmpl: template.Must(template.New("edition").Parse(editionTemplate)),
	}
}

// Render produces the email HTML. Identical content yields byte-identical
// output; there is no timestamp or randomness in the document.
func (r *Renderer) Render(content domain.EditionContent) (string, error) {
	view := editionView{
		Title:      content.Title,
		Intro:      content.Intro,
		QuickTakes: content.QuickTakes,
	}

	for _, cat := range content.Categories {
		cv := categoryView{Name: cat.Name}
		for _, item := range cat.Items {
			cv.Items = append(cv.Items, itemView{
				Headline:   item.Headline,
				Paragraphs: splitParagraphs(item.Story),
				Link:       item.Link,
			})
		}
		view.Categories = append(view.Categories, cv)
	}

	var out strings.Builder
	if err := r.tmpl.Execute(&out, view); err != nil {
		return "", fmt.Errorf("execute edition template: %w", err)
	}
	return out.String(), nil
}

// Personalize rewrites the unsubscribe marker to the recipient's own URL.
func Personalize(html, unsubscribeURL string) string {
	return strings.Replace(html, UnsubscribePlaceholder, unsubscribeURL, 1)
}

// splitParagraphs breaks story text on its explicit "\n" markers, dropping
// blank fragments left by doubled breaks.
func splitParagraphs(story string) []string {
	parts := strings.Split(story, "\n")
	paragraphs := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}
