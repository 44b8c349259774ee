package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const reportCSS = "html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;} " +
	"body{font-family:-apple-system,'Segoe UI',Helvetica,Arial,sans-serif;color:#0f172a;background:#fff;padding:0.6rem;font-size:11px;} " +
	".report{max-width:1100px;margin:0 auto;} " +
	"h1{font-size:1.6rem;border-bottom:3px solid #312e81;padding-bottom:0.3rem;} " +
	"h2{font-size:1.15rem;color:#1e3a8a;margin-top:1.2rem;} " +
	"table{width:100%;border-collapse:collapse;border:1px solid #94a3b8;font-size:0.8rem;} " +
	"th,td{border:1px solid #94a3b8;padding:0.3rem 0.4rem;text-align:left;vertical-align:top;} " +
	"thead th{background:#e0e7ff;font-weight:700;} " +
	"td[data-missing='true']{color:#94a3b8;} " +
	`h2[data-page-break-before="true"]{break-before:page;page-break-before:always;} ` +
	"@media print{ @page{size:auto;margin:12mm;} body{padding:0;} .report{max-width:none;} }"

var (
	rankedHeadingRe = regexp.MustCompile(`(?i)<h2([^>]*)>\s*Ranked Providers\s*</h2>`)
	missingCellRe   = regexp.MustCompile(`<td>` + MissingDate + `</td>`)
)

// RenderHTML converts a Markdown report into a standalone HTML page.
func RenderHTML(title, markdown string) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	if strings.TrimSpace(title) == "" {
		title = "HCP Targeting Report"
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + reportCSS + "</style></head><body>" +
		"<div class='report'>" + applyPrintLayoutHooks(content.String()) + "</div>" +
		"</body></html>", nil
}

func applyPrintLayoutHooks(contentHTML string) string {
	out := rankedHeadingRe.ReplaceAllString(contentHTML, `<h2$1 data-page-break-before="true">Ranked Providers</h2>`)
	return missingCellRe.ReplaceAllString(out, `<td data-missing="true">`+MissingDate+`</td>`)
}
