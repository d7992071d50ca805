// Package renderer turns report structs into markdown through embedded
// templates. The CLI pipes the result through glamour for terminal display.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/mwtsai/folio"
	"github.com/mwtsai/folio/broker"
)

//go:embed templates/*.md
var templates embed.FS

// RenderSummary renders a valued portfolio summary to markdown.
func RenderSummary(s *folio.Summary) string {
	partials := map[string]string{
		"summary_account": "summary_account.md",
	}
	return renderTemplate("summary", "summary.md", partials, s)
}

// RenderGains renders a capital gains report to markdown.
func RenderGains(g *folio.GainsReport) string {
	return renderTemplate("gains", "gains.md", nil, g)
}

// RenderHistory renders an account's transaction history to markdown.
func RenderHistory(h *folio.HistoryReport) string {
	return renderTemplate("history", "history.md", nil, h)
}

// RenderHoldings renders an unvalued holdings listing to markdown.
func RenderHoldings(h *folio.HoldingsReport) string {
	return renderTemplate("holdings", "holdings.md", nil, h)
}

// RenderOrders renders a planned order listing to markdown.
func RenderOrders(orders []folio.PlannedOrder) string {
	return renderTemplate("orders", "orders.md", nil, orders)
}

// RenderImportReport renders the outcome of one import batch to markdown.
func RenderImportReport(r *folio.Report) string {
	return renderTemplate("import", "import.md", nil, r)
}

// RenderSyncReport renders a broker drift verification to markdown.
func RenderSyncReport(r broker.Report) string {
	return renderTemplate("sync", "sync.md", nil, r)
}

// funcs are the helpers available inside every template.
var funcs = template.FuncMap{
	"join": strings.Join,
}

// renderTemplate is a generic utility to render a main template that depends
// on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, "templates/"+mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		content, err := fs.ReadFile(templates, "templates/"+file)
		if err != nil {
			return fmt.Sprintf("error reading partial template %q: %v", file, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
