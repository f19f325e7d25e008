// Package report renders investigation findings for people: Markdown and
// HTML evidence reports and a plain-text risk dashboard.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/taljindergill78/FSE570/internal/entities"
	"github.com/taljindergill78/FSE570/internal/graph"
	"github.com/taljindergill78/FSE570/internal/util"
)

const (
	title        = "Investigation Evidence Report"
	summaryRunes = 200
	missingDate  = "N/A"
)

// Options carries the optional report header and graph summary.
type Options struct {
	Query    string
	EntityID string
	Graph    *graph.Summary
}

type section struct {
	Heading  string
	Findings []entities.Evidence
}

// groupByRisk buckets findings in the fixed category order, dropping empty
// buckets and categories outside that order.
func groupByRisk(findings []entities.Evidence) []section {
	buckets := make(map[entities.RiskCategory][]entities.Evidence)
	for _, e := range findings {
		buckets[e.RiskCategory] = append(buckets[e.RiskCategory], e)
	}
	var out []section
	for _, cat := range entities.RiskCategories {
		if len(buckets[cat]) == 0 {
			continue
		}
		out = append(out, section{Heading: heading(cat), Findings: buckets[cat]})
	}
	return out
}

func heading(cat entities.RiskCategory) string {
	words := strings.Fields(strings.ReplaceAll(string(cat), "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func dateOrNA(date string) string {
	if date == "" {
		return missingDate
	}
	return date
}

// Markdown renders findings grouped by risk category with dates, confidence
// and source links. The output ends with a single newline.
func Markdown(findings []entities.Evidence, opts Options) string {
	var b strings.Builder
	b.WriteString("# " + title + "\n\n")
	if opts.Query != "" {
		fmt.Fprintf(&b, "**Query:** %s\n\n", opts.Query)
	}
	if opts.EntityID != "" {
		fmt.Fprintf(&b, "**Entity:** `%s`\n\n", opts.EntityID)
	}
	fmt.Fprintf(&b, "**Total findings:** %d\n\n", len(findings))

	for _, s := range groupByRisk(findings) {
		fmt.Fprintf(&b, "## %s\n\n", s.Heading)
		for _, e := range s.Findings {
			fmt.Fprintf(&b, "- **%s**\n", util.Ellipsize(e.Summary, summaryRunes))
			fmt.Fprintf(&b, "  - Date: %s | Confidence: %.2f\n", dateOrNA(e.Date), e.Confidence)
			if e.SourceURI != "" {
				fmt.Fprintf(&b, "  - Source: [%s](%s)\n", e.SourceURI, e.SourceURI)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if opts.Graph != nil {
		b.WriteString("## Knowledge Graph Summary\n\n")
		fmt.Fprintf(&b, "- Nodes: %d (entities: %d, evidence: %d)\n", opts.Graph.Nodes, opts.Graph.EntityNodes, opts.Graph.EvidenceNodes)
		fmt.Fprintf(&b, "- Edges: %d\n", opts.Graph.Edges)
	}
	return strings.TrimSpace(b.String()) + "\n"
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"summary": func(s string) string { return util.Ellipsize(s, summaryRunes) },
	"date":    dateOrNA,
	"conf":    func(c float64) string { return fmt.Sprintf("%.2f", c) },
}).Parse(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>Evidence Report</title></head><body>
<h1>{{.Title}}</h1>
{{- if .Query}}
<p><strong>Query:</strong> {{.Query}}</p>
{{- end}}
{{- if .EntityID}}
<p><strong>Entity:</strong> <code>{{.EntityID}}</code></p>
{{- end}}
<p><strong>Total findings:</strong> {{.Total}}</p>
{{- range .Sections}}
<h2>{{.Heading}}</h2>
<ul>
{{- range .Findings}}
<li><strong>{{summary .Summary}}</strong><br>Date: {{date .Date}} | Confidence: {{conf .Confidence}}
{{- if .SourceURI}}<br><a href="{{.SourceURI}}">Source</a>{{end}}</li>
{{- end}}
</ul>
{{- end}}
{{- with .Graph}}
<h2>Knowledge Graph Summary</h2>
<p>Nodes: {{.Nodes}} (entities: {{.EntityNodes}}, evidence: {{.EvidenceNodes}}) | Edges: {{.Edges}}</p>
{{- end}}
</body></html>`))

// HTML renders the same content as Markdown as a standalone page. All
// evidence text is escaped.
func HTML(findings []entities.Evidence, opts Options) (string, error) {
	data := struct {
		Title    string
		Query    string
		EntityID string
		Total    int
		Sections []section
		Graph    *graph.Summary
	}{title, opts.Query, opts.EntityID, len(findings), groupByRisk(findings), opts.Graph}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render html report: %w", err)
	}
	return buf.String(), nil
}
