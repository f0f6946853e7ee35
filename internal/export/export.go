// Package export writes a findings view to a file for sharing outside the
// console.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
	"github.com/Ashfaaq98/dossier-console/internal/findings"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

// DefaultDir is where exports land unless told otherwise.
const DefaultDir = "exports"

type Format string

const (
	CSV      Format = "csv"
	JSON     Format = "json"
	YAML     Format = "yaml"
	Markdown Format = "md"
	HTML     Format = "html"
)

var Formats = []Format{CSV, JSON, YAML, Markdown, HTML}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "md", "markdown":
		return Markdown, nil
	case "html", "htm":
		return HTML, nil
	}
	return "", errs.InvalidArgument("unknown export format %q (want csv, json, yaml, md or html)", s)
}

// Filter describes the view the findings were taken from
type Filter struct {
	Search string `json:"search,omitempty" yaml:"search,omitempty"`
	Risk   string `json:"risk" yaml:"risk"`
	SortBy string `json:"sort_by,omitempty" yaml:"sort_by,omitempty"`
	Order  string `json:"order,omitempty" yaml:"order,omitempty"`
}

// Report is one exported view
type Report struct {
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
	Filter      Filter          `json:"filter" yaml:"filter"`
	Stats       findings.Stats  `json:"stats" yaml:"stats"`
	Findings    []model.Finding `json:"findings" yaml:"findings"`
}

// NewReport applies q to all and captures the result with its stats.
func NewReport(all []model.Finding, q findings.Query, now time.Time) (Report, error) {
	view, err := findings.Apply(all, q)
	if err != nil {
		return Report{}, err
	}
	risk := string(q.Risk)
	if risk == "" {
		risk = string(findings.All)
	}
	return Report{
		GeneratedAt: now,
		Filter: Filter{
			Search: q.Search,
			Risk:   risk,
			SortBy: string(q.Sort.Key),
			Order:  string(q.Sort.Order),
		},
		Stats:    findings.Summarize(view),
		Findings: view,
	}, nil
}

// Write renders r to w in format f.
func Write(w io.Writer, f Format, r Report) error {
	switch f {
	case CSV:
		return writeCSV(w, r)
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case Markdown:
		_, err := io.WriteString(w, markdown(r))
		return err
	case HTML:
		return writeHTML(w, r)
	}
	return errs.InvalidArgument("unknown export format %q", f)
}

// WriteFile writes r into dir under a timestamped name and returns the path.
func WriteFile(dir string, f Format, r Report) (string, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	name := fmt.Sprintf("findings_%s.%s", r.GeneratedAt.Format("20060102_150405"), f)
	path := filepath.Join(dir, name)

	var buf bytes.Buffer
	if err := Write(&buf, f, r); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

var csvHeader = []string{"id", "entity_name", "title", "risk_level", "risk_score", "data_coleta", "categoria", "source_url", "content"}

func writeCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, f := range r.Findings {
		record := []string{
			strconv.FormatInt(f.ID, 10),
			f.EntityName,
			f.Title,
			string(f.RiskLevel),
			strconv.FormatFloat(f.RiskScore, 'f', -1, 64),
			f.DataColeta,
			f.Categoria,
			f.SourceURL,
			f.Content,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func markdown(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Relatório de achados\n\n")
	fmt.Fprintf(&b, "Gerado em %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04"))
	if r.Filter.Search != "" {
		fmt.Fprintf(&b, "- Busca: `%s`\n", strings.ReplaceAll(r.Filter.Search, "`", "'"))
	}
	fmt.Fprintf(&b, "- Risco: %s\n", r.Filter.Risk)
	fmt.Fprintf(&b, "- Total: %d (ALTO %d, MÉDIO %d, BAIXO %d)\n\n", r.Stats.Total, r.Stats.High, r.Stats.Medium, r.Stats.Low)

	if len(r.Findings) == 0 {
		b.WriteString("Nenhum achado.\n")
		return b.String()
	}

	b.WriteString("| Entidade | Título | Risco | Score | Coleta | Fonte |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for _, f := range r.Findings {
		source := ""
		if f.SourceURL != "" {
			source = fmt.Sprintf("[link](%s)", cell(f.SourceURL))
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %.2f | %s | %s |\n",
			cell(f.EntityName), cell(f.Title), f.RiskLevel, f.RiskScore, cell(f.DataColeta), source)
	}
	return b.String()
}

// cell makes s safe inside a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

func writeHTML(w io.Writer, r Report) error {
	var body bytes.Buffer
	if err := md.Convert([]byte(markdown(r)), &body); err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	title := html.EscapeString("Relatório de achados " + r.GeneratedAt.Format("2006-01-02"))
	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
</style>
</head>
<body>
%s</body>
</html>
`, title, body.String())
	return err
}
