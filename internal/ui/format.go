package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/Ashfaaq98/dossier-console/internal/findings"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

// findingColumns are the findings table headers. The first four follow
// findings.SortKeys so keys 1-4 sort by them.
var findingColumns = []string{"Entidade", "Título", "Risco", "Coleta", "Score", "Categoria"}

var jobColumns = []string{"ID", "Status", "Gatilho", "Início", "Duração", "Resultado"}

// sortKeyForDigit maps the keys 1-4 onto sort columns.
func sortKeyForDigit(r rune) (findings.SortKey, bool) {
	i := int(r - '1')
	if i < 0 || i >= len(findings.SortKeys) {
		return "", false
	}
	return findings.SortKeys[i], true
}

// columnSortKey is the sort key behind a findings column, if any.
func columnSortKey(col int) findings.SortKey {
	switch col {
	case 0:
		return findings.SortEntityName
	case 1:
		return findings.SortTitle
	case 2:
		return findings.SortRiskLevel
	case 3:
		return findings.SortDataColeta
	}
	return findings.SortNone
}

// headerLabel appends an arrow to the active sort column.
func headerLabel(col int, s findings.Sort) string {
	label := findingColumns[col]
	key := columnSortKey(col)
	if key == findings.SortNone || key != s.Key {
		return label
	}
	if s.Order == findings.Asc {
		return label + " ▲"
	}
	return label + " ▼"
}

// truncate shortens s to n runes, marking the cut.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// shortTimestamp renders a collection timestamp as "2006-01-02 15:04", or the
// raw string when it does not parse.
func shortTimestamp(s string) string {
	t, err := model.ParseTimestamp(s)
	if err != nil {
		return s
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04")
}

func findingRow(f model.Finding) []string {
	return []string{
		truncate(f.EntityName, 24),
		truncate(f.Title, 60),
		string(f.RiskLevel),
		shortTimestamp(f.DataColeta),
		fmt.Sprintf("%.2f", f.RiskScore),
		truncate(f.Categoria, 18),
	}
}

func jobRow(j model.ExecutionJob, now time.Time) []string {
	started := "-"
	if j.IniciadoEm != nil {
		started = j.IniciadoEm.Local().Format("2006-01-02 15:04")
	}
	result := ""
	if j.Resultado != nil {
		result = truncate(*j.Resultado, 50)
	}
	return []string{
		fmt.Sprintf("%d", j.ID),
		string(j.Status),
		j.TipoGatilho,
		started,
		findings.JobDuration(j, now),
		result,
	}
}

// statsLine renders the risk counters shown above the table.
func statsLine(t Theme, s findings.Stats) string {
	return fmt.Sprintf("[%s]Total[-] %d   [%s]ALTO[-] %d   [%s]MÉDIO[-] %d   [%s]BAIXO[-] %d",
		t.TagAccent, s.Total,
		t.TagRiskHigh, s.High,
		t.TagRiskMedium, s.Medium,
		t.TagRiskLow, s.Low)
}

func jobStatsLine(t Theme, s findings.JobStats) string {
	return fmt.Sprintf("[%s]Jobs[-] %d   [%s]pending[-] %d   [%s]running[-] %d   [%s]completed[-] %d   [%s]failed[-] %d",
		t.TagAccent, s.Total,
		t.TagMuted, s.Pending,
		t.TagWarning, s.Running,
		t.TagSuccess, s.Completed,
		t.TagError, s.Failed)
}

// entityLabel is one line of the entity list.
func entityLabel(e model.MonitoredEntity, selected bool) string {
	box := "[ ]"
	if selected {
		box = "[x]"
	}
	return fmt.Sprintf("%s %s (%s)", box, e.Name, e.EntityType)
}

func connectionLabel(c model.DatabaseConnection) string {
	target := c.ServerAddress
	if target == "" {
		target = c.FilePath
	}
	dbType := c.DBType
	if dbType == "" {
		dbType = model.DBTypeSQLServer
	}
	if c.DatabaseName != "" {
		target += "/" + c.DatabaseName
	}
	return fmt.Sprintf("%s [%s] %s", c.ConnectionName, dbType, target)
}

// selectionSummary describes the pending analysis parameters.
func selectionSummary(entities, keywords []string, start, end string, conn string) string {
	if conn == "" {
		conn = "(none)"
	}
	kw := "(none)"
	if len(keywords) > 0 {
		kw = strings.Join(keywords, ", ")
	}
	return fmt.Sprintf("Entities: %d selected\nKeywords: %s\nPeriod: %s .. %s\nConnection: %s",
		len(entities), kw, start, end, conn)
}

// findingDetail renders the detail pane for f.
func findingDetail(t Theme, f model.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]%s[-]\n\n", t.TagAccent, tview.Escape(f.Title))
	fmt.Fprintf(&b, "Entity:    %s\n", tview.Escape(f.EntityName))
	fmt.Fprintf(&b, "Risk:      [%s]%s[-] (%.2f)\n", t.riskTag(f.RiskLevel), f.RiskLevel, f.RiskScore)
	fmt.Fprintf(&b, "Collected: %s\n", shortTimestamp(f.DataColeta))
	if f.Categoria != "" {
		fmt.Fprintf(&b, "Category:  %s\n", tview.Escape(f.Categoria))
	}
	if f.SourceURL != "" {
		fmt.Fprintf(&b, "Source:    %s\n", tview.Escape(f.SourceURL))
	}
	if f.Content != "" {
		fmt.Fprintf(&b, "\n%s\n", tview.Escape(f.Content))
	}
	return b.String()
}

// queryColumns returns the result columns, or the sorted map keys when the
// backend did not list them.
func queryColumns(cols []string, rows []map[string]any) []string {
	if len(cols) > 0 {
		return cols
	}
	seen := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			seen[k] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func cellValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return truncate(fmt.Sprint(v), 40)
}
