package cmd

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/dossier-console/internal/findings"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

var testNow = time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC)

// resetAnalyzeFlags restores the run flags after a test changes them.
func resetAnalyzeFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		analyzeEntities = nil
		analyzeAll = false
		analyzeKeywords = ""
		analyzeStart = ""
		analyzeEnd = ""
		analyzePreset = "30d"
		analyzeConnection = 0
	})
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestBuildSelectionByName(t *testing.T) {
	resetAnalyzeFlags(t)
	analyzeEntities = []string{"ACME S.A.", " Beta "}
	analyzeKeywords = "fraude, lavagem,  "
	analyzePreset = "7d"
	analyzeConnection = 3

	sel, err := buildSelection(testNow, []string{"ACME S.A.", "Beta", "Gama"})
	require.NoError(t, err)

	payload, err := sel.BuildPayload()
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME S.A.", "Beta"}, payload.Entities)
	assert.Equal(t, []string{"fraude", "lavagem"}, payload.Keywords)
	assert.Equal(t, "2024-06-23", payload.StartDate)
	assert.Equal(t, "2024-06-30", payload.EndDate)
	assert.Equal(t, int64(3), payload.ConnectionID)
}

func TestBuildSelectionAllWithDates(t *testing.T) {
	resetAnalyzeFlags(t)
	analyzeAll = true
	analyzeStart = "2024-01-01"
	analyzeEnd = "2024-03-31"

	sel, err := buildSelection(testNow, []string{"A", "B"})
	require.NoError(t, err)

	snap := sel.Snapshot()
	assert.Equal(t, []string{"A", "B"}, snap.Entities)
	assert.Equal(t, "2024-01-01", snap.StartDate)
	assert.Equal(t, "2024-03-31", snap.EndDate)
	assert.Nil(t, snap.ConnectionID)
}

func TestBuildSelectionErrors(t *testing.T) {
	resetAnalyzeFlags(t)

	analyzeEntities = []string{"Nobody"}
	_, err := buildSelection(testNow, []string{"ACME"})
	assert.ErrorContains(t, err, `unknown entity "Nobody"`)

	analyzeEntities = nil
	analyzeStart = "2024-01-01"
	_, err = buildSelection(testNow, nil)
	assert.ErrorContains(t, err, "--start and --end")

	analyzeStart = ""
	analyzePreset = "2w"
	_, err = buildSelection(testNow, nil)
	assert.ErrorContains(t, err, "unknown date preset")
}

func TestJobChanges(t *testing.T) {
	seen := make(map[int64]model.JobStatus)

	first := []model.ExecutionJob{{ID: 1, Status: model.JobPending}, {ID: 2, Status: model.JobCompleted}}
	assert.Len(t, jobChanges(seen, first), 2)
	assert.Empty(t, jobChanges(seen, first), "nothing changed")

	next := []model.ExecutionJob{{ID: 1, Status: model.JobRunning}, {ID: 2, Status: model.JobCompleted}, {ID: 3, Status: model.JobPending}}
	changed := jobChanges(seen, next)
	require.Len(t, changed, 2)
	assert.Equal(t, int64(1), changed[0].ID)
	assert.Equal(t, int64(3), changed[1].ID)
	assert.Equal(t, model.JobRunning, seen[1])
}

func TestAllDone(t *testing.T) {
	assert.True(t, allDone(nil))
	assert.True(t, allDone([]model.ExecutionJob{{Status: model.JobCompleted}, {Status: model.JobFailed}}))
	assert.False(t, allDone([]model.ExecutionJob{{Status: model.JobCompleted}, {Status: model.JobRunning}}))
}

func TestFindingsQuery(t *testing.T) {
	t.Cleanup(func() {
		findingsSearch, findingsRisk, findingsSort, findingsOrder = "", "", "", ""
	})

	findingsSearch = "acme"
	findingsRisk = "alto"
	findingsSort = "entity_name"
	findingsOrder = "ASC"
	q, err := findingsQuery()
	require.NoError(t, err)
	assert.Equal(t, "acme", q.Search)
	assert.Equal(t, findings.RiskFilter(model.RiskHigh), q.Risk)
	assert.Equal(t, findings.Sort{Key: findings.SortEntityName, Order: findings.Asc}, q.Sort)

	findingsRisk = "critical"
	_, err = findingsQuery()
	assert.Error(t, err)

	findingsRisk = ""
	findingsSort = "score"
	_, err = findingsQuery()
	assert.Error(t, err)
}

func TestResolvePasswordSkipsPrompt(t *testing.T) {
	t.Cleanup(func() { sqlPassword = "" })

	p, err := resolvePassword(model.DatabaseConnection{UseWindowsAuth: true})
	require.NoError(t, err)
	assert.Empty(t, p)

	p, err = resolvePassword(model.DatabaseConnection{DBType: "sqlite3", FilePath: "x.db"})
	require.NoError(t, err)
	assert.Empty(t, p)

	t.Setenv("DOSSIER_SQL_PASSWORD", "from-env")
	p, err = resolvePassword(model.DatabaseConnection{Username: "sa"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", p)

	sqlPassword = "from-flag"
	p, err = resolvePassword(model.DatabaseConnection{Username: "sa"})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", p)
}

func TestPrintConnection(t *testing.T) {
	id := int64(7)
	out := captureStdout(t, func() {
		printConnection(1, model.DatabaseConnection{
			ID: &id, ConnectionName: "prod", ServerAddress: `HOST\SQLEXPRESS`,
			DatabaseName: "Projeto_Dev", UseWindowsAuth: true,
		})
	})
	assert.Contains(t, out, "1. prod [sqlserver]")
	assert.Contains(t, out, "   ID: 7")
	assert.Contains(t, out, `   Server: HOST\SQLEXPRESS`)
	assert.Contains(t, out, "   Auth: Windows")

	out = captureStdout(t, func() {
		printConnection(2, model.DatabaseConnection{ConnectionName: "local", DBType: model.DBTypeSQLite, FilePath: "fonte.db"})
	})
	assert.Contains(t, out, "   File: fonte.db")
	assert.NotContains(t, out, "Server:")
}

func TestPrintQueryResult(t *testing.T) {
	t.Cleanup(func() { sqlMaxRows = 100 })
	sqlMaxRows = 1

	out := captureStdout(t, func() {
		printQueryResult(model.QueryResult{
			Success:  true,
			Columns:  []string{"id", "nome"},
			Data:     []map[string]any{{"id": 1, "nome": "ACME"}, {"id": 2, "nome": nil}},
			RowCount: 2,
		})
	})
	assert.Contains(t, out, "id")
	assert.Contains(t, out, "ACME")
	assert.Contains(t, out, "(2 rows, 1 shown)")
	assert.NotContains(t, out, "NULL", "the NULL row is cut")

	out = captureStdout(t, func() {
		printQueryResult(model.QueryResult{Success: true, Message: "Query executada com sucesso. 3 linhas afetadas."})
	})
	assert.Equal(t, "Query executada com sucesso. 3 linhas afetadas.\n", out)
}
