package ingest

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/dossier-console/internal/model"
)

type memSink struct {
	mu       sync.Mutex
	findings map[int64]model.Finding
	err      error
}

func newMemSink() *memSink {
	return &memSink{findings: make(map[int64]model.Finding)}
}

func (m *memSink) UpsertFindings(_ context.Context, findings []model.Finding) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, 0, m.err
	}
	var inserted, updated int
	for _, f := range findings {
		if _, ok := m.findings[f.ID]; ok {
			updated++
		} else {
			inserted++
		}
		m.findings[f.ID] = f
	}
	return inserted, updated, nil
}

func (m *memSink) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.findings)
}

var quiet = log.New(io.Discard, "", 0)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseJSON(t *testing.T) {
	findings, err := ParseJSON([]byte(`[
		{"id": 1, "entity_name": "ACME", "risk_level": "alto", "data_coleta": "2024-01-02T10:00:00"},
		{"id": 2, "entity_name": "Beta", "risk_level": "MEDIO", "data_coleta": "2024-01-03"}
	]`))
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, model.RiskHigh, findings[0].RiskLevel)
	assert.Equal(t, model.RiskMedium, findings[1].RiskLevel)

	single, err := ParseJSON([]byte(`{"id": 3, "entity_name": "Gama", "risk_level": "BAIXO", "data_coleta": "2024-01-04"}`))
	require.NoError(t, err)
	assert.Len(t, single, 1)

	empty, err := ParseJSON([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseJSON([]byte(`[{"id": 0, "entity_name": "x", "risk_level": "ALTO", "data_coleta": "2024-01-01"}]`))
	assert.ErrorContains(t, err, "record 1")
}

func TestParseJSONL(t *testing.T) {
	findings, err := ParseJSONL([]byte(
		`{"id": 1, "entity_name": "ACME", "risk_level": "ALTO", "data_coleta": "2024-01-02"}` + "\n\n" +
			`{"id": 2, "entity_name": "Beta", "risk_level": "BAIXO", "data_coleta": "2024-01-03"}` + "\n"))
	require.NoError(t, err)
	assert.Len(t, findings, 2)

	_, err = ParseJSONL([]byte(`{"id": 1, "entity_name": "ACME", "risk_level": "ALTO", "data_coleta": "2024-01-02"}` + "\n" + `{not json}`))
	assert.ErrorContains(t, err, "line 2")
}

func TestOneShotImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lote1.json", `[{"id": 1, "entity_name": "ACME", "risk_level": "ALTO", "data_coleta": "2024-01-02"}]`)
	writeFile(t, dir, "lote2.jsonl", `{"id": 1, "entity_name": "ACME", "title": "revisado", "risk_level": "ALTO", "data_coleta": "2024-01-02"}`+"\n"+
		`{"id": 2, "entity_name": "Beta", "risk_level": "BAIXO", "data_coleta": "2024-01-03"}`)
	writeFile(t, dir, "ruim.json", `{"id": 5, "entity_name": "", "risk_level": "ALTO", "data_coleta": "2024-01-02"}`)
	writeFile(t, dir, "notas.txt", "ignored")

	sink := newMemSink()
	var results []FileResult
	fi := NewFolderIngestor(sink, FolderOptions{Dir: dir, Logger: quiet, OnImport: func(r FileResult) { results = append(results, r) }})
	require.NoError(t, fi.Run(context.Background()))

	assert.Equal(t, 2, sink.len())
	assert.Equal(t, "revisado", sink.findings[1].Title)
	assert.Len(t, results, 3)

	totals := fi.Totals()
	assert.Equal(t, 3, totals.Files)
	assert.Equal(t, 1, totals.Failed)
	assert.Equal(t, 2, totals.Inserted)
	assert.Equal(t, 1, totals.Updated)

	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "lote1.json"))
	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "lote2.jsonl"))
	assert.FileExists(t, filepath.Join(dir, FailedDir, "ruim.json"))
	assert.FileExists(t, filepath.Join(dir, "notas.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "lote1.json"))
}

func TestSinkFailureMovesFileToFailed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lote.json", `{"id": 1, "entity_name": "ACME", "risk_level": "ALTO", "data_coleta": "2024-01-02"}`)

	sink := newMemSink()
	sink.err = errors.New("disk full")
	fi := NewFolderIngestor(sink, FolderOptions{Dir: dir, Logger: quiet})
	require.NoError(t, fi.Run(context.Background()))

	assert.Equal(t, 1, fi.Totals().Failed)
	assert.FileExists(t, filepath.Join(dir, FailedDir, "lote.json"))
}

func TestMoveFileKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, ProcessedDir)
	require.NoError(t, os.MkdirAll(dest, 0o755))
	writeFile(t, dest, "a.json", "old")
	src := writeFile(t, dir, "a.json", "new")

	require.NoError(t, moveFile(src, dest))
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWatchImportsNewFiles(t *testing.T) {
	dir := t.TempDir()
	sink := newMemSink()
	imported := make(chan FileResult, 1)
	fi := NewFolderIngestor(sink, FolderOptions{
		Dir:      dir,
		Watch:    true,
		Logger:   quiet,
		OnImport: func(r FileResult) { imported <- r },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fi.Run(ctx) }()

	// Give the watcher time to start.
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, FailedDir))
		return err == nil
	}, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	writeFile(t, dir, "novo.jsonl", `{"id": 9, "entity_name": "ACME", "risk_level": "MÉDIO", "data_coleta": "2024-02-01"}`+"\n")

	select {
	case res := <-imported:
		require.NoError(t, res.Err)
		assert.Equal(t, 1, res.Inserted)
	case <-time.After(5 * time.Second):
		t.Fatal("file was not imported")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "novo.jsonl"))
}
