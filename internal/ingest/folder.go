// Package ingest imports findings dropped into a folder by collectors into
// the local snapshot cache.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Ashfaaq98/dossier-console/internal/model"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"

	// settleDelay is how long a file must stay quiet before it is read.
	settleDelay = 500 * time.Millisecond
)

// Sink receives the findings read from a file
type Sink interface {
	UpsertFindings(ctx context.Context, findings []model.Finding) (inserted, updated int, err error)
}

// FolderOptions controls ingest-folder behavior.
type FolderOptions struct {
	Dir      string
	Watch    bool
	Patterns []string // e.g. []string{"*.jsonl", "*.json"}
	Logger   *log.Logger
	// OnImport is called after each file is handled, successfully or not.
	OnImport func(FileResult)
}

// FileResult describes one handled file
type FileResult struct {
	Path     string
	Findings int
	Inserted int
	Updated  int
	Err      error
}

// Totals accumulates results over a run
type Totals struct {
	Files    int
	Failed   int
	Inserted int
	Updated  int
}

// FolderIngestor imports findings from a directory (one-shot or watch mode).
// A file is all or nothing: if any record in it is invalid, none are
// imported and the file goes to failed/.
type FolderIngestor struct {
	sink Sink
	opts FolderOptions

	mu      sync.Mutex
	pending map[string]time.Time // path -> last fs event
	totals  Totals
}

// NewFolderIngestor constructs a folder ingestor.
func NewFolderIngestor(sink Sink, opts FolderOptions) *FolderIngestor {
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[ingest] ", log.LstdFlags)
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = []string{"*.jsonl", "*.json"}
	}
	return &FolderIngestor{
		sink:    sink,
		opts:    opts,
		pending: make(map[string]time.Time),
	}
}

// Totals returns the counts so far.
func (fi *FolderIngestor) Totals() Totals {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.totals
}

// Run executes the ingestion per options (one-shot or watch).
func (fi *FolderIngestor) Run(ctx context.Context) error {
	for _, sub := range []string{ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(fi.opts.Dir, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", sub, err)
		}
	}

	if err := fi.scanOnce(ctx); err != nil {
		return err
	}

	if !fi.opts.Watch {
		t := fi.Totals()
		fi.opts.Logger.Printf("Completed one-shot import: files=%d failed=%d inserted=%d updated=%d",
			t.Files, t.Failed, t.Inserted, t.Updated)
		return nil
	}

	return fi.watchLoop(ctx)
}

func (fi *FolderIngestor) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, pat := range fi.opts.Patterns {
		p := strings.TrimSpace(strings.ToLower(pat))
		if ok, _ := filepath.Match(p, lower); ok {
			return true
		}
	}
	return false
}

func (fi *FolderIngestor) scanOnce(ctx context.Context) error {
	entries, err := os.ReadDir(fi.opts.Dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !fi.matches(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fi.handleFile(ctx, filepath.Join(fi.opts.Dir, e.Name()))
	}
	return nil
}

func (fi *FolderIngestor) watchLoop(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer w.Close()

	if err := w.Add(fi.opts.Dir); err != nil {
		return fmt.Errorf("watch add: %w", err)
	}

	fi.opts.Logger.Printf("Watching directory: %s (patterns: %s)", fi.opts.Dir, strings.Join(fi.opts.Patterns, ","))
	ticker := time.NewTicker(settleDelay / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t := fi.Totals()
			fi.opts.Logger.Printf("Watch stopping: files=%d failed=%d", t.Files, t.Failed)
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Dir(ev.Name) != filepath.Clean(fi.opts.Dir) || !fi.matches(filepath.Base(ev.Name)) {
				continue
			}
			fi.mu.Lock()
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				fi.pending[ev.Name] = time.Now()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(fi.pending, ev.Name)
			}
			fi.mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fi.opts.Logger.Printf("watch error: %v", err)
		case now := <-ticker.C:
			for _, path := range fi.settled(now) {
				fi.handleFile(ctx, path)
			}
		}
	}
}

// settled removes and returns the pending files that have been quiet for
// settleDelay.
func (fi *FolderIngestor) settled(now time.Time) []string {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	var ready []string
	for path, last := range fi.pending {
		if now.Sub(last) >= settleDelay {
			ready = append(ready, path)
			delete(fi.pending, path)
		}
	}
	return ready
}

// handleFile imports one file and moves it out of the inbox.
func (fi *FolderIngestor) handleFile(ctx context.Context, path string) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return
	}
	res := fi.importFile(ctx, path)

	dest := ProcessedDir
	if res.Err != nil {
		dest = FailedDir
		fi.opts.Logger.Printf("error importing %s: %v", path, res.Err)
	} else {
		fi.opts.Logger.Printf("Imported %s: %d findings (%d new, %d updated)", filepath.Base(path), res.Findings, res.Inserted, res.Updated)
	}
	if err := moveFile(path, filepath.Join(fi.opts.Dir, dest)); err != nil {
		fi.opts.Logger.Printf("failed to move %s to %s: %v", path, dest, err)
	}

	fi.mu.Lock()
	fi.totals.Files++
	if res.Err != nil {
		fi.totals.Failed++
	}
	fi.totals.Inserted += res.Inserted
	fi.totals.Updated += res.Updated
	fi.mu.Unlock()

	if fi.opts.OnImport != nil {
		fi.opts.OnImport(res)
	}
}

func (fi *FolderIngestor) importFile(ctx context.Context, path string) FileResult {
	res := FileResult{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}

	var findings []model.Finding
	if strings.HasSuffix(strings.ToLower(path), ".jsonl") {
		findings, err = ParseJSONL(data)
	} else {
		findings, err = ParseJSON(data)
	}
	if err != nil {
		res.Err = err
		return res
	}
	res.Findings = len(findings)
	if len(findings) == 0 {
		return res
	}

	res.Inserted, res.Updated, res.Err = fi.sink.UpsertFindings(ctx, findings)
	return res
}

// ParseJSON reads a single finding or an array of findings.
func ParseJSON(data []byte) ([]model.Finding, error) {
	trim := bytes.TrimSpace(data)
	if len(trim) == 0 {
		return nil, nil
	}

	var raws []json.RawMessage
	if trim[0] == '[' {
		if err := json.Unmarshal(trim, &raws); err != nil {
			return nil, fmt.Errorf("invalid findings array: %w", err)
		}
	} else {
		raws = []json.RawMessage{trim}
	}

	findings := make([]model.Finding, 0, len(raws))
	for i, raw := range raws {
		f, err := parseFinding(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// ParseJSONL reads one finding per line; blank lines are skipped.
func ParseJSONL(data []byte) ([]model.Finding, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var findings []model.Finding
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		f, err := parseFinding(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		findings = append(findings, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return findings, nil
}

// parseFinding decodes and validates one record. Risk levels are accepted
// in any casing and stored in canonical form.
func parseFinding(raw []byte) (model.Finding, error) {
	var f model.Finding
	if err := json.Unmarshal(raw, &f); err != nil {
		return model.Finding{}, err
	}
	if level, err := model.ParseRiskLevel(string(f.RiskLevel)); err == nil {
		f.RiskLevel = level
	}
	if err := f.Validate(); err != nil {
		return model.Finding{}, err
	}
	return f, nil
}

// moveFile moves path into dir. An existing file of the same name gets a
// timestamp suffix instead of being overwritten.
func moveFile(path, dir string) error {
	base := filepath.Base(path)
	dest := filepath.Join(dir, base)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(base)
		dest = filepath.Join(dir, fmt.Sprintf("%s.%d%s", strings.TrimSuffix(base, ext), time.Now().UnixNano(), ext))
	}
	return os.Rename(path, dest)
}
