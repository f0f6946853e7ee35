// Package selection tracks what the user picked for the next analysis run:
// target entities, keywords, a date range and a data connection.
package selection

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

// DateLayout is the form start and end dates are kept in.
const DateLayout = "2006-01-02"

// Coordinator holds the in-progress analysis selection. It is safe for
// concurrent use.
type Coordinator struct {
	mu           sync.RWMutex
	entities     []string
	keywords     []string
	startDate    string
	endDate      string
	connectionID *int64
}

// New returns a coordinator with nothing selected and the last 30 days as
// the date range.
func New(now time.Time) *Coordinator {
	c := &Coordinator{}
	c.startDate, c.endDate = Last30Days.Range(now)
	return c
}

// Toggle adds name to the selection, or removes it if already selected.
func (c *Coordinator) Toggle(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := slices.Index(c.entities, name); i >= 0 {
		c.entities = slices.Delete(c.entities, i, i+1)
		return
	}
	c.entities = append(c.entities, name)
}

// SelectAll replaces the selection with a copy of names. Later changes to
// the loaded entities do not affect it.
func (c *Coordinator) SelectAll(names []string) {
	selected := make([]string, 0, len(names))
	for _, n := range names {
		if !slices.Contains(selected, n) {
			selected = append(selected, n)
		}
	}

	c.mu.Lock()
	c.entities = selected
	c.mu.Unlock()
}

func (c *Coordinator) DeselectAll() {
	c.mu.Lock()
	c.entities = nil
	c.mu.Unlock()
}

func (c *Coordinator) IsSelected(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.entities, name)
}

// Selected returns a copy of the selected entity names in selection order.
func (c *Coordinator) Selected() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.entities)
}

// SetKeywords stores keywords as given.
func (c *Coordinator) SetKeywords(keywords []string) {
	c.mu.Lock()
	c.keywords = slices.Clone(keywords)
	c.mu.Unlock()
}

// SetKeywordsInput parses a comma-separated input and stores the result.
func (c *Coordinator) SetKeywordsInput(raw string) {
	c.SetKeywords(ParseKeywords(raw))
}

// ParseKeywords splits raw on commas, trims each segment and drops empty
// ones. Order and duplicates are kept.
func ParseKeywords(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SetDateRange stores the range as given. Ordering is not checked here.
func (c *Coordinator) SetDateRange(start, end string) {
	c.mu.Lock()
	c.startDate, c.endDate = start, end
	c.mu.Unlock()
}

// ApplyPreset sets the date range to preset p ending today.
func (c *Coordinator) ApplyPreset(p Preset, now time.Time) {
	c.SetDateRange(p.Range(now))
}

func (c *Coordinator) SetConnection(id int64) {
	c.mu.Lock()
	c.connectionID = &id
	c.mu.Unlock()
}

func (c *Coordinator) ClearConnection() {
	c.mu.Lock()
	c.connectionID = nil
	c.mu.Unlock()
}

// Connection returns the selected connection id.
func (c *Coordinator) Connection() (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.connectionID == nil {
		return 0, false
	}
	return *c.connectionID, true
}

// Snapshot is a point-in-time copy of the selection
type Snapshot struct {
	Entities     []string
	Keywords     []string
	StartDate    string
	EndDate      string
	ConnectionID *int64
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Entities:  slices.Clone(c.entities),
		Keywords:  slices.Clone(c.keywords),
		StartDate: c.startDate,
		EndDate:   c.endDate,
	}
	if c.connectionID != nil {
		id := *c.connectionID
		s.ConnectionID = &id
	}
	return s
}

// BuildPayload assembles an analysis request from the current selection.
// A missing connection or an empty entity selection is a ValidationError.
func (c *Coordinator) BuildPayload() (model.AnalysisPayload, error) {
	s := c.Snapshot()
	if s.ConnectionID == nil {
		return model.AnalysisPayload{}, errs.Validation("connection", "select a database connection")
	}
	if len(s.Entities) == 0 {
		return model.AnalysisPayload{}, errs.Validation("entities", "select at least one entity")
	}

	keywords := s.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return model.AnalysisPayload{
		Entities:     s.Entities,
		Keywords:     keywords,
		StartDate:    s.StartDate,
		EndDate:      s.EndDate,
		ConnectionID: *s.ConnectionID,
	}, nil
}
