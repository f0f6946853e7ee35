package model

import (
	"fmt"
	"strings"
	"time"
)

// RiskLevel is the risk classification attached to a finding
type RiskLevel string

const (
	RiskLow    RiskLevel = "BAIXO"
	RiskMedium RiskLevel = "MÉDIO"
	RiskHigh   RiskLevel = "ALTO"
)

// RiskLevels lists the levels from lowest to highest.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

// ParseRiskLevel accepts any casing and the accent-free "MEDIO".
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BAIXO", "LOW":
		return RiskLow, nil
	case "MÉDIO", "MEDIO", "MEDIUM":
		return RiskMedium, nil
	case "ALTO", "HIGH":
		return RiskHigh, nil
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// Rank orders levels BAIXO < MÉDIO < ALTO; unknown levels rank 0.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	}
	return 0
}

// Finding is a single due-diligence result tied to a monitored entity.
// Findings are never edited locally; a reload replaces the whole collection.
type Finding struct {
	ID         int64     `json:"id" yaml:"id"`
	EntityName string    `json:"entity_name" yaml:"entity_name"`
	SourceURL  string    `json:"source_url" yaml:"source_url"`
	Title      string    `json:"title" yaml:"title"`
	Content    string    `json:"content" yaml:"content"`
	RiskScore  float64   `json:"risk_score" yaml:"risk_score"`
	RiskLevel  RiskLevel `json:"risk_level" yaml:"risk_level"`
	DataColeta string    `json:"data_coleta" yaml:"data_coleta"` // collection timestamp, ISO-8601
	Categoria  string    `json:"categoria" yaml:"categoria"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats the backend emits.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// CollectedAt parses DataColeta.
func (f Finding) CollectedAt() (time.Time, error) {
	return ParseTimestamp(f.DataColeta)
}

// Validate checks the fields an imported finding must carry.
func (f Finding) Validate() error {
	if f.ID <= 0 {
		return fmt.Errorf("finding id must be positive, got %d", f.ID)
	}
	if strings.TrimSpace(f.EntityName) == "" {
		return fmt.Errorf("finding %d: entity_name is required", f.ID)
	}
	if !f.RiskLevel.Valid() {
		return fmt.Errorf("finding %d: invalid risk_level %q", f.ID, f.RiskLevel)
	}
	if _, err := f.CollectedAt(); err != nil {
		return fmt.Errorf("finding %d: %w", f.ID, err)
	}
	return nil
}
