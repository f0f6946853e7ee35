package selection

import (
	"fmt"
	"strings"
	"time"
)

// Preset is a quick date range ending today
type Preset int

const (
	Last7Days  Preset = 7
	Last30Days Preset = 30
	Last90Days Preset = 90
	LastYear   Preset = 365
)

var Presets = []Preset{Last7Days, Last30Days, Last90Days, LastYear}

func (p Preset) String() string {
	if p == LastYear {
		return "last year"
	}
	return fmt.Sprintf("last %d days", int(p))
}

// Range returns start and end dates in DateLayout.
func (p Preset) Range(now time.Time) (start, end string) {
	end = now.Format(DateLayout)
	start = now.AddDate(0, 0, -int(p)).Format(DateLayout)
	return start, end
}

// ParsePreset accepts "7d", "30d", "90d", "1y" or the bare day count.
func ParsePreset(s string) (Preset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "7d", "7":
		return Last7Days, nil
	case "30d", "30":
		return Last30Days, nil
	case "90d", "90":
		return Last90Days, nil
	case "1y", "365d", "365":
		return LastYear, nil
	}
	return 0, fmt.Errorf("unknown date preset %q (want 7d, 30d, 90d or 1y)", s)
}

// ValidateRange checks both dates parse and start is not after end.
func ValidateRange(start, end string) error {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if s.After(e) {
		return fmt.Errorf("start date %s is after end date %s", start, end)
	}
	return nil
}
