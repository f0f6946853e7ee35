// Package findings derives the ordered, filtered findings view shown in the
// results table. Everything here is pure; callers pass in the loaded
// collection and get a new slice back.
package findings

import (
	"sort"
	"strings"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

// SortKey names a sortable column
type SortKey string

const (
	// SortNone keeps the collection order.
	SortNone       SortKey = ""
	SortEntityName SortKey = "entity_name"
	SortTitle      SortKey = "title"
	SortRiskLevel  SortKey = "risk_level"
	SortDataColeta SortKey = "data_coleta"
)

// SortKeys lists the sortable columns in table order.
var SortKeys = []SortKey{SortEntityName, SortTitle, SortRiskLevel, SortDataColeta}

// Order is a sort direction
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// RiskFilter is either All or one of the model risk levels
type RiskFilter string

const All RiskFilter = "all"

// Sort is the active sort column and direction
type Sort struct {
	Key   SortKey
	Order Order
}

// DefaultSort is the table's initial ordering: newest first.
var DefaultSort = Sort{Key: SortDataColeta, Order: Desc}

// Toggle returns the sort state after a click on key: the same column flips
// direction, a new column starts descending.
func (s Sort) Toggle(key SortKey) Sort {
	if s.Key == key {
		if s.Order == Desc {
			return Sort{Key: key, Order: Asc}
		}
		return Sort{Key: key, Order: Desc}
	}
	return Sort{Key: key, Order: Desc}
}

// Query is everything the table view applies to the raw collection
type Query struct {
	Search string
	Risk   RiskFilter
	Sort   Sort
}

type comparator func(a, b *model.Finding) int

var comparators = map[SortKey]comparator{
	SortEntityName: func(a, b *model.Finding) int { return strings.Compare(a.EntityName, b.EntityName) },
	SortTitle:      func(a, b *model.Finding) int { return strings.Compare(a.Title, b.Title) },
	SortRiskLevel:  func(a, b *model.Finding) int { return strings.Compare(string(a.RiskLevel), string(b.RiskLevel)) },
	SortDataColeta: compareCollected,
}

// compareCollected orders by instant. Unparseable timestamps sort before
// every parseable one and tie with each other.
func compareCollected(a, b *model.Finding) int {
	ta, errA := a.CollectedAt()
	tb, errB := b.CollectedAt()
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return ta.Compare(tb)
}

// Validate rejects sort keys, orders and risk filters outside the closed sets.
func (q Query) Validate() error {
	if q.Sort.Key != SortNone {
		if _, ok := comparators[q.Sort.Key]; !ok {
			return errs.InvalidArgument("unknown sort key %q", q.Sort.Key)
		}
	}
	switch q.Sort.Order {
	case Asc, Desc:
	case "":
		if q.Sort.Key != SortNone {
			return errs.InvalidArgument("sort order required for key %q", q.Sort.Key)
		}
	default:
		return errs.InvalidArgument("unknown sort order %q", q.Sort.Order)
	}
	if q.Risk != "" && q.Risk != All && !model.RiskLevel(q.Risk).Valid() {
		return errs.InvalidArgument("unknown risk filter %q", q.Risk)
	}
	return nil
}

// Matches reports whether f passes the search and risk predicates.
func (q Query) Matches(f *model.Finding) bool {
	if q.Risk != "" && q.Risk != All && string(f.RiskLevel) != string(q.Risk) {
		return false
	}
	if q.Search == "" {
		return true
	}
	term := strings.ToLower(q.Search)
	return strings.Contains(strings.ToLower(f.EntityName), term) ||
		strings.Contains(strings.ToLower(f.Title), term) ||
		strings.Contains(strings.ToLower(f.Content), term)
}

// Apply filters and sorts findings. The input is never modified and the
// result is always a new slice, empty rather than nil.
func Apply(findings []model.Finding, q Query) ([]model.Finding, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	out := make([]model.Finding, 0, len(findings))
	for i := range findings {
		if q.Matches(&findings[i]) {
			out = append(out, findings[i])
		}
	}

	if q.Sort.Key == SortNone {
		return out, nil
	}
	cmp := comparators[q.Sort.Key]
	desc := q.Sort.Order == Desc
	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(&out[i], &out[j])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out, nil
}

// ParseSortKey maps a column name to its key. The empty string means no sort.
func ParseSortKey(s string) (SortKey, error) {
	key := SortKey(strings.ToLower(strings.TrimSpace(s)))
	if key == SortNone {
		return SortNone, nil
	}
	if _, ok := comparators[key]; !ok {
		return "", errs.InvalidArgument("unknown sort key %q", s)
	}
	return key, nil
}

// ParseOrder accepts asc or desc in any case. Empty means Desc.
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case Asc:
		return Asc, nil
	case Desc, "":
		return Desc, nil
	}
	return "", errs.InvalidArgument("unknown sort order %q", s)
}

// ParseRiskFilter accepts "all" (or empty) and any spelling ParseRiskLevel does.
func ParseRiskFilter(s string) (RiskFilter, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.EqualFold(trimmed, string(All)) {
		return All, nil
	}
	level, err := model.ParseRiskLevel(trimmed)
	if err != nil {
		return "", errs.InvalidArgument("unknown risk filter %q", s)
	}
	return RiskFilter(level), nil
}
