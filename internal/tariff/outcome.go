package tariff

import (
	"fmt"
	"sort"
	"strings"
)

// SkipReason says why a combination produced no rows.
type SkipReason int

const (
	Extracted SkipReason = iota
	SkipNoTable
	SkipParse
	SkipColumnCount
	SkipEmptyTable
	SkipSelect
)

func (r SkipReason) String() string {
	switch r {
	case Extracted:
		return "extracted"
	case SkipNoTable:
		return "no-table"
	case SkipParse:
		return "parse"
	case SkipColumnCount:
		return "column-count"
	case SkipEmptyTable:
		return "empty-table"
	case SkipSelect:
		return "select"
	default:
		return "unknown"
	}
}

// Outcome is the result of one combination.
type Outcome struct {
	Cursor Cursor
	Rows   []Row
	Skip   SkipReason
	// Err is the underlying failure of a skip, nil when extracted.
	Err error
}

func (o Outcome) Skipped() bool {
	return o.Skip != Extracted
}

// Stats counts outcomes of one traversal.
type Stats struct {
	Combinations int
	Extracted    int
	Rows         int
	Skipped      map[SkipReason]int
}

func (s *Stats) add(o Outcome) {
	s.Combinations++
	if o.Skipped() {
		if s.Skipped == nil {
			s.Skipped = map[SkipReason]int{}
		}
		s.Skipped[o.Skip]++
		return
	}
	s.Extracted++
	s.Rows += len(o.Rows)
}

// TotalSkipped sums skips over all reasons
func (s Stats) TotalSkipped() int {
	total := 0
	for _, n := range s.Skipped {
		total += n
	}
	return total
}

// SkipSummary renders skips as "no-table=3 select=1", ordered by reason.
func (s Stats) SkipSummary() string {
	reasons := make([]SkipReason, 0, len(s.Skipped))
	for r := range s.Skipped {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, fmt.Sprintf("%s=%d", r, s.Skipped[r]))
	}
	return strings.Join(parts, " ")
}

