// Package schedule validates and stores doctors' weekly availability as
// non-overlapping time blocks.
package schedule

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/andescare/hospital-platform/internal/domain"
)

// Weekday indexes the day of week, 0=Monday .. 6=Sunday.
type Weekday int

var weekdayLabels = [7]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// Valid reports whether w is in [0,6].
func (w Weekday) Valid() bool {
	return w >= 0 && w <= 6
}

// Label returns the weekday's display name.
func (w Weekday) Label() string {
	if !w.Valid() {
		return fmt.Sprintf("weekday(%d)", int(w))
	}
	return weekdayLabels[w]
}

// Block is one contiguous availability interval on a 24-hour clock,
// half-open: a doctor is available for start <= t < end.
type Block struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Category string `json:"category,omitempty"`
}

func (b Block) String() string {
	return b.Start + "-" + b.End
}

// OverlapError reports an inverted or overlapping interval.
type OverlapError struct {
	Reason string
}

func (e *OverlapError) Error() string {
	return e.Reason
}

var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidTime reports whether t is a zero-padded HH:MM clock time. Zero-padded
// times compare correctly as strings, which the interval checks rely on.
func ValidTime(t string) bool {
	return timePattern.MatchString(t)
}

// ValidateBlocks checks every block for well-formed times and start < end,
// then sorts by start and rejects any pair where the next block begins
// strictly before the previous one ends. Touching boundaries
// (end == next start) are allowed.
func ValidateBlocks(blocks []Block) error {
	sorted := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if !ValidTime(b.Start) || !ValidTime(b.End) {
			return domain.Invalid("blocks", fmt.Sprintf("malformed time in interval %s: want HH:MM", b))
		}
		if b.Start >= b.End {
			return &OverlapError{Reason: fmt.Sprintf("invalid interval %s: start must be before end", b)}
		}
		sorted = append(sorted, b)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start < sorted[i-1].End {
			return &OverlapError{
				Reason: fmt.Sprintf("overlap between %s and %s", sorted[i-1], sorted[i]),
			}
		}
	}
	return nil
}
