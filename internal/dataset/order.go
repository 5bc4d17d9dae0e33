package dataset

import (
	"slices"
	"strings"
	"time"
)

// AgeBuckets is the display order of age_bucket labels.
var AgeBuckets = []string{"<18", "18-24", "25-34", "35-44", "45-54", "55+"}

var WeekdaysMondayFirst = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var WeekdaysSundayFirst = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// TimeSegments are the canonical timeofday_segment labels in day order.
var TimeSegments = []string{"Morning (5a-12p)", "Afternoon (12p-6p)", "Evening (6p-10p)", "Late Night (10p-5a)"}

var segmentPrefixes = []string{"morning", "afternoon", "evening", "late night"}

const (
	DayTypeWeekday = "Weekday"
	DayTypeWeekend = "Weekend"
)

// DayType classifies a timestamp as Weekday or Weekend (Saturday, Sunday).
func DayType(t time.Time) string {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return DayTypeWeekend
	default:
		return DayTypeWeekday
	}
}

// SegmentRank orders time segments by day order. Both the full labels and
// the bare words ("Morning", "Late Night") are recognised; anything else
// sorts last.
func SegmentRank(label string) int {
	l := strings.ToLower(strings.TrimSpace(label))
	for i, p := range segmentPrefixes {
		if strings.HasPrefix(l, p) {
			return i
		}
	}
	return len(segmentPrefixes)
}

// SortByOrder sorts labels by their position in order. Labels not in order
// follow, alphabetically.
func SortByOrder(labels []string, order []string) []string {
	rank := make(map[string]int, len(order))
	for i, o := range order {
		rank[o] = i
	}
	return sortByRank(labels, func(s string) (int, bool) {
		r, ok := rank[s]
		return r, ok
	})
}

// SortSegments sorts time segment labels in day order.
func SortSegments(labels []string) []string {
	return sortByRank(labels, func(s string) (int, bool) {
		r := SegmentRank(s)
		return r, r < len(segmentPrefixes)
	})
}

func sortByRank(labels []string, rank func(string) (int, bool)) []string {
	out := slices.Clone(labels)
	slices.SortStableFunc(out, func(a, b string) int {
		ra, oka := rank(a)
		rb, okb := rank(b)
		switch {
		case oka && okb:
			if ra != rb {
				return ra - rb
			}
			return strings.Compare(a, b)
		case oka:
			return -1
		case okb:
			return 1
		default:
			return strings.Compare(a, b)
		}
	})
	return out
}
