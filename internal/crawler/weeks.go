package crawler

import (
	"time"

	"lastgraph/internal/lastfm"
)

// SelectWeeks filters a chart calendar down to the weeks whose start,
// formatted with the given time layout, equals match. The result is the
// fixed target week list shared by every visit of the run.
func SelectWeeks(layout, match string, calendar []lastfm.WeekRange) []lastfm.WeekRange {
	var weeks []lastfm.WeekRange
	for _, w := range calendar {
		if time.Unix(w.From, 0).UTC().Format(layout) == match {
			weeks = append(weeks, w)
		}
	}
	return weeks
}
