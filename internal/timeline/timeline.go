// Package timeline lays tasks out on a day grid for the Gantt view.
// Everything here is a pure function of its input.
package timeline

import (
	"math"
	"time"

	"taskBoard/internal/models/task"
)

const (
	day = 24 * time.Hour

	paddingBefore = 1
	paddingAfter  = 5
	minimumSpan   = 7

	monthLabelLayout = "January 2006"
)

// Item is a task together with the interval it occupies on the timeline.
type Item struct {
	task.Task
	Start time.Time `json:"effective_start"`
	End   time.Time `json:"effective_end"`
}

// Effective derives the drawn interval: start falls back to creation time,
// end to the completion date, then the due date, then the start. An end
// before the start is clamped to the start. Both ends are in UTC so that
// calendar days and 24 hour days agree.
func Effective(t task.Task) Item {
	start := t.CreatedAt
	if t.StartDate != nil {
		start = *t.StartDate
	}

	end := start
	switch {
	case t.EndDate != nil:
		end = *t.EndDate
	case t.DueDate != nil:
		end = *t.DueDate
	}
	if end.Before(start) {
		end = start
	}

	return Item{Task: t.Clone(), Start: start.UTC(), End: end.UTC()}
}

func Items(tasks []task.Task) []Item {
	items := make([]Item, len(tasks))
	for i, t := range tasks {
		items[i] = Effective(t)
	}
	return items
}

type Range struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	TotalDays int       `json:"total_days"`
}

// ComputeRange pads the spread of items by one day before and five after,
// and never shows less than a week. With no items the range is the single day at now.
func ComputeRange(items []Item, now time.Time) Range {
	if len(items) == 0 {
		now = now.UTC()
		return Range{Start: now, End: now, TotalDays: 1}
	}

	start, end := items[0].Start, items[0].End
	for _, it := range items[1:] {
		if it.Start.Before(start) {
			start = it.Start
		}
		if it.End.After(end) {
			end = it.End
		}
	}
	start, end = start.UTC(), end.UTC()

	start = start.AddDate(0, 0, -paddingBefore)
	end = end.AddDate(0, 0, paddingAfter)
	if weekEnd := start.AddDate(0, 0, minimumSpan); end.Before(weekEnd) {
		end = weekEnd
	}

	total := int(math.Ceil(daysBetween(start, end)))
	if total < 1 {
		total = 1
	}
	return Range{Start: start, End: end, TotalDays: total}
}

// Days lists one entry per day of the range, starting at r.Start.
func (r Range) Days() []time.Time {
	days := make([]time.Time, r.TotalDays)
	for i := range days {
		days[i] = r.Start.AddDate(0, 0, i)
	}
	return days
}

// Position is a bar placement in percent of the range width.
type Position struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// Position places the interval [start, end] on the grid. Both endpoints are
// inclusive, so a single-day interval is one day wide.
func (r Range) Position(start, end time.Time) Position {
	offset := math.Ceil(daysBetween(r.Start, start))
	duration := math.Ceil(daysBetween(start, end)) + 1
	if duration < 1 || math.IsNaN(duration) {
		duration = 1
	}

	total := float64(r.TotalDays)
	return Position{
		Left:  offset / total * 100,
		Width: duration / total * 100,
	}
}

func daysBetween(from, to time.Time) float64 {
	return float64(to.Sub(from)) / float64(day)
}
