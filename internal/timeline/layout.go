package timeline

import (
	"time"

	"taskBoard/internal/models/task"
)

// Month is a run of consecutive header days in the same calendar month.
type Month struct {
	Label string `json:"label"`
	Days  int    `json:"days"`
}

// GroupMonths folds days into month bands, preserving order.
func GroupMonths(days []time.Time) []Month {
	return fold(days, []Month{}, func(acc []Month, d time.Time) []Month {
		label := d.Format(monthLabelLayout)
		if n := len(acc); n > 0 && acc[n-1].Label == label {
			acc[n-1].Days++
			return acc
		}
		return append(acc, Month{Label: label, Days: 1})
	})
}

func fold[T, A any](items []T, acc A, step func(A, T) A) A {
	for _, it := range items {
		acc = step(acc, it)
	}
	return acc
}

type Bar struct {
	Item
	Position Position `json:"position"`
}

// Layout is everything the timeline view draws.
type Layout struct {
	Range  Range       `json:"range"`
	Days   []time.Time `json:"days"`
	Months []Month     `json:"months"`
	Bars   []Bar       `json:"bars"`
}

// Compute lays out tasks in their given order.
func Compute(tasks []task.Task, now time.Time) Layout {
	items := Items(tasks)
	r := ComputeRange(items, now)
	days := r.Days()

	bars := make([]Bar, len(items))
	for i, it := range items {
		bars[i] = Bar{Item: it, Position: r.Position(it.Start, it.End)}
	}

	return Layout{
		Range:  r,
		Days:   days,
		Months: GroupMonths(days),
		Bars:   bars,
	}
}
