package board

import (
	"fmt"
	"slices"
	"strings"

	"taskBoard/internal/models/task"
)

// StatusFilter is a task status or StatusAll.
type StatusFilter string

const StatusAll StatusFilter = "all"

func ParseStatusFilter(raw string) (StatusFilter, error) {
	if raw == string(StatusAll) {
		return StatusAll, nil
	}
	if s := task.Status(raw); s.Valid() {
		return StatusFilter(s), nil
	}
	return "", &task.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status filter %q", raw)}
}

func (f StatusFilter) Matches(s task.Status) bool {
	return f == StatusAll || f == "" || task.Status(f) == s
}

type SortOption string

const (
	SortCreatedDesc SortOption = "created_desc"
	SortCreatedAsc  SortOption = "created_asc"
	SortDateDesc    SortOption = "date_desc"
	SortDateAsc     SortOption = "date_asc"
)

func ParseSortOption(raw string) (SortOption, error) {
	switch opt := SortOption(raw); opt {
	case SortCreatedDesc, SortCreatedAsc, SortDateDesc, SortDateAsc:
		return opt, nil
	}
	return "", &task.ValidationError{Field: "sort", Reason: fmt.Sprintf("unknown sort option %q", raw)}
}

type Criteria struct {
	Status StatusFilter `json:"status"`
	Query  string       `json:"query"`
	Sort   SortOption   `json:"sort"`
}

func DefaultCriteria() Criteria {
	return Criteria{Status: StatusAll, Sort: SortCreatedDesc}
}

// CriteriaPatch changes only the criteria it sets.
type CriteriaPatch struct {
	Status *StatusFilter
	Query  *string
	Sort   *SortOption
}

func (c Criteria) With(p CriteriaPatch) Criteria {
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Query != nil {
		c.Query = *p.Query
	}
	if p.Sort != nil {
		c.Sort = *p.Sort
	}
	return c
}

// Apply filters by status, then by search query, then sorts stably.
// The input is left untouched.
func Apply(tasks []task.Task, c Criteria) []task.Task {
	query := strings.ToLower(c.Query)

	result := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if !c.Status.Matches(t.Status) {
			continue
		}
		if query != "" && !matches(t, query) {
			continue
		}
		result = append(result, t.Clone())
	}

	slices.SortStableFunc(result, comparator(c.Sort))
	return result
}

func matches(t task.Task, query string) bool {
	if strings.Contains(strings.ToLower(t.Title), query) {
		return true
	}
	return t.Description != nil && strings.Contains(strings.ToLower(*t.Description), query)
}

func comparator(opt SortOption) func(a, b task.Task) int {
	switch opt {
	case SortCreatedAsc:
		return func(a, b task.Task) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case SortDateAsc:
		return func(a, b task.Task) int { return compareDue(a, b, 1) }
	case SortDateDesc:
		return func(a, b task.Task) int { return compareDue(a, b, -1) }
	default:
		return func(a, b task.Task) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
}

// compareDue orders by due date in direction dir; tasks without one go last either way.
func compareDue(a, b task.Task, dir int) int {
	switch {
	case a.DueDate == nil && b.DueDate == nil:
		return 0
	case a.DueDate == nil:
		return 1
	case b.DueDate == nil:
		return -1
	}
	return dir * a.DueDate.Compare(*b.DueDate)
}
