package service

import (
	"time"

	"taskBoard/internal/board"
)

// CriteriaOption changes one filter or sort setting of the caller's board.
type CriteriaOption func(*board.CriteriaPatch)

func WithStatusFilter(status board.StatusFilter) CriteriaOption {
	return func(p *board.CriteriaPatch) {
		p.Status = &status
	}
}

func WithQuery(query string) CriteriaOption {
	return func(p *board.CriteriaPatch) {
		p.Query = &query
	}
}

func WithSort(sort board.SortOption) CriteriaOption {
	return func(p *board.CriteriaPatch) {
		p.Sort = &sort
	}
}

type Option func(*TaskService)

func WithClock(now func() time.Time) Option {
	return func(s *TaskService) {
		s.now = now
	}
}
