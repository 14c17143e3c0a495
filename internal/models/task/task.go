package task

import (
	"time"
)

// Task is a single user-owned unit of work. Dates are nil when unset.
type Task struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	Title       string     `json:"title" db:"title"`
	Description *string    `json:"description" db:"description"`
	Status      Status     `json:"status" db:"status"`
	IsCompleted bool       `json:"is_completed" db:"is_completed"`
	DueDate     *time.Time `json:"due_date" db:"due_date"`
	StartDate   *time.Time `json:"start_date" db:"start_date"`
	EndDate     *time.Time `json:"end_date" db:"end_date"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

type Status string

const StatusTodo Status = "todo"
const StatusInProgress Status = "in_progress"
const StatusDone Status = "done"

// Statuses lists every status in board column order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// IsOverdue reports whether the due date has passed. Completion is not taken into account.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now)
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	c := t
	c.Description = clonePtr(t.Description)
	c.DueDate = clonePtr(t.DueDate)
	c.StartDate = clonePtr(t.StartDate)
	c.EndDate = clonePtr(t.EndDate)
	return c
}

func CloneAll(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
