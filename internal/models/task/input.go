package task

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"
)

const MaxTitleLength = 100

// Nullable is a patch field: Set reports whether the field was provided at all,
// Value is nil when it was provided as an explicit null.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

func Value[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

// Ptr converts an optional pointer into a set field.
func Ptr[T any](p *T) Nullable[T] {
	return Nullable[T]{Set: true, Value: clonePtr(p)}
}

func (n Nullable[T]) IsZero() bool {
	return !n.Set
}

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// CreateInput carries the user-editable fields of a new task.
type CreateInput struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      Status     `json:"status,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

func (in CreateInput) Validate() error {
	if err := validateTitle(in.Title); err != nil {
		return err
	}
	if in.Status != "" && !in.Status.Valid() {
		return invalid("status", fmt.Sprintf("unknown status %q", in.Status))
	}
	return validateDates(in.StartDate, in.DueDate, in.EndDate)
}

// Normalize fills the default status and stamps the completion date of a task created as done.
func (in CreateInput) Normalize(now time.Time) CreateInput {
	out := in
	if out.Status == "" {
		out.Status = StatusTodo
	}
	if out.Status == StatusDone && out.EndDate == nil {
		out.EndDate = &now
	}
	return out
}

// UpdateInput is a partial update; unset fields are left untouched.
type UpdateInput struct {
	Title       *string             `json:"title,omitempty"`
	Description Nullable[string]    `json:"description,omitzero"`
	Status      *Status             `json:"status,omitempty"`
	IsCompleted *bool               `json:"is_completed,omitempty"`
	DueDate     Nullable[time.Time] `json:"due_date,omitzero"`
	StartDate   Nullable[time.Time] `json:"start_date,omitzero"`
	EndDate     Nullable[time.Time] `json:"end_date,omitzero"`
}

func (in UpdateInput) IsEmpty() bool {
	return in.Title == nil && !in.Description.Set && in.Status == nil && in.IsCompleted == nil &&
		!in.DueDate.Set && !in.StartDate.Set && !in.EndDate.Set
}

func (in UpdateInput) Validate() error {
	if in.Title != nil {
		if err := validateTitle(*in.Title); err != nil {
			return err
		}
	}
	if in.Status != nil && !in.Status.Valid() {
		return invalid("status", fmt.Sprintf("unknown status %q", *in.Status))
	}
	return validateDates(in.StartDate.Value, in.DueDate.Value, in.EndDate.Value)
}

// Normalize keeps is_completed and status in agreement and stamps the completion
// date when a task is moved to done without one.
func (in UpdateInput) Normalize(now time.Time) UpdateInput {
	out := in
	switch {
	case out.Status != nil:
		completed := *out.Status == StatusDone
		out.IsCompleted = &completed
	case out.IsCompleted != nil:
		status := StatusTodo
		if *out.IsCompleted {
			status = StatusDone
		}
		out.Status = &status
	}
	if out.Status != nil && *out.Status == StatusDone && !out.EndDate.Set {
		out.EndDate = Value(now)
	}
	return out
}

// Apply returns a copy of t with the provided fields of in written over it.
func Apply(t Task, in UpdateInput) Task {
	out := t.Clone()
	if in.Title != nil {
		out.Title = *in.Title
	}
	if in.Description.Set {
		out.Description = clonePtr(in.Description.Value)
	}
	if in.Status != nil {
		out.Status = *in.Status
	}
	if in.IsCompleted != nil {
		out.IsCompleted = *in.IsCompleted
	}
	if in.DueDate.Set {
		out.DueDate = clonePtr(in.DueDate.Value)
	}
	if in.StartDate.Set {
		out.StartDate = clonePtr(in.StartDate.Value)
	}
	if in.EndDate.Set {
		out.EndDate = clonePtr(in.EndDate.Value)
	}
	return out
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n == 0 {
		return invalid("title", "Title is required")
	}
	if n > MaxTitleLength {
		return invalid("title", fmt.Sprintf("Title must be %d characters or less", MaxTitleLength))
	}
	return nil
}

// ValidateDates checks the date order of a whole task, such as a stored task
// with a partial update applied.
func (t Task) ValidateDates() error {
	return validateDates(t.StartDate, t.DueDate, t.EndDate)
}

func validateDates(start, due, end *time.Time) error {
	if start == nil {
		return nil
	}
	if due != nil && !start.Before(*due) {
		return invalid("start_date", "Start date must be before due date")
	}
	if end != nil && !start.Before(*end) {
		return invalid("start_date", "Start date must be before completion date")
	}
	return nil
}
