package dto

import (
	"encoding/json"
	"fmt"
	"time"

	"taskBoard/internal/board"
	"taskBoard/internal/models/task"
	"taskBoard/internal/timeline"
)

const dateOnly = "2006-01-02"

// Date accepts either an RFC 3339 timestamp or a bare calendar date.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return fmt.Errorf("date %q is neither RFC 3339 nor %s", raw, dateOnly)
	}
	d.Time = t
	return nil
}

func (d *Date) ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func nullable(n task.Nullable[Date]) task.Nullable[time.Time] {
	if !n.Set {
		return task.Nullable[time.Time]{}
	}
	return task.Ptr(n.Value.ptr())
}

type CreateTaskRequest struct {
	Title       string      `json:"title"`
	Description *string     `json:"description"`
	Status      task.Status `json:"status"`
	DueDate     *Date       `json:"due_date"`
	StartDate   *Date       `json:"start_date"`
	EndDate     *Date       `json:"end_date"`
}

func (r CreateTaskRequest) ToInput() task.CreateInput {
	return task.CreateInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		DueDate:     r.DueDate.ptr(),
		StartDate:   r.StartDate.ptr(),
		EndDate:     r.EndDate.ptr(),
	}
}

// UpdateTaskRequest tells an absent field from an explicit null.
type UpdateTaskRequest struct {
	Title       *string               `json:"title"`
	Description task.Nullable[string] `json:"description"`
	Status      *task.Status          `json:"status"`
	IsCompleted *bool                 `json:"is_completed"`
	DueDate     task.Nullable[Date]   `json:"due_date"`
	StartDate   task.Nullable[Date]   `json:"start_date"`
	EndDate     task.Nullable[Date]   `json:"end_date"`
}

func (r UpdateTaskRequest) ToInput() task.UpdateInput {
	return task.UpdateInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		IsCompleted: r.IsCompleted,
		DueDate:     nullable(r.DueDate),
		StartDate:   nullable(r.StartDate),
		EndDate:     nullable(r.EndDate),
	}
}

type ToggleCompleteRequest struct {
	Completed *bool `json:"completed"`
}

type UpdateStatusRequest struct {
	Status task.Status `json:"status"`
}

type TaskResponse struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description *string     `json:"description"`
	Status      task.Status `json:"status"`
	IsCompleted bool        `json:"is_completed"`
	DueDate     *time.Time  `json:"due_date"`
	StartDate   *time.Time  `json:"start_date"`
	EndDate     *time.Time  `json:"end_date"`
	CreatedAt   time.Time   `json:"created_at"`
	IsOverdue   bool        `json:"is_overdue"`
}

func FromTask(t task.Task, now time.Time) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		IsCompleted: t.IsCompleted,
		DueDate:     t.DueDate,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		CreatedAt:   t.CreatedAt,
		IsOverdue:   t.IsOverdue(now),
	}
}

func FromTaskList(tasks []task.Task, now time.Time) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t, now)
	}
	return result
}

type ListResponse struct {
	Tasks    []TaskResponse `json:"tasks"`
	Criteria board.Criteria `json:"criteria"`
}

type ColumnResponse struct {
	Status task.Status    `json:"status"`
	Label  string         `json:"label"`
	Tasks  []TaskResponse `json:"tasks"`
}

type BoardResponse struct {
	Columns  []ColumnResponse `json:"columns"`
	Criteria board.Criteria   `json:"criteria"`
}

func FromColumns(columns []board.Column, criteria board.Criteria, now time.Time) BoardResponse {
	out := make([]ColumnResponse, len(columns))
	for i, c := range columns {
		out[i] = ColumnResponse{Status: c.Status, Label: c.Label, Tasks: FromTaskList(c.Tasks, now)}
	}
	return BoardResponse{Columns: out, Criteria: criteria}
}

type BarResponse struct {
	Task           TaskResponse      `json:"task"`
	EffectiveStart time.Time         `json:"effective_start"`
	EffectiveEnd   time.Time         `json:"effective_end"`
	Position       timeline.Position `json:"position"`
}

type TimelineResponse struct {
	Range    timeline.Range   `json:"range"`
	Days     []time.Time      `json:"days"`
	Months   []timeline.Month `json:"months"`
	Bars     []BarResponse    `json:"bars"`
	Criteria board.Criteria   `json:"criteria"`
}

func FromLayout(layout timeline.Layout, criteria board.Criteria, now time.Time) TimelineResponse {
	bars := make([]BarResponse, len(layout.Bars))
	for i, b := range layout.Bars {
		bars[i] = BarResponse{
			Task:           FromTask(b.Task, now),
			EffectiveStart: b.Start,
			EffectiveEnd:   b.End,
			Position:       b.Position,
		}
	}
	return TimelineResponse{
		Range:    layout.Range,
		Days:     layout.Days,
		Months:   layout.Months,
		Bars:     bars,
		Criteria: criteria,
	}
}
