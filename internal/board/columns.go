package board

import "taskBoard/internal/models/task"

// Column is one kanban lane.
type Column struct {
	Status task.Status `json:"status"`
	Label  string      `json:"label"`
	Tasks  []task.Task `json:"tasks"`
}

// Columns splits tasks into lanes in status order, keeping the input order inside each lane.
// A specific status filter leaves only its own lane.
func Columns(tasks []task.Task, filter StatusFilter) []Column {
	columns := make([]Column, 0, len(task.Statuses))
	for _, status := range task.Statuses {
		if !filter.Matches(status) {
			continue
		}
		column := Column{Status: status, Label: status.Label(), Tasks: []task.Task{}}
		for _, t := range tasks {
			if t.Status == status {
				column.Tasks = append(column.Tasks, t.Clone())
			}
		}
		columns = append(columns, column)
	}
	return columns
}
