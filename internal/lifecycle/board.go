package lifecycle

import "github.com/tgienger/pmt/internal/models"

// Column is a Kanban grouping of task states. It is a display concept only.
type Column int

const (
	ColumnTodo Column = iota
	ColumnDoing
	ColumnDone
)

// NumColumns is the number of board columns
const NumColumns = 3

// Columns lists the board columns left to right
var Columns = []Column{ColumnTodo, ColumnDoing, ColumnDone}

func (c Column) Title() string {
	switch c {
	case ColumnTodo:
		return "To Do"
	case ColumnDoing:
		return "In Progress"
	case ColumnDone:
		return "Completed"
	}
	return ""
}

// Bucket returns the column a state is shown in. ok is false for states
// that belong to no column.
func Bucket(state models.TaskState) (col Column, ok bool) {
	switch state {
	case models.StateNotStarted, models.StateNeedsAdjustment, models.StateRejected:
		return ColumnTodo, true
	case models.StateInProgress:
		return ColumnDoing, true
	case models.StateFinished, models.StateWaitingForApproval, models.StateApproved:
		return ColumnDone, true
	}
	return 0, false
}

// Board holds tasks grouped by column, preserving input order
type Board [NumColumns][]models.Task

// GroupByColumn groups tasks into board columns
func GroupByColumn(tasks []models.Task) Board {
	var b Board
	for _, t := range tasks {
		if col, ok := Bucket(t.State); ok {
			b[col] = append(b[col], t)
		}
	}
	return b
}

// Count returns the number of tasks in col
func (b Board) Count(col Column) int {
	return len(b[col])
}
