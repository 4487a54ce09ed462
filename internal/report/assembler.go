// Package report turns a job's terminal task list into the downloadable
// result table, in CSV and XLSX form.
package report

import (
	"github.com/jonathan/autoscore/internal/job"
	"github.com/jonathan/autoscore/internal/scoring"
)

// Row is one line of the result table. Score is nil for tasks that never
// produced a result.
type Row struct {
	No         int
	Filename   string
	StudentID  string
	Name       string
	Score      *float64
	Evaluation string
}

// Header is the column order shared by the CSV and XLSX renderers.
var Header = []string{"No", "Filename", "Student ID", "Name", "Score", "Evaluation"}

// Assemble maps tasks to rows, one per task in index order. Failed tasks keep
// their place: the sentinel fills the identity columns and the failure reason
// lands in the evaluation column. Assemble is a pure transform and may be
// re-run against the same job.
func Assemble(tasks []job.Task) []Row {
	rows := make([]Row, len(tasks))
	for i, task := range tasks {
		row := Row{
			No:       i + 1,
			Filename: task.Filename,
		}

		if task.State == job.TaskCompleted && task.Result != nil {
			score := task.Result.Score
			row.StudentID = task.Result.StudentID
			row.Name = task.Result.StudentName
			row.Score = &score
			row.Evaluation = task.Result.Evaluation
		} else {
			row.StudentID = scoring.NotFound
			row.Name = scoring.NotFound
			row.Evaluation = task.ErrorDetail
		}

		rows[i] = row
	}
	return rows
}
