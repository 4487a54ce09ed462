package observability

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/autoscore/internal/job"
	"github.com/jonathan/autoscore/internal/report"
)

func TestPrintJobConfig(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintJobConfig(job.Config{
		ScoreMin:           40,
		ScoreMax:           100,
		Workers:            4,
		MaxAttempts:        3,
		EnableEvaluation:   true,
		MaxEvaluationWords: 100,
	}, "gemini-2.5-flash", 12, 2)

	out := buf.String()
	assert.Contains(t, out, "SCORING RUN")
	assert.Contains(t, out, "gemini-2.5-flash")
	assert.Contains(t, out, "Submissions:  12")
	assert.Contains(t, out, "Score range:  40 to 100")
	assert.Contains(t, out, "up to 100 words")
}

func TestPrintResults(t *testing.T) {
	score := 87.5
	rows := []report.Row{
		{No: 1, Filename: "alice.txt", StudentID: "1", Name: "Alice", Score: &score},
		{No: 2, Filename: "bob.txt", StudentID: "NOT_FOUND", Name: "NOT_FOUND", Evaluation: "failed after 3 attempts: rate limited"},
	}

	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.PrintResults(rows)

	out := buf.String()
	assert.Contains(t, out, "RESULTS")
	assert.Contains(t, out, "alice.txt")
	assert.Contains(t, out, "87.5")
	assert.Contains(t, out, "✗")
}

func TestPrintResults_TruncatesLongTables(t *testing.T) {
	score := 50.0
	rows := make([]report.Row, 9)
	for i := range rows {
		rows[i] = report.Row{No: i + 1, Filename: "f.txt", Name: "N", Score: &score}
	}

	var buf bytes.Buffer
	NewPrinter(&buf).PrintResults(rows)
	assert.Contains(t, buf.String(), "... and 4 more rows")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintSummary(8, 10, "scores.csv", 3*time.Second)

	out := buf.String()
	assert.Contains(t, out, "Scored:   8/10 submissions")
	assert.Contains(t, out, "Failed:   2")
	assert.Contains(t, out, "scores.csv")
}
