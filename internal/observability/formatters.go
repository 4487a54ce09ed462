// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/autoscore/internal/job"
	"github.com/jonathan/autoscore/internal/report"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxRowsToShow is the default number of result rows to display
	maxRowsToShow = 5
)

// Printer handles formatted output for the one-shot scoring command
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintJobConfig outputs the effective scoring configuration before the run.
func (p *Printer) PrintJobConfig(cfg job.Config, model string, total, keys int) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Model:        %s\n", model))
	sb.WriteString(fmt.Sprintf("Submissions:  %d\n", total))
	sb.WriteString(fmt.Sprintf("API keys:     %d\n", keys))
	sb.WriteString(fmt.Sprintf("Workers:      %d\n", cfg.Workers))
	sb.WriteString(fmt.Sprintf("Max attempts: %d\n", cfg.MaxAttempts))
	sb.WriteString(fmt.Sprintf("Score range:  %g to %g", cfg.ScoreMin, cfg.ScoreMax))
	if cfg.EnableEvaluation {
		sb.WriteString(fmt.Sprintf("\nEvaluation:   up to %d words", cfg.MaxEvaluationWords))
	}

	p.printBox("SCORING RUN", sb.String())
}

// PrintProgress writes a single progress line, overwriting the previous one.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(completed, total int, message string) {
	fmt.Fprintf(p.out, "\r  [%d/%d] %-40s", completed, total, message)
	if completed == total {
		fmt.Fprintln(p.out)
	}
}

// PrintResults outputs the first rows of the assembled result table.
func (p *Printer) PrintResults(rows []report.Row) {
	if len(rows) == 0 {
		return
	}

	var sb strings.Builder

	count := min(len(rows), maxRowsToShow)
	for i := 0; i < count; i++ {
		row := rows[i]
		name := row.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		if row.Score != nil {
			sb.WriteString(fmt.Sprintf("#%-3d %-22s %-20s %6.4g\n", row.No, row.Filename, name, *row.Score))
		} else {
			detail := row.Evaluation
			if len(detail) > 28 {
				detail = detail[:25] + "..."
			}
			sb.WriteString(fmt.Sprintf("#%-3d %-22s ✗ %s\n", row.No, row.Filename, detail))
		}
	}

	if len(rows) > maxRowsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more rows", len(rows)-maxRowsToShow))
	}

	p.printBox("RESULTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSummary outputs the final run summary.
func (p *Printer) PrintSummary(success, total int, outPath string, elapsed time.Duration) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Scored:   %d/%d submissions\n", success, total))
	if failed := total - success; failed > 0 {
		sb.WriteString(fmt.Sprintf("Failed:   %d\n", failed))
	}
	sb.WriteString(fmt.Sprintf("Output:   %s\n", outPath))
	sb.WriteString(fmt.Sprintf("Elapsed:  %s", elapsed.Round(time.Millisecond)))

	p.printBox("SUMMARY", sb.String())
}
