package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/autoscore/internal/credentials"
	"github.com/jonathan/autoscore/internal/extraction"
	"github.com/jonathan/autoscore/internal/job"
	"github.com/jonathan/autoscore/internal/observability"
	"github.com/jonathan/autoscore/internal/report"
	"github.com/jonathan/autoscore/internal/scoring"
)

var (
	scoreAnswerKeyPath string
	scoreQuestionPath  string
	scoreNotesPath     string
	scoreOutPath       string
	scoreXLSX          bool
	scoreMin           float64
	scoreMax           float64
	scoreEvaluate      bool
	scoreMaxWords      int
	scoreWorkers       int
	scoreMaxAttempts   int
	scoreConfigPath    string
)

var scoreCmd = &cobra.Command{
	Use:   "score <submissions-dir>",
	Short: "Score a directory of submissions and write the result table",
	Long: `Score every readable text file in a directory against an optional answer key.
Progress is printed live; the final table is written as CSV (or XLSX with --xlsx).`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreAnswerKeyPath, "answer-key", "", "Path to the answer key text file")
	scoreCmd.Flags().StringVar(&scoreQuestionPath, "question", "", "Path to the question text file")
	scoreCmd.Flags().StringVar(&scoreNotesPath, "notes", "", "Path to grader notes text file")
	scoreCmd.Flags().StringVar(&scoreOutPath, "out", "scores.csv", "Output file path")
	scoreCmd.Flags().BoolVar(&scoreXLSX, "xlsx", false, "Write an XLSX workbook instead of CSV")
	scoreCmd.Flags().Float64Var(&scoreMin, "score-min", 0, "Minimum score")
	scoreCmd.Flags().Float64Var(&scoreMax, "score-max", 100, "Maximum score")
	scoreCmd.Flags().BoolVar(&scoreEvaluate, "evaluate", false, "Request a short written evaluation per submission")
	scoreCmd.Flags().IntVar(&scoreMaxWords, "max-words", 100, "Maximum evaluation length in words")
	scoreCmd.Flags().IntVar(&scoreWorkers, "workers", 0, "Concurrent scoring workers (default 4)")
	scoreCmd.Flags().IntVar(&scoreMaxAttempts, "max-attempts", 0, "Attempts per submission before giving up (default 3)")
	scoreCmd.Flags().StringVar(&scoreConfigPath, "config", "", "Path to JSON config file")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	start := time.Now()
	printer := observability.NewPrinter(cmd.OutOrStdout())

	cfg, err := loadConfig(scoreConfigPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ref, err := loadReference()
	if err != nil {
		return err
	}

	inputs, err := collectSubmissions(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no submissions found in %s", args[0])
	}

	jobCfg := job.Config{
		ScoreMin:           scoreMin,
		ScoreMax:           scoreMax,
		EnableEvaluation:   scoreEvaluate,
		MaxEvaluationWords: scoreMaxWords,
		Workers:            scoreWorkers,
		MaxAttempts:        scoreMaxAttempts,
	}

	pool, err := credentials.NewPool(cfg.APIKeys)
	if err != nil {
		return fmt.Errorf("failed to build credential pool: %w", err)
	}

	scorer := scoring.NewScorer(cfg.Model)
	defer scorer.Close()

	registry := job.NewRegistry(scorer, pool, cfg.Retention())
	defer registry.Close()

	ctrl, err := registry.CreateJob(context.Background(), inputs, jobCfg, ref)
	if err != nil {
		return err
	}

	printer.PrintJobConfig(ctrl.Job().Config, cfg.Model, len(inputs), pool.Size())

	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	for done := false; !done; {
		select {
		case u := <-updates:
			printer.PrintProgress(u.Completed, u.Total, u.Message)
		case <-ctrl.Done():
			done = true
		}
	}

	final := ctrl.Progress()
	printer.PrintProgress(final.Completed, final.Total, final.Message)

	rows := report.Assemble(ctrl.Job().Snapshot())
	if err := writeResultFile(scoreOutPath, scoreXLSX, rows); err != nil {
		return err
	}

	printer.PrintResults(rows)
	printer.PrintSummary(ctrl.Job().SuccessCount(), len(inputs), scoreOutPath, time.Since(start))
	return nil
}

// collectSubmissions walks the directory in name order; files the extractor
// rejects become error tasks so they keep their row in the output.
func collectSubmissions(ctx context.Context, dir string) ([]job.TaskInput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read submissions directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	extractor := extraction.FileExtractor{}
	inputs := make([]job.TaskInput, 0, len(names))
	for _, name := range names {
		input := job.TaskInput{Filename: name}
		text, err := extractor.Extract(ctx, filepath.Join(dir, name))
		if err != nil {
			input.ExtractionError = err.Error()
		} else {
			input.ExtractedText = text
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

func loadReference() (scoring.Reference, error) {
	var ref scoring.Reference

	read := func(path string) (string, error) {
		if path == "" {
			return "", nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	var err error
	if ref.AnswerKey, err = read(scoreAnswerKeyPath); err != nil {
		return ref, err
	}
	if ref.QuestionText, err = read(scoreQuestionPath); err != nil {
		return ref, err
	}
	if ref.GraderNotes, err = read(scoreNotesPath); err != nil {
		return ref, err
	}
	return ref, nil
}

func writeResultFile(path string, asXLSX bool, rows []report.Row) error {
	if asXLSX {
		data, err := report.WriteXLSX(rows)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	return report.WriteCSV(f, rows)
}
