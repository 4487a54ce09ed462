package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/autoscore/internal/config"
	"github.com/jonathan/autoscore/internal/credentials"
	"github.com/jonathan/autoscore/internal/job"
	"github.com/jonathan/autoscore/internal/scoring"
	"github.com/jonathan/autoscore/internal/server"
)

var (
	servePort       int
	serveConfigPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for creating scoring jobs, streaming their progress, and downloading result tables.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to JSON config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(serveConfigPath)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	pool, err := credentials.NewPool(cfg.APIKeys)
	if err != nil {
		return fmt.Errorf("failed to build credential pool: %w", err)
	}

	scorer := scoring.NewScorer(cfg.Model)
	defer scorer.Close()

	registry := job.NewRegistry(scorer, pool, cfg.Retention())

	srv := server.New(server.Config{
		Port: cfg.Port,
		JobDefaults: job.Config{
			ScoreMin:           cfg.ScoreMin,
			ScoreMax:           cfg.ScoreMax,
			EnableEvaluation:   cfg.EnableEvaluation,
			MaxEvaluationWords: cfg.MaxEvaluationWords,
			Workers:            cfg.Workers,
			MaxAttempts:        cfg.MaxAttempts,
		},
	}, registry)

	return srv.Start()
}

// loadConfig builds the effective configuration: file values win over
// environment values, built-in defaults fill the rest.
func loadConfig(path string) (config.Config, error) {
	envCfg := config.FromEnv()

	if path == "" {
		return envCfg.Finalize(), nil
	}

	fileCfg, err := config.LoadConfig(path)
	if err != nil {
		return config.Config{}, err
	}
	return fileCfg.MergeWithDefaults(envCfg).Finalize(), nil
}
