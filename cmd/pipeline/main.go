package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yungbote/neurodecode/internal/app"
	"github.com/yungbote/neurodecode/internal/bids"
	"github.com/yungbote/neurodecode/internal/data/db"
	"github.com/yungbote/neurodecode/internal/data/repos/runs"
	"github.com/yungbote/neurodecode/internal/epochs"
	"github.com/yungbote/neurodecode/internal/modules/decoding"
	"github.com/yungbote/neurodecode/internal/pkg/logger"
	"github.com/yungbote/neurodecode/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	configPath := flag.String("config", "", "path to YAML config (default: NEURODECODE_CONFIG env)")
	dryRun := flag.Bool("dry-run", false, "log the plan without executing any step")
	flag.Parse()

	cfg, err := app.Load(*configPath, log)
	if err != nil {
		log.Fatal("Config load failed", "error", err)
	}
	if *dryRun {
		cfg.Execution.DryRun = true
	}

	log.Info("Pipeline starting",
		"dataset", cfg.Project.Dataset,
		"task", cfg.Analysis.TaskName,
		"seed", cfg.Project.RandomSeed,
		"n_splits", cfg.Modeling.NSplits,
	)
	if cfg.Execution.DryRun {
		log.Info("Dry run: planned steps",
			"data_loading", cfg.Execution.RunDataLoading,
			"features", cfg.Execution.RunFeatures,
			"modeling", cfg.Execution.RunModeling,
			"visualization", cfg.Execution.RunVisualization,
			"report", cfg.Execution.RunReport,
		)
		return
	}

	ctx := context.Background()

	// Data loading: index the raw BIDS tree.
	if cfg.Execution.RunDataLoading {
		if !bids.ValidateRoot(cfg.Data.BIDSRoot) {
			log.Fatal("BIDS root failed validation", "path", cfg.Data.BIDSRoot)
		}
		records, err := bids.BuildIndex(cfg.Data.BIDSRoot)
		if err != nil {
			log.Fatal("BIDS indexing failed", "error", err)
		}
		metricsDir := filepath.Join(cfg.Data.OutputsDir, "metrics")
		if err := os.MkdirAll(metricsDir, 0o755); err != nil {
			log.Fatal("Could not create metrics dir", "error", err)
		}
		if err := bids.WriteIndexCSV(records, filepath.Join(metricsDir, "bids_index.csv")); err != nil {
			log.Fatal("Could not write BIDS index", "error", err)
		}
		summary := bids.SummarizeIndex(records)
		if err := bids.WriteIndexSummaryJSON(summary, filepath.Join(metricsDir, "bids_index_summary.json")); err != nil {
			log.Fatal("Could not write BIDS index summary", "error", err)
		}
		log.Info("BIDS index complete", "eeg_files", len(records))
	}

	if !cfg.Execution.RunFeatures || !cfg.Execution.RunModeling {
		log.Info("Feature or modeling step disabled, stopping after data loading")
		return
	}

	// Run-stamp store. A failed open degrades to an unpersisted run.
	var runRepo runs.DecodingRunRepo
	dbService, err := db.NewService(log)
	if err != nil {
		log.Warn("Run store unavailable, run stamp will not be persisted", "error", err)
	} else {
		if err := db.AutoMigrateAll(dbService.DB()); err != nil {
			log.Fatal("Migration failed", "error", err)
		}
		runRepo = runs.NewDecodingRunRepo(dbService.DB(), log)
	}

	source := epochs.NewDerivativeSource(cfg.Data.DerivativesDir, log)

	out, err := decoding.Run(ctx, decoding.Deps{Log: log, Source: source, Runs: runRepo}, decoding.Input{Config: cfg})
	if err != nil {
		log.Fatal("Decoding run failed", "error", err)
	}

	figurePaths := map[string]string{}
	if cfg.Execution.RunVisualization {
		figures := services.NewFigureService(log)
		figuresDir := filepath.Join(cfg.Data.OutputsDir, "figures")

		labels := make([]int, len(out.Table.Records))
		for i, r := range out.Table.Records {
			labels[i] = r.Label.Binary()
		}
		targets := []struct {
			name string
			path string
			fn   func(string) error
		}{
			{"class balance", filepath.Join(figuresDir, "class_balance.png"), func(p string) error {
				return figures.ClassBalanceFigure(out.Counts.ClassCounts, p)
			}},
			{"fold balanced accuracy", filepath.Join(figuresDir, "fold_balanced_accuracy.png"), func(p string) error {
				return figures.FoldAccuracyFigure(out.Metrics, p)
			}},
			{"roc curve", filepath.Join(figuresDir, "roc_curve.png"), func(p string) error {
				return figures.ROCFigure(out.OutOfFoldScores, labels, out.Metrics.ROCAUC, p)
			}},
			{"confusion matrix", filepath.Join(figuresDir, "confusion_matrix.png"), func(p string) error {
				return figures.ConfusionFigure(out.Metrics.Confusion, p)
			}},
		}
		for _, t := range targets {
			if err := t.fn(t.path); err != nil {
				log.Fatal("Figure generation failed", "figure", t.name, "error", err)
			}
			figurePaths[t.name] = t.path
		}
	}

	if cfg.Execution.RunReport {
		report := services.NewReportService(log)
		reportPath := filepath.Join(cfg.Data.OutputsDir, "report", "results.md")
		err := report.WriteResults(services.ReportInput{
			Dataset:     cfg.Project.Dataset,
			Task:        cfg.Analysis.TaskName,
			Counts:      out.Counts,
			Metrics:     out.Metrics,
			FigurePaths: figurePaths,
		}, reportPath)
		if err != nil {
			log.Fatal("Report generation failed", "error", err)
		}
	}

	log.Info("Pipeline complete",
		"run_id", out.RunID,
		"mean_balanced_accuracy", out.Metrics.MeanBalancedAccuracy,
		"roc_auc", out.Metrics.ROCAUC,
	)
}
