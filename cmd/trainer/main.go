package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/semiprime/survival-matrix/internal/fingerprint"
)

// The trainer is a one-shot batch job: it reads a labeled CSV, fits the
// scaler and classifier, and writes the full asset bundle plus a summary.
// Any training-data problem aborts the run before any file is written.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	defaults := fingerprint.DefaultTrainOptions()

	csvPath := flag.String("csv", "train.csv", "path to the labeled training CSV")
	outPrefix := flag.String("out-prefix", "./assets/survival_matrix", "output path prefix for the asset files")
	version := flag.String("version", defaults.Version, "version stamp written into every asset")
	seed := flag.Int64("seed", defaults.Seed, "shuffle seed for reproducible runs")
	outlierThreshold := flag.Float64("outlier-threshold", defaults.OutlierThreshold, "absolute residual above which a training row counts as an outlier")
	minRows := flag.Int("min-rows", defaults.MinRows, "minimum labeled rows required to train")
	flag.Parse()

	opts := defaults
	opts.Version = *version
	opts.Seed = *seed
	opts.OutlierThreshold = *outlierThreshold
	opts.MinRows = *minRows

	records, err := fingerprint.LoadCSV(*csvPath)
	if err != nil {
		slog.Error("Failed to load training data", "csv", *csvPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Training data loaded", "csv", *csvPath, "rows", len(records))

	bundle, summary, err := fingerprint.Train(records, opts)
	if err != nil {
		slog.Error("Training failed", "error", err)
		os.Exit(1)
	}

	store := fingerprint.NewAssetStore(*outPrefix)
	if err := store.Save(bundle); err != nil {
		slog.Error("Failed to write asset bundle", "prefix", *outPrefix, "error", err)
		os.Exit(1)
	}
	if err := store.SaveSummary(summary); err != nil {
		slog.Error("Failed to write training summary", "prefix", *outPrefix, "error", err)
		os.Exit(1)
	}

	slog.Info("Training complete",
		"prefix", *outPrefix,
		"rows", summary.Rows,
		"survival_rate", summary.SurvivalRate,
		"train_accuracy", summary.TrainAccuracy,
		"outliers", summary.OutlierCount,
		"ordering_violations", len(summary.OrderingViolations))
}
