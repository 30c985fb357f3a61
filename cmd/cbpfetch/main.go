package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aluiziolira/cbp-establishments/config"
	"github.com/aluiziolira/cbp-establishments/models"
	"github.com/aluiziolira/cbp-establishments/pipeline"
	"github.com/aluiziolira/cbp-establishments/scraper"
	"github.com/aluiziolira/cbp-establishments/storage"
	"github.com/google/uuid"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.DefaultConfig()

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	runID := uuid.NewString()
	slog.Info("starting CBP download",
		slog.String("run_id", runID),
		slog.String("base_url", cfg.BaseURL),
		slog.Int("start_year", cfg.StartYear),
		slog.Int("end_year", cfg.EndYear),
	)

	fetcher, err := scraper.NewFetcher(cfg)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		return 1
	}

	writer, err := createWriter(cfg, runID)
	if err != nil {
		slog.Error("creating writers", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writers", slog.Any("error", err))
		}
	}()

	store := storage.NewFileStore(cfg.RawPath(), cfg.ProcessedPath())
	result, err := pipeline.NewPipeline(cfg, fetcher, store, writer, runID).Run()
	if err != nil {
		slog.Error("pipeline failed", slog.Any("error", err))
		return 1
	}

	if path := cfg.MetricsPath(); path != "" {
		if err := fetcher.Metrics.WriteTextfile(path); err != nil {
			slog.Error("writing metrics", slog.Any("error", err))
		}
	}

	printSummary(result, cfg)
	return 0
}

// createWriter combines the enabled secondary exports.
func createWriter(cfg *config.Config, runID string) (*storage.MultiWriter, error) {
	var writers []storage.Writer
	if path := cfg.CSVPath(); path != "" {
		csvWriter, err := storage.NewCSVWriter(path)
		if err != nil {
			return nil, err
		}
		writers = append(writers, csvWriter)
	}
	if path := cfg.SQLitePath(); path != "" {
		sqliteWriter, err := storage.NewSQLiteWriter(path, runID)
		if err != nil {
			for _, w := range writers {
				w.Close()
			}
			return nil, err
		}
		writers = append(writers, sqliteWriter)
	}
	return storage.NewMultiWriter(writers...), nil
}

func printSummary(result *models.RunResult, cfg *config.Config) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Download complete")
	fmt.Printf("  Run ID:        %s\n", result.RunID)
	fmt.Printf("  Cells:         %d\n", result.CellCount)
	fmt.Printf("  Failed cells:  %d\n", len(result.FailedCells))
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Rows:          %d\n", result.RowCount)
	fmt.Printf("  Dropped rows:  %d\n", result.DroppedRows)
	fmt.Printf("  Counties:      %d\n", result.CountyCount)
	fmt.Printf("  County list:   %v\n", result.CountyListCopied)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Printf("  Raw file:      %s\n", cfg.RawPath())
	fmt.Printf("  Output file:   %s\n", cfg.ProcessedPath())
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
