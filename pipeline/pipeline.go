package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aluiziolira/cbp-establishments/config"
	"github.com/aluiziolira/cbp-establishments/models"
	"github.com/aluiziolira/cbp-establishments/storage"
)

// Pipeline runs download, aggregation and export end to end.
type Pipeline struct {
	cfg        *config.Config
	downloader *Downloader
	store      BlobStore
	writer     storage.Writer
	runID      string
}

// NewPipeline wires a pipeline. writer may be nil when no secondary export is wanted.
func NewPipeline(cfg *config.Config, fetcher Fetcher, store BlobStore, writer storage.Writer, runID string) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		downloader: NewDownloader(fetcher, store, cfg.Delay),
		store:      store,
		writer:     writer,
		runID:      runID,
	}
}

// Run executes one full pass. Cell failures are reported in the result; storage
// failures abort the run.
func (p *Pipeline) Run() (*models.RunResult, error) {
	start := time.Now()
	years := p.cfg.Years()
	industries := models.Industries()

	slog.Info("downloading CBP data",
		slog.Int("years", len(years)),
		slog.Int("industries", len(industries)),
	)
	raw, err := p.downloader.DownloadAll(years, industries)
	if err != nil {
		return nil, err
	}
	slog.Info("raw data saved", slog.String("path", p.cfg.RawPath()))

	slog.Info("processing data")
	processed := Aggregate(raw)
	if err := p.store.Save(storage.Processed, processed); err != nil {
		return nil, fmt.Errorf("save processed results: %w", err)
	}
	if err := p.verify(raw, processed); err != nil {
		return nil, err
	}
	slog.Info("processed data saved",
		slog.String("path", p.cfg.ProcessedPath()),
		slog.Int("counties", len(processed)),
	)

	if p.writer != nil {
		if err := p.writer.Write(processed); err != nil {
			return nil, fmt.Errorf("export processed results: %w", err)
		}
		if err := p.writer.Validate(); err != nil {
			return nil, fmt.Errorf("validate exports: %w", err)
		}
	}

	slog.Info("copying county list")
	copied, err := storage.CopyCountyList(p.cfg.CountyListSource, filepath.Join(p.cfg.ProcessedDir, p.cfg.CountyListFile))
	if err != nil {
		return nil, err
	}

	report := p.downloader.Report()
	return &models.RunResult{
		RunID:            p.runID,
		StartTime:        start,
		EndTime:          time.Now(),
		CellCount:        report.Cells,
		FailedCells:      report.FailedCells,
		ErrorsByType:     report.ErrorsByType,
		RowCount:         report.Rows,
		DroppedRows:      report.Dropped,
		CountyCount:      len(processed),
		CountyListCopied: copied,
	}, nil
}

// verify reads both blobs back and checks they match what was written.
func (p *Pipeline) verify(raw models.CrossProductResult, processed models.Processed) error {
	var storedRaw models.CrossProductResult
	if err := p.store.Load(storage.Raw, &storedRaw); err != nil {
		return fmt.Errorf("verify raw results: %w", err)
	}
	if storedRaw.CellCount() != raw.CellCount() {
		return fmt.Errorf("raw store holds %d cells, want %d", storedRaw.CellCount(), raw.CellCount())
	}

	var storedProcessed models.Processed
	if err := p.store.Load(storage.Processed, &storedProcessed); err != nil {
		return fmt.Errorf("verify processed results: %w", err)
	}
	if len(storedProcessed) != len(processed) {
		return fmt.Errorf("processed store holds %d counties, want %d", len(storedProcessed), len(processed))
	}
	return nil
}
