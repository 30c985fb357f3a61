package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/cbp-establishments/models"
	"github.com/aluiziolira/cbp-establishments/scraper"
	"github.com/aluiziolira/cbp-establishments/storage"
)

// Fetcher retrieves one (year, industry) cell.
type Fetcher interface {
	Fetch(year int, code models.IndustryCode) models.CellResult
}

// BlobStore persists the raw and processed payloads.
type BlobStore interface {
	Save(store storage.Store, payload any) error
	Load(store storage.Store, into any) error
}

// DownloadReport summarises a DownloadAll call.
type DownloadReport struct {
	Cells        int
	FailedCells  []string
	ErrorsByType map[string]int
	Rows         int
	Dropped      int
}

// Downloader scans the year x industry cross-product one cell at a time.
type Downloader struct {
	fetcher Fetcher
	store   BlobStore
	delay   time.Duration
	sleep   func(time.Duration)

	report DownloadReport
}

func NewDownloader(fetcher Fetcher, store BlobStore, delay time.Duration) *Downloader {
	return &Downloader{
		fetcher: fetcher,
		store:   store,
		delay:   delay,
		sleep:   time.Sleep,
	}
}

// DownloadAll fetches every cell, waiting the configured delay between calls,
// and saves the result to the raw store before returning. Failed cells are kept
// with zero rows; only a failure to save is returned.
func (d *Downloader) DownloadAll(years []int, industries []models.Industry) (models.CrossProductResult, error) {
	d.report = DownloadReport{ErrorsByType: make(map[string]int)}
	result := make(models.CrossProductResult, len(years))

	calls := 0
	for _, year := range years {
		slog.Info("downloading year", slog.Int("year", year))
		for _, industry := range industries {
			if calls > 0 && d.delay > 0 {
				d.sleep(d.delay)
			}
			calls++

			cell := d.fetcher.Fetch(year, industry.Code)
			result.Set(year, industry.Code, cell.Rows())
			d.record(cell)

			slog.Info("cell complete",
				slog.Int("year", year),
				slog.String("naics", string(industry.Code)),
				slog.String("label", industry.Label),
				slog.Int("counties", len(cell.Rows())),
				slog.Bool("ok", cell.OK()),
			)
		}
	}

	if err := d.store.Save(storage.Raw, result); err != nil {
		return result, fmt.Errorf("save raw results: %w", err)
	}
	return result, nil
}

// Report returns a copy of the last DownloadAll summary.
func (d *Downloader) Report() DownloadReport {
	out := d.report
	out.FailedCells = append([]string(nil), d.report.FailedCells...)
	out.ErrorsByType = make(map[string]int, len(d.report.ErrorsByType))
	for k, v := range d.report.ErrorsByType {
		out.ErrorsByType[k] = v
	}
	return out
}

func (d *Downloader) record(cell models.CellResult) {
	d.report.Cells++
	d.report.Rows += len(cell.Rows())
	d.report.Dropped += cell.Dropped
	if cell.OK() {
		return
	}
	d.report.FailedCells = append(d.report.FailedCells, fmt.Sprintf("%d/%s", cell.Year, cell.Industry))
	d.report.ErrorsByType[scraper.ErrorTypeLabel(cell.Err)]++
}
