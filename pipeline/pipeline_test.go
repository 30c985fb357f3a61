package pipeline

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/aluiziolira/cbp-establishments/config"
	"github.com/aluiziolira/cbp-establishments/models"
	"github.com/aluiziolira/cbp-establishments/scraper"
	"github.com/aluiziolira/cbp-establishments/storage"
	"github.com/jarcoal/httpmock"
)

const cellTable = `[
	["ESTAB","NAME","NAICS2012","state","county"],
	["1200","Philadelphia County, Pennsylvania","5411","42","101"],
	["","Adams County, Pennsylvania","5411","42","001"],
	["35","Autauga County, Alabama","5411","1","1"]
]`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://api.census.test/data"
	cfg.StartYear = 2015
	cfg.EndYear = 2016
	cfg.Delay = 0
	cfg.RawDir = filepath.Join(dir, "raw")
	cfg.ProcessedDir = filepath.Join(dir, "processed")
	cfg.CountyListSource = filepath.Join(dir, "migration", "county_list.json")
	return cfg
}

func newMockedFetcher(t *testing.T, cfg *config.Config) *scraper.Fetcher {
	t.Helper()
	fetcher, err := scraper.NewFetcher(cfg)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	transport := httpmock.NewMockTransport()
	transport.RegisterRegexpResponder(http.MethodGet, regexp.MustCompile(`/data/\d{4}/cbp\?`),
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("NAICS2012") == "7225" && req.URL.Path == "/data/2015/cbp" {
				return httpmock.NewStringResponse(http.StatusInternalServerError, "oops"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, cellTable), nil
		})
	fetcher.WithTransport(transport)
	return fetcher
}

func TestPipelineRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	fetcher := newMockedFetcher(t, cfg)
	store := storage.NewFileStore(cfg.RawPath(), cfg.ProcessedPath())

	csvWriter, err := storage.NewCSVWriter(cfg.CSVPath())
	if err != nil {
		t.Fatalf("csv writer: %v", err)
	}
	sqliteWriter, err := storage.NewSQLiteWriter(cfg.SQLitePath(), "run-e2e")
	if err != nil {
		t.Fatalf("sqlite writer: %v", err)
	}
	writer := storage.NewMultiWriter(csvWriter, sqliteWriter)
	defer writer.Close()

	result, err := NewPipeline(cfg, fetcher, store, writer, "run-e2e").Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	cells := len(cfg.Years()) * len(models.Industries())
	if result.CellCount != cells {
		t.Fatalf("cells=%d, want %d", result.CellCount, cells)
	}
	if len(result.FailedCells) != 1 || result.FailedCells[0] != "2015/7225" {
		t.Fatalf("failed cells = %v", result.FailedCells)
	}
	if result.ErrorsByType["http_status"] != 1 {
		t.Fatalf("errors by type = %v", result.ErrorsByType)
	}
	if result.RowCount != 2*(cells-1) || result.DroppedRows != cells-1 {
		t.Fatalf("rows=%d dropped=%d", result.RowCount, result.DroppedRows)
	}
	if result.CountyCount != 2 || result.CountyListCopied {
		t.Fatalf("counties=%d copied=%v", result.CountyCount, result.CountyListCopied)
	}
	if result.RunID != "run-e2e" || result.EndTime.Before(result.StartTime) {
		t.Fatalf("run metadata = %+v", result)
	}

	var raw models.CrossProductResult
	if err := store.Load(storage.Raw, &raw); err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if got := raw[2015]["7225"]; got == nil || len(got) != 0 {
		t.Fatalf("failed cell = %#v, want empty list", got)
	}

	var processed models.Processed
	if err := store.Load(storage.Processed, &processed); err != nil {
		t.Fatalf("load processed: %v", err)
	}
	philly := processed["42101"]
	if philly == nil || philly.Name != "Philadelphia County, Pennsylvania" {
		t.Fatalf("philadelphia = %+v", philly)
	}
	if _, ok := philly.Series["7225"]["2015"]; ok {
		t.Fatalf("failed cell should contribute no point")
	}
	if philly.Series["7225"]["2016"] != 1200 {
		t.Fatalf("7225/2016 = %d, want 1200", philly.Series["7225"]["2016"])
	}
	if _, ok := processed["42001"]; ok {
		t.Fatalf("row with empty ESTAB should be dropped")
	}

	if info, err := os.Stat(cfg.CSVPath()); err != nil || info.Size() == 0 {
		t.Fatalf("csv export missing: %v", err)
	}
}

func TestPipelineCopiesCountyList(t *testing.T) {
	cfg := testConfig(t)
	cfg.StartYear, cfg.EndYear = 2015, 2015
	if err := os.MkdirAll(filepath.Dir(cfg.CountyListSource), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(cfg.CountyListSource, []byte(`[{"fips":"42101"}]`), 0o644); err != nil {
		t.Fatalf("write county list: %v", err)
	}

	fetcher := &stubFetcher{}
	result, err := NewPipeline(cfg, fetcher, newMemStore(), nil, "run-copy").Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.CountyListCopied {
		t.Fatalf("county list should be copied")
	}
	if _, err := os.Stat(filepath.Join(cfg.ProcessedDir, cfg.CountyListFile)); err != nil {
		t.Fatalf("copied county list missing: %v", err)
	}
	if result.CountyCount != 0 || result.CellCount != len(models.Industries()) {
		t.Fatalf("result = %+v", result)
	}
}

type rejectingWriter struct{}

func (rejectingWriter) Write(models.Processed) error { return nil }
func (rejectingWriter) Close() error                 { return nil }
func (rejectingWriter) Validate() error              { return errors.New("row count mismatch") }

func TestPipelineExportValidationFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.StartYear, cfg.EndYear = 2015, 2015

	_, err := NewPipeline(cfg, &stubFetcher{}, newMemStore(), rejectingWriter{}, "run-bad").Run()
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestPipelineRawSaveFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.StartYear, cfg.EndYear = 2015, 2015
	store := newMemStore()
	store.saveErr = errors.New("disk full")

	if _, err := NewPipeline(cfg, &stubFetcher{}, store, nil, "run-bad").Run(); err == nil {
		t.Fatalf("expected save error")
	}
}
