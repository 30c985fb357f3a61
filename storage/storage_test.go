package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aluiziolira/cbp-establishments/models"
)

func sampleProcessed() models.Processed {
	return models.Processed{
		"42101": {
			Name: "Philadelphia County, Pennsylvania",
			Series: map[models.IndustryCode]map[string]int{
				"5411": {"2016": 1210, "2015": 1200},
				"7225": {"2015": 4000},
			},
		},
		"01001": {
			Name: "Autauga County, Alabama",
			Series: map[models.IndustryCode]map[string]int{
				"5411": {"2015": 35},
			},
		},
	}
}

func TestFileStoreRawShape(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "raw", "cbp_raw_data.json"), filepath.Join(dir, "processed", "cbp_data.json"))

	raw := models.CrossProductResult{}
	raw.Set(2015, "5411", []models.CountyRecord{{CountyID: "42101", Name: "Philadelphia County, PA", Establishments: 1200}})
	raw.Set(2015, "7225", nil)

	if err := store.Save(Raw, raw); err != nil {
		t.Fatalf("save raw: %v", err)
	}

	path, _ := store.Path(Raw)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	want := `{"2015":{"5411":[["42101","Philadelphia County, PA",1200]],"7225":[]}}`
	if got := strings.TrimSpace(string(data)); got != want {
		t.Fatalf("raw json=%s, want %s", got, want)
	}

	var loaded models.CrossProductResult
	if err := store.Load(Raw, &loaded); err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if got := loaded[2015]["5411"][0]; got.CountyID != "42101" || got.Establishments != 1200 {
		t.Fatalf("loaded record = %+v", got)
	}
}

func TestFileStoreProcessedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "raw.json"), filepath.Join(dir, "nested", "deeper", "cbp_data.json"))

	if err := store.Save(Processed, sampleProcessed()); err != nil {
		t.Fatalf("save processed: %v", err)
	}

	var loaded models.Processed
	if err := store.Load(Processed, &loaded); err != nil {
		t.Fatalf("load processed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("counties=%d, want 2", len(loaded))
	}
	if got := loaded["42101"].Series["5411"]["2016"]; got != 1210 {
		t.Fatalf("42101/5411/2016 = %d, want 1210", got)
	}
}

func TestFileStoreErrors(t *testing.T) {
	store := NewFileStore("", filepath.Join(t.TempDir(), "missing.json"))
	if err := store.Save(Raw, map[string]int{}); err == nil {
		t.Fatalf("expected error for unconfigured store")
	}
	var into models.Processed
	if err := store.Load(Processed, &into); err == nil {
		t.Fatalf("expected error loading missing file")
	}
}

func TestCSVWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "cbp_data.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Write(sampleProcessed()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := [][]string{
		{"county_id", "name", "industry", "year", "establishments"},
		{"01001", "Autauga County, Alabama", "5411", "2015", "35"},
		{"42101", "Philadelphia County, Pennsylvania", "5411", "2015", "1200"},
		{"42101", "Philadelphia County, Pennsylvania", "5411", "2016", "1210"},
		{"42101", "Philadelphia County, Pennsylvania", "7225", "2015", "4000"},
	}
	if len(records) != len(want) {
		t.Fatalf("records=%d, want %d", len(records), len(want))
	}
	for i := range want {
		if strings.Join(records[i], "|") != strings.Join(want[i], "|") {
			t.Fatalf("row %d = %v, want %v", i, records[i], want[i])
		}
	}
}

func TestSQLiteWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cbp_data.sqlite")

	writer, err := NewSQLiteWriter(path, "run-1")
	if err != nil {
		t.Fatalf("create sqlite writer: %v", err)
	}
	defer writer.Close()

	processed := sampleProcessed()
	if err := writer.Write(processed); err != nil {
		t.Fatalf("write sqlite: %v", err)
	}
	// A second write replaces the series rather than duplicating it.
	if err := writer.Write(processed); err != nil {
		t.Fatalf("rewrite sqlite: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate sqlite: %v", err)
	}

	var points int
	if err := writer.db.QueryRow(`SELECT COUNT(*) FROM establishments`).Scan(&points); err != nil {
		t.Fatalf("count points: %v", err)
	}
	if points != processed.PointCount() {
		t.Fatalf("points=%d, want %d", points, processed.PointCount())
	}

	var name string
	var count int
	err = writer.db.QueryRow(`SELECT c.name, e.establishments FROM establishments e
		JOIN counties c ON c.county_id = e.county_id
		WHERE e.county_id = ? AND e.industry = ? AND e.year = ?`, "42101", "5411", 2016).Scan(&name, &count)
	if err != nil {
		t.Fatalf("query point: %v", err)
	}
	if name != "Philadelphia County, Pennsylvania" || count != 1210 {
		t.Fatalf("point = %s/%d", name, count)
	}

	var runs int
	if err := writer.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE run_id = ?`, "run-1").Scan(&runs); err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if runs != 1 {
		t.Fatalf("runs=%d, want 1", runs)
	}
}

type failingWriter struct {
	closed bool
}

func (fw *failingWriter) Write(models.Processed) error { return errors.New("disk full") }
func (fw *failingWriter) Close() error                 { fw.closed = true; return nil }
func (fw *failingWriter) Validate() error              { return nil }

func TestMultiWriterCollectsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cbp_data.csv")
	csvWriter, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	failing := &failingWriter{}

	mw := NewMultiWriter(csvWriter, nil, failing)
	if mw.Len() != 2 {
		t.Fatalf("writers=%d, want 2", mw.Len())
	}

	err = mw.Write(sampleProcessed())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected disk full error, got %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !failing.closed {
		t.Fatalf("every writer should be closed")
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("csv should still be written")
	}
}

func TestCopyCountyList(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "migration", "county_list.json")
	dst := filepath.Join(dir, "processed", "county_list.json")

	copied, err := CopyCountyList(src, dst)
	if err != nil || copied {
		t.Fatalf("missing source: copied=%v err=%v, want false/nil", copied, err)
	}

	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content, _ := json.Marshal([]map[string]string{{"fips": "42_101", "name": "Philadelphia County, PA"}})
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	copied, err = CopyCountyList(src, dst)
	if err != nil || !copied {
		t.Fatalf("copy: copied=%v err=%v", copied, err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("copy differs: %s", got)
	}
}
