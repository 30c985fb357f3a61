package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/aluiziolira/cbp-establishments/models"
)

// Writer exports the processed series to a secondary format.
type Writer interface {
	Write(processed models.Processed) error
	Close() error
	Validate() error
}

// CSVWriter writes the processed series in long form, one row per data point.
type CSVWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	header := []string{"county_id", "name", "industry", "year", "establishments"}
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		path:   filename,
		file:   f,
		writer: writer,
	}, nil
}

// Write appends every (county, industry, year) point, sorted on all three keys.
func (cw *CSVWriter) Write(processed models.Processed) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, id := range processed.CountyIDs() {
		county := processed[id]
		for _, code := range sortedCodes(county.Series) {
			years := county.Series[code]
			for _, year := range sortedKeys(years) {
				record := []string{id, county.Name, string(code), year, strconv.Itoa(years[year])}
				if err := cw.writer.Write(record); err != nil {
					return fmt.Errorf("write csv record: %w", err)
				}
			}
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file holds at least the header.
func (cw *CSVWriter) Validate() error {
	info, err := os.Stat(cw.path)
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

func sortedCodes(series map[models.IndustryCode]map[string]int) []models.IndustryCode {
	codes := make([]models.IndustryCode, 0, len(series))
	for code := range series {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
