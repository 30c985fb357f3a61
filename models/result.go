package models

import "time"

// CellResult is the outcome of fetching one (year, industry) cell.
// A nil Err means success, possibly with zero records.
type CellResult struct {
	Year     int
	Industry IndustryCode
	Records  []CountyRecord
	Dropped  int
	Cached   bool
	Err      error
}

func (c CellResult) OK() bool {
	return c.Err == nil
}

// Rows returns the records to store for the cell; failed cells yield none.
func (c CellResult) Rows() []CountyRecord {
	if c.Err != nil || c.Records == nil {
		return []CountyRecord{}
	}
	return c.Records
}

// RunResult holds the overall result of a pipeline run
type RunResult struct {
	RunID            string
	StartTime        time.Time
	EndTime          time.Time
	CellCount        int
	FailedCells      []string
	ErrorsByType     map[string]int
	RowCount         int
	DroppedRows      int
	CountyCount      int
	CountyListCopied bool
}
