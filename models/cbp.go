package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// CountyRecord is one county row of a (year, industry) cell.
type CountyRecord struct {
	CountyID       string
	Name           string
	Establishments int
}

// MarshalJSON encodes the record as a [countyId, name, establishments] tuple.
func (r CountyRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.CountyID, r.Name, r.Establishments})
}

func (r *CountyRecord) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("decode county record: %w", err)
	}
	if len(tuple) != 3 {
		return fmt.Errorf("county record has %d fields, want 3", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &r.CountyID); err != nil {
		return fmt.Errorf("decode county id: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &r.Name); err != nil {
		return fmt.Errorf("decode county name: %w", err)
	}
	if err := json.Unmarshal(tuple[2], &r.Establishments); err != nil {
		return fmt.Errorf("decode establishments: %w", err)
	}
	return nil
}

// CrossProductResult holds every attempted cell: year -> industry -> rows.
type CrossProductResult map[int]map[IndustryCode][]CountyRecord

// Set stores a cell, normalising nil rows to an empty slice.
func (r CrossProductResult) Set(year int, code IndustryCode, records []CountyRecord) {
	if records == nil {
		records = []CountyRecord{}
	}
	cells, ok := r[year]
	if !ok {
		cells = make(map[IndustryCode][]CountyRecord)
		r[year] = cells
	}
	cells[code] = records
}

// Years returns the years present, ascending.
func (r CrossProductResult) Years() []int {
	years := make([]int, 0, len(r))
	for y := range r {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Merge returns a new result holding the cells of r and other. Cells in other win on conflict.
func (r CrossProductResult) Merge(other CrossProductResult) CrossProductResult {
	out := make(CrossProductResult, len(r)+len(other))
	for _, src := range []CrossProductResult{r, other} {
		for year, cells := range src {
			for code, records := range cells {
				out.Set(year, code, records)
			}
		}
	}
	return out
}

func (r CrossProductResult) CellCount() int {
	n := 0
	for _, cells := range r {
		n += len(cells)
	}
	return n
}

func (r CrossProductResult) RowCount() int {
	n := 0
	for _, cells := range r {
		for _, records := range cells {
			n += len(records)
		}
	}
	return n
}

// ProcessedCounty is the merged time series of one county.
type ProcessedCounty struct {
	Name   string
	Series map[IndustryCode]map[string]int
}

// MarshalJSON flattens Series next to "name": {"name": ..., "5411": {"2015": 1200}}.
func (p ProcessedCounty) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Series)+1)
	for code, years := range p.Series {
		out[string(code)] = years
	}
	out["name"] = p.Name
	return json.Marshal(out)
}

func (p *ProcessedCounty) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode processed county: %w", err)
	}

	p.Name = ""
	p.Series = make(map[IndustryCode]map[string]int, len(fields))
	for key, raw := range fields {
		if key == "name" {
			if err := json.Unmarshal(raw, &p.Name); err != nil {
				return fmt.Errorf("decode county name: %w", err)
			}
			continue
		}
		var years map[string]int
		if err := json.Unmarshal(raw, &years); err != nil {
			return fmt.Errorf("decode series %s: %w", key, err)
		}
		p.Series[IndustryCode(key)] = years
	}
	return nil
}

// Processed maps countyId to its merged series.
type Processed map[string]*ProcessedCounty

// CountyIDs returns the county ids, ascending.
func (p Processed) CountyIDs() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PointCount is the number of (county, industry, year) values.
func (p Processed) PointCount() int {
	n := 0
	for _, county := range p {
		for _, years := range county.Series {
			n += len(years)
		}
	}
	return n
}
