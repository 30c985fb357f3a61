package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aluiziolira/cbp-establishments/models"
)

const (
	// StateWidth and CountyWidth are the FIPS widths used by the Census API.
	StateWidth  = 2
	CountyWidth = 3

	// Column positions of a CBP county row: ESTAB, NAME, <NAICS var>, state, county.
	colEstab  = 0
	colName   = 1
	colState  = 3
	colCounty = 4
	rowWidth  = 5
)

var (
	ErrMissingEstablishments = errors.New("establishments missing")
	ErrInvalidEstablishments = errors.New("establishments not a non-negative integer")
	ErrShortRow              = errors.New("row has too few columns")
	ErrInvalidCountyID       = errors.New("invalid county id")
)

// Table is the parsed body of one CBP response.
type Table struct {
	Records []models.CountyRecord
	Dropped map[string]int
}

// DroppedCount is the total of rows skipped for any reason.
func (t *Table) DroppedCount() int {
	n := 0
	for _, c := range t.Dropped {
		n += c
	}
	return n
}

// ParseTable decodes a CBP JSON table. The first row is the header and is skipped.
// Rows that fail validation are counted in Dropped; only a body that is not a
// table at all is an error.
func ParseTable(body []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table has no header row")
	}

	table := &Table{
		Records: make([]models.CountyRecord, 0, len(rows)-1),
		Dropped: make(map[string]int),
	}
	for _, row := range rows[1:] {
		record, err := ParseRow(row)
		if err != nil {
			table.Dropped[DropReason(err)]++
			continue
		}
		table.Records = append(table.Records, record)
	}
	return table, nil
}

// ParseRow converts one data row into a CountyRecord.
func ParseRow(row []any) (models.CountyRecord, error) {
	if len(row) < rowWidth {
		return models.CountyRecord{}, fmt.Errorf("%w: got %d", ErrShortRow, len(row))
	}

	estab, err := ParseEstablishments(row[colEstab])
	if err != nil {
		return models.CountyRecord{}, err
	}

	countyID, err := CountyID(stringValue(row[colState]), stringValue(row[colCounty]))
	if err != nil {
		return models.CountyRecord{}, err
	}

	return models.CountyRecord{
		CountyID:       countyID,
		Name:           strings.TrimSpace(stringValue(row[colName])),
		Establishments: estab,
	}, nil
}

// ParseEstablishments accepts the string or numeric forms the API uses for ESTAB.
func ParseEstablishments(v any) (int, error) {
	var (
		n   int64
		err error
	)
	switch value := v.(type) {
	case nil:
		return 0, ErrMissingEstablishments
	case string:
		text := strings.TrimSpace(value)
		if text == "" {
			return 0, ErrMissingEstablishments
		}
		n, err = strconv.ParseInt(text, 10, 64)
	case json.Number:
		n, err = value.Int64()
	case float64:
		n = int64(value)
		if float64(n) != value {
			err = fmt.Errorf("fractional value %v", value)
		}
	default:
		err = fmt.Errorf("unexpected type %T", v)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidEstablishments, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidEstablishments, n)
	}
	return int(n), nil
}

// CountyID joins a state id and county id into the fixed-width 5 character FIPS code.
func CountyID(state, county string) (string, error) {
	s, err := padDigits(state, StateWidth)
	if err != nil {
		return "", fmt.Errorf("%w: state %q: %v", ErrInvalidCountyID, state, err)
	}
	c, err := padDigits(county, CountyWidth)
	if err != nil {
		return "", fmt.Errorf("%w: county %q: %v", ErrInvalidCountyID, county, err)
	}
	return s + c, nil
}

// DropReason labels a row error for metrics.
func DropReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingEstablishments):
		return "missing_establishments"
	case errors.Is(err, ErrInvalidEstablishments):
		return "invalid_establishments"
	case errors.Is(err, ErrShortRow):
		return "short_row"
	case errors.Is(err, ErrInvalidCountyID):
		return "invalid_county_id"
	default:
		return "other"
	}
}

func padDigits(value string, width int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("empty")
	}
	if len(value) > width {
		return "", fmt.Errorf("longer than %d digits", width)
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("non-digit %q", r)
		}
	}
	return strings.Repeat("0", width-len(value)) + value, nil
}

func stringValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case json.Number:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}
