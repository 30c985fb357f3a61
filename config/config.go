package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"
)

// Config holds pipeline configuration.
type Config struct {
	BaseURL          string
	StartYear        int
	EndYear          int
	Delay            time.Duration
	Timeout          time.Duration
	UserAgent        string
	CellCacheSize    int
	RawDir           string
	ProcessedDir     string
	RawFile          string
	ProcessedFile    string
	CSVFile          string // empty disables the CSV export
	SQLiteFile       string // empty disables the SQLite mirror
	MetricsFile      string // written under RawDir; empty disables
	CountyListSource string
	CountyListFile   string
	Verbose          bool
}

// DefaultConfig returns the settings used for a full run against the Census API.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://api.census.gov/data",
		StartYear:        2012,
		EndYear:          2023,
		Delay:            500 * time.Millisecond,
		Timeout:          30 * time.Second,
		UserAgent:        "PeakBusinessCalculator/1.0",
		CellCacheSize:    256,
		RawDir:           filepath.Join("data", "raw"),
		ProcessedDir:     filepath.Join("data", "processed"),
		RawFile:          "cbp_raw_data.json",
		ProcessedFile:    "cbp_data.json",
		CSVFile:          "cbp_data.csv",
		SQLiteFile:       "cbp_data.sqlite",
		MetricsFile:      "cbp_metrics.prom",
		CountyListSource: filepath.Join("..", "Migration Flow Tool", "data", "processed", "county_list.json"),
		CountyListFile:   "county_list.json",
		Verbose:          false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.StartYear <= 0 || c.EndYear <= 0 {
		return fmt.Errorf("years must be positive")
	}
	if c.StartYear > c.EndYear {
		return fmt.Errorf("start year (%d) cannot exceed end year (%d)", c.StartYear, c.EndYear)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.CellCacheSize <= 0 {
		return fmt.Errorf("cell cache size must be positive")
	}
	if c.RawDir == "" || c.RawFile == "" {
		return fmt.Errorf("raw output path cannot be empty")
	}
	if c.ProcessedDir == "" || c.ProcessedFile == "" {
		return fmt.Errorf("processed output path cannot be empty")
	}
	if c.CountyListFile == "" {
		return fmt.Errorf("county list file cannot be empty")
	}

	return nil
}

// Years returns every year from StartYear to EndYear inclusive.
func (c *Config) Years() []int {
	if c.EndYear < c.StartYear {
		return nil
	}
	years := make([]int, 0, c.EndYear-c.StartYear+1)
	for y := c.StartYear; y <= c.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

func (c *Config) RawPath() string {
	return filepath.Join(c.RawDir, c.RawFile)
}

func (c *Config) ProcessedPath() string {
	return filepath.Join(c.ProcessedDir, c.ProcessedFile)
}

// CSVPath returns "" when the CSV export is disabled.
func (c *Config) CSVPath() string {
	if c.CSVFile == "" {
		return ""
	}
	return filepath.Join(c.ProcessedDir, c.CSVFile)
}

// SQLitePath returns "" when the SQLite mirror is disabled.
func (c *Config) SQLitePath() string {
	if c.SQLiteFile == "" {
		return ""
	}
	return filepath.Join(c.ProcessedDir, c.SQLiteFile)
}

func (c *Config) MetricsPath() string {
	if c.MetricsFile == "" {
		return ""
	}
	return filepath.Join(c.RawDir, c.MetricsFile)
}
