package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/cbp-establishments/config"
	"github.com/aluiziolira/cbp-establishments/models"
	"github.com/aluiziolira/cbp-establishments/parser"
	"github.com/aluiziolira/cbp-establishments/schema"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

type cellKey struct {
	year int
	code models.IndustryCode
}

// Fetcher issues one CBP API request per (year, industry) cell.
type Fetcher struct {
	cfg       *config.Config
	baseURL   string
	collector *colly.Collector
	schema    schema.Table
	cache     *lru.Cache[cellKey, []models.CountyRecord]
	Metrics   *Metrics
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	// Status handling happens in Fetch so error bodies reach OnResponse too.
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	cache, err := lru.New[cellKey, []models.CountyRecord](cfg.CellCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cell cache: %w", err)
	}

	f := &Fetcher{
		cfg:       cfg,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		collector: collector,
		schema:    schema.Default,
		cache:     cache,
		Metrics:   NewMetrics(),
	}
	f.configureHandlers()
	return f, nil
}

// WithTransport swaps the HTTP transport used by the collector.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// CellURL builds the request for a cell, filtering on the NAICS variable of that year.
func (f *Fetcher) CellURL(year int, code models.IndustryCode) string {
	variable := f.schema.Resolve(year)
	return fmt.Sprintf("%s/%d/cbp?get=ESTAB,NAME&for=county:*&%s=%s", f.baseURL, year, variable, code)
}

// Fetch retrieves one cell. Failures never escape as errors: they are logged,
// counted and returned in CellResult.Err with no records.
func (f *Fetcher) Fetch(year int, code models.IndustryCode) models.CellResult {
	result := models.CellResult{Year: year, Industry: code}

	if _, ok := models.LookupIndustry(code); !ok {
		f.fail(&result, "", ErrUnknownIndustry{Code: string(code)})
		return result
	}

	key := cellKey{year: year, code: code}
	if records, ok := f.cache.Get(key); ok {
		f.Metrics.IncRequest("cached")
		result.Records = records
		result.Cached = true
		return result
	}

	cellURL := f.CellURL(year, code)
	ctx := colly.NewContext()
	start := time.Now()
	err := f.collector.Request(http.MethodGet, cellURL, nil, ctx, nil)
	f.Metrics.ObserveDuration(time.Since(start))

	status, _ := ctx.GetAny("status").(int)
	if err != nil {
		f.fail(&result, cellURL, classifyError(err, status))
		return result
	}

	switch {
	case status == http.StatusNoContent:
		// The API answers 204 when no county has data for the filter.
		result.Records = []models.CountyRecord{}
	case status >= http.StatusMultipleChoices:
		f.fail(&result, cellURL, classifyError(nil, status))
		return result
	default:
		body, _ := ctx.GetAny("body").([]byte)
		table, err := parser.ParseTable(body)
		if err != nil {
			f.fail(&result, cellURL, ErrMalformedResponse{Err: err})
			return result
		}
		result.Records = table.Records
		result.Dropped = table.DroppedCount()
		for reason, n := range table.Dropped {
			f.Metrics.AddDropped(reason, n)
			slog.Debug("dropped rows",
				slog.Int("year", year),
				slog.String("naics", string(code)),
				slog.String("reason", reason),
				slog.Int("rows", n),
			)
		}
	}

	f.Metrics.IncRequest("ok")
	f.Metrics.AddRows(len(result.Records))
	f.cache.Add(key, result.Records)
	return result
}

func (f *Fetcher) configureHandlers() {
	f.collector.OnRequest(func(r *colly.Request) {
		slog.Debug("cbp request", slog.String("url", r.URL.String()))
	})

	f.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put("status", r.StatusCode)
		r.Ctx.Put("body", r.Body)
	})
}

func (f *Fetcher) fail(result *models.CellResult, cellURL string, err error) {
	result.Err = err
	result.Records = nil
	category := ErrorTypeLabel(err)
	f.Metrics.IncRequest("error")
	f.Metrics.IncError(category)
	slog.Error("cell fetch failed",
		slog.Int("year", result.Year),
		slog.String("naics", string(result.Industry)),
		slog.String("category", category),
		slog.String("url", cellURL),
		slog.Any("error", err),
	)
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode >= http.StatusMultipleChoices {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		default:
			return ErrHTTPStatus{Status: statusCode, Err: wrapped}
		}
	}

	return err
}
