// Package gviz fetches spreadsheet tabs from the Google visualization query endpoint
// using gocolly.
package gviz

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/Zevik/google-sheets-site-builder/internal/metrics"
	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

// DefaultBaseURL is the public Google Docs host.
const DefaultBaseURL = "https://docs.google.com"

// Config controls collector behavior.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Waiter gates outbound requests.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Fetcher implements sitedata.TabFetcher. It never retries.
type Fetcher struct {
	cfg           Config
	limiter       Waiter
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type tabResult struct {
	status int
	body   []byte
	err    error
}

// New builds a Fetcher. limiter may be nil.
func New(cfg Config, limiter Waiter) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		limiter:       limiter,
		baseCollector: c,
	}
}

// TabURL returns the gviz query URL for one tab of a spreadsheet.
func (f *Fetcher) TabURL(spreadsheetID string, tab sitedata.TabName) string {
	q := url.Values{}
	q.Set("tqx", "out:json")
	q.Set("sheet", string(tab))
	return fmt.Sprintf("%s/spreadsheets/d/%s/gviz/tq?%s", f.cfg.BaseURL, url.PathEscape(spreadsheetID), q.Encode())
}

// FetchTab downloads and parses one tab. Failures are returned as *sitedata.TabError.
func (f *Fetcher) FetchTab(ctx context.Context, spreadsheetID string, tab sitedata.TabName) (sitedata.Table, error) {
	start := time.Now()
	table, err := f.fetchTab(ctx, spreadsheetID, tab)
	metrics.ObserveTabFetch(string(tab), outcome(err), time.Since(start))
	if err != nil {
		return sitedata.Table{}, &sitedata.TabError{Tab: tab, Err: err}
	}
	return table, nil
}

func (f *Fetcher) fetchTab(ctx context.Context, spreadsheetID string, tab sitedata.TabName) (sitedata.Table, error) {
	if spreadsheetID == "" {
		return sitedata.Table{}, sitedata.ErrNoSpreadsheetID
	}
	target := f.TabURL(spreadsheetID, tab)
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, target); err != nil {
			return sitedata.Table{}, fmt.Errorf("%w: %w", sitedata.ErrUpstreamUnreachable, err)
		}
	}

	var result tabResult
	collector := f.buildCollector(&result)
	if err := f.runCollector(ctx, collector, target, &result); err != nil {
		return sitedata.Table{}, fmt.Errorf("%w: %w", sitedata.ErrUpstreamUnreachable, err)
	}
	if result.status < http.StatusOK || result.status >= http.StatusMultipleChoices {
		return sitedata.Table{}, fmt.Errorf("%w: unexpected status %d", sitedata.ErrUpstreamUnreachable, result.status)
	}
	return ParseResponse(result.body)
}

func (f *Fetcher) buildCollector(result *tabResult) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	f.configureCollectorHooks(collector, result)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *tabResult) {
	hooks.OnResponse(func(r *colly.Response) {
		result.status = r.StatusCode
		result.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.status = r.StatusCode
		}
		result.err = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, target string, result *tabResult) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if result.err != nil {
			return fmt.Errorf("colly response failed: %w", result.err)
		}
		return nil
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, sitedata.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, sitedata.ErrUpstreamReported):
		return "upstream_error"
	case errors.Is(err, sitedata.ErrNoSpreadsheetID):
		return "invalid"
	default:
		return "unreachable"
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
