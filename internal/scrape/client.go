package scrape

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/wbstats/internal/metrics"
)

// ClientConfig controls the HTTP fetch behavior.
type ClientConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// DefaultHeaders returns the fixed browser-like header set sent with every
// request. The upstream site serves a trimmed page to obvious bots, so the
// headers mimic a desktop browser session.
func DefaultHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
	}
}

// Client fetches pages through a configured Colly collector. One request per
// call, no retries; rate limiting is the caller's responsibility.
type Client struct {
	baseCollector *colly.Collector
	headers       map[string]string
	logger        *zap.Logger
}

// NewClient constructs a Colly-backed page fetcher.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	// The pipeline deliberately refetches URLs, e.g. after a render
	// escalation, so Colly's revisit guard stays off.
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	return &Client{
		baseCollector: base,
		headers:       DefaultHeaders(cfg.UserAgent),
		logger:        logger,
	}
}

// Headers exposes the fixed header set, shared with the headless renderer.
func (c *Client) Headers() map[string]string {
	return c.headers
}

// Fetch retrieves a single page. Transport failures and non-success statuses
// both surface as *NetworkError.
func (c *Client) Fetch(ctx context.Context, rawURL string) (Page, error) {
	collector := c.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		for key, value := range c.headers {
			r.Headers.Set(key, value)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		page := Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte{}, r.Body...),
		}
		send(fetchResult{page: page})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		send(fetchResult{err: &NetworkError{URL: rawURL, StatusCode: status, Err: err}})
	})

	if err := collector.Visit(rawURL); err != nil {
		TotalFetchErrors.Inc()
		return Page{}, &NetworkError{URL: rawURL, Err: err}
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		if res.err != nil {
			TotalFetchErrors.Inc()
			return Page{}, res.err
		}
		TotalFetches.WithLabelValues(metrics.SanitizeSite(res.page.FinalURL), strconv.Itoa(res.page.StatusCode)).Inc()
		c.logger.Debug("Fetched page",
			zap.String("url", rawURL),
			zap.Int("status", res.page.StatusCode),
			zap.Int("bytes", len(res.page.Body)))
		return res.page, nil
	default:
		TotalFetchErrors.Inc()
		return Page{}, &NetworkError{URL: rawURL, Err: errors.New("fetch produced no result")}
	}
}

type fetchResult struct {
	page Page
	err  error
}
