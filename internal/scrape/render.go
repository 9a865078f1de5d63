package scrape

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Renderer executes a page's JavaScript and returns the settled DOM. Used
// when the plain fetch comes back looking like a client-rendered shell.
type Renderer interface {
	Render(ctx context.Context, rawURL string, headers map[string]string) (Page, error)
	Close()
}

// RenderConfig controls the headless browser.
type RenderConfig struct {
	MaxParallel int
	UserAgent   string
	NavTimeout  time.Duration
}

// ChromeRenderer drives headless Chrome through chromedp. A single allocator
// is shared across renders; the limiter caps concurrent browser tabs.
type ChromeRenderer struct {
	cfg         RenderConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// NewChromeRenderer creates a renderer backed by a fresh Chrome allocator.
func NewChromeRenderer(cfg RenderConfig, logger *zap.Logger) (*ChromeRenderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromeRenderer{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close cancels the allocator context, shutting down the browser.
func (r *ChromeRenderer) Close() {
	r.allocCancel()
}

// Render navigates with a headless browser and returns the rendered DOM.
func (r *ChromeRenderer) Render(ctx context.Context, rawURL string, headers map[string]string) (Page, error) {
	if err := r.acquire(ctx); err != nil {
		return Page{}, err
	}
	defer r.release()

	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, r.cfg.NavTimeout)
	defer cancel()

	meta := &renderMeta{}
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		r.networkSetupAction(headers),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return Page{}, &NetworkError{URL: rawURL, Err: fmt.Errorf("chromedp run: %w", err)}
	}

	status, metaURL := meta.snapshot()
	if status == 0 {
		status = 200
	}
	switch {
	case metaURL != "":
		finalURL = metaURL
	case finalURL == "":
		finalURL = rawURL
	}

	r.logger.Debug("Rendered page",
		zap.String("url", rawURL),
		zap.Int("status", status),
		zap.Duration("took", time.Since(start)))

	return Page{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: status,
		Body:       []byte(html),
		Rendered:   true,
	}, nil
}

func (r *ChromeRenderer) networkSetupAction(headers map[string]string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) > 0 {
			extra := network.Headers{}
			for key, value := range headers {
				extra[key] = value
			}
			if err := network.SetExtraHTTPHeaders(extra).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

func (r *ChromeRenderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("render slot wait canceled: %w", ctx.Err())
	}
}

func (r *ChromeRenderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}

// renderMeta captures the status and URL of the main document response from
// the CDP event stream.
type renderMeta struct {
	mu     sync.Mutex
	status int
	url    string
}

func (m *renderMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.url = resp.Response.URL
	m.mu.Unlock()
}

func (m *renderMeta) snapshot() (int, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.url
}
