package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"gradwatch/config"
)

// ChromedpHandler is an alternate single-page extractor for sources
// where a full playwright install is unavailable. No pagination
// support: paginated sources use the browser handler.
type ChromedpHandler struct {
	cfg *config.SourceConfig
}

func NewChromedpHandler(cfg *config.SourceConfig) *ChromedpHandler {
	return &ChromedpHandler{cfg: cfg}
}

func (h *ChromedpHandler) ID() string {
	return h.cfg.ID
}

func (h *ChromedpHandler) Scrape(ctx context.Context) (*ScrapeOutput, error) {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	timeout := time.Duration(h.cfg.WaitTimeoutMS) * time.Millisecond
	if timeout == 0 {
		timeout = defaultWaitTimeoutMS * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(browserCtx, timeout+navTimeoutMS*time.Millisecond)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(h.cfg.URL),
		chromedp.WaitVisible(h.cfg.WaitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp fetch %s: %w", h.cfg.URL, err)
	}

	raws, err := ParsePage(h.cfg, html)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", h.cfg.ID, err)
	}

	return &ScrapeOutput{Raw: raws, Pages: []string{html}}, nil
}
