package scraper

import (
	"context"
	"fmt"
	"log"

	"github.com/playwright-community/playwright-go"

	"gradwatch/config"
)

const (
	defaultWaitTimeoutMS = 30000
	navTimeoutMS         = 60000
	maxPages             = 50
)

// BrowserHandler drives a playwright session against one source.
type BrowserHandler struct {
	cfg *config.SourceConfig
}

func NewBrowserHandler(cfg *config.SourceConfig) *BrowserHandler {
	return &BrowserHandler{cfg: cfg}
}

func (h *BrowserHandler) ID() string {
	return h.cfg.ID
}

// Scrape opens a browser scoped to this call, waits for the source's
// content selector, reads the rendered DOM, and follows the "next"
// control for paginated sources. The expected content never appearing
// is a hard failure for the cycle; no partial results are returned.
func (h *BrowserHandler) Scrape(ctx context.Context) (*ScrapeOutput, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if _, err := page.Goto(h.cfg.URL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(navTimeoutMS),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", h.cfg.URL, err)
	}

	if err := h.waitForContent(page); err != nil {
		return nil, err
	}

	output := &ScrapeOutput{}
	for pageNum := 1; pageNum <= maxPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		html, err := page.Content()
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", pageNum, err)
		}

		raws, err := ParsePage(h.cfg, html)
		if err != nil {
			return nil, fmt.Errorf("parse page %d: %w", pageNum, err)
		}

		output.Raw = append(output.Raw, raws...)
		output.Pages = append(output.Pages, html)
		log.Printf("[%s] page %d: %d raw listings (total: %d)", h.cfg.ID, pageNum, len(raws), len(output.Raw))

		if !h.cfg.Paginate || !h.clickNext(page) {
			break
		}
		if err := h.waitForContent(page); err != nil {
			return nil, err
		}
	}

	return output, nil
}

func (h *BrowserHandler) waitForContent(page playwright.Page) error {
	timeout := float64(h.cfg.WaitTimeoutMS)
	if timeout == 0 {
		timeout = defaultWaitTimeoutMS
	}
	if _, err := page.WaitForSelector(h.cfg.WaitSelector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(timeout),
	}); err != nil {
		return fmt.Errorf("content %q never appeared on %s: %w", h.cfg.WaitSelector, h.cfg.ID, err)
	}
	return nil
}

// clickNext advances pagination. Returns false when no further page is
// available.
func (h *BrowserHandler) clickNext(page playwright.Page) bool {
	if h.cfg.NextSelector == "" {
		return false
	}

	next := page.Locator(h.cfg.NextSelector).First()
	visible, _ := next.IsVisible()
	if !visible {
		return false
	}
	enabled, _ := next.IsEnabled()
	if !enabled {
		return false
	}

	if err := next.Click(); err != nil {
		log.Printf("[%s] next click failed: %v", h.cfg.ID, err)
		return false
	}
	page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateDomcontentloaded,
	})
	return true
}
