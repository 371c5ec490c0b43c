package scraper

import (
	"context"

	"gradwatch/config"
	"gradwatch/models"
)

// ScrapeOutput is one cycle's worth of raw field-sets plus the
// rendered HTML of each page read, kept for optional archival.
type ScrapeOutput struct {
	Raw   []models.RawListing
	Pages []string
}

// Handler drives a browser session against one source and yields raw
// field-sets. The session is scoped to the call: opened, used, and
// closed even when extraction fails partway through.
type Handler interface {
	ID() string
	Scrape(ctx context.Context) (*ScrapeOutput, error)
}

func NewHandler(srcCfg *config.SourceConfig) Handler {
	switch srcCfg.Handler {
	case "chromedp":
		return NewChromedpHandler(srcCfg)
	default:
		return NewBrowserHandler(srcCfg)
	}
}
