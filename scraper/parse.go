package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"gradwatch/config"
	"gradwatch/models"
)

const (
	defaultRowSelector   = "article table tbody tr"
	defaultTileSelector  = ".rf-refurb-producttile"
	defaultTitleSelector = "a"
)

// ParsePage extracts raw field-sets from one rendered page. Values are
// left unparsed; the normalizer cleans markup and resolves dates and
// links downstream.
func ParsePage(cfg *config.SourceConfig, html string) ([]models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	switch cfg.Layout {
	case "grid":
		return parseGrid(cfg, doc), nil
	default:
		return parseTable(cfg, doc), nil
	}
}

// parseTable reads a listings table: company, role, location, link
// cell, date. Rows with too few cells (headers, separators) are
// skipped here; rows with empty required fields are dropped later by
// the normalizer.
func parseTable(cfg *config.SourceConfig, doc *goquery.Document) []models.RawListing {
	rowSelector := cfg.RowSelector
	if rowSelector == "" {
		rowSelector = defaultRowSelector
	}

	var raws []models.RawListing
	doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 5 {
			return
		}

		company, _ := cells.Eq(0).Html()
		role, _ := cells.Eq(1).Html()
		location, _ := cells.Eq(2).Html()
		linkCell, _ := cells.Eq(3).Html()

		raws = append(raws, models.RawListing{
			Company:  company,
			Role:     role,
			Location: location,
			LinkHTML: linkCell,
			DateText: cells.Eq(4).Text(),
		})
	})
	return raws
}

// parseGrid reads a product-tile grid. The source name stands in for
// the company and the price text rides in the location slot; tiles
// carry no posting date.
func parseGrid(cfg *config.SourceConfig, doc *goquery.Document) []models.RawListing {
	tileSelector := cfg.TileSelector
	if tileSelector == "" {
		tileSelector = defaultTileSelector
	}
	titleSelector := cfg.TitleSelector
	if titleSelector == "" {
		titleSelector = defaultTitleSelector
	}

	var raws []models.RawListing
	doc.Find(tileSelector).Each(func(_ int, tile *goquery.Selection) {
		title := tile.Find(titleSelector).First()
		titleHTML, _ := goquery.OuterHtml(title)

		price := ""
		if cfg.PriceSelector != "" {
			price, _ = tile.Find(cfg.PriceSelector).First().Html()
		}

		raws = append(raws, models.RawListing{
			Company:  cfg.Name,
			Role:     titleHTML,
			Location: price,
			LinkHTML: titleHTML,
		})
	})
	return raws
}
