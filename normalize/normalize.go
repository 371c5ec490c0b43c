package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"gradwatch/models"
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Normalizer maps raw field-sets to listing attributes. A zero Now
// means time.Now; tests pin it.
type Normalizer struct {
	BaseOrigin   string
	DateOptional bool
	Now          func() time.Time
}

func (n *Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// Listing normalizes one raw field-set. A malformed record returns an
// error and is dropped by the caller; it never aborts the batch.
func (n *Normalizer) Listing(raw *models.RawListing) (*models.Listing, error) {
	company := StripMarkup(raw.Company)
	role := StripMarkup(raw.Role)
	location := StripMarkup(raw.Location)

	if company == "" {
		return nil, fmt.Errorf("missing company")
	}
	if role == "" {
		return nil, fmt.Errorf("missing role")
	}

	link := ExtractLink(raw.LinkHTML)
	link = n.resolveLink(link)

	dateText := StripMarkup(raw.DateText)
	var datePosted time.Time
	if dateText == "" {
		if !n.DateOptional {
			return nil, fmt.Errorf("missing date")
		}
		now := n.now()
		datePosted = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		var err error
		datePosted, err = ResolveDate(dateText, n.now())
		if err != nil {
			return nil, fmt.Errorf("bad date %q: %w", dateText, err)
		}
	}

	return &models.Listing{
		Company:         company,
		Role:            role,
		Location:        location,
		ApplicationLink: link,
		DatePosted:      datePosted,
	}, nil
}

// resolveLink prefixes the site origin onto site-relative links.
func (n *Normalizer) resolveLink(link string) string {
	if link == "" || n.BaseOrigin == "" {
		return link
	}
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if strings.HasPrefix(link, "/") {
		return strings.TrimSuffix(n.BaseOrigin, "/") + link
	}
	return link
}

// StripMarkup reduces an HTML fragment to its visible text.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}

// ExtractLink pulls the first href out of a raw link cell. A cell with
// no anchor yields the empty string: some postings have no application
// link and that is a valid state.
func ExtractLink(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return ""
	}
	href, ok := doc.Find("a[href]").First().Attr("href")
	if !ok {
		// plain-text URLs appear in some cells
		text := strings.TrimSpace(doc.Text())
		if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") || strings.HasPrefix(text, "/") {
			return text
		}
		return ""
	}
	return strings.TrimSpace(href)
}

// ResolveDate turns a "month abbreviation + day" expression into an
// absolute date. A stated month/day later than today belongs to the
// previous year: a January scrape seeing "Dec 15" means last December.
func ResolveDate(s string, now time.Time) (time.Time, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return time.Time{}, fmt.Errorf("expected \"Mon D\", got %q", s)
	}

	monthKey := strings.ToLower(fields[0])
	if len(monthKey) > 3 {
		monthKey = monthKey[:3]
	}
	month, ok := months[monthKey]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month %q", fields[0])
	}

	day, err := parseDay(fields[1])
	if err != nil {
		return time.Time{}, err
	}

	year := now.Year()
	if month > now.Month() || (month == now.Month() && day > now.Day()) {
		year--
	}

	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if date.Day() != day {
		return time.Time{}, fmt.Errorf("day %d out of range for %s", day, month)
	}
	return date, nil
}

func parseDay(s string) (int, error) {
	s = strings.TrimSuffix(s, ",")
	day := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("bad day %q", s)
		}
		day = day*10 + int(c-'0')
	}
	if day < 1 || day > 31 {
		return 0, fmt.Errorf("day %d out of range", day)
	}
	return day, nil
}
