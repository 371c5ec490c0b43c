package models

import "time"

// Listing is one scraped job or product posting. Rows are never
// deleted; a posting that drops off the source page simply stops
// being touched.
type Listing struct {
	ID              int64     `json:"id" db:"id"`
	Identity        string    `json:"identity" db:"identity"`
	Company         string    `json:"company" db:"company"`
	Role            string    `json:"role" db:"role"`
	Location        string    `json:"location" db:"location"`
	ApplicationLink string    `json:"application_link" db:"application_link"`
	DatePosted      time.Time `json:"date_posted" db:"date_posted"`
	FirstSeenAt     time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt      time.Time `json:"last_seen_at" db:"last_seen_at"`
}

// Application records a user's declared interest in a listing.
// The (user_id, listing_id) pair is unique.
type Application struct {
	UserID    int64 `json:"user_id" db:"user_id"`
	ListingID int64 `json:"listing_id" db:"listing_id"`
}

// RawListing is one unparsed field-set as read from the rendered DOM.
// Values may still carry markup; the normalizer cleans them up.
type RawListing struct {
	Company  string `json:"company"`
	Role     string `json:"role"`
	Location string `json:"location"`
	LinkHTML string `json:"link_html"` // raw link cell, href extracted during normalization
	DateText string `json:"date_text"` // e.g. "Dec 15", empty for dateless sources
}
