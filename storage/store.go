package storage

import (
	"context"
	"time"

	"gradwatch/models"
)

// Tx is the write surface a reconciliation cycle sees. All of its
// operations run inside one transaction; the cycle commits atomically
// or not at all.
type Tx interface {
	GetListingByIdentity(ctx context.Context, identity string) (*models.Listing, error)
	InsertListing(ctx context.Context, l *models.Listing) (int64, error)
	UpdateListing(ctx context.Context, l *models.Listing) error
	TouchListing(ctx context.Context, id int64, seenAt time.Time) error
}

// Store is the persistence surface shared by the SQLite and Postgres
// backends. Lookups for unknown ids return (nil, nil).
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error

	CountListings(ctx context.Context) (int, error)
	FindListingsByAge(ctx context.Context, threshold time.Time, requireLink bool) ([]models.Listing, error)
	GetListingByID(ctx context.Context, id int64) (*models.Listing, error)

	Apply(ctx context.Context, userID, listingID int64) error
	Unapply(ctx context.Context, userID, listingID int64) error
	ApplicationsFor(ctx context.Context, userID int64) ([]models.Listing, error)

	CreateRun(ctx context.Context, run *models.ScrapeRun) (int64, error)
	UpdateRun(ctx context.Context, run *models.ScrapeRun) error

	Close() error
}
