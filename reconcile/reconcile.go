// Package reconcile diffs one scrape batch against the store by
// content identity and applies inserts and updates in a single
// transaction.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"gradwatch/models"
	"gradwatch/storage"
)

// Result aggregates one cycle's outcome. Inserted carries the new
// subset (with assigned ids) for notification.
type Result struct {
	New       int
	Updated   int
	Unchanged int
	Inserted  []models.Listing
}

// Apply reconciles a normalized, identified batch. For each listing:
// unknown identity is inserted, known identity is updated in place,
// and a listing whose stored fields already match only has its
// last-seen timestamp bumped (counted as unchanged, not updated).
// Listings in the store but absent from the batch are left untouched.
// The whole batch commits atomically or not at all.
func Apply(ctx context.Context, store storage.Store, batch []models.Listing) (*Result, error) {
	res := &Result{}
	now := time.Now()

	err := store.InTx(ctx, func(tx storage.Tx) error {
		for i := range batch {
			l := batch[i]
			if l.Identity == "" {
				return fmt.Errorf("listing %q/%q has no identity", l.Company, l.Role)
			}

			existing, err := tx.GetListingByIdentity(ctx, l.Identity)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", l.Identity, err)
			}

			if existing == nil {
				l.FirstSeenAt = now
				l.LastSeenAt = now
				id, err := tx.InsertListing(ctx, &l)
				if err != nil {
					return fmt.Errorf("insert %s: %w", l.Identity, err)
				}
				l.ID = id
				res.New++
				res.Inserted = append(res.Inserted, l)
				continue
			}

			if sameFields(existing, &l) {
				if err := tx.TouchListing(ctx, existing.ID, now); err != nil {
					return fmt.Errorf("touch %d: %w", existing.ID, err)
				}
				res.Unchanged++
				continue
			}

			l.ID = existing.ID
			l.FirstSeenAt = existing.FirstSeenAt
			l.LastSeenAt = now
			if err := tx.UpdateListing(ctx, &l); err != nil {
				return fmt.Errorf("update %d: %w", existing.ID, err)
			}
			res.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func sameFields(a, b *models.Listing) bool {
	return a.Company == b.Company &&
		a.Role == b.Role &&
		a.Location == b.Location &&
		a.ApplicationLink == b.ApplicationLink &&
		a.DatePosted.Equal(b.DatePosted)
}
