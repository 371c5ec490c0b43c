package reconcile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gradwatch/identity"
	"gradwatch/models"
	"gradwatch/storage"
)

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func batchOfOne() []models.Listing {
	l := models.Listing{
		Company:         "Acme",
		Role:            "SWE",
		Location:        "NYC",
		ApplicationLink: "https://x/1",
		DatePosted:      time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	l.Identity = identity.Fingerprint(&l)
	return []models.Listing{l}
}

func TestApply_NewThenIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	res, err := Apply(ctx, store, batchOfOne())
	require.NoError(t, err)
	require.Equal(t, 1, res.New)
	require.Equal(t, 0, res.Updated)
	require.Len(t, res.Inserted, 1)
	require.NotZero(t, res.Inserted[0].ID)

	count, err := store.CountListings(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// Second pass with the identical batch: no new rows, and since
	// stored fields already match, the update is skipped as a no-op.
	res, err = Apply(ctx, store, batchOfOne())
	require.NoError(t, err)
	require.Equal(t, 0, res.New)
	require.Equal(t, 0, res.Updated)
	require.Equal(t, 1, res.Unchanged)
	require.Empty(t, res.Inserted)

	count, err = store.CountListings(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestApply_FieldChangeIsNewRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := Apply(ctx, store, batchOfOne())
	require.NoError(t, err)

	changed := batchOfOne()
	changed[0].Location = "SF"
	changed[0].Identity = identity.Fingerprint(&changed[0])

	res, err := Apply(ctx, store, changed)
	require.NoError(t, err)
	require.Equal(t, 1, res.New)

	count, err := store.CountListings(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestApply_AbsentRowsUntouched(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := Apply(ctx, store, batchOfOne())
	require.NoError(t, err)

	other := models.Listing{
		Company:    "Globex",
		Role:       "SRE",
		DatePosted: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	other.Identity = identity.Fingerprint(&other)

	// A batch that no longer contains the first listing must not
	// delete it.
	res, err := Apply(ctx, store, []models.Listing{other})
	require.NoError(t, err)
	require.Equal(t, 1, res.New)

	count, err := store.CountListings(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestApply_MissingIdentityAborts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	good := batchOfOne()[0]
	bad := models.Listing{Company: "Globex", Role: "SRE", DatePosted: good.DatePosted}

	_, err := Apply(ctx, store, []models.Listing{good, bad})
	require.Error(t, err)

	// the failed batch rolled back entirely
	count, err := store.CountListings(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
