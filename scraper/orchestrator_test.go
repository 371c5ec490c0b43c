package scraper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gradwatch/config"
	"gradwatch/models"
	"gradwatch/storage"
)

type stubStore struct{}

func (s *stubStore) InTx(ctx context.Context, fn func(storage.Tx) error) error { return fn(nil) }
func (s *stubStore) CountListings(ctx context.Context) (int, error)            { return 0, nil }
func (s *stubStore) FindListingsByAge(ctx context.Context, threshold time.Time, requireLink bool) ([]models.Listing, error) {
	return nil, nil
}
func (s *stubStore) GetListingByID(ctx context.Context, id int64) (*models.Listing, error) {
	return nil, nil
}
func (s *stubStore) Apply(ctx context.Context, userID, listingID int64) error   { return nil }
func (s *stubStore) Unapply(ctx context.Context, userID, listingID int64) error { return nil }
func (s *stubStore) ApplicationsFor(ctx context.Context, userID int64) ([]models.Listing, error) {
	return nil, nil
}
func (s *stubStore) CreateRun(ctx context.Context, run *models.ScrapeRun) (int64, error) {
	return 1, nil
}
func (s *stubStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error { return nil }
func (s *stubStore) Close() error                                               { return nil }

// blockingHandler parks inside Scrape until released, so a test can
// hold a cycle in flight.
type blockingHandler struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (h *blockingHandler) ID() string { return "blocked" }

func (h *blockingHandler) Scrape(ctx context.Context) (*ScrapeOutput, error) {
	if h.calls.Add(1) == 1 {
		close(h.started)
	}
	<-h.release
	return &ScrapeOutput{}, nil
}

func TestRunAll_SkipsWhileCycleInFlight(t *testing.T) {
	cfg := &config.Config{
		Sources: map[string]*config.SourceConfig{
			"blocked": {ID: "blocked", Name: "Blocked"},
		},
	}
	o := NewOrchestrator(cfg, &stubStore{})
	handler := &blockingHandler{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	o.handlers = map[string]Handler{"blocked": handler}

	done := make(chan struct{})
	go func() {
		o.RunAll(context.Background())
		close(done)
	}()

	select {
	case <-handler.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first cycle never started")
	}

	// Returns immediately without scraping a second time.
	o.RunAll(context.Background())
	require.EqualValues(t, 1, handler.calls.Load())

	close(handler.release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("first cycle never finished")
	}
	require.EqualValues(t, 1, handler.calls.Load())

	// Once the first cycle finishes the guard is released.
	o.RunAll(context.Background())
	require.EqualValues(t, 2, handler.calls.Load())
}
