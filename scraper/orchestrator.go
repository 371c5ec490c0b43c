package scraper

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"gradwatch/config"
	"gradwatch/identity"
	"gradwatch/models"
	"gradwatch/normalize"
	"gradwatch/reconcile"
	"gradwatch/storage"
)

// Notifier receives listings inserted during a cycle. Implementations
// must tolerate being called with an empty slice.
type Notifier interface {
	NotifyNew(ctx context.Context, listings []models.Listing) error
}

// Archiver persists raw page snapshots for later inspection.
type Archiver interface {
	Archive(ctx context.Context, key, html string) error
}

// Orchestrator drives the scrape-normalize-reconcile pipeline across
// all configured sources.
type Orchestrator struct {
	cfg      *config.Config
	store    storage.Store
	handlers map[string]Handler
	notifier Notifier
	archiver Archiver
	running  atomic.Bool
}

func NewOrchestrator(cfg *config.Config, store storage.Store) *Orchestrator {
	handlers := make(map[string]Handler, len(cfg.Sources))
	for id, src := range cfg.Sources {
		handlers[id] = NewHandler(src)
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		handlers: handlers,
	}
}

func (o *Orchestrator) SetNotifier(n Notifier) { o.notifier = n }
func (o *Orchestrator) SetArchiver(a Archiver) { o.archiver = a }

// RunAll executes one cycle over every source. If a previous cycle is
// still in flight the call is skipped entirely.
func (o *Orchestrator) RunAll(ctx context.Context) {
	if !o.running.CompareAndSwap(false, true) {
		log.Println("Previous cycle still running, skipping")
		return
	}
	defer o.running.Store(false)

	for id := range o.handlers {
		if ctx.Err() != nil {
			return
		}
		if err := o.RunSource(ctx, id); err != nil {
			log.Printf("Source %s failed: %v", id, err)
		}
	}
}

// RunSource executes a full cycle for a single source and records the
// run outcome.
func (o *Orchestrator) RunSource(ctx context.Context, sourceID string) error {
	handler, ok := o.handlers[sourceID]
	if !ok {
		return fmt.Errorf("unknown source: %s", sourceID)
	}
	src := o.cfg.Sources[sourceID]

	run := &models.ScrapeRun{
		RunUID:    uuid.New().String(),
		SourceID:  sourceID,
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}
	runID, err := o.store.CreateRun(ctx, run)
	if err != nil {
		return fmt.Errorf("creating run record: %w", err)
	}
	run.ID = runID

	log.Printf("Starting scrape for %s (run %s)", sourceID, run.RunUID)

	err = o.runCycle(ctx, src, handler, run)

	now := time.Now().UTC()
	run.FinishedAt = &now
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
	} else {
		run.Status = models.RunStatusCompleted
	}
	if uerr := o.store.UpdateRun(ctx, run); uerr != nil {
		log.Printf("Failed to update run %s: %v", run.RunUID, uerr)
	}
	return err
}

func (o *Orchestrator) runCycle(ctx context.Context, src *config.SourceConfig, handler Handler, run *models.ScrapeRun) error {
	out, err := handler.Scrape(ctx)
	if err != nil {
		return fmt.Errorf("scraping %s: %w", src.ID, err)
	}
	run.ListingsFound = len(out.Raw)

	if o.archiver != nil {
		o.archivePages(ctx, src.ID, run.RunUID, out.Pages)
	}

	norm := &normalize.Normalizer{
		BaseOrigin:   src.BaseOrigin,
		DateOptional: src.DateOptional,
	}
	batch := make([]models.Listing, 0, len(out.Raw))
	for i := range out.Raw {
		listing, err := norm.Listing(&out.Raw[i])
		if err != nil {
			run.RecordsDropped++
			log.Printf("Dropping record from %s: %v", src.ID, err)
			continue
		}
		if src.DateOptional {
			listing.Identity = identity.FingerprintDateless(listing)
		} else {
			listing.Identity = identity.Fingerprint(listing)
		}
		batch = append(batch, *listing)
	}

	res, err := reconcile.Apply(ctx, o.store, batch)
	if err != nil {
		return fmt.Errorf("reconciling %s: %w", src.ID, err)
	}
	run.ListingsNew = res.New
	run.ListingsUpdated = res.Updated

	log.Printf("Scrape %s done: %d found, %d new, %d updated, %d unchanged, %d dropped",
		src.ID, run.ListingsFound, res.New, res.Updated, res.Unchanged, run.RecordsDropped)

	if o.notifier != nil && len(res.Inserted) > 0 {
		if err := o.notifier.NotifyNew(ctx, res.Inserted); err != nil {
			run.ErrorsCount++
			log.Printf("Notification failed for %s: %v", src.ID, err)
		}
	}
	return nil
}

// archivePages uploads page snapshots best-effort. Archive failures
// never fail the cycle.
func (o *Orchestrator) archivePages(ctx context.Context, sourceID, runUID string, pages []string) {
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	for i, html := range pages {
		key := fmt.Sprintf("%s/%s/%s-page-%d.html", sourceID, stamp, runUID, i+1)
		if err := o.archiver.Archive(ctx, key, html); err != nil {
			log.Printf("Failed to archive %s: %v", key, err)
		}
	}
}
