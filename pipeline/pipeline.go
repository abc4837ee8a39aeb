// Package pipeline persists extracted campsite records, skipping items
// already recorded and repairing missing image uploads.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jonfrank/campsite-pipeline/images"
	"github.com/jonfrank/campsite-pipeline/models"
	"github.com/jonfrank/campsite-pipeline/store"
)

// seenCacheSize bounds the in-run dedup cache; far larger than any single
// crawl, so eviction never produces a duplicate pending row in practice.
const seenCacheSize = 8192

// ImageUploader ships one item's photos to the blob store. Satisfied by
// images.Uploader.
type ImageUploader interface {
	Upload(ctx context.Context, urls []string, uid, derivedID string) (int, []images.Failure)
}

// Counters is the run-scoped tally the final summary reports.
type Counters struct {
	New            int
	Duplicate      int
	ImagesUploaded int
	ImageFailures  int
	Repairs        int
}

// Pipeline coordinates existence checks, batch accumulation, and image
// uploads for one run. Counters reset only by constructing a new instance.
type Pipeline struct {
	rows     store.RowStore
	blobs    store.BlobStore
	uploader ImageUploader

	// seen maps derived ids handled this run to the uid their row carries,
	// absorbing same-run revisits the end-of-run flush cannot catch.
	seen *lru.Cache[string, string]

	pending  []models.CampsiteRow
	counters Counters
}

// New builds a pipeline over the given backends.
func New(rows store.RowStore, blobs store.BlobStore, uploader ImageUploader) *Pipeline {
	seen, _ := lru.New[string, string](seenCacheSize)
	return &Pipeline{
		rows:     rows,
		blobs:    blobs,
		uploader: uploader,
		seen:     seen,
	}
}

// Process classifies one record as new or duplicate and persists
// accordingly. A row-store query error propagates and must make the
// caller skip the item; it is never reinterpreted as "not found".
func (p *Pipeline) Process(ctx context.Context, rec *models.CampsiteDetail) (models.Outcome, error) {
	if uid, ok := p.seen.Get(rec.DerivedID); ok {
		p.counters.Duplicate++
		p.reconcileImages(ctx, rec, uid)
		return models.OutcomeDuplicate, nil
	}

	storedUID, found, err := p.rows.Exists(ctx, rec.DerivedID)
	if err != nil {
		return models.OutcomeDuplicate, fmt.Errorf("existence check for %q: %w", rec.DerivedID, err)
	}

	if found {
		p.counters.Duplicate++
		p.seen.Add(rec.DerivedID, storedUID)
		p.reconcileImages(ctx, rec, storedUID)
		return models.OutcomeDuplicate, nil
	}

	p.counters.New++
	p.seen.Add(rec.DerivedID, rec.UID)
	p.pending = append(p.pending, rec.Flatten())

	uploaded, failures := p.uploader.Upload(ctx, rec.Images, rec.UID, rec.DerivedID)
	p.counters.ImagesUploaded += uploaded
	p.counters.ImageFailures += len(failures)
	return models.OutcomeNew, nil
}

// reconcileImages handles the duplicate path: a row can exist while its
// images never made it to the blob store (prior partial failure). Row
// existence and image existence are checked and repaired independently,
// keyed by the uid recorded at original insertion time so the stored row
// and its objects stay consistent.
func (p *Pipeline) reconcileImages(ctx context.Context, rec *models.CampsiteDetail, storedUID string) {
	if len(rec.Images) == 0 {
		return
	}

	probe := store.ImageKey{UID: storedUID, DerivedID: rec.DerivedID, Index: 0}
	present, err := p.blobs.Exists(ctx, probe)
	if err != nil {
		slog.Warn("image probe failed, repairing",
			slog.String("id", rec.DerivedID),
			slog.Any("error", err),
		)
		present = false
	}
	if present {
		return
	}

	p.counters.Repairs++
	uploaded, failures := p.uploader.Upload(ctx, rec.Images, storedUID, rec.DerivedID)
	p.counters.ImagesUploaded += uploaded
	p.counters.ImageFailures += len(failures)
}

// Flush bulk-appends every pending row. On success the batch is cleared;
// on failure the rows stay pending and the error is fatal for the run.
func (p *Pipeline) Flush(ctx context.Context) (int64, error) {
	if len(p.pending) == 0 {
		return 0, nil
	}
	written, err := p.rows.AppendBatch(ctx, p.pending)
	if err != nil {
		return written, fmt.Errorf("flush pending batch: %w", err)
	}
	p.pending = nil
	return written, nil
}

// PendingCount reports how many new rows await the flush.
func (p *Pipeline) PendingCount() int {
	return len(p.pending)
}

// Counters returns the run-scoped tally.
func (p *Pipeline) Counters() Counters {
	return p.counters
}
