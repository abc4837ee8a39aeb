// Package store holds the persistence backends for the pipeline: a row
// store keyed by derived id, and a blob store for campsite photos.
package store

import (
	"context"
	"fmt"

	"github.com/jonfrank/campsite-pipeline/models"
)

// RowStore is the tabular backend. Exists returns the uid recorded at
// original insertion time, which the pipeline needs for its image-repair
// probe. A query error must be propagated, never collapsed into
// "not found".
type RowStore interface {
	Exists(ctx context.Context, derivedID string) (storedUID string, found bool, err error)
	AppendBatch(ctx context.Context, rows []models.CampsiteRow) (int64, error)
	Close() error
}

// ImageKey identifies one stored photo. The object name is always
// "{uid}-{index}.jpg"; DerivedID travels along so filesystem-backed
// implementations can place objects inside the per-item folder layout.
type ImageKey struct {
	UID       string
	DerivedID string
	Index     int
}

// Object returns the flat object name for the key.
func (k ImageKey) Object() string {
	return fmt.Sprintf("%s-%d.jpg", k.UID, k.Index)
}

// BlobStore is the photo backend. Put uploads a staged local file.
type BlobStore interface {
	Exists(ctx context.Context, key ImageKey) (bool, error)
	Put(ctx context.Context, key ImageKey, path string) error
}
