package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jonfrank/campsite-pipeline/models"
)

// LocalStore is the no-cloud fallback: one JSON document per item under a
// folder named by derived id, with a sibling images/ folder of
// sequentially numbered JPEGs. It satisfies both RowStore and BlobStore.
type LocalStore struct {
	root string
}

// localDocument is the on-disk JSON shape of one item.
type localDocument struct {
	models.CampsiteRow
}

// OpenLocal creates the root folder if absent.
func OpenLocal(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create local root %q: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

func (l *LocalStore) docPath(derivedID string) string {
	return filepath.Join(l.root, derivedID, "data.json")
}

func (l *LocalStore) imagePath(derivedID string, index int) string {
	return filepath.Join(l.root, derivedID, "images", fmt.Sprintf("%d.jpg", index))
}

// Exists reads the stored document for a derived id, returning the uid it
// was recorded under.
func (l *LocalStore) Exists(_ context.Context, derivedID string) (string, bool, error) {
	raw, err := os.ReadFile(l.docPath(derivedID))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read document for %q: %w", derivedID, err)
	}
	var doc localDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", false, fmt.Errorf("decode document for %q: %w", derivedID, err)
	}
	return doc.UID, true, nil
}

// AppendBatch writes one JSON document per row. The write is not atomic
// across rows; a failure part-way leaves earlier documents in place.
func (l *LocalStore) AppendBatch(_ context.Context, rows []models.CampsiteRow) (int64, error) {
	var written int64
	for _, row := range rows {
		path := l.docPath(row.DerivedID)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return written, fmt.Errorf("create item folder for %q: %w", row.DerivedID, err)
		}
		raw, err := json.MarshalIndent(localDocument{CampsiteRow: row}, "", "  ")
		if err != nil {
			return written, fmt.Errorf("encode document for %q: %w", row.DerivedID, err)
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return written, fmt.Errorf("write document for %q: %w", row.DerivedID, err)
		}
		written++
	}
	return written, nil
}

// Close is a no-op for the filesystem backend.
func (l *LocalStore) Close() error {
	return nil
}

// Blobs returns the BlobStore view of the same on-disk layout. Both
// method names on RowStore and BlobStore are Exists, so the blob half is
// exposed through a thin adapter.
func (l *LocalStore) Blobs() BlobStore {
	return localBlobs{store: l}
}

type localBlobs struct {
	store *LocalStore
}

func (b localBlobs) Exists(ctx context.Context, key ImageKey) (bool, error) {
	return b.store.ExistsBlob(ctx, key)
}

func (b localBlobs) Put(ctx context.Context, key ImageKey, path string) error {
	return b.store.PutBlob(ctx, key, path)
}

// ExistsBlob probes the per-item images folder for the numbered JPEG.
func (l *LocalStore) ExistsBlob(_ context.Context, key ImageKey) (bool, error) {
	_, err := os.Stat(l.imagePath(key.DerivedID, key.Index))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat image %s: %w", key.Object(), err)
	}
	return true, nil
}

// PutBlob copies a staged file into the per-item images folder.
func (l *LocalStore) PutBlob(_ context.Context, key ImageKey, path string) error {
	dst := l.imagePath(key.DerivedID, key.Index)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create images folder for %q: %w", key.DerivedID, err)
	}
	if err := copyFile(path, dst); err != nil {
		return fmt.Errorf("store image %s: %w", key.Object(), err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
