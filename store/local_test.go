package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonfrank/campsite-pipeline/models"
)

func sampleRow() models.CampsiteRow {
	return models.CampsiteRow{
		DerivedID:   "campsites-England-Sussex-fir-trees",
		UID:         "aaaa-bbbb",
		Name:        "Fir Trees Farm",
		Rating:      "9.2",
		DateOpen:    "2026-03-01",
		PriceFrom:   "14.00",
		Description: "A quiet site.",
		Bullets:     "Dogs welcome / Campfires allowed",
		ScrapedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	local, err := OpenLocal(t.TempDir())
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}

	row := sampleRow()
	if _, found, err := local.Exists(ctx, row.DerivedID); err != nil || found {
		t.Fatalf("fresh store must report not found: %v, %v", found, err)
	}

	written, err := local.AppendBatch(ctx, []models.CampsiteRow{row})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if written != 1 {
		t.Fatalf("written = %d, want 1", written)
	}

	uid, found, err := local.Exists(ctx, row.DerivedID)
	if err != nil || !found {
		t.Fatalf("expected stored row: %v, %v", found, err)
	}
	if uid != row.UID {
		t.Fatalf("stored uid = %q, want %q", uid, row.UID)
	}
}

func TestLocalStoreDocumentLayout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	local, err := OpenLocal(root)
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}

	row := sampleRow()
	if _, err := local.AppendBatch(ctx, []models.CampsiteRow{row}); err != nil {
		t.Fatalf("append: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(root, row.DerivedID, "data.json"))
	if err != nil {
		t.Fatalf("document not written under derived-id folder: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("document is not valid JSON: %v", err)
	}
}

func TestLocalBlobLayout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	local, err := OpenLocal(root)
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	blobs := local.Blobs()

	staged := filepath.Join(t.TempDir(), "0.jpg")
	if err := os.WriteFile(staged, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("stage file: %v", err)
	}

	key := ImageKey{UID: "aaaa-bbbb", DerivedID: "campsites-England-Sussex-fir-trees", Index: 0}
	if ok, err := blobs.Exists(ctx, key); err != nil || ok {
		t.Fatalf("image must be absent before put: %v, %v", ok, err)
	}

	if err := blobs.Put(ctx, key, staged); err != nil {
		t.Fatalf("put: %v", err)
	}

	stored := filepath.Join(root, key.DerivedID, "images", "0.jpg")
	raw, err := os.ReadFile(stored)
	if err != nil {
		t.Fatalf("image not written to per-item layout: %v", err)
	}
	if string(raw) != "jpeg-bytes" {
		t.Fatalf("stored bytes = %q", raw)
	}

	if ok, err := blobs.Exists(ctx, key); err != nil || !ok {
		t.Fatalf("image must be present after put: %v, %v", ok, err)
	}
}

func TestImageKeyObject(t *testing.T) {
	key := ImageKey{UID: "u-1", DerivedID: "x-y", Index: 3}
	if got := key.Object(); got != "u-1-3.jpg" {
		t.Fatalf("Object() = %q, want %q", got, "u-1-3.jpg")
	}
}
