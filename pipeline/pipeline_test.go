package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonfrank/campsite-pipeline/images"
	"github.com/jonfrank/campsite-pipeline/models"
	"github.com/jonfrank/campsite-pipeline/store"
)

type fakeRows struct {
	uids        map[string]string
	queryErr    error
	existsCalls int
	appended    [][]models.CampsiteRow
	appendErr   error
}

func newFakeRows() *fakeRows {
	return &fakeRows{uids: make(map[string]string)}
}

func (f *fakeRows) Exists(_ context.Context, derivedID string) (string, bool, error) {
	f.existsCalls++
	if f.queryErr != nil {
		return "", false, f.queryErr
	}
	uid, ok := f.uids[derivedID]
	return uid, ok, nil
}

func (f *fakeRows) AppendBatch(_ context.Context, rows []models.CampsiteRow) (int64, error) {
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	batch := make([]models.CampsiteRow, len(rows))
	copy(batch, rows)
	f.appended = append(f.appended, batch)
	return int64(len(rows)), nil
}

func (f *fakeRows) Close() error { return nil }

type fakeBlobs struct {
	present  map[string]bool
	probeErr error
}

func (f *fakeBlobs) Exists(_ context.Context, key store.ImageKey) (bool, error) {
	if f.probeErr != nil {
		return false, f.probeErr
	}
	return f.present[key.Object()], nil
}

func (f *fakeBlobs) Put(_ context.Context, key store.ImageKey, _ string) error {
	if f.present == nil {
		f.present = make(map[string]bool)
	}
	f.present[key.Object()] = true
	return nil
}

type uploadCall struct {
	urls      []string
	uid       string
	derivedID string
}

// fakeUploader records calls and, when wired to a fakeBlobs, marks the
// uploaded keys present there so later probes see what was shipped.
type fakeUploader struct {
	blobs    *fakeBlobs
	calls    []uploadCall
	failures int
}

func (f *fakeUploader) Upload(ctx context.Context, urls []string, uid, derivedID string) (int, []images.Failure) {
	f.calls = append(f.calls, uploadCall{urls: urls, uid: uid, derivedID: derivedID})
	fails := make([]images.Failure, 0, f.failures)
	for i := 0; i < f.failures; i++ {
		fails = append(fails, images.Failure{Source: i, Err: errors.New("upload failed")})
	}
	uploaded := len(urls) - f.failures
	if f.blobs != nil {
		for i := 0; i < uploaded; i++ {
			f.blobs.Put(ctx, store.ImageKey{UID: uid, DerivedID: derivedID, Index: i}, "")
		}
	}
	return uploaded, fails
}

func record(derivedID, uid string) *models.CampsiteDetail {
	return &models.CampsiteDetail{
		Name:      "Fir Trees Farm",
		Rating:    "9.2",
		Bullets:   []string{"Dogs welcome"},
		Images:    []string{"https://cdn.example/1.jpg", "https://cdn.example/2.jpg"},
		DerivedID: derivedID,
		UID:       uid,
		ScrapedAt: time.Now(),
	}
}

func TestProcessNewRecord(t *testing.T) {
	rows := newFakeRows()
	blobs := &fakeBlobs{}
	up := &fakeUploader{}
	p := New(rows, blobs, up)

	rec := record("campsites-x-y", "run-uid")
	outcome, err := p.Process(context.Background(), rec)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != models.OutcomeNew {
		t.Fatalf("outcome = %v, want new", outcome)
	}
	if p.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", p.PendingCount())
	}
	if len(up.calls) != 1 {
		t.Fatalf("upload calls = %d, want 1", len(up.calls))
	}
	if up.calls[0].uid != "run-uid" {
		t.Fatalf("upload uid = %q, want the freshly generated one", up.calls[0].uid)
	}
	if got := p.Counters(); got.New != 1 || got.Duplicate != 0 || got.ImagesUploaded != 2 {
		t.Fatalf("counters = %+v", got)
	}
}

func TestProcessDuplicateWithImagesPresent(t *testing.T) {
	rows := newFakeRows()
	rows.uids["campsites-x-y"] = "stored-uid"
	blobs := &fakeBlobs{present: map[string]bool{"stored-uid-0.jpg": true}}
	up := &fakeUploader{}
	p := New(rows, blobs, up)

	outcome, err := p.Process(context.Background(), record("campsites-x-y", "fresh-uid"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != models.OutcomeDuplicate {
		t.Fatalf("outcome = %v, want duplicate", outcome)
	}
	if p.PendingCount() != 0 {
		t.Fatalf("duplicate must not queue a row, pending = %d", p.PendingCount())
	}
	if len(up.calls) != 0 {
		t.Fatalf("duplicate with images present must not upload, calls = %v", up.calls)
	}
	if got := p.Counters(); got.Duplicate != 1 || got.Repairs != 0 {
		t.Fatalf("counters = %+v", got)
	}
}

func TestProcessDuplicateRepairsMissingImages(t *testing.T) {
	rows := newFakeRows()
	rows.uids["campsites-x-y"] = "stored-uid"
	blobs := &fakeBlobs{}
	up := &fakeUploader{}
	p := New(rows, blobs, up)

	outcome, err := p.Process(context.Background(), record("campsites-x-y", "fresh-uid"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != models.OutcomeDuplicate {
		t.Fatalf("outcome = %v, want duplicate", outcome)
	}
	if p.PendingCount() != 0 {
		t.Fatalf("repair must not queue a row, pending = %d", p.PendingCount())
	}
	if len(up.calls) != 1 {
		t.Fatalf("missing index 0 must trigger a repair upload, calls = %d", len(up.calls))
	}
	if up.calls[0].uid != "stored-uid" {
		t.Fatalf("repair must use the uid recorded at insertion time, got %q", up.calls[0].uid)
	}
	if got := p.Counters(); got.Repairs != 1 || got.ImagesUploaded != 2 {
		t.Fatalf("counters = %+v", got)
	}
}

func TestProcessDuplicateProbeErrorTriggersRepair(t *testing.T) {
	rows := newFakeRows()
	rows.uids["campsites-x-y"] = "stored-uid"
	blobs := &fakeBlobs{probeErr: errors.New("blob store unreachable")}
	up := &fakeUploader{}
	p := New(rows, blobs, up)

	if _, err := p.Process(context.Background(), record("campsites-x-y", "fresh-uid")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(up.calls) != 1 {
		t.Fatalf("probe failure must be treated as absent, calls = %d", len(up.calls))
	}
}

func TestProcessDuplicateWithoutImagesSkipsProbe(t *testing.T) {
	rows := newFakeRows()
	rows.uids["campsites-x-y"] = "stored-uid"
	up := &fakeUploader{}
	p := New(rows, &fakeBlobs{}, up)

	rec := record("campsites-x-y", "fresh-uid")
	rec.Images = []string{}
	if _, err := p.Process(context.Background(), rec); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(up.calls) != 0 {
		t.Fatalf("no extracted images means nothing to repair, calls = %v", up.calls)
	}
}

func TestProcessQueryErrorPropagates(t *testing.T) {
	rows := newFakeRows()
	rows.queryErr = errors.New("connection reset")
	up := &fakeUploader{}
	p := New(rows, &fakeBlobs{}, up)

	_, err := p.Process(context.Background(), record("campsites-x-y", "uid"))
	if err == nil {
		t.Fatalf("query error must propagate, not become a false new")
	}
	if p.PendingCount() != 0 {
		t.Fatalf("query error must not queue a row, pending = %d", p.PendingCount())
	}
	if len(up.calls) != 0 {
		t.Fatalf("query error must not upload images")
	}
	if got := p.Counters(); got.New != 0 && got.Duplicate != 0 {
		t.Fatalf("query error must not bump counters: %+v", got)
	}
}

func TestProcessSameRunRevisit(t *testing.T) {
	rows := newFakeRows()
	blobs := &fakeBlobs{}
	up := &fakeUploader{blobs: blobs}
	p := New(rows, blobs, up)

	first := record("campsites-x-y", "uid-first")
	if _, err := p.Process(context.Background(), first); err != nil {
		t.Fatalf("process first: %v", err)
	}

	// Same derived id seen again before the flush; the row store still has
	// no row for it, so only the in-run cache can catch the revisit.
	revisit := record("campsites-x-y", "uid-second")
	outcome, err := p.Process(context.Background(), revisit)
	if err != nil {
		t.Fatalf("process revisit: %v", err)
	}
	if outcome != models.OutcomeDuplicate {
		t.Fatalf("outcome = %v, want duplicate", outcome)
	}
	if p.PendingCount() != 1 {
		t.Fatalf("revisit must not queue a second row, pending = %d", p.PendingCount())
	}
	if rows.existsCalls != 1 {
		t.Fatalf("revisit should not re-query the row store, calls = %d", rows.existsCalls)
	}
	// The first occurrence already uploaded index 0 under uid-first, so no
	// repair fires.
	if len(up.calls) != 1 {
		t.Fatalf("upload calls = %d, want 1", len(up.calls))
	}
}

func TestFlushWritesPendingOnce(t *testing.T) {
	rows := newFakeRows()
	p := New(rows, &fakeBlobs{}, &fakeUploader{})

	for _, id := range []string{"a-b", "c-d", "e-f"} {
		if _, err := p.Process(context.Background(), record(id, "uid-"+id)); err != nil {
			t.Fatalf("process %s: %v", id, err)
		}
	}

	written, err := p.Flush(context.Background())
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if written != 3 {
		t.Fatalf("written = %d, want 3", written)
	}
	if len(rows.appended) != 1 {
		t.Fatalf("flush must be one bulk append, got %d", len(rows.appended))
	}
	if p.PendingCount() != 0 {
		t.Fatalf("pending must clear after flush, got %d", p.PendingCount())
	}

	if written, err := p.Flush(context.Background()); err != nil || written != 0 {
		t.Fatalf("second flush must be a no-op, got %d, %v", written, err)
	}
}

func TestFlushErrorKeepsPending(t *testing.T) {
	rows := newFakeRows()
	rows.appendErr = errors.New("disk full")
	p := New(rows, &fakeBlobs{}, &fakeUploader{})

	if _, err := p.Process(context.Background(), record("a-b", "uid")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := p.Flush(context.Background()); err == nil {
		t.Fatalf("flush error must propagate")
	}
	if p.PendingCount() != 1 {
		t.Fatalf("failed flush must keep rows pending, got %d", p.PendingCount())
	}
}
