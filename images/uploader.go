// Package images downloads campsite photos to a transient staging folder
// and ships them to the blob store.
package images

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jonfrank/campsite-pipeline/store"
)

// Failure records one image that could not be downloaded or uploaded.
// Source is the position of the URL in the original list.
type Failure struct {
	Source int
	URL    string
	Err    error
}

func (f Failure) String() string {
	return fmt.Sprintf("image %d (%s): %v", f.Source, f.URL, f.Err)
}

// Uploader stages photo downloads on the local filesystem and uploads
// them under "{uid}-{index}.jpg" keys. Downloads run sequentially with a
// politeness delay between requests.
type Uploader struct {
	client  *resty.Client
	blobs   store.BlobStore
	staging string
	delay   time.Duration
}

// NewUploader builds an uploader. The user agent matters: the image CDN
// rejects the default Go client string with 403s.
func NewUploader(blobs store.BlobStore, stagingDir string, delay time.Duration, userAgent string) *Uploader {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", userAgent)

	return &Uploader{
		client:  client,
		blobs:   blobs,
		staging: stagingDir,
		delay:   delay,
	}
}

type stagedFile struct {
	source int
	url    string
	path   string
}

// Upload downloads every URL and uploads the staged files for the item
// identified by uid/derivedID. Upload keys are zero-based and contiguous
// over the successfully staged files. A single failure is reported and
// does not stop the rest of the batch.
func (u *Uploader) Upload(ctx context.Context, urls []string, uid, derivedID string) (int, []Failure) {
	if len(urls) == 0 {
		return 0, nil
	}

	if err := u.clearStaging(); err != nil {
		failures := make([]Failure, 0, len(urls))
		for i, url := range urls {
			failures = append(failures, Failure{Source: i, URL: url, Err: err})
		}
		return 0, failures
	}

	var failures []Failure
	var staged []stagedFile
	for i, url := range urls {
		if i > 0 {
			select {
			case <-time.After(u.delay):
			case <-ctx.Done():
				failures = append(failures, Failure{Source: i, URL: url, Err: ctx.Err()})
				return 0, failures
			}
		}

		path := filepath.Join(u.staging, fmt.Sprintf("%d.jpg", i))
		if err := u.download(ctx, url, path); err != nil {
			failures = append(failures, Failure{Source: i, URL: url, Err: err})
			continue
		}
		staged = append(staged, stagedFile{source: i, url: url, path: path})
	}

	uploaded := 0
	for index, file := range staged {
		key := store.ImageKey{UID: uid, DerivedID: derivedID, Index: index}
		if err := u.blobs.Put(ctx, key, file.path); err != nil {
			failures = append(failures, Failure{Source: file.source, URL: file.url, Err: err})
			continue
		}
		uploaded++
	}

	for _, failure := range failures {
		slog.Error("image upload failure",
			slog.String("uid", uid),
			slog.Int("source", failure.Source),
			slog.String("url", failure.URL),
			slog.Any("error", failure.Err),
		)
	}

	return uploaded, failures
}

func (u *Uploader) download(ctx context.Context, url, path string) error {
	resp, err := u.client.R().
		SetContext(ctx).
		SetOutput(path).
		Get(url)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if resp.IsError() {
		os.Remove(path)
		return fmt.Errorf("download: status %d", resp.StatusCode())
	}
	return nil
}

// clearStaging empties the staging folder so stale files from a prior
// item are never re-uploaded under a new key.
func (u *Uploader) clearStaging() error {
	if err := os.RemoveAll(u.staging); err != nil {
		return fmt.Errorf("clear staging: %w", err)
	}
	if err := os.MkdirAll(u.staging, 0o755); err != nil {
		return fmt.Errorf("create staging: %w", err)
	}
	return nil
}
