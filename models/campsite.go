// Package models defines data structures for the campsite pipeline.
package models

import (
	"strings"
	"time"
)

// ItemReference is a lightweight pointer to one campsite collected from a
// search-results page. DerivedID is the stable natural key computed from the
// detail URL; UID is freshly generated each run and only meaningful once a
// row carrying it has been persisted.
type ItemReference struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	DerivedID string `json:"id"`
	UID       string `json:"uuid"`
}

// CampsiteDetail is the full record extracted from one detail page.
// Optional scalar fields default to the empty string; the slices default to
// empty. A detail without a Name is never constructed.
type CampsiteDetail struct {
	Name        string    `json:"sitename"`
	Rating      string    `json:"rating"`
	DateOpen    string    `json:"date_open"`
	PriceFrom   string    `json:"price_from"`
	Description string    `json:"description"`
	Bullets     []string  `json:"bullets"`
	Images      []string  `json:"images"`
	DerivedID   string    `json:"id"`
	UID         string    `json:"uuid"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// BulletSeparator joins the bullet list into the single flattened column.
const BulletSeparator = " / "

// CampsiteRow is the flattened tabular form appended to the row store:
// every CampsiteDetail field except the image URLs, with bullets collapsed
// into one string.
type CampsiteRow struct {
	DerivedID   string
	UID         string
	Name        string
	Rating      string
	DateOpen    string
	PriceFrom   string
	Description string
	Bullets     string
	ScrapedAt   time.Time
}

// Flatten converts a detail record into its row-store form.
func (d *CampsiteDetail) Flatten() CampsiteRow {
	return CampsiteRow{
		DerivedID:   d.DerivedID,
		UID:         d.UID,
		Name:        d.Name,
		Rating:      d.Rating,
		DateOpen:    d.DateOpen,
		PriceFrom:   d.PriceFrom,
		Description: d.Description,
		Bullets:     strings.Join(d.Bullets, BulletSeparator),
		ScrapedAt:   d.ScrapedAt,
	}
}

// Outcome classifies what the persistence pipeline did with one record.
type Outcome int

const (
	// OutcomeNew means the record was queued for insertion and its images uploaded.
	OutcomeNew Outcome = iota
	// OutcomeDuplicate means a row already existed for the derived id.
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNew:
		return "new"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// RunResult summarises one complete crawl for the final report.
type RunResult struct {
	StartTime      time.Time
	EndTime        time.Time
	PageCount      int
	TotalFound     int
	NewCount       int
	DuplicateCount int
	SkippedCount   int
	ImagesUploaded int
	ImageFailures  int
	RowsFlushed    int64
}
