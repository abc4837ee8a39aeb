package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawl.
type Metrics struct {
	Registry            *prometheus.Registry
	PagesScrapedTotal   prometheus.Counter
	ItemsFoundTotal     prometheus.Counter
	ItemsTotal          *prometheus.CounterVec
	ImagesUploadedTotal prometheus.Counter
	ImageFailuresTotal  prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
	DetailFetchDuration prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campsite_pages_scraped_total",
			Help: "Search-result pages walked.",
		},
	)
	found := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campsite_items_found_total",
			Help: "Listing references collected from result pages.",
		},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campsite_items_total",
			Help: "Processed items by persistence outcome.",
		},
		[]string{"outcome"},
	)
	imagesUploaded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campsite_images_uploaded_total",
			Help: "Photos uploaded to the blob store.",
		},
	)
	imageFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campsite_image_failures_total",
			Help: "Photos that failed to download or upload.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campsite_errors_total",
			Help: "Errors by type.",
		},
		[]string{"error_type"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campsite_detail_fetch_duration_seconds",
			Help:    "Time spent fetching and extracting one detail page.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(pages, found, items, imagesUploaded, imageFailures, errorsTotal, fetchDuration)

	return &Metrics{
		Registry:            registry,
		PagesScrapedTotal:   pages,
		ItemsFoundTotal:     found,
		ItemsTotal:          items,
		ImagesUploadedTotal: imagesUploaded,
		ImageFailuresTotal:  imageFailures,
		ErrorsTotal:         errorsTotal,
		DetailFetchDuration: fetchDuration,
	}
}

// IncPage increments the pages-scraped counter.
func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesScrapedTotal.Inc()
}

// AddFound records listing references collected from one page.
func (m *Metrics) AddFound(n int) {
	if m == nil {
		return
	}
	m.ItemsFoundTotal.Add(float64(n))
}

// IncOutcome counts one processed item by its persistence outcome.
func (m *Metrics) IncOutcome(outcome string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(outcome).Inc()
}

// AddImages records uploaded photos and failures for one item.
func (m *Metrics) AddImages(uploaded, failed int) {
	if m == nil {
		return
	}
	m.ImagesUploadedTotal.Add(float64(uploaded))
	m.ImageFailuresTotal.Add(float64(failed))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveFetch records how long one detail fetch took.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.DetailFetchDuration.Observe(d.Seconds())
}
