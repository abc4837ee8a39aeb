// Package scraper drives the browser through the campsite search, walks
// the paginated results, and fetches per-item detail records.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonfrank/campsite-pipeline/browser"
	"github.com/jonfrank/campsite-pipeline/config"
	"github.com/jonfrank/campsite-pipeline/models"
	"github.com/jonfrank/campsite-pipeline/parser"
	"github.com/jonfrank/campsite-pipeline/pipeline"
)

// SearchForm holds the selector table for one site's search page. Keeping
// the ids declarative means a sibling register with the same
// search/paginate shape is a new table, not a new scraper.
type SearchForm struct {
	RegionLink      string
	KeywordInput    string
	CategoryBoxes   map[string]string
	SubmitButton    string
	SearchLandmark  string
	ResultsLandmark string
}

// PitchupForm is the selector table for pitchup.com.
var PitchupForm = SearchForm{
	RegionLink:   "#www-homepage-top-sites-image-england",
	KeywordInput: "#id_q",
	CategoryBoxes: map[string]string{
		"tent":      "#id_type_0",
		"caravan":   "#id_type_1",
		"campervan": "#id_type_2",
		"lodge":     "#id_type_3",
	},
	SubmitButton:    ".btn-update-search",
	SearchLandmark:  "#id_q",
	ResultsLandmark: "#ajax__search-results-heading",
}

// Scraper owns the browser session for one run.
type Scraper struct {
	cfg     *config.Config
	driver  browser.Driver
	form    SearchForm
	base    *url.URL
	Metrics *Metrics
}

// New builds a scraper over an open driver.
func New(cfg *config.Config, driver browser.Driver) (*Scraper, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	return &Scraper{
		cfg:     cfg,
		driver:  driver,
		form:    PitchupForm,
		base:    base,
		Metrics: NewMetrics(),
	}, nil
}

// OpenSearch loads the homepage, follows the England region link, and
// waits for the search form to appear.
func (s *Scraper) OpenSearch(ctx context.Context) error {
	if err := s.driver.Navigate(ctx, s.cfg.BaseURL); err != nil {
		return ErrNavigation{Err: err}
	}

	doc, err := s.document(ctx)
	if err != nil {
		return err
	}
	href, ok := doc.Find(s.form.RegionLink).First().Attr("href")
	if !ok || href == "" {
		return fmt.Errorf("region link %q not found on homepage", s.form.RegionLink)
	}

	target := href
	if parsed, err := url.Parse(href); err == nil {
		target = s.base.ResolveReference(parsed).String()
	}
	if err := s.driver.Navigate(ctx, target); err != nil {
		return ErrNavigation{Err: err}
	}

	s.awaitLandmark(ctx, s.form.SearchLandmark, "search page")
	return s.settle(ctx)
}

// Search fills in the form with the configured criteria and submits it.
func (s *Scraper) Search(ctx context.Context) error {
	if keyword := strings.TrimSpace(s.cfg.Keyword); keyword != "" {
		if err := s.driver.SendKeys(ctx, s.form.KeywordInput, keyword); err != nil {
			return fmt.Errorf("enter keyword: %w", err)
		}
	}
	for _, category := range s.cfg.Categories {
		selector, ok := s.form.CategoryBoxes[category]
		if !ok {
			return fmt.Errorf("no checkbox known for category %q", category)
		}
		if err := s.driver.Click(ctx, selector); err != nil {
			return fmt.Errorf("tick category %q: %w", category, err)
		}
	}

	if err := s.settle(ctx); err != nil {
		return err
	}
	if err := s.driver.Click(ctx, s.form.SubmitButton); err != nil {
		return fmt.Errorf("submit search: %w", err)
	}

	s.awaitLandmark(ctx, s.form.ResultsLandmark, "search results")
	return s.settle(ctx)
}

// Walk loops over result pages collecting item references. It stops after
// the current page when testMode is set, when no next link exists, or
// when the accumulated count reaches maxItems (0 means no ceiling);
// reaching the ceiling mid-page stops collection at exactly maxItems.
func (s *Scraper) Walk(ctx context.Context, maxItems int, testMode bool) ([]models.ItemReference, int, error) {
	var refs []models.ItemReference
	pages := 0

	for {
		pages++
		doc, err := s.document(ctx)
		if err != nil {
			return refs, pages, err
		}
		base := s.pageBase(ctx)

		full := false
		pageRefs := parser.Listings(doc, base)
		for _, ref := range pageRefs {
			refs = append(refs, ref)
			if maxItems > 0 && len(refs) >= maxItems {
				full = true
				break
			}
		}

		s.Metrics.IncPage()
		s.Metrics.AddFound(len(pageRefs))
		slog.Info("scraped listing page",
			slog.Int("page", pages),
			slog.Int("page_items", len(pageRefs)),
			slog.Int("total_items", len(refs)),
		)

		if testMode || full {
			return refs, pages, nil
		}
		next, ok := parser.NextPageURL(doc, base)
		if !ok {
			return refs, pages, nil
		}

		if err := s.driver.Navigate(ctx, next); err != nil {
			return refs, pages, ErrNavigation{Err: err}
		}
		if err := s.settle(ctx); err != nil {
			return refs, pages, err
		}
	}
}

// FetchDetail navigates to one item's detail page and extracts the full
// record. A nil record with nil error means the page had no usable
// heading and the item must be skipped.
func (s *Scraper) FetchDetail(ctx context.Context, ref models.ItemReference) (*models.CampsiteDetail, error) {
	start := time.Now()
	defer func() { s.Metrics.ObserveFetch(time.Since(start)) }()

	if err := s.driver.Navigate(ctx, ref.URL); err != nil {
		return nil, ErrNavigation{Err: err}
	}

	s.awaitLandmark(ctx, parser.HeaderSelector, "detail page")
	if err := s.settle(ctx); err != nil {
		return nil, err
	}

	doc, err := s.document(ctx)
	if err != nil {
		return nil, err
	}

	detail := parser.Detail(doc, ref)
	if detail == nil {
		slog.Warn("detail page missing heading, discarding",
			slog.String("id", ref.DerivedID),
			slog.String("url", ref.URL),
		)
		return nil, nil
	}
	detail.ScrapedAt = time.Now().UTC()
	return detail, nil
}

// Run executes the whole crawl: search, walk, per-item fetch and persist,
// final flush.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.RunResult, error) {
	result := &models.RunResult{StartTime: time.Now()}

	if err := s.OpenSearch(ctx); err != nil {
		return result, fmt.Errorf("open search: %w", err)
	}
	if err := s.Search(ctx); err != nil {
		return result, fmt.Errorf("run search: %w", err)
	}

	refs, pages, err := s.Walk(ctx, s.cfg.MaxItems, s.cfg.TestMode)
	if err != nil {
		return result, fmt.Errorf("walk result pages: %w", err)
	}
	result.PageCount = pages
	result.TotalFound = len(refs)

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		detail, err := s.FetchDetail(ctx, ref)
		if err != nil {
			s.Metrics.IncError(errorTypeLabel(err))
			slog.Error("detail fetch failed, skipping item",
				slog.String("id", ref.DerivedID),
				slog.Any("error", err),
			)
			result.SkippedCount++
			continue
		}
		if detail == nil {
			result.SkippedCount++
			continue
		}

		outcome, err := p.Process(ctx, detail)
		if err != nil {
			wrapped := ErrRowStore{Err: err}
			s.Metrics.IncError(errorTypeLabel(wrapped))
			slog.Error("persistence failed, skipping item",
				slog.String("id", ref.DerivedID),
				slog.Any("error", err),
			)
			result.SkippedCount++
			continue
		}

		s.Metrics.IncOutcome(outcome.String())
		slog.Info("processed campsite",
			slog.String("name", detail.Name),
			slog.String("id", detail.DerivedID),
			slog.String("outcome", outcome.String()),
		)
	}

	flushed, err := p.Flush(ctx)
	result.RowsFlushed = flushed
	if err != nil {
		return result, fmt.Errorf("flush batch: %w", err)
	}

	counters := p.Counters()
	result.NewCount = counters.New
	result.DuplicateCount = counters.Duplicate
	result.ImagesUploaded = counters.ImagesUploaded
	result.ImageFailures = counters.ImageFailures
	s.Metrics.AddImages(counters.ImagesUploaded, counters.ImageFailures)
	result.EndTime = time.Now()
	return result, nil
}

// pageBase resolves relative links against the page actually loaded,
// which can differ from the configured base after a redirect. Falls back
// to the configured base when the driver cannot report a location.
func (s *Scraper) pageBase(ctx context.Context) *url.URL {
	loc, err := s.driver.CurrentURL(ctx)
	if err != nil {
		return s.base
	}
	parsed, err := url.Parse(loc)
	if err != nil || parsed.Host == "" {
		return s.base
	}
	return parsed
}

// awaitLandmark waits for a structural landmark and logs instead of
// failing on timeout; field reads afterwards degrade gracefully.
func (s *Scraper) awaitLandmark(ctx context.Context, selector, what string) {
	err := s.driver.WaitVisible(ctx, selector, s.cfg.LandmarkTimeout)
	if err == nil {
		return
	}
	if errors.Is(err, browser.ErrLandmarkTimeout) {
		s.Metrics.IncError("landmark_timeout")
		slog.Warn("timed out waiting for landmark, continuing",
			slog.String("what", what),
			slog.String("selector", selector),
		)
		return
	}
	s.Metrics.IncError(errorTypeLabel(err))
	slog.Warn("landmark wait failed, continuing",
		slog.String("what", what),
		slog.Any("error", err),
	)
}

// settle gives dynamic content a fixed beat to render after navigation.
func (s *Scraper) settle(ctx context.Context) error {
	if s.cfg.SettleDelay <= 0 {
		return nil
	}
	select {
	case <-time.After(s.cfg.SettleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scraper) document(ctx context.Context) (*goquery.Document, error) {
	html, err := s.driver.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}
