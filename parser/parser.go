// Package parser extracts campsite data from rendered page HTML.
package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/jonfrank/campsite-pipeline/models"
)

// ThumbnailMarker appears in image URLs that are thumbnail renditions and
// must not be collected.
const ThumbnailMarker = "h_30"

// HeaderSelector marks the detail-page landmark; the fetcher waits on it
// before reading the document.
const HeaderSelector = ".campsite-header"

const (
	listingSelector     = ".campsite-name"
	pagingSelector      = ".paging a.prevnext"
	descriptionSelector = "#campsite_description"
	imageSelector       = ".campsite-overview table img"
)

// DeriveID computes the stable natural key for a detail URL: the URL path
// with leading/trailing slashes stripped and the remaining separators
// replaced by hyphens. It is a pure function of the URL.
func DeriveID(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return strings.Trim(strings.ReplaceAll(rawURL, "/", "-"), "-")
	}
	return strings.ReplaceAll(strings.Trim(parsed.Path, "/"), "/", "-")
}

// NormalizePrice strips the pound-sign prefix from a raw price string.
// The symbol shows up either as a proper "£" or as the mis-encoded "Â£"
// sequence depending on how the page declared its charset.
func NormalizePrice(price string) string {
	price = strings.TrimSpace(price)
	price = strings.TrimPrefix(price, "Â£")
	price = strings.TrimPrefix(price, "£")
	return strings.TrimSpace(price)
}

// Listings collects one ItemReference per listing anchor with non-empty
// display text. A page without the listing container simply yields no
// references.
func Listings(doc *goquery.Document, base *url.URL) []models.ItemReference {
	var refs []models.ItemReference
	doc.Find(listingSelector).Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Text())
		if name == "" {
			return
		}
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		abs := absoluteURL(base, href)
		refs = append(refs, models.ItemReference{
			Name:      name,
			URL:       abs,
			DerivedID: DeriveID(abs),
			UID:       uuid.NewString(),
		})
	})
	return refs
}

// NextPageURL resolves the "Next" paging link, if any.
func NextPageURL(doc *goquery.Document, base *url.URL) (string, bool) {
	var next string
	doc.Find(pagingSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.HasPrefix(strings.TrimSpace(sel.Text()), "Next") {
			return true
		}
		if href, ok := sel.Attr("href"); ok && href != "" {
			next = absoluteURL(base, href)
			return false
		}
		return true
	})
	return next, next != ""
}

// fieldSpec describes one optional detail field: where to find it, how to
// read it, and where to store it. Applying the table uniformly keeps the
// per-field isolation structural rather than repeated error handling.
type fieldSpec struct {
	selector string
	inHeader bool
	attr     string // empty reads the element text
	clean    func(string) string
	assign   func(*models.CampsiteDetail, string)
}

var detailFields = []fieldSpec{
	{
		selector: ".rating_value",
		inHeader: true,
		assign:   func(d *models.CampsiteDetail, v string) { d.Rating = v },
	},
	{
		selector: ".next-open-date",
		inHeader: true,
		attr:     "data-next-open-date",
		assign:   func(d *models.CampsiteDetail, v string) { d.DateOpen = v },
	},
	{
		selector: ".headlineprice .money-GBP",
		clean:    NormalizePrice,
		assign:   func(d *models.CampsiteDetail, v string) { d.PriceFrom = v },
	},
	{
		selector: descriptionSelector,
		assign:   func(d *models.CampsiteDetail, v string) { d.Description = v },
	},
}

// Detail builds the full record for one campsite from its detail page.
// The header and its primary heading are required; everything else is
// best-effort and defaults to empty when absent. A nil return means the
// page was unusable.
func Detail(doc *goquery.Document, ref models.ItemReference) *models.CampsiteDetail {
	header := doc.Find(HeaderSelector).First()
	if header.Length() == 0 {
		return nil
	}
	name := strings.TrimSpace(header.Find("h1").First().Text())
	if name == "" {
		return nil
	}

	detail := &models.CampsiteDetail{
		Name:      name,
		Bullets:   []string{},
		Images:    []string{},
		DerivedID: ref.DerivedID,
		UID:       ref.UID,
	}

	for _, field := range detailFields {
		scope := doc.Selection
		if field.inHeader {
			scope = header
		}
		sel := scope.Find(field.selector).First()
		if sel.Length() == 0 {
			field.assign(detail, "")
			continue
		}
		var value string
		if field.attr != "" {
			value, _ = sel.Attr(field.attr)
		} else {
			value = sel.Text()
		}
		value = strings.TrimSpace(value)
		if field.clean != nil {
			value = field.clean(value)
		}
		field.assign(detail, value)
	}

	detail.Bullets = bullets(doc)
	detail.Images = images(doc)
	return detail
}

// bullets reads the li texts of the ul immediately preceding the
// description block.
func bullets(doc *goquery.Document) []string {
	out := []string{}
	list := doc.Find(descriptionSelector).First().PrevAllFiltered("ul").First()
	list.Find("li").Each(func(_ int, sel *goquery.Selection) {
		out = append(out, strings.TrimSpace(sel.Text()))
	})
	return out
}

// images collects overview photo URLs, dropping thumbnail renditions.
func images(doc *goquery.Document) []string {
	out := []string{}
	doc.Find(imageSelector).Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" || strings.Contains(src, ThumbnailMarker) {
			return
		}
		out = append(out, src)
	})
	return out
}

func absoluteURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(parsed).String()
}
