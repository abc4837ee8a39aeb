package scraper

import (
	"errors"
	"fmt"

	"github.com/jonfrank/campsite-pipeline/browser"
)

// ErrNavigation indicates the driver could not load a page.
type ErrNavigation struct {
	Err error
}

func (e ErrNavigation) Error() string {
	return fmt.Errorf("navigation: %w", e.Err).Error()
}

func (e ErrNavigation) Unwrap() error {
	return e.Err
}

// ErrRowStore indicates a persistence query failed for one item.
type ErrRowStore struct {
	Err error
}

func (e ErrRowStore) Error() string {
	return fmt.Errorf("row_store: %w", e.Err).Error()
}

func (e ErrRowStore) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, browser.ErrLandmarkTimeout) {
		return "landmark_timeout"
	}
	var nav ErrNavigation
	if errors.As(err, &nav) {
		return "navigation"
	}
	var row ErrRowStore
	if errors.As(err, &row) {
		return "row_store"
	}
	return "other"
}
