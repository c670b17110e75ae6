// Package search finds photos by their tags, capture date and identifier.
package search

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/nikbrunner/gorg/internal/model"
)

// Filter returns the photos whose tags or identifier contain query
// (case-insensitive) or whose capture date contains it. An empty query
// matches everything.
func Filter(photos []model.Photo, query string) []model.Photo {
	q := strings.ToLower(strings.TrimSpace(query))
	result := []model.Photo{}
	for _, p := range photos {
		if q == "" ||
			strings.Contains(strings.ToLower(p.Tags), q) ||
			strings.Contains(p.Date, q) ||
			strings.Contains(strings.ToLower(p.ID), q) {
			result = append(result, p)
		}
	}
	return result
}

// Favorites returns the photos marked favorite.
func Favorites(photos []model.Photo) []model.Photo {
	result := []model.Photo{}
	for _, p := range photos {
		if p.Favorite {
			result = append(result, p)
		}
	}
	return result
}

// SearchResult represents a fuzzy search match.
type SearchResult struct {
	Photo          *model.Photo
	MatchedIndexes []int // into Key(Photo)
	Score          int
}

// Key is the text a photo is fuzzy-matched against.
func Key(p *model.Photo) string {
	return p.Name() + " " + p.Tags + " " + p.Date
}

// photoKeys implements fuzzy.Source for a photo slice.
type photoKeys []*model.Photo

func (pk photoKeys) String(i int) string {
	return Key(pk[i])
}

func (pk photoKeys) Len() int {
	return len(pk)
}

// Fuzzy searches all photos of lib by name, tags and date using fuzzy
// matching. Returns results sorted by match score (best first).
func Fuzzy(lib *model.Library, query string) []SearchResult {
	if query == "" {
		return nil
	}

	// Build slice of photo pointers
	photos := make(photoKeys, len(lib.Photos))
	for i := range lib.Photos {
		photos[i] = &lib.Photos[i]
	}

	// Run fuzzy matching
	matches := fuzzy.FindFrom(query, photos)

	// Convert to SearchResult
	results := make([]SearchResult, len(matches))
	for i, m := range matches {
		results[i] = SearchResult{
			Photo:          photos[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}

	return results
}
