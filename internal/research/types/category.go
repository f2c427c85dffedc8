package types

import "fmt"

// Category identifies the kind of signal a source produces. It is part of
// every cache fingerprint.
type Category string

const (
	CategoryKeywordMetrics Category = "keyword_metrics"
	CategorySerp           Category = "serp"
	CategoryEmbedding      Category = "embedding"
	CategoryClustering     Category = "clustering"
	CategoryPageScore      Category = "page_score"
)

// AllCategories lists every known category in a stable order.
var AllCategories = []Category{
	CategoryKeywordMetrics,
	CategorySerp,
	CategoryEmbedding,
	CategoryClustering,
	CategoryPageScore,
}

// ResearchCategories are the per-keyword categories a research run may request.
var ResearchCategories = []Category{
	CategoryKeywordMetrics,
	CategorySerp,
	CategoryEmbedding,
}

// ParseCategory converts a string into a known category.
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, s)
}

// IsResearch reports whether the category can be fetched per keyword.
func (c Category) IsResearch() bool {
	for _, rc := range ResearchCategories {
		if rc == c {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
