package types

import "time"

// KeywordRecord holds search metrics for one keyword.
type KeywordRecord struct {
	Keyword      string    `json:"keyword"`
	SearchVolume int64     `json:"search_volume"`
	Difficulty   float64   `json:"difficulty"`
	CPC          float64   `json:"cpc"`
	Competition  float64   `json:"competition,omitempty"`
	SourceURL    string    `json:"source_url"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// OrganicResult is one ranked organic listing.
type OrganicResult struct {
	Rank    int    `json:"rank"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// FeaturedSnippet is the answer box shown above the organic results.
type FeaturedSnippet struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SerpResult is a parsed search engine results page. OrganicResults are kept
// in rank order.
type SerpResult struct {
	Query           string           `json:"query"`
	OrganicResults  []OrganicResult  `json:"organic_results"`
	FeaturedSnippet *FeaturedSnippet `json:"featured_snippet,omitempty"`
	PeopleAlsoAsk   []string         `json:"people_also_ask,omitempty"`
	SourceURL       string           `json:"source_url"`
	FetchedAt       time.Time        `json:"fetched_at"`
}

// Embedding is the semantic vector of a keyword.
type Embedding struct {
	Keyword   string    `json:"keyword"`
	Vector    []float32 `json:"vector"`
	Model     string    `json:"model"`
	FetchedAt time.Time `json:"fetched_at"`
}

// PageSignals are the on-page facts extracted from a single URL.
type PageSignals struct {
	URL                string        `json:"url"`
	StatusCode         int           `json:"status_code"`
	Title              string        `json:"title"`
	MetaDescription    string        `json:"meta_description"`
	H1Count            int           `json:"h1_count"`
	H2Count            int           `json:"h2_count"`
	WordCount          int           `json:"word_count"`
	ImageCount         int           `json:"image_count"`
	ImagesWithAlt      int           `json:"images_with_alt"`
	InternalLinks      int           `json:"internal_links"`
	ExternalLinks      int           `json:"external_links"`
	Canonical          string        `json:"canonical,omitempty"`
	HasViewport        bool          `json:"has_viewport"`
	Lang               string        `json:"lang,omitempty"`
	HTTPS              bool          `json:"https"`
	ContentLengthBytes int           `json:"content_length_bytes"`
	ResponseTime       time.Duration `json:"response_time"`
	FetchedAt          time.Time     `json:"fetched_at"`
}
