// Package fingerprint normalizes research inputs and derives the stable cache
// keys used by every layer of the pipeline.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/validator"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

const (
	keyPrefix     = "seo"
	fieldSep      = "\x1f"
	defaultMaxLen = 200
)

var (
	countryPattern  = regexp.MustCompile(`^[a-z]{2}$`)
	languagePattern = regexp.MustCompile(`^[a-z]{2,3}(-[a-z]{2})?$`)
)

// Config controls normalization fallbacks and limits.
type Config struct {
	DefaultCountry   string `mapstructure:"default_country"`
	DefaultLanguage  string `mapstructure:"default_language"`
	MaxKeywordLength int    `mapstructure:"max_keyword_length"`
}

// DefaultConfig returns the normalization defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultCountry:   "us",
		DefaultLanguage:  "en",
		MaxKeywordLength: defaultMaxLen,
	}
}

// Normalizer turns raw user input into ResearchKeys.
type Normalizer struct {
	cfg Config
}

// NewNormalizer creates a normalizer. A nil config uses DefaultConfig.
func NewNormalizer(cfg *Config) *Normalizer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.MaxKeywordLength <= 0 {
		c.MaxKeywordLength = defaultMaxLen
	}
	c.DefaultCountry = strings.ToLower(strings.TrimSpace(c.DefaultCountry))
	c.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.DefaultLanguage))
	return &Normalizer{cfg: c}
}

// Normalize trims, lower-cases and collapses whitespace in the keyword, and
// validates country and language. Empty country or language fall back to the
// configured defaults. Normalize is idempotent.
func (n *Normalizer) Normalize(rawKeyword, country, language string) (types.ResearchKey, error) {
	keyword, err := n.NormalizeKeyword(rawKeyword)
	if err != nil {
		return types.ResearchKey{}, err
	}

	country = strings.ToLower(strings.TrimSpace(country))
	if country == "" {
		country = n.cfg.DefaultCountry
	}
	if !countryPattern.MatchString(country) {
		return types.ResearchKey{}, fmt.Errorf("%w: country %q must be a two-letter code", types.ErrInvalidInput, country)
	}

	language = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(language, "_", "-")))
	if language == "" {
		language = n.cfg.DefaultLanguage
	}
	if !languagePattern.MatchString(language) {
		return types.ResearchKey{}, fmt.Errorf("%w: language %q is not a valid language tag", types.ErrInvalidInput, language)
	}

	return types.ResearchKey{Keyword: keyword, Country: country, Language: language}, nil
}

// NormalizeKeyword applies only the keyword rules of Normalize.
func (n *Normalizer) NormalizeKeyword(raw string) (string, error) {
	keyword := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if keyword == "" {
		return "", fmt.Errorf("%w: keyword is empty", types.ErrInvalidInput)
	}
	if utf8.RuneCountInString(keyword) > n.cfg.MaxKeywordLength {
		return "", fmt.Errorf("%w: keyword exceeds %d characters", types.ErrInvalidInput, n.cfg.MaxKeywordLength)
	}
	return keyword, nil
}

// Fingerprint derives the cache key of a research key in a category. It is a
// pure function of its inputs.
func Fingerprint(key types.ResearchKey, category types.Category) string {
	return hashFields(category, key.Keyword, key.Country, key.Language)
}

// ClusterKey derives the key of a clustering result. Keyword order and
// duplicates do not affect it.
func ClusterKey(keywords []string, country, language string, algorithm types.Algorithm, targetClusters int, threshold float64, seed int64) types.ResearchKey {
	uniq := make(map[string]struct{}, len(keywords))
	sorted := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if _, ok := uniq[k]; ok {
			continue
		}
		uniq[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	params := []string{
		string(algorithm),
		strconv.Itoa(targetClusters),
		strconv.FormatFloat(threshold, 'f', 4, 64),
		strconv.FormatInt(seed, 10),
	}
	return types.ResearchKey{
		Keyword:  strings.Join(append(params, sorted...), fieldSep),
		Country:  country,
		Language: language,
		Category: types.CategoryClustering,
	}
}

// PageKey normalizes a page URL into a research key for the page_score
// category.
func PageKey(rawURL string) (types.ResearchKey, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return types.ResearchKey{}, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return types.ResearchKey{}, fmt.Errorf("%w: url %q must be http or https", types.ErrInvalidInput, rawURL)
	}
	if u.Host == "" {
		return types.ResearchKey{}, fmt.Errorf("%w: url %q has no host", types.ErrInvalidInput, rawURL)
	}
	if !validator.IsPublicHost(u.Hostname()) {
		return types.ResearchKey{}, fmt.Errorf("%w: url %q does not point to a public host", types.ErrInvalidInput, rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return types.ResearchKey{Keyword: u.String(), Category: types.CategoryPageScore}, nil
}

func hashFields(category types.Category, fields ...string) string {
	h := sha256.New()
	h.Write([]byte(category))
	for _, f := range fields {
		h.Write([]byte(fieldSep))
		h.Write([]byte(f))
	}
	return keyPrefix + ":" + string(category) + ":" + hex.EncodeToString(h.Sum(nil))
}
