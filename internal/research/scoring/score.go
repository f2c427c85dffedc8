// Package scoring grades the on-page SEO signals of a URL.
package scoring

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// ComputeScore grades page signals. It is a pure function of its inputs.
func ComputeScore(p *types.PageSignals, now time.Time) *types.SeoScore {
	subs := map[string]float64{
		SubTitle:           titleScore(p.Title),
		SubMetaDescription: descriptionScore(p.MetaDescription),
		SubHeadings:        headingScore(p.H1Count, p.H2Count),
		SubContent:         contentScore(p.WordCount),
		SubImages:          imageScore(p.ImageCount, p.ImagesWithAlt),
		SubTechnical:       technicalScore(p),
		SubPerformance:     performanceScore(p.ResponseTime, p.ContentLengthBytes),
	}

	var overall float64
	for _, name := range SubScoreOrder {
		overall += Weights[name] * subs[name]
	}
	overall = math.Round(math.Max(0, math.Min(100, overall))*10) / 10

	return &types.SeoScore{
		URL:             p.URL,
		OverallScore:    overall,
		Grade:           GradeFor(overall),
		SubScores:       subs,
		Recommendations: recommendations(p, subs),
		ScoredAt:        now.UTC(),
	}
}

func titleScore(title string) float64 {
	n := utf8.RuneCountInString(title)
	switch {
	case n == 0:
		return 0
	case n >= 30 && n <= 60:
		return 100
	case n >= 10 && n <= 70:
		return 70
	default:
		return 40
	}
}

func descriptionScore(desc string) float64 {
	n := utf8.RuneCountInString(desc)
	switch {
	case n == 0:
		return 0
	case n >= 120 && n <= 160:
		return 100
	case n >= 50 && n <= 200:
		return 70
	default:
		return 40
	}
}

func headingScore(h1, h2 int) float64 {
	var s float64
	switch {
	case h1 == 1:
		s = 60
	case h1 > 1:
		s = 30
	}
	switch {
	case h2 >= 2:
		s += 40
	case h2 == 1:
		s += 25
	}
	return s
}

func contentScore(words int) float64 {
	switch {
	case words >= 1500:
		return 100
	case words >= 600:
		return 85
	case words >= 300:
		return 65
	case words >= 100:
		return 35
	case words > 0:
		return 10
	}
	return 0
}

// imageScore is the share of images with alt text. A page without images
// loses nothing.
func imageScore(images, withAlt int) float64 {
	if images <= 0 {
		return 100
	}
	return math.Round(100*float64(min(withAlt, images))/float64(images)*10) / 10
}

func technicalScore(p *types.PageSignals) float64 {
	var s float64
	if p.HTTPS {
		s += 30
	}
	if p.Canonical != "" {
		s += 20
	}
	if p.HasViewport {
		s += 20
	}
	if p.Lang != "" {
		s += 15
	}
	if p.StatusCode >= 200 && p.StatusCode < 300 {
		s += 15
	}
	return s
}

func performanceScore(rt time.Duration, size int) float64 {
	var s float64
	switch {
	case rt <= 500*time.Millisecond:
		s = 100
	case rt <= time.Second:
		s = 85
	case rt <= 2*time.Second:
		s = 65
	case rt <= 4*time.Second:
		s = 40
	default:
		s = 15
	}
	if size > 2<<20 {
		s -= 20
	}
	return math.Max(0, s)
}

func recommendations(p *types.PageSignals, subs map[string]float64) []string {
	var recs []string
	add := func(format string, args ...any) {
		recs = append(recs, fmt.Sprintf(format, args...))
	}

	if n := utf8.RuneCountInString(p.Title); n == 0 {
		add("Add a <title> tag of 30-60 characters.")
	} else if subs[SubTitle] < 100 {
		add("Adjust the title length to 30-60 characters (currently %d).", n)
	}

	if n := utf8.RuneCountInString(p.MetaDescription); n == 0 {
		add("Add a meta description of 120-160 characters.")
	} else if subs[SubMetaDescription] < 100 {
		add("Adjust the meta description length to 120-160 characters (currently %d).", n)
	}

	switch {
	case p.H1Count == 0:
		add("Add exactly one <h1> heading.")
	case p.H1Count > 1:
		add("Use a single <h1> heading instead of %d.", p.H1Count)
	}
	if p.H2Count < 2 {
		add("Structure the content with at least two <h2> subheadings.")
	}

	if p.WordCount < 600 {
		add("Expand the content to at least 600 words (currently %d).", p.WordCount)
	}

	if missing := p.ImageCount - p.ImagesWithAlt; missing > 0 {
		add("Add alt text to %d of %d images.", missing, p.ImageCount)
	}

	if !p.HTTPS {
		add("Serve the page over HTTPS.")
	}
	if p.Canonical == "" {
		add("Declare a canonical URL.")
	}
	if !p.HasViewport {
		add("Add a viewport meta tag for mobile rendering.")
	}
	if p.Lang == "" {
		add("Set the lang attribute on the <html> element.")
	}

	if p.ResponseTime > time.Second {
		add("Reduce the server response time (currently %s).", p.ResponseTime.Round(time.Millisecond))
	}
	if p.ContentLengthBytes > 2<<20 {
		add("Reduce the HTML size below 2 MB.")
	}
	return recs
}
