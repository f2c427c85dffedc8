package source

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// rotator varies request fingerprints between attempts of the scraping
// adapters and spaces requests out with a random delay.
type rotator struct {
	userAgents []string
	minDelay   time.Duration
	maxDelay   time.Duration
	counter    atomic.Uint64
	sleep      sleepFunc
	randN      func(n int64) int64
}

func newRotator(cfg ScrapeConfig) *rotator {
	uas := cfg.UserAgents
	if len(uas) == 0 {
		uas = defaultUserAgents
	}
	maxDelay := cfg.MaxDelay
	if maxDelay < cfg.MinDelay {
		maxDelay = cfg.MinDelay
	}
	return &rotator{
		userAgents: uas,
		minDelay:   cfg.MinDelay,
		maxDelay:   maxDelay,
		sleep:      sleepContext,
		randN:      rand.Int64N,
	}
}

// headers returns the browser-like headers for the next attempt. Each call
// moves to the next User-Agent and Accept-Language variant.
func (r *rotator) headers(language string) http.Header {
	n := r.counter.Add(1) - 1
	h := http.Header{}
	h.Set("User-Agent", r.userAgents[n%uint64(len(r.userAgents))])
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	variants := acceptLanguages(language)
	h.Set("Accept-Language", variants[n%uint64(len(variants))])
	return h
}

// pause sleeps for a random duration in [minDelay, maxDelay].
func (r *rotator) pause(ctx context.Context) error {
	if r.maxDelay <= 0 {
		return ctx.Err()
	}
	d := r.minDelay
	if span := int64(r.maxDelay - r.minDelay); span > 0 {
		d += time.Duration(r.randN(span + 1))
	}
	return r.sleep(ctx, d)
}

func acceptLanguages(language string) []string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		lang = "en"
	}
	primary := lang
	if i := strings.IndexByte(lang, '-'); i > 0 {
		primary = lang[:i]
	}
	full := lang
	if full == primary {
		full = primary + "-" + strings.ToUpper(regionFor(primary))
	} else {
		full = primary + "-" + strings.ToUpper(lang[len(primary)+1:])
	}
	return []string{
		full + "," + primary + ";q=0.9",
		full + "," + primary + ";q=0.8,en;q=0.5",
		primary + "," + full + ";q=0.9,*;q=0.5",
	}
}

func regionFor(lang string) string {
	switch lang {
	case "en":
		return "us"
	case "ja":
		return "jp"
	case "zh":
		return "cn"
	case "ko":
		return "kr"
	case "sv":
		return "se"
	default:
		return lang
	}
}
