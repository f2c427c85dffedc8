package clustering

import (
	"regexp"

	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// intentRules are checked in priority order; the first match wins.
var intentRules = []struct {
	intent  types.Intent
	pattern *regexp.Regexp
}{
	{types.IntentTransactional, regexp.MustCompile(`\b(buy|order|purchase|cheap|deals?|discount|coupons?|promo|price|pricing|cost|for sale|shop|subscribe|download|hire|book(ing)?)\b`)},
	{types.IntentCommercial, regexp.MustCompile(`\b(best|top|reviews?|vs|versus|compare|comparison|alternatives?|rated|ranking|recommended)\b`)},
	{types.IntentNavigational, regexp.MustCompile(`\b(login|log in|sign in|signin|sign up|website|official|app|near me|contact|account|homepage|customer service)\b|\.(com|net|org|io)\b`)},
	{types.IntentInformational, regexp.MustCompile(`\b(how|what|why|when|where|who|which|guide|tutorial|tips|ideas|learn|examples?|definition|meaning|benefits)\b`)},
}

var intentPriority = map[types.Intent]int{
	types.IntentTransactional: 0,
	types.IntentCommercial:    1,
	types.IntentNavigational:  2,
	types.IntentInformational: 3,
}

// ClassifyIntent returns the search intent a normalized keyword signals.
// Keywords matching no rule are informational.
func ClassifyIntent(keyword string) types.Intent {
	for _, r := range intentRules {
		if r.pattern.MatchString(keyword) {
			return r.intent
		}
	}
	return types.IntentInformational
}

// majorityIntent returns the most frequent intent and its share. Ties go to
// the intent with the higher rule priority.
func majorityIntent(keywords []string) (types.Intent, float64) {
	if len(keywords) == 0 {
		return types.IntentInformational, 0
	}
	counts := make(map[types.Intent]int, len(intentPriority))
	for _, k := range keywords {
		counts[ClassifyIntent(k)]++
	}
	best := types.IntentInformational
	bestCount := -1
	for intent, n := range counts {
		if n > bestCount || (n == bestCount && intentPriority[intent] < intentPriority[best]) {
			best, bestCount = intent, n
		}
	}
	return best, float64(bestCount) / float64(len(keywords))
}
