package types

import "time"

// KeywordStatus is the outcome of researching one keyword.
type KeywordStatus string

const (
	StatusOK      KeywordStatus = "ok"
	StatusPartial KeywordStatus = "partial"
	StatusFailed  KeywordStatus = "failed"
)

// CategoryError records why one category could not be resolved for a keyword.
type CategoryError struct {
	Category Category  `json:"category"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
}

// KeywordResult is the merged research output for one keyword.
type KeywordResult struct {
	Keyword   string          `json:"keyword"`
	Status    KeywordStatus   `json:"status"`
	Errors    []CategoryError `json:"errors,omitempty"`
	CacheHits []Category      `json:"cache_hits,omitempty"`
	Metrics   *KeywordRecord  `json:"metrics,omitempty"`
	Serp      *SerpResult     `json:"serp,omitempty"`
	Embedding *Embedding      `json:"embedding,omitempty"`
}

// PipelineRun is the record of one research request. Only the orchestrator
// writes it and it is not changed after CompletedAt is set.
type PipelineRun struct {
	RunID             string          `json:"run_id"`
	RequestedKeywords []string        `json:"requested_keywords"`
	Country           string          `json:"country"`
	Language          string          `json:"language"`
	Categories        []Category      `json:"categories"`
	Results           []KeywordResult `json:"results"`
	TimedOut          bool            `json:"timed_out"`
	StartedAt         time.Time       `json:"started_at"`
	CompletedAt       time.Time       `json:"completed_at"`
}

// Result returns the result for a keyword as it appears in RequestedKeywords.
func (r *PipelineRun) Result(keyword string) (*KeywordResult, bool) {
	for i := range r.Results {
		if r.Results[i].Keyword == keyword {
			return &r.Results[i], true
		}
	}
	return nil, false
}

// StatusCounts tallies keyword outcomes.
func (r *PipelineRun) StatusCounts() map[KeywordStatus]int {
	counts := map[KeywordStatus]int{StatusOK: 0, StatusPartial: 0, StatusFailed: 0}
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Duration is the wall time the run took.
func (r *PipelineRun) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
