package types

import "time"

// Grade is the letter band of an overall score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
	GradeF Grade = "F"
)

// SeoScore is the weighted on-page assessment of one URL.
type SeoScore struct {
	URL             string             `json:"url"`
	OverallScore    float64            `json:"overall_score"`
	Grade           Grade              `json:"grade"`
	SubScores       map[string]float64 `json:"sub_scores"`
	Recommendations []string           `json:"recommendations"`
	ScoredAt        time.Time          `json:"scored_at"`
}
