package scoring

import "github.com/lk2023060901/seo-research-backend/internal/research/types"

// Sub-score names as they appear in SeoScore.SubScores.
const (
	SubTitle           = "title"
	SubMetaDescription = "meta_description"
	SubHeadings        = "headings"
	SubContent         = "content"
	SubImages          = "images"
	SubTechnical       = "technical"
	SubPerformance     = "performance"
)

// Weights is the contribution of each sub-score to the overall score. The
// values sum to 1.
var Weights = map[string]float64{
	SubTitle:           0.20,
	SubMetaDescription: 0.15,
	SubHeadings:        0.15,
	SubContent:         0.15,
	SubImages:          0.10,
	SubTechnical:       0.15,
	SubPerformance:     0.10,
}

// SubScoreOrder fixes the iteration order of Weights.
var SubScoreOrder = []string{
	SubTitle, SubMetaDescription, SubHeadings, SubContent, SubImages, SubTechnical, SubPerformance,
}

var gradeBands = []struct {
	min   float64
	grade types.Grade
}{
	{90, types.GradeA},
	{80, types.GradeB},
	{70, types.GradeC},
	{60, types.GradeD},
	{50, types.GradeE},
}

// GradeFor maps an overall score in [0, 100] to its letter grade.
func GradeFor(score float64) types.Grade {
	for _, b := range gradeBands {
		if score >= b.min {
			return b.grade
		}
	}
	return types.GradeF
}
