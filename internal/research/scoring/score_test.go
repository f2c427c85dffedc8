package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

func goodPage() *types.PageSignals {
	return &types.PageSignals{
		URL:                "https://example.com/guide",
		StatusCode:         200,
		Title:              strings.Repeat("t", 45),
		MetaDescription:    strings.Repeat("d", 140),
		H1Count:            1,
		H2Count:            3,
		WordCount:          2000,
		ImageCount:         4,
		ImagesWithAlt:      4,
		Canonical:          "https://example.com/guide",
		HasViewport:        true,
		Lang:               "en",
		HTTPS:              true,
		ContentLengthBytes: 50 << 10,
		ResponseTime:       200 * time.Millisecond,
	}
}

func TestWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, w := range Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Len(t, SubScoreOrder, len(Weights))
	for _, name := range SubScoreOrder {
		assert.Contains(t, Weights, name)
	}
}

func TestGradeFor(t *testing.T) {
	tests := []struct {
		score float64
		want  types.Grade
	}{
		{100, types.GradeA},
		{90, types.GradeA},
		{89.9, types.GradeB},
		{80, types.GradeB},
		{79.9, types.GradeC},
		{70, types.GradeC},
		{60, types.GradeD},
		{59.9, types.GradeE},
		{50, types.GradeE},
		{49.9, types.GradeF},
		{0, types.GradeF},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GradeFor(tt.score), "score %v", tt.score)
	}
}

func TestComputeScore(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("perfect page", func(t *testing.T) {
		s := ComputeScore(goodPage(), now)
		assert.Equal(t, 100.0, s.OverallScore)
		assert.Equal(t, types.GradeA, s.Grade)
		assert.Empty(t, s.Recommendations)
		assert.Equal(t, now, s.ScoredAt)
		for _, name := range SubScoreOrder {
			assert.Equal(t, 100.0, s.SubScores[name], name)
		}
	})

	t.Run("mixed page", func(t *testing.T) {
		p := goodPage()
		p.Title = strings.Repeat("t", 20)
		p.H1Count, p.H2Count = 2, 1
		p.WordCount = 400
		p.ImagesWithAlt = 2
		p.Canonical, p.Lang, p.HTTPS, p.StatusCode = "", "", true, 0
		p.HasViewport = true
		p.ResponseTime = 1500 * time.Millisecond

		s := ComputeScore(p, now)
		assert.Equal(t, 70.0, s.SubScores[SubTitle])
		assert.Equal(t, 55.0, s.SubScores[SubHeadings])
		assert.Equal(t, 65.0, s.SubScores[SubContent])
		assert.Equal(t, 50.0, s.SubScores[SubImages])
		assert.Equal(t, 50.0, s.SubScores[SubTechnical])
		assert.Equal(t, 65.0, s.SubScores[SubPerformance])
		assert.Equal(t, 66.0, s.OverallScore)
		assert.Equal(t, types.GradeD, s.Grade)

		assert.Contains(t, s.Recommendations, "Use a single <h1> heading instead of 2.")
		assert.Contains(t, s.Recommendations, "Add alt text to 2 of 4 images.")
		assert.Contains(t, s.Recommendations, "Declare a canonical URL.")
		assert.Contains(t, s.Recommendations, "Reduce the server response time (currently 1.5s).")
	})

	t.Run("empty page", func(t *testing.T) {
		s := ComputeScore(&types.PageSignals{URL: "http://example.com/"}, now)
		assert.Equal(t, 20.0, s.OverallScore)
		assert.Equal(t, types.GradeF, s.Grade)
		assert.Contains(t, s.Recommendations, "Add a <title> tag of 30-60 characters.")
		assert.Contains(t, s.Recommendations, "Serve the page over HTTPS.")
	})

	t.Run("deterministic", func(t *testing.T) {
		p := goodPage()
		p.WordCount = 120
		assert.Equal(t, ComputeScore(p, now), ComputeScore(p, now))
	})
}

type stubPages struct {
	signals *types.PageSignals
	err     error
}

func (s stubPages) Page(context.Context, string) (*types.PageSignals, bool, error) {
	return s.signals, false, s.err
}

func TestScorer(t *testing.T) {
	s := NewScorer(stubPages{signals: goodPage()}, logger.NewNop())
	score, err := s.Score(context.Background(), "https://example.com/guide")
	require.NoError(t, err)
	assert.Equal(t, types.GradeA, score.Grade)
	assert.Equal(t, "https://example.com/guide", score.URL)

	blocked := types.NewSourceError(types.KindBlocked, "page", "status 403", nil)
	s = NewScorer(stubPages{err: blocked}, logger.NewNop())
	_, err = s.Score(context.Background(), "https://example.com/private")
	assert.ErrorIs(t, err, types.ErrBlocked)

	var se *types.SourceError
	assert.True(t, errors.As(err, &se))
}
