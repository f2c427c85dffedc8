package scoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// PageSource resolves the signals of a page, from cache or the page adapter.
type PageSource interface {
	Page(ctx context.Context, rawURL string) (*types.PageSignals, bool, error)
}

// Scorer grades URLs.
type Scorer struct {
	pages  PageSource
	logger *logger.Logger
	now    func() time.Time
}

// NewScorer creates a scorer.
func NewScorer(pages PageSource, log *logger.Logger) *Scorer {
	return &Scorer{
		pages:  pages,
		logger: logger.OrGlobal(log).Named("scoring"),
		now:    time.Now,
	}
}

// Score fetches or loads the page signals of rawURL and grades them.
func (s *Scorer) Score(ctx context.Context, rawURL string) (*types.SeoScore, error) {
	signals, cached, err := s.pages.Page(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("score %s: %w", rawURL, err)
	}

	score := ComputeScore(signals, s.now())
	s.logger.WithContext(ctx).Debug("page scored",
		zap.String("url", score.URL),
		zap.Float64("score", score.OverallScore),
		zap.String("grade", string(score.Grade)),
		zap.Bool("cache_hit", cached))
	return score, nil
}
