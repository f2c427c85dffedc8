package service

import (
	"context"
	"errors"

	apperrors "github.com/lk2023060901/seo-research-backend/internal/pkg/errors"
	"github.com/lk2023060901/seo-research-backend/internal/research/clustering"
	"github.com/lk2023060901/seo-research-backend/internal/research/data"
	"github.com/lk2023060901/seo-research-backend/internal/research/export"
	"github.com/lk2023060901/seo-research-backend/internal/research/orchestrator"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// toAppError maps pipeline errors to business codes. sourceCode is used for
// adapter failures that are not rate limits or blocks.
func toAppError(err error, sourceCode int) *apperrors.AppError {
	code := apperrors.ErrInternalServer
	switch {
	case errors.Is(err, orchestrator.ErrTooManyKeywords):
		code = apperrors.ErrResearchTooManyInputs
	case errors.Is(err, types.ErrNoAdapter):
		code = apperrors.ErrResearchUnknownSource
	case errors.Is(err, types.ErrInvalidInput):
		code = apperrors.ErrResearchInvalidKeyword
	case errors.Is(err, clustering.ErrNotEnoughData):
		code = apperrors.ErrClusterNotEnoughData
	case errors.Is(err, data.ErrRunNotFound):
		code = apperrors.ErrRunNotFound
	case errors.Is(err, export.ErrUnsupportedFormat):
		code = apperrors.ErrExportFormat
	case errors.Is(err, types.ErrBlocked):
		code = apperrors.ErrResearchSourceBlocked
	case errors.Is(err, types.ErrRateLimitExceeded):
		code = apperrors.ErrResearchRateLimited
	case errors.Is(err, types.ErrTransientSource), errors.Is(err, types.ErrPermanentSource):
		code = sourceCode
	case errors.Is(err, types.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		code = apperrors.ErrTimeout
	case errors.Is(err, types.ErrCacheUnavailable):
		code = apperrors.ErrCacheUnavailable
	}
	return apperrors.Wrap(err, code)
}
