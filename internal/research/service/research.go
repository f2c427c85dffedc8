// Package service exposes the research pipeline over HTTP.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/lk2023060901/seo-research-backend/internal/pkg/errors"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/response"
	"github.com/lk2023060901/seo-research-backend/internal/research/cache"
	"github.com/lk2023060901/seo-research-backend/internal/research/clustering"
	"github.com/lk2023060901/seo-research-backend/internal/research/data"
	"github.com/lk2023060901/seo-research-backend/internal/research/export"
	"github.com/lk2023060901/seo-research-backend/internal/research/fingerprint"
	"github.com/lk2023060901/seo-research-backend/internal/research/orchestrator"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// Researcher runs research requests.
type Researcher interface {
	Research(ctx context.Context, req orchestrator.ResearchRequest) (*types.PipelineRun, error)
}

// Clusterer groups keywords.
type Clusterer interface {
	Cluster(ctx context.Context, req clustering.Request) (*types.ClusterResult, error)
}

// PageScorer grades URLs.
type PageScorer interface {
	Score(ctx context.Context, rawURL string) (*types.SeoScore, error)
}

// CacheAdmin is the operational surface of the research cache.
type CacheAdmin interface {
	Stats() cache.Stats
	Optimize(ctx context.Context) cache.OptimizeReport
	Invalidate(ctx context.Context, key string)
}

// ResearchService 研究流水线 HTTP 服务
type ResearchService struct {
	research   Researcher
	clusters   Clusterer
	scorer     PageScorer
	cache      CacheAdmin
	runs       data.RunRepo
	normalizer *fingerprint.Normalizer
	logger     *logger.Logger
}

// NewResearchService 创建研究服务
func NewResearchService(
	research Researcher,
	clusters Clusterer,
	scorer PageScorer,
	cacheAdmin CacheAdmin,
	runs data.RunRepo,
	normalizer *fingerprint.Normalizer,
	log *logger.Logger,
) *ResearchService {
	useWireFieldNames()
	return &ResearchService{
		research:   research,
		clusters:   clusters,
		scorer:     scorer,
		cache:      cacheAdmin,
		runs:       runs,
		normalizer: normalizer,
		logger:     logger.OrGlobal(log).Named("research-api"),
	}
}

// RegisterRoutes 注册路由
func (s *ResearchService) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/research", s.Research)
	r.POST("/cluster", s.Cluster)
	r.POST("/score", s.Score)

	c := r.Group("/cache")
	c.GET("/stats", s.CacheStats)
	c.POST("/optimize", s.OptimizeCache)
	c.POST("/invalidate", s.InvalidateCache)

	runs := r.Group("/runs")
	runs.GET("", s.ListRuns)
	runs.GET("/:id", s.GetRun)
	runs.GET("/:id/export", s.ExportRun)
}

// Research 执行关键词研究；?format=csv 直接返回导出
func (s *ResearchService) Research(c *gin.Context) {
	var req ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	run, err := s.research.Research(c.Request.Context(), orchestrator.ResearchRequest{
		Keywords:   req.Keywords,
		Country:    req.Country,
		Language:   req.Language,
		Categories: req.Categories,
	})
	if err != nil {
		s.handleError(c, err, apperrors.ErrResearchSourceFailed)
		return
	}
	s.reply(c, run, "run-"+run.RunID)
}

// Cluster 关键词聚类
func (s *ResearchService) Cluster(c *gin.Context) {
	var req ClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := s.clusters.Cluster(c.Request.Context(), clustering.Request{
		Keywords:            req.Keywords,
		Algorithm:           req.Algorithm,
		TargetClusters:      req.TargetClusters,
		SimilarityThreshold: req.SimilarityThreshold,
		Country:             req.Country,
		Language:            req.Language,
	})
	if err != nil {
		s.handleError(c, err, apperrors.ErrResearchSourceFailed)
		return
	}
	s.reply(c, result, "clusters-"+result.GenerationID)
}

// Score 页面 SEO 评分
func (s *ResearchService) Score(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	score, err := s.scorer.Score(c.Request.Context(), req.URL)
	if err != nil {
		s.handleError(c, err, apperrors.ErrScoreFetchFailed)
		return
	}
	s.reply(c, score, "score")
}

// CacheStats 缓存统计
func (s *ResearchService) CacheStats(c *gin.Context) {
	response.Success(c, s.cache.Stats())
}

// OptimizeCache 缓存整理
func (s *ResearchService) OptimizeCache(c *gin.Context) {
	response.Success(c, s.cache.Optimize(c.Request.Context()))
}

// InvalidateCache 按关键词或 URL 使缓存失效
func (s *ResearchService) InvalidateCache(c *gin.Context) {
	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	if len(req.Keywords) == 0 && len(req.URLs) == 0 {
		response.HandleError(c, apperrors.NewValidationError(
			apperrors.FieldError{Field: "keywords", Rule: "required_without=urls"},
			apperrors.FieldError{Field: "urls", Rule: "required_without=keywords"},
		))
		return
	}

	categories := req.Categories
	if len(categories) == 0 {
		categories = types.ResearchCategories
	}
	for _, cat := range categories {
		if !cat.IsResearch() {
			response.ErrorWithCode(c, apperrors.ErrResearchUnknownSource, string(cat))
			return
		}
	}

	ctx := c.Request.Context()
	var resp InvalidateResponse
	for _, raw := range req.Keywords {
		key, err := s.normalizer.Normalize(raw, req.Country, req.Language)
		if err != nil {
			resp.Rejected = append(resp.Rejected, raw)
			continue
		}
		for _, cat := range categories {
			s.cache.Invalidate(ctx, fingerprint.Fingerprint(key, cat))
			resp.Invalidated++
		}
	}
	for _, raw := range req.URLs {
		key, err := fingerprint.PageKey(raw)
		if err != nil {
			resp.Rejected = append(resp.Rejected, raw)
			continue
		}
		s.cache.Invalidate(ctx, fingerprint.Fingerprint(key, types.CategoryPageScore))
		resp.Invalidated++
	}

	s.logger.WithContext(ctx).Info("cache entries invalidated",
		zap.Int("invalidated", resp.Invalidated),
		zap.Int("rejected", len(resp.Rejected)))
	response.Success(c, resp)
}

// ListRuns 最近的运行记录
func (s *ResearchService) ListRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	runs, err := s.runs.List(c.Request.Context(), req.Limit)
	if err != nil {
		s.handleError(c, apperrors.Wrap(err, apperrors.ErrRunStoreFailure), 0)
		return
	}
	response.Success(c, gin.H{"items": runs})
}

// GetRun 获取运行详情
func (s *ResearchService) GetRun(c *gin.Context) {
	run, ok := s.loadRun(c)
	if !ok {
		return
	}
	response.Success(c, run)
}

// ExportRun 导出运行结果（json|csv）
func (s *ResearchService) ExportRun(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", "json"))
	if err != nil {
		s.handleError(c, err, 0)
		return
	}

	run, ok := s.loadRun(c)
	if !ok {
		return
	}
	s.export(c, run, format, "run-"+run.RunID)
}

func (s *ResearchService) loadRun(c *gin.Context) (*types.PipelineRun, bool) {
	id := c.Param("id")
	run, err := s.runs.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, data.ErrRunNotFound):
		response.HandleError(c, apperrors.NewNotFoundError(apperrors.ErrRunNotFound, "run", id))
		return nil, false
	case err != nil:
		s.handleError(c, err, apperrors.ErrRunStoreFailure)
		return nil, false
	}
	return run, true
}

// reply writes v in the response envelope, or as an export when the request
// has a format query parameter.
func (s *ResearchService) reply(c *gin.Context, v any, name string) {
	raw, ok := c.GetQuery("format")
	if !ok {
		response.Success(c, v)
		return
	}
	format, err := export.ParseFormat(raw)
	if err != nil {
		s.handleError(c, err, 0)
		return
	}
	s.export(c, v, format, name)
}

func (s *ResearchService) export(c *gin.Context, v any, format export.Format, name string) {
	body, err := export.Export(v, format)
	if err != nil {
		s.handleError(c, err, 0)
		return
	}
	response.Data(c, format.ContentType(), fmt.Sprintf("%s.%s", name, format), body)
}

// handleError 统一错误处理
func (s *ResearchService) handleError(c *gin.Context, err error, sourceCode int) {
	if sourceCode == 0 {
		sourceCode = apperrors.ErrInternalServer
	}
	appErr := toAppError(err, sourceCode)
	if appErr.HTTPStatus() >= 500 {
		s.logger.WithContext(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()), zap.Int("code", appErr.Code), zap.Error(err))
	}
	response.HandleError(c, appErr)
}
