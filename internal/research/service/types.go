package service

import "github.com/lk2023060901/seo-research-backend/internal/research/types"

// ResearchRequest 关键词研究请求
type ResearchRequest struct {
	Keywords   []string         `json:"keywords" binding:"required,min=1"`
	Country    string           `json:"country" binding:"omitempty,len=2"`
	Language   string           `json:"language" binding:"omitempty,min=2,max=8"`
	Categories []types.Category `json:"categories"`
}

// ClusterRequest 关键词聚类请求
type ClusterRequest struct {
	Keywords            []string        `json:"keywords" binding:"required,min=1"`
	Algorithm           types.Algorithm `json:"algorithm" binding:"omitempty,oneof=centroid hierarchical"`
	TargetClusters      int             `json:"target_clusters" binding:"omitempty,min=0"`
	SimilarityThreshold *float64        `json:"similarity_threshold" binding:"omitempty,min=-1,max=1"`
	Country             string          `json:"country" binding:"omitempty,len=2"`
	Language            string          `json:"language" binding:"omitempty,min=2,max=8"`
}

// ScoreRequest 页面评分请求
type ScoreRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// InvalidateRequest names cache entries to drop. Keywords are invalidated in
// every listed category, or every research category when none is given.
type InvalidateRequest struct {
	Keywords   []string         `json:"keywords"`
	Country    string           `json:"country"`
	Language   string           `json:"language"`
	Categories []types.Category `json:"categories"`
	URLs       []string         `json:"urls"`
}

// InvalidateResponse 缓存失效结果
type InvalidateResponse struct {
	Invalidated int      `json:"invalidated"`
	Rejected    []string `json:"rejected,omitempty"`
}

// ListRunsRequest 运行历史查询
type ListRunsRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}
