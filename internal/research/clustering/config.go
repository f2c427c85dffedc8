package clustering

import (
	"fmt"

	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// Config holds clustering defaults and limits.
type Config struct {
	DefaultAlgorithm types.Algorithm `mapstructure:"default_algorithm"`
	// TargetClusters of 0 picks sqrt(n/2) for centroid clustering and lets
	// the similarity threshold decide for hierarchical clustering.
	TargetClusters      int     `mapstructure:"target_clusters"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MaxIterations       int     `mapstructure:"max_iterations"`
	Seed                int64   `mapstructure:"seed"`
	MaxKeywords         int     `mapstructure:"max_keywords"`
}

// DefaultConfig returns the clustering defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultAlgorithm:    types.AlgorithmCentroid,
		SimilarityThreshold: 0.5,
		MaxIterations:       100,
		Seed:                42,
		MaxKeywords:         500,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.DefaultAlgorithm {
	case types.AlgorithmCentroid, types.AlgorithmHierarchical:
	default:
		return fmt.Errorf("clustering: unknown default_algorithm %q", c.DefaultAlgorithm)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("clustering: max_iterations must be > 0")
	}
	if c.MaxKeywords <= 0 {
		return fmt.Errorf("clustering: max_keywords must be > 0")
	}
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("clustering: similarity_threshold must be within [-1, 1]")
	}
	return nil
}
