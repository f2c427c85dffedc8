package types

import "time"

// Intent is the dominant search intent of a cluster.
type Intent string

const (
	IntentInformational Intent = "informational"
	IntentNavigational  Intent = "navigational"
	IntentTransactional Intent = "transactional"
	IntentCommercial    Intent = "commercial"
)

// Algorithm selects the clustering strategy.
type Algorithm string

const (
	AlgorithmCentroid     Algorithm = "centroid"
	AlgorithmHierarchical Algorithm = "hierarchical"
)

// Cluster is a group of semantically related keywords.
type Cluster struct {
	ID              string    `json:"cluster_id"`
	Label           string    `json:"label"`
	Keywords        []string  `json:"keywords"`
	Centroid        []float32 `json:"centroid"`
	Intent          Intent    `json:"intent"`
	ConfidenceScore float64   `json:"confidence_score"`
	Cohesion        float64   `json:"cohesion"`
}

// ExcludedKeyword is a keyword left out of clustering, with the reason.
type ExcludedKeyword struct {
	Keyword string    `json:"keyword"`
	Kind    ErrorKind `json:"kind"`
	Reason  string    `json:"reason"`
}

// ClusterResult is one clustering generation.
type ClusterResult struct {
	GenerationID string            `json:"generation_id"`
	Algorithm    Algorithm         `json:"algorithm"`
	Clusters     []Cluster         `json:"clusters"`
	Excluded     []ExcludedKeyword `json:"excluded,omitempty"`
	Iterations   int               `json:"iterations"`
	CreatedAt    time.Time         `json:"created_at"`
}
