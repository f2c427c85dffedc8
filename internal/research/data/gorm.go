package data

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/database"
	"github.com/lk2023060901/seo-research-backend/internal/research/types"
)

// PipelineRunJSON stores a whole run in a jsonb column.
type PipelineRunJSON types.PipelineRun

func (j *PipelineRunJSON) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported run body type %T", value)
	}
	return json.Unmarshal(b, j)
}

func (j PipelineRunJSON) Value() (driver.Value, error) {
	return json.Marshal(types.PipelineRun(j))
}

// StringArrayJSON 字符串数组 jsonb 类型
type StringArrayJSON []string

func (j *StringArrayJSON) Scan(value interface{}) error {
	if value == nil {
		*j = []string{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j StringArrayJSON) Value() (driver.Value, error) {
	if j == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(j))
}

// PipelineRunPO is the pipeline_runs row: summary columns for listing plus
// the full run as JSON.
type PipelineRunPO struct {
	RunID        string          `gorm:"column:run_id;size:64;primaryKey"`
	Country      string          `gorm:"size:8;not null"`
	Language     string          `gorm:"size:16;not null"`
	Categories   StringArrayJSON `gorm:"type:jsonb;not null"`
	KeywordCount int             `gorm:"not null"`
	OKCount      int             `gorm:"column:ok_count;not null"`
	PartialCount int             `gorm:"not null"`
	FailedCount  int             `gorm:"not null"`
	TimedOut     bool            `gorm:"not null"`
	StartedAt    time.Time       `gorm:"not null;index:idx_pipeline_runs_started_at,sort:desc"`
	CompletedAt  time.Time       `gorm:"not null"`
	DurationMs   int64           `gorm:"not null"`
	Body         PipelineRunJSON `gorm:"type:jsonb;not null"`
}

func (PipelineRunPO) TableName() string {
	return "pipeline_runs"
}

// GormRunRepo keeps run history in Postgres.
type GormRunRepo struct {
	db *database.DB
}

// NewGormRunRepo creates a Postgres run repository.
func NewGormRunRepo(db *database.DB) *GormRunRepo {
	return &GormRunRepo{db: db}
}

// Migrate creates or updates the pipeline_runs table.
func (r *GormRunRepo) Migrate() error {
	return r.db.AutoMigrate(&PipelineRunPO{})
}

// Save inserts a finalized run.
func (r *GormRunRepo) Save(ctx context.Context, run *types.PipelineRun) error {
	s := summarize(run)
	cats := make(StringArrayJSON, 0, len(run.Categories))
	for _, c := range run.Categories {
		cats = append(cats, string(c))
	}

	po := &PipelineRunPO{
		RunID:        s.RunID,
		Country:      s.Country,
		Language:     s.Language,
		Categories:   cats,
		KeywordCount: s.KeywordCount,
		OKCount:      s.OKCount,
		PartialCount: s.PartialCount,
		FailedCount:  s.FailedCount,
		TimedOut:     s.TimedOut,
		StartedAt:    run.StartedAt,
		CompletedAt:  run.CompletedAt,
		DurationMs:   s.DurationMs,
		Body:         PipelineRunJSON(*run),
	}
	if err := r.db.WithContext(ctx).Create(po).Error; err != nil {
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	return nil
}

// Get loads a run by ID.
func (r *GormRunRepo) Get(ctx context.Context, runID string) (*types.PipelineRun, error) {
	var po PipelineRunPO
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	run := types.PipelineRun(po.Body)
	return &run, nil
}

// List returns the most recent runs first, without their bodies.
func (r *GormRunRepo) List(ctx context.Context, limit int) ([]RunSummary, error) {
	var pos []PipelineRunPO
	err := r.db.WithContext(ctx).
		Select("run_id", "country", "language", "keyword_count", "ok_count", "partial_count",
			"failed_count", "timed_out", "started_at", "duration_ms").
		Order("started_at DESC").
		Limit(listLimit(limit)).
		Find(&pos).Error
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]RunSummary, len(pos))
	for i, po := range pos {
		out[i] = RunSummary{
			RunID:        po.RunID,
			Country:      po.Country,
			Language:     po.Language,
			KeywordCount: po.KeywordCount,
			OKCount:      po.OKCount,
			PartialCount: po.PartialCount,
			FailedCount:  po.FailedCount,
			TimedOut:     po.TimedOut,
			StartedAt:    po.StartedAt,
			DurationMs:   po.DurationMs,
		}
	}
	return out, nil
}
