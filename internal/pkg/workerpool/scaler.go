package workerpool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AutoScalingConfig 自动扩缩容配置
type AutoScalingConfig struct {
	Enable                    bool          `mapstructure:"enable"`
	MinWorkers                int           `mapstructure:"min_workers"`
	MaxWorkers                int           `mapstructure:"max_workers"`
	ScaleUpQueueThreshold     int           `mapstructure:"scale_up_queue_threshold"`
	ScaleUpUtilizationRatio   float64       `mapstructure:"scale_up_utilization_ratio"`
	ScaleDownUtilizationRatio float64       `mapstructure:"scale_down_utilization_ratio"`
	Step                      int           `mapstructure:"step"`
	Interval                  time.Duration `mapstructure:"interval"`
	Cooldown                  time.Duration `mapstructure:"cooldown"`
}

// DefaultAutoScalingConfig 默认自动扩缩容配置
func DefaultAutoScalingConfig() *AutoScalingConfig {
	return &AutoScalingConfig{
		Enable:                    true,
		MinWorkers:                16,
		MaxWorkers:                256,
		ScaleUpQueueThreshold:     64,
		ScaleUpUtilizationRatio:   0.8,
		ScaleDownUtilizationRatio: 0.3,
		Step:                      16,
		Interval:                  5 * time.Second,
		Cooldown:                  30 * time.Second,
	}
}

type scalingDecision int

const (
	noChange scalingDecision = iota
	scaleUp
	scaleDown
)

type scaler struct {
	pool      *Pool
	cfg       *AutoScalingConfig
	current   int
	lastScale time.Time
}

func newScaler(p *Pool, cfg *AutoScalingConfig, initial int) *scaler {
	return &scaler{pool: p, cfg: cfg, current: initial, lastScale: time.Now()}
}

func (s *scaler) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evaluate(time.Now())
		}
	}
}

func (s *scaler) evaluate(now time.Time) {
	if now.Sub(s.lastScale) < s.cfg.Cooldown {
		return
	}

	running := int(s.pool.stats.running.Load())
	utilization := float64(running) / float64(s.current)

	switch s.decide(s.pool.QueueLength(), utilization) {
	case scaleUp:
		s.resize(min(s.current+s.cfg.Step, s.cfg.MaxWorkers), now)
	case scaleDown:
		s.resize(max(s.current-s.cfg.Step, s.cfg.MinWorkers), now)
	}
}

func (s *scaler) decide(queueLen int, utilization float64) scalingDecision {
	if queueLen > s.cfg.ScaleUpQueueThreshold || utilization > s.cfg.ScaleUpUtilizationRatio {
		if s.current < s.cfg.MaxWorkers {
			return scaleUp
		}
		return noChange
	}
	if utilization < s.cfg.ScaleDownUtilizationRatio &&
		queueLen < s.cfg.ScaleUpQueueThreshold/2 &&
		s.current > s.cfg.MinWorkers {
		return scaleDown
	}
	return noChange
}

func (s *scaler) resize(size int, now time.Time) {
	if size == s.current {
		return
	}
	s.pool.logger.Info("resizing workers", zap.Int("from", s.current), zap.Int("to", size))
	s.pool.pool.Tune(size)
	s.current = size
	s.lastScale = now
}
