package workerpool

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
)

// Priority 优先级定义
type Priority int

const (
	// PriorityLow is used by cache warming so it never starves interactive runs
	PriorityLow    Priority = 0
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 10
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Config Worker Pool 配置
type Config struct {
	Workers        int  `mapstructure:"workers"`         // 初始 worker 数量
	QueueSize      int  `mapstructure:"queue_size"`      // 优先级队列初始容量
	EnablePriority bool `mapstructure:"enable_priority"` // 是否启用优先级队列

	AutoScaling *AutoScalingConfig `mapstructure:"auto_scaling"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Workers:        64,
		QueueSize:      1024,
		EnablePriority: true,
	}
}

// Statistics 统计信息
type Statistics struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
	Panicked  int64 `json:"panicked"`
	Running   int64 `json:"running"`
	Queued    int   `json:"queued"`
	Workers   int   `json:"workers"`
}

type counters struct {
	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panicked  atomic.Int64
	running   atomic.Int64
}

type priorityTask struct {
	priority Priority
	seq      uint64
	task     func()
	index    int
}

// priorityQueue orders by priority, then FIFO by submission sequence
type priorityQueue []*priorityTask

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority > pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x interface{}) {
	t := x.(*priorityTask)
	t.index = len(*pq)
	*pq = append(*pq, t)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*pq = old[:n-1]
	return t
}

// Pool runs research fetch tasks on a bounded set of ants workers, with an
// optional priority queue in front of it.
type Pool struct {
	pool   *ants.Pool
	config *Config
	logger *logger.Logger

	queue    priorityQueue
	queueMu  sync.Mutex
	seq      uint64
	notEmpty chan struct{}

	scaler *scaler
	stats  counters

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New 创建 Worker Pool
func New(config *Config, log *logger.Logger) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	log = logger.OrGlobal(log).Named("workerpool")

	size := config.Workers
	if config.AutoScaling != nil && config.AutoScaling.Enable {
		size = config.AutoScaling.MinWorkers
	}
	if size <= 0 {
		return nil, fmt.Errorf("worker pool size must be > 0, got %d", size)
	}

	p := &Pool{config: config, logger: log}
	antsPool, err := ants.NewPool(size,
		ants.WithPanicHandler(func(err interface{}) {
			p.stats.panicked.Add(1)
			log.Error("worker panic", zap.Any("error", err), zap.Stack("stacktrace"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}
	p.pool = antsPool
	p.ctx, p.cancel = context.WithCancel(context.Background())

	if config.EnablePriority {
		p.queue = make(priorityQueue, 0, config.QueueSize)
		heap.Init(&p.queue)
		p.notEmpty = make(chan struct{}, 1)

		p.wg.Add(1)
		go p.scheduler()
	}

	if config.AutoScaling != nil && config.AutoScaling.Enable {
		p.scaler = newScaler(p, config.AutoScaling, size)
		p.wg.Add(1)
		go p.scaler.run(p.ctx, &p.wg)
	}

	return p, nil
}

// Submit 提交普通优先级任务
func (p *Pool) Submit(task func()) error {
	return p.SubmitWithPriority(PriorityNormal, task)
}

// SubmitWithPriority 提交带优先级的任务
func (p *Pool) SubmitWithPriority(priority Priority, task func()) error {
	if p.closed.Load() {
		p.stats.rejected.Add(1)
		return ErrPoolClosed
	}
	p.stats.submitted.Add(1)

	if !p.config.EnablePriority {
		if err := p.pool.Submit(p.wrap(task)); err != nil {
			p.stats.rejected.Add(1)
			return fmt.Errorf("submit task: %w", err)
		}
		return nil
	}

	p.queueMu.Lock()
	p.seq++
	heap.Push(&p.queue, &priorityTask{priority: priority, seq: p.seq, task: task})
	p.queueMu.Unlock()

	select {
	case p.notEmpty <- struct{}{}:
	default:
	}
	return nil
}

func (p *Pool) wrap(task func()) func() {
	return func() {
		p.stats.running.Add(1)
		defer func() {
			p.stats.running.Add(-1)
			p.stats.completed.Add(1)
		}()
		task()
	}
}

// scheduler 调度器（仅在启用优先级队列时运行）
func (p *Pool) scheduler() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.notEmpty:
			p.dispatch()
		}
	}
}

// dispatch drains the queue into ants; Submit blocks while every worker is busy
func (p *Pool) dispatch() {
	for {
		if p.ctx.Err() != nil {
			return
		}

		p.queueMu.Lock()
		if p.queue.Len() == 0 {
			p.queueMu.Unlock()
			return
		}
		pt := heap.Pop(&p.queue).(*priorityTask)
		p.queueMu.Unlock()

		if err := p.pool.Submit(p.wrap(pt.task)); err != nil {
			p.stats.rejected.Add(1)
			p.logger.Warn("dispatch failed, task dropped", zap.Error(err))
			if errors.Is(err, ants.ErrPoolClosed) {
				return
			}
		}
	}
}

// QueueLength 获取队列长度
func (p *Pool) QueueLength() int {
	if !p.config.EnablePriority {
		return p.pool.Waiting()
	}
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	return p.queue.Len()
}

// Stats 获取统计信息
func (p *Pool) Stats() Statistics {
	return Statistics{
		Submitted: p.stats.submitted.Load(),
		Completed: p.stats.completed.Load(),
		Rejected:  p.stats.rejected.Load(),
		Panicked:  p.stats.panicked.Load(),
		Running:   p.stats.running.Load(),
		Queued:    p.QueueLength(),
		Workers:   p.pool.Cap(),
	}
}

// Shutdown stops accepting work, drops queued tasks, and waits up to timeout
// for running tasks.
func (p *Pool) Shutdown(timeout time.Duration) {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.cancel()
	p.wg.Wait()

	p.queueMu.Lock()
	dropped := p.queue.Len()
	p.queue = p.queue[:0]
	p.queueMu.Unlock()
	if dropped > 0 {
		p.logger.Warn("dropped queued tasks on shutdown", zap.Int("count", dropped))
	}

	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		p.logger.Warn("worker pool release timed out", zap.Error(err))
	}
}
