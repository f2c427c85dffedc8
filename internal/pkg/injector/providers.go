package injector

import (
	"go.uber.org/zap"

	"github.com/lk2023060901/seo-research-backend/internal/conf"
	"github.com/lk2023060901/seo-research-backend/internal/data"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/metrics"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/seo-research-backend/internal/research/cache"
	"github.com/lk2023060901/seo-research-backend/internal/research/clustering"
	researchdata "github.com/lk2023060901/seo-research-backend/internal/research/data"
	"github.com/lk2023060901/seo-research-backend/internal/research/fingerprint"
	"github.com/lk2023060901/seo-research-backend/internal/research/orchestrator"
	"github.com/lk2023060901/seo-research-backend/internal/research/scoring"
	"github.com/lk2023060901/seo-research-backend/internal/research/service"
	"github.com/lk2023060901/seo-research-backend/internal/research/source"
	"github.com/lk2023060901/seo-research-backend/internal/server"
)

// Data layer helpers

func provideData(config *conf.Config, log *logger.Logger) (*data.Data, func(), error) {
	return data.NewData(config, log)
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideCacheManager(config *conf.Config, d *data.Data, log *logger.Logger, m *metrics.Metrics) (*cache.Manager, func(), error) {
	opts := []cache.Option{cache.WithLogger(log), cache.WithMetrics(m)}
	if d.RedisClient != nil {
		opts = append(opts, cache.WithRemote(cache.NewRedisRemote(d.RedisClient)))
	}
	cm, err := cache.New(&config.Cache, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cm, cm.Close, nil
}

func provideWorkerPool(config *conf.Config, log *logger.Logger, m *metrics.Metrics) (*workerpool.Pool, func(), error) {
	pool, err := workerpool.New(&config.WorkerPool, log)
	if err != nil {
		return nil, nil, err
	}
	collector := metrics.NewPoolCollector(func() metrics.PoolSnapshot {
		st := pool.Stats()
		return metrics.PoolSnapshot{Running: st.Running, Queued: int64(st.Queued), Workers: int64(st.Workers)}
	})
	if err := m.Register(collector); err != nil {
		log.Warn("worker pool collector not registered", zap.Error(err))
	}
	return pool, func() { pool.Shutdown(config.Server.ShutdownTimeout) }, nil
}

func provideNormalizer(config *conf.Config) *fingerprint.Normalizer {
	return fingerprint.NewNormalizer(&config.Normalization)
}

func provideSourceRegistry(config *conf.Config, log *logger.Logger, m *metrics.Metrics) (*source.Registry, error) {
	return source.NewRegistryFromConfig(&config.Sources, source.Deps{Logger: log, Metrics: m})
}

// Repository providers

// provideRunRepo stores run history in PostgreSQL when the database is
// enabled and in a bounded in-memory LRU otherwise.
func provideRunRepo(config *conf.Config, d *data.Data, log *logger.Logger) (researchdata.RunRepo, error) {
	if d.DB == nil {
		repo, err := researchdata.NewMemoryRunRepo(config.History.MemoryCapacity)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
	repo := researchdata.NewGormRunRepo(d.DB)
	if err := repo.Migrate(); err != nil {
		return nil, err
	}
	log.Info("run history stored in database")
	return repo, nil
}

// Pipeline providers

func provideOrchestrator(
	config *conf.Config,
	normalizer *fingerprint.Normalizer,
	registry *source.Registry,
	cm *cache.Manager,
	pool *workerpool.Pool,
	runs researchdata.RunRepo,
	log *logger.Logger,
	m *metrics.Metrics,
) (*orchestrator.Orchestrator, error) {
	return orchestrator.New(&config.Orchestrator, normalizer, registry, cm, pool,
		orchestrator.WithRunStore(runs),
		orchestrator.WithLogger(log),
		orchestrator.WithMetrics(m),
	)
}

func provideClusteringEngine(
	config *conf.Config,
	orch *orchestrator.Orchestrator,
	cm *cache.Manager,
	log *logger.Logger,
	m *metrics.Metrics,
) (*clustering.Engine, error) {
	return clustering.NewEngine(&config.Clustering, orch, cm, log, m)
}

func provideScorer(orch *orchestrator.Orchestrator, log *logger.Logger) *scoring.Scorer {
	return scoring.NewScorer(orch, log)
}

func provideResearchService(
	orch *orchestrator.Orchestrator,
	engine *clustering.Engine,
	scorer *scoring.Scorer,
	cm *cache.Manager,
	runs researchdata.RunRepo,
	normalizer *fingerprint.Normalizer,
	log *logger.Logger,
) *service.ResearchService {
	return service.NewResearchService(orch, engine, scorer, cm, runs, normalizer, log)
}

func newApp(
	config *conf.Config,
	log *logger.Logger,
	httpServer *server.HTTPServer,
	orch *orchestrator.Orchestrator,
) *App {
	return &App{
		Config:       config,
		Logger:       log,
		HTTPServer:   httpServer,
		Orchestrator: orch,
	}
}
