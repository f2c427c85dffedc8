//go:build wireinject
// +build wireinject

package injector

import (
	"github.com/google/wire"

	"github.com/lk2023060901/seo-research-backend/internal/conf"
	"github.com/lk2023060901/seo-research-backend/internal/data"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/server"
)

// ProviderSet is the Wire provider set for all dependencies
var ProviderSet = wire.NewSet(
	// Data layer
	dataProviderSet,

	// Research pipeline
	pipelineProviderSet,

	// Servers
	serverProviderSet,
)

var dataProviderSet = wire.NewSet(
	provideData,
	provideMetrics,
	provideCacheManager,
	provideRunRepo,
	wire.Bind(new(server.HealthReporter), new(*data.Data)),
)

var pipelineProviderSet = wire.NewSet(
	provideWorkerPool,
	provideNormalizer,
	provideSourceRegistry,
	provideOrchestrator,
	provideClusteringEngine,
	provideScorer,
	provideResearchService,
)

var serverProviderSet = wire.NewSet(
	server.NewHTTPServer,
)

// InitializeApp initializes the application with Wire
func InitializeApp(config *conf.Config, log *logger.Logger) (*App, func(), error) {
	wire.Build(ProviderSet, newApp)
	return nil, nil, nil
}
