package injector

import (
	"github.com/lk2023060901/seo-research-backend/internal/conf"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/research/orchestrator"
	"github.com/lk2023060901/seo-research-backend/internal/server"
)

// App encapsulates all application dependencies
type App struct {
	Config       *conf.Config
	Logger       *logger.Logger
	HTTPServer   *server.HTTPServer
	Orchestrator *orchestrator.Orchestrator
}
