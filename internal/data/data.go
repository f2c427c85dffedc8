package data

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lk2023060901/seo-research-backend/internal/conf"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/database"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/redis"
)

// Data holds the optional backing stores. A nil field means the store is
// disabled in configuration.
type Data struct {
	DB          *database.DB
	RedisClient *redis.Client
	logger      *logger.Logger
}

// NewData connects the enabled stores. Redis that cannot be reached at
// startup is kept as a lazy client so the cache can recover once it comes
// up. An unreachable database is fatal.
func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	log = logger.OrGlobal(log).Named("data")
	d := &Data{logger: log}

	if config.Redis.Enabled {
		client, err := redis.New(&config.Redis, log)
		if err != nil {
			log.Warn("redis unavailable at startup, distributed cache starts degraded", zap.Error(err))
			client, err = redis.NewLazy(&config.Redis, log)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to init redis: %w", err)
			}
		}
		d.RedisClient = client
	} else {
		log.Info("redis disabled, research cache runs in-process only")
	}

	if config.Database.Enabled {
		db, err := database.New(&config.Database, log)
		if err != nil {
			if d.RedisClient != nil {
				_ = d.RedisClient.Close()
			}
			return nil, nil, fmt.Errorf("failed to init database: %w", err)
		}
		d.DB = db
	} else {
		log.Info("database disabled, run history is kept in memory")
	}

	cleanup := func() {
		log.Info("cleaning up data resources")
		if d.DB != nil {
			if err := d.DB.Close(); err != nil {
				log.Warn("close database failed", zap.Error(err))
			}
		}
		if d.RedisClient != nil {
			_ = d.RedisClient.Close()
		}
	}
	return d, cleanup, nil
}

// Health reports the state of every enabled store.
func (d *Data) Health(ctx context.Context) map[string]string {
	status := make(map[string]string, 2)
	if d.RedisClient != nil {
		status["redis"] = healthString(d.RedisClient.Ping(ctx))
	}
	if d.DB != nil {
		status["database"] = healthString(d.DB.HealthCheck(ctx))
	}
	return status
}

func healthString(err error) string {
	if err != nil {
		return "down: " + err.Error()
	}
	return "up"
}
