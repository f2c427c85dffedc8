package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lk2023060901/seo-research-backend/internal/pkg/database"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/logger"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/redis"
	"github.com/lk2023060901/seo-research-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/seo-research-backend/internal/research/cache"
	"github.com/lk2023060901/seo-research-backend/internal/research/clustering"
	"github.com/lk2023060901/seo-research-backend/internal/research/fingerprint"
	"github.com/lk2023060901/seo-research-backend/internal/research/orchestrator"
	"github.com/lk2023060901/seo-research-backend/internal/research/source"
)

// EnvPrefix prefixes every environment override, e.g. SEO_SERVER_PORT.
const EnvPrefix = "SEO"

type Config struct {
	Server        ServerConfig         `mapstructure:"server"`
	Log           logger.Config        `mapstructure:"log"`
	Redis         redis.Config         `mapstructure:"redis"`
	Database      database.Config      `mapstructure:"database"`
	Cache         cache.Config         `mapstructure:"cache"`
	Normalization fingerprint.Config   `mapstructure:"normalization"`
	Sources       source.SourcesConfig `mapstructure:"sources"`
	Orchestrator  orchestrator.Config  `mapstructure:"orchestrator"`
	WorkerPool    workerpool.Config    `mapstructure:"worker_pool"`
	Clustering    clustering.Config    `mapstructure:"clustering"`
	History       HistoryConfig        `mapstructure:"history"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// HistoryConfig sizes the in-memory run history used when the database is
// disabled.
type HistoryConfig struct {
	MemoryCapacity int `mapstructure:"memory_capacity"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns a configuration that runs without Redis or PostgreSQL.
func Default() *Config {
	redisCfg := redis.DefaultConfig()
	redisCfg.Enabled = false

	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log:           *logger.DefaultConfig(),
		Redis:         *redisCfg,
		Database:      *database.DefaultConfig(),
		Cache:         *cache.DefaultConfig(),
		Normalization: *fingerprint.DefaultConfig(),
		Sources:       *source.DefaultSourcesConfig(),
		Orchestrator:  *orchestrator.DefaultConfig(),
		WorkerPool:    *workerpool.DefaultConfig(),
		Clustering:    *clustering.DefaultConfig(),
		History:       HistoryConfig{MemoryCapacity: 1000},
	}
}

// secretKeys are bound to the environment even when absent from the file.
var secretKeys = []string{
	"redis.enabled",
	"redis.master_addr",
	"redis.password",
	"database.enabled",
	"database.host",
	"database.password",
	"sources.keyword_metrics.endpoint",
	"sources.keyword_metrics.api_key",
	"sources.serp.endpoint",
	"sources.embedding.endpoint",
	"sources.embedding.api_key",
	"log.level",
	"server.port",
}

// LoadConfig reads the YAML file at path over the defaults and applies
// SEO_* environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	config := Default()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks every section that has its own validation.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Redis.Enabled {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if c.Database.Enabled {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return err
	}
	if err := c.Clustering.Validate(); err != nil {
		return err
	}
	return nil
}
