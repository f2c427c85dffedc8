package orchestrator

import (
	"fmt"
	"time"
)

// Config bounds a research run.
type Config struct {
	// GlobalTimeout caps every run. A caller deadline that is earlier wins.
	GlobalTimeout time.Duration `mapstructure:"global_timeout"`
	// FetchTimeout bounds one adapter call, which may outlive the run
	// deadline so that late results still reach the cache.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxKeywords  int           `mapstructure:"max_keywords"`
	// PersistTimeout bounds the best-effort run history write.
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() *Config {
	return &Config{
		GlobalTimeout:  30 * time.Second,
		FetchTimeout:   45 * time.Second,
		MaxKeywords:    500,
		PersistTimeout: 5 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.GlobalTimeout <= 0 {
		return fmt.Errorf("orchestrator: global_timeout must be > 0")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("orchestrator: fetch_timeout must be > 0")
	}
	if c.MaxKeywords <= 0 {
		return fmt.Errorf("orchestrator: max_keywords must be > 0")
	}
	return nil
}
