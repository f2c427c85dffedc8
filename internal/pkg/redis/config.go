package redis

import (
	"errors"
	"time"
)

// DeployMode Redis 部署模式
type DeployMode string

const (
	ModeSingle   DeployMode = "single"   // 单机模式
	ModeSentinel DeployMode = "sentinel" // 哨兵模式
	ModeCluster  DeployMode = "cluster"  // 集群模式
)

// Config Redis 配置
type Config struct {
	// Enabled=false runs the research cache in fast-layer-only mode
	Enabled bool       `mapstructure:"enabled" yaml:"enabled"`
	Mode    DeployMode `mapstructure:"mode" yaml:"mode"`

	// 单机模式
	MasterAddr string `mapstructure:"master_addr" yaml:"master_addr"`

	// 哨兵模式
	SentinelAddrs  []string `mapstructure:"sentinel_addrs" yaml:"sentinel_addrs"`
	MasterName     string   `mapstructure:"master_name" yaml:"master_name"`
	RouteByLatency bool     `mapstructure:"route_by_latency" yaml:"route_by_latency"`
	RouteRandomly  bool     `mapstructure:"route_randomly" yaml:"route_randomly"`

	// 集群模式
	ClusterAddrs []string `mapstructure:"cluster_addrs" yaml:"cluster_addrs"`

	// 认证
	Password string `mapstructure:"password" yaml:"password"`
	Username string `mapstructure:"username" yaml:"username"`
	DB       int    `mapstructure:"db" yaml:"db"`

	// 连接池
	PoolSize     int `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`

	// 超时
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout" yaml:"pool_timeout"`

	// 重试
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff" yaml:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff" yaml:"max_retry_backoff"`

	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`

	// TLS
	EnableTLS     bool   `mapstructure:"enable_tls" yaml:"enable_tls"`
	TLSCertFile   string `mapstructure:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile    string `mapstructure:"tls_key_file" yaml:"tls_key_file"`
	TLSCAFile     string `mapstructure:"tls_ca_file" yaml:"tls_ca_file"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify" yaml:"tls_skip_verify"`
	TLSServerName string `mapstructure:"tls_server_name" yaml:"tls_server_name"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Enabled:    true,
		Mode:       ModeSingle,
		MasterAddr: "localhost:6379",

		PoolSize:     20,
		MinIdleConns: 5,

		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolTimeout:  time.Second,

		// the research cache treats redis as best effort, so keep retries short
		MaxRetries:      1,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 64 * time.Millisecond,

		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeSingle:
		if c.MasterAddr == "" {
			return errors.New("redis: master_addr is required in single mode")
		}
	case ModeSentinel:
		if len(c.SentinelAddrs) == 0 {
			return errors.New("redis: sentinel_addrs is required in sentinel mode")
		}
		if c.MasterName == "" {
			return errors.New("redis: master_name is required in sentinel mode")
		}
	case ModeCluster:
		if len(c.ClusterAddrs) == 0 {
			return errors.New("redis: cluster_addrs is required in cluster mode")
		}
	default:
		return errors.New("redis: invalid mode, must be one of: single, sentinel, cluster")
	}

	if c.DB < 0 || c.DB > 15 {
		return errors.New("redis: db must be between 0 and 15")
	}
	if c.PoolSize <= 0 {
		return errors.New("redis: pool_size must be > 0")
	}
	if c.MinIdleConns < 0 || c.MinIdleConns > c.PoolSize {
		return errors.New("redis: min_idle_conns must be between 0 and pool_size")
	}
	if c.DialTimeout <= 0 {
		return errors.New("redis: dial_timeout must be > 0")
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return errors.New("redis: read_timeout and write_timeout must be >= 0")
	}
	if c.MaxRetries < 0 {
		return errors.New("redis: max_retries must be >= 0")
	}
	if c.MinRetryBackoff > c.MaxRetryBackoff {
		return errors.New("redis: min_retry_backoff cannot exceed max_retry_backoff")
	}
	if c.EnableTLS && c.TLSCertFile == "" && c.TLSKeyFile == "" && c.TLSCAFile == "" && !c.TLSSkipVerify {
		return errors.New("redis: TLS enabled but no certificate files provided and TLS verification not skipped")
	}

	return nil
}
