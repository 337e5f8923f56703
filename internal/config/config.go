package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/dreamware/swarmweave/internal/cluster"
)

// DiscoveryConfig tunes the Discovery Index's freshness window and a
// worker's self-republish interval.
type DiscoveryConfig struct {
	TTL             string `mapstructure:"ttl"`
	RefreshInterval string `mapstructure:"refresh_interval"`
}

// TTLDuration parses TTL, defaulting to cluster.DefaultAnnouncementTTL.
func (d DiscoveryConfig) TTLDuration() time.Duration {
	return parseDurationOr(d.TTL, cluster.DefaultAnnouncementTTL)
}

// RefreshDuration parses RefreshInterval, defaulting to
// cluster.DefaultRefreshInterval.
func (d DiscoveryConfig) RefreshDuration() time.Duration {
	return parseDurationOr(d.RefreshInterval, cluster.DefaultRefreshInterval)
}

// StrategyConfig selects and parameterizes the Pipeline Coordinator's
// fallback Strategy.
type StrategyConfig struct {
	Name                       string `mapstructure:"name"` // fail_fast|wait_and_retry|dynamic_loading|spawn_nodes|single_node_fallback|adaptive
	WaitAndRetryTimeout        string `mapstructure:"wait_and_retry_timeout"`
	WaitAndRetryInterval       string `mapstructure:"wait_and_retry_interval"`
	DynamicLoadingMinMemoryMB  int64  `mapstructure:"dynamic_loading_min_memory_mb"`
	DynamicLoadingMaxPerNode   int    `mapstructure:"dynamic_loading_max_shards_per_node"`
	SpawnNodesMaxNodes         int    `mapstructure:"spawn_nodes_max_nodes"`
	SpawnNodesStartupTimeout   string `mapstructure:"spawn_nodes_startup_timeout"`
	SingleNodeFallbackMemoryMB int64  `mapstructure:"single_node_fallback_memory_mb"`
}

// WaitAndRetryTimeoutDuration parses WaitAndRetryTimeout, defaulting to 30s.
func (s StrategyConfig) WaitAndRetryTimeoutDuration() time.Duration {
	return parseDurationOr(s.WaitAndRetryTimeout, 30*time.Second)
}

// WaitAndRetryIntervalDuration parses WaitAndRetryInterval, defaulting to 2s.
func (s StrategyConfig) WaitAndRetryIntervalDuration() time.Duration {
	return parseDurationOr(s.WaitAndRetryInterval, 2*time.Second)
}

// SpawnNodesStartupTimeoutDuration parses SpawnNodesStartupTimeout,
// defaulting to 30s.
func (s StrategyConfig) SpawnNodesStartupTimeoutDuration() time.Duration {
	return parseDurationOr(s.SpawnNodesStartupTimeout, 30*time.Second)
}

// CoordinatorConfig configures the Pipeline Coordinator's HTTP surface and
// per-stage RPC deadline alongside its fallback Strategy.
type CoordinatorConfig struct {
	Listen            string         `mapstructure:"listen"`
	StageDeadline     string         `mapstructure:"stage_deadline"`
	Strategy          StrategyConfig `mapstructure:"strategy"`
	DiscoveryPoll     string         `mapstructure:"discovery_poll_interval"`
	SpawnWorkerBinary string         `mapstructure:"spawn_worker_binary"`
	SpawnWorkerArgs   []string       `mapstructure:"spawn_worker_args"`
	SpawnWorkerEnv    []string       `mapstructure:"spawn_worker_env"`
	SpawnBasePort     int            `mapstructure:"spawn_base_port"`
}

// DiscoveryPollDuration parses DiscoveryPoll, defaulting to
// discovery.DefaultPollInterval's value (2s).
func (c CoordinatorConfig) DiscoveryPollDuration() time.Duration {
	return parseDurationOr(c.DiscoveryPoll, 2*time.Second)
}

// StageDeadlineDuration parses StageDeadline, defaulting to 30s.
func (c CoordinatorConfig) StageDeadlineDuration() time.Duration {
	return parseDurationOr(c.StageDeadline, 30*time.Second)
}

// WorkerConfig configures one shard worker process.
type WorkerConfig struct {
	Listen          string   `mapstructure:"listen"`
	Multiaddr       string   `mapstructure:"multiaddr"`
	ShardID         int      `mapstructure:"shard_id"`
	BootstrapAddrs  []string `mapstructure:"bootstrap_addrs"`
	BlobDir         string   `mapstructure:"blob_dir"`
	Quantization    string   `mapstructure:"quantization"`
	TotalMemoryMB   int64    `mapstructure:"total_memory_mb"`
	GPUMemoryMB     int64    `mapstructure:"gpu_memory_mb"`
	GPUAvailable    bool     `mapstructure:"gpu_available"`
	MaxConcurrent   int      `mapstructure:"max_concurrent"`
	Reputation      float64  `mapstructure:"reputation"`
	RefreshInterval string   `mapstructure:"refresh_interval"`
}

// RefreshIntervalDuration parses RefreshInterval, defaulting to
// cluster.DefaultRefreshInterval.
func (w WorkerConfig) RefreshIntervalDuration() time.Duration {
	return parseDurationOr(w.RefreshInterval, cluster.DefaultRefreshInterval)
}

// LoggingConfig controls the shared logrus setup.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Config is swarmweave's complete, unified configuration, merged from
// config/default.yaml, an optional environment-specific overlay, and
// SWARMWEAVE_-prefixed environment variables (highest priority).
type Config struct {
	Cluster     cluster.Config    `mapstructure:"cluster"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// Load reads config/default.yaml, merges config/<env>.yaml on top if env is
// non-empty, applies SWARMWEAVE_-prefixed environment overrides, and
// unmarshals the result.
func Load(env string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("default")
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: load default: %w", err)
	}

	if env != "" {
		v.SetConfigName(env)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: merge %s: %w", env, err)
		}
	}

	v.SetEnvPrefix("SWARMWEAVE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
