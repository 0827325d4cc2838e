// Package config loads shard and router configuration from a YAML file
// with environment variable overrides, in the style of
// 0xtitan6-polymarket-mm's internal/config: viper.New, SetEnvPrefix,
// AutomaticEnv, then a typed Unmarshal.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ShardConfig is every key a matching shard needs at startup (spec §6).
type ShardConfig struct {
	ShardID         string   `mapstructure:"shard_id"`
	ShardSymbols    []string `mapstructure:"shard_symbols"`
	HTTPPort        int      `mapstructure:"http_port"`
	MetricsPort     int      `mapstructure:"metrics_port"`
	BrokerBootstrap string   `mapstructure:"broker_bootstrap"`
	WALPath         string   `mapstructure:"wal_path"`
	WALSizeBytes    int64    `mapstructure:"wal_size_bytes"`
	RingBufferSize  int      `mapstructure:"ring_buffer_size"`
	PublishCapacity int      `mapstructure:"publish_capacity"`
}

// RouterConfig is every key the edge router needs: the static
// symbol->shard mapping of spec §4.6, plus its own listener port.
type RouterConfig struct {
	HTTPPort       int               `mapstructure:"http_port"`
	MetricsPort    int               `mapstructure:"metrics_port"`
	SymbolShards   map[string]string `mapstructure:"symbol_shards"`
	ShardAddresses map[string]string `mapstructure:"shard_addresses"`
}

// LoadShard reads a ShardConfig from path, with SHARD_-prefixed env
// overrides (e.g. SHARD_HTTP_PORT).
func LoadShard(path string) (*ShardConfig, error) {
	v := newViper(path, "SHARD")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read shard config: %w", err)
	}
	var cfg ShardConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal shard config: %w", err)
	}
	return &cfg, nil
}

// LoadRouter reads a RouterConfig from path, with ROUTER_-prefixed env
// overrides.
func LoadRouter(path string) (*RouterConfig, error) {
	v := newViper(path, "ROUTER")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read router config: %w", err)
	}
	var cfg RouterConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal router config: %w", err)
	}
	return &cfg, nil
}

func newViper(path, envPrefix string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Validate checks the fields an empty/zero config would otherwise let
// through silently: a shard with no symbols or no WAL path is a
// misconfiguration, not a runtime condition.
func (c *ShardConfig) Validate() error {
	if c.ShardID == "" {
		return fmt.Errorf("shard_id is required")
	}
	if len(c.ShardSymbols) == 0 {
		return fmt.Errorf("shard_symbols must list at least one symbol")
	}
	if c.WALPath == "" {
		return fmt.Errorf("wal_path is required")
	}
	if c.WALSizeBytes <= 0 {
		return fmt.Errorf("wal_size_bytes must be > 0")
	}
	if c.RingBufferSize <= 0 || c.RingBufferSize&(c.RingBufferSize-1) != 0 {
		return fmt.Errorf("ring_buffer_size must be a power of two")
	}
	if c.HTTPPort <= 0 {
		return fmt.Errorf("http_port is required")
	}
	if c.MetricsPort <= 0 {
		return fmt.Errorf("metrics_port is required")
	}
	return nil
}

// Validate checks that the router has something to forward to.
func (c *RouterConfig) Validate() error {
	if len(c.SymbolShards) == 0 {
		return fmt.Errorf("symbol_shards must map at least one symbol")
	}
	if len(c.ShardAddresses) == 0 {
		return fmt.Errorf("shard_addresses must list at least one shard")
	}
	if c.HTTPPort <= 0 {
		return fmt.Errorf("http_port is required")
	}
	return nil
}
