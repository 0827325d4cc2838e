package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testShardYAML = `
shard_id: shard-1
shard_symbols: ["AAPL", "MSFT"]
http_port: 8080
metrics_port: 9090
broker_bootstrap: "localhost:6379"
wal_path: "/tmp/shard-1.wal"
wal_size_bytes: 1048576
ring_buffer_size: 1024
publish_capacity: 4096
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadShard_ParsesAllRecognizedKeys(t *testing.T) {
	path := writeTempConfig(t, testShardYAML)

	cfg, err := LoadShard(path)
	require.NoError(t, err)

	assert.Equal(t, "shard-1", cfg.ShardID)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.ShardSymbols)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, int64(1048576), cfg.WALSizeBytes)
	assert.Equal(t, 1024, cfg.RingBufferSize)
	assert.NoError(t, cfg.Validate())
}

func TestShardConfig_ValidateRejectsNonPowerOfTwoRingSize(t *testing.T) {
	cfg := &ShardConfig{
		ShardID: "s1", ShardSymbols: []string{"AAPL"}, HTTPPort: 1, MetricsPort: 2,
		WALPath: "/tmp/x", WALSizeBytes: 1024, RingBufferSize: 100,
	}
	assert.Error(t, cfg.Validate())
}

func TestShardConfig_ValidateRejectsEmptySymbols(t *testing.T) {
	cfg := &ShardConfig{
		ShardID: "s1", HTTPPort: 1, MetricsPort: 2,
		WALPath: "/tmp/x", WALSizeBytes: 1024, RingBufferSize: 1024,
	}
	assert.Error(t, cfg.Validate())
}

func TestRouterConfig_ValidateRequiresShardMapping(t *testing.T) {
	cfg := &RouterConfig{HTTPPort: 8080}
	assert.Error(t, cfg.Validate())

	cfg.SymbolShards = map[string]string{"AAPL": "shard-1"}
	cfg.ShardAddresses = map[string]string{"shard-1": "http://localhost:8081"}
	assert.NoError(t, cfg.Validate())
}
