package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	config := Default()

	assert.Equal(t, ":8215", config.ListenAddr)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, uint32(3), config.KDF.TimeCost)
	assert.Equal(t, uint32(64*1024), config.KDF.MemoryKiB)
	assert.Equal(t, uint8(4), config.KDF.Parallelism)
	assert.Equal(t, int64(64<<20), config.Server.MaxRequestBytes)
	assert.False(t, config.Tracing.Enabled)
	assert.True(t, config.Tracing.RedactSensitive)
}

func TestLoadConfigMissingFile(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), config)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
listen_addr: ":9000"
log_level: debug
kdf:
  time_cost: 2
  memory_kib: 32768
  parallelism: 2
server:
  read_timeout: 15s
  max_request_bytes: 1048576
tracing:
  enabled: true
  sampling_ratio: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", config.ListenAddr)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, uint32(2), config.KDF.TimeCost)
	assert.Equal(t, uint32(32768), config.KDF.MemoryKiB)
	assert.Equal(t, uint8(2), config.KDF.Parallelism)
	assert.Equal(t, 15*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, int64(1048576), config.Server.MaxRequestBytes)
	assert.True(t, config.Tracing.Enabled)
	assert.Equal(t, 0.5, config.Tracing.SamplingRatio)

	// Values the file does not mention keep their defaults.
	assert.Equal(t, 60*time.Second, config.Server.WriteTimeout)
	assert.Equal(t, "stegvaultd", config.Tracing.ServiceName)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: [broken"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":9000\"\n"), 0o600))

	t.Setenv("LISTEN_ADDR", ":9100")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("KDF_TIME_COST", "5")
	t.Setenv("KDF_MEMORY_KIB", "16384")
	t.Setenv("SERVER_READ_TIMEOUT", "45s")
	t.Setenv("TRACING_ENABLED", "true")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	// Env wins over file, file wins over defaults.
	assert.Equal(t, ":9100", config.ListenAddr)
	assert.Equal(t, "warn", config.LogLevel)
	assert.Equal(t, uint32(5), config.KDF.TimeCost)
	assert.Equal(t, uint32(16384), config.KDF.MemoryKiB)
	assert.Equal(t, 45*time.Second, config.Server.ReadTimeout)
	assert.True(t, config.Tracing.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "empty listen addr",
			mutate:  func(c *Config) { c.ListenAddr = "" },
			wantErr: "listen_addr",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "log_level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: "log_format",
		},
		{
			name:    "zero time cost",
			mutate:  func(c *Config) { c.KDF.TimeCost = 0 },
			wantErr: "time_cost",
		},
		{
			name:    "zero parallelism",
			mutate:  func(c *Config) { c.KDF.Parallelism = 0 },
			wantErr: "parallelism",
		},
		{
			name: "memory below per-lane minimum",
			mutate: func(c *Config) {
				c.KDF.MemoryKiB = 16
				c.KDF.Parallelism = 4
			},
			wantErr: "memory_kib",
		},
		{
			name:    "non-positive request limit",
			mutate:  func(c *Config) { c.Server.MaxRequestBytes = 0 },
			wantErr: "max_request_bytes",
		},
		{
			name:    "sampling ratio out of range",
			mutate:  func(c *Config) { c.Tracing.SamplingRatio = 1.5 },
			wantErr: "sampling_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
