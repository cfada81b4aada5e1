package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete daemon configuration.
type Config struct {
	ListenAddr string        `yaml:"listen_addr" env:"LISTEN_ADDR"`
	LogLevel   string        `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat  string        `yaml:"log_format" env:"LOG_FORMAT"` // json or text
	KDF        KDFConfig     `yaml:"kdf"`
	Server     ServerConfig  `yaml:"server"`
	Tracing    TracingConfig `yaml:"tracing"`
}

// KDFConfig holds Argon2id cost parameters. These are handed to the core as
// an explicit immutable value per call; the core itself reads no config.
type KDFConfig struct {
	TimeCost    uint32 `yaml:"time_cost" env:"KDF_TIME_COST"`
	MemoryKiB   uint32 `yaml:"memory_kib" env:"KDF_MEMORY_KIB"`
	Parallelism uint8  `yaml:"parallelism" env:"KDF_PARALLELISM"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"SERVER_READ_HEADER_TIMEOUT"`
	// MaxRequestBytes bounds multipart carrier uploads.
	MaxRequestBytes int64 `yaml:"max_request_bytes" env:"SERVER_MAX_REQUEST_BYTES"`
}

// TracingConfig holds OpenTelemetry tracing configuration.
type TracingConfig struct {
	Enabled         bool    `yaml:"enabled" env:"TRACING_ENABLED"`
	ServiceName     string  `yaml:"service_name" env:"TRACING_SERVICE_NAME"`
	SamplingRatio   float64 `yaml:"sampling_ratio" env:"TRACING_SAMPLING_RATIO"`
	RedactSensitive bool    `yaml:"redact_sensitive" env:"TRACING_REDACT_SENSITIVE"`
}

// Default returns the baseline configuration before file and env overrides.
func Default() *Config {
	return &Config{
		ListenAddr: ":8215",
		LogLevel:   "info",
		LogFormat:  "json",
		KDF: KDFConfig{
			TimeCost:    3,
			MemoryKiB:   64 * 1024,
			Parallelism: 4,
		},
		Server: ServerConfig{
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			MaxRequestBytes:   64 << 20, // 64MB: carrier image plus form fields
		},
		Tracing: TracingConfig{
			Enabled:         false,
			ServiceName:     "stegvaultd",
			SamplingRatio:   1.0,
			RedactSensitive: true,
		},
	}
}

// LoadConfig loads configuration from a yaml file and environment variables.
// A missing file is not an error; env overrides always apply.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	loadFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func loadFromEnv(config *Config) {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		config.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		config.LogFormat = v
	}
	if v := os.Getenv("KDF_TIME_COST"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			config.KDF.TimeCost = uint32(n)
		}
	}
	if v := os.Getenv("KDF_MEMORY_KIB"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			config.KDF.MemoryKiB = uint32(n)
		}
	}
	if v := os.Getenv("KDF_PARALLELISM"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 8); err == nil {
			config.KDF.Parallelism = uint8(n)
		}
	}
	if v := os.Getenv("SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Server.WriteTimeout = d
		}
	}
	if v := os.Getenv("SERVER_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Server.IdleTimeout = d
		}
	}
	if v := os.Getenv("SERVER_MAX_REQUEST_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Server.MaxRequestBytes = n
		}
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		config.Tracing.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TRACING_SERVICE_NAME"); v != "" {
		config.Tracing.ServiceName = v
	}
	if v := os.Getenv("TRACING_SAMPLING_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Tracing.SamplingRatio = f
		}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}

	if c.LogLevel != "" {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[c.LogLevel] {
			return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
		}
	}

	if c.LogFormat != "" && c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("invalid log_format: %s (must be json or text)", c.LogFormat)
	}

	if c.KDF.TimeCost == 0 {
		return fmt.Errorf("kdf.time_cost must be at least 1")
	}
	if c.KDF.Parallelism == 0 {
		return fmt.Errorf("kdf.parallelism must be at least 1")
	}
	if c.KDF.MemoryKiB < 8*uint32(c.KDF.Parallelism) {
		return fmt.Errorf("kdf.memory_kib must be at least %d for %d lanes", 8*uint32(c.KDF.Parallelism), c.KDF.Parallelism)
	}

	if c.Server.MaxRequestBytes <= 0 {
		return fmt.Errorf("server.max_request_bytes must be positive")
	}

	if c.Tracing.SamplingRatio < 0 || c.Tracing.SamplingRatio > 1 {
		return fmt.Errorf("tracing.sampling_ratio must be between 0.0 and 1.0")
	}

	return nil
}
