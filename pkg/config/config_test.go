package config

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Default()
	cfg.DatabaseURL = "file:///tmp/nodeflow"

	return cfg
}

func TestConfig_Validate(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "Config.DatabaseURL (required)"},
		{name: "bad port", mutate: func(c *Config) { c.Port = 0 }, wantErr: "Config.Port (min)"},
		{name: "unknown bus", mutate: func(c *Config) { c.EventBusType = "rabbitmq" }, wantErr: "Config.EventBusType (oneof)"},
		{name: "kafka without brokers", mutate: func(c *Config) { c.EventBusType = "kafka" }, wantErr: "Config.KafkaBrokers (required_if)"},
		{
			name: "kafka with brokers",
			mutate: func(c *Config) {
				c.EventBusType = "kafka"
				c.KafkaBrokers = []string{"localhost:9092"}
			},
		},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "Config.LogLevel (oneof)"},
		{name: "zero timeout", mutate: func(c *Config) { c.RequestTimeout = 0 }, wantErr: "Config.RequestTimeout (gt)"},
		{name: "negative ttl", mutate: func(c *Config) { c.CacheTTL = -time.Second }, wantErr: "Config.CacheTTL (gt)"},
		{name: "cache url", mutate: func(c *Config) { c.CacheURL = "redis://localhost:6379/0" }},
		{name: "bad cache url", mutate: func(c *Config) { c.CacheURL = "not a url" }, wantErr: "Config.CacheURL (url)"},
		{name: "json cache", mutate: func(c *Config) { c.CacheCodec = "json" }},
		{name: "uncompressed cache", mutate: func(c *Config) { c.CacheCompression = "none" }},
		{name: "bad cache codec", mutate: func(c *Config) { c.CacheCodec = "gob" }, wantErr: "Config.CacheCodec (oneof)"},
		{name: "bad cache compression", mutate: func(c *Config) { c.CacheCompression = "lz4" }, wantErr: "Config.CacheCompression (oneof)"},
		{
			name:    "default page size above max",
			mutate:  func(c *Config) { c.Pagination.DefaultPageSize = 500 },
			wantErr: "Config.Pagination.DefaultPageSize (ltefield)",
		},
		{
			name:    "default page size below min",
			mutate:  func(c *Config) { c.Pagination.MinPageSize = 10 },
			wantErr: "Config.Pagination.DefaultPageSize (gtefield)",
		},
		{
			name:    "max below min",
			mutate:  func(c *Config) { c.Pagination.MaxPageSize = 0 },
			wantErr: "Config.Pagination.MaxPageSize (gtefield)",
		},
		{name: "zero default page", mutate: func(c *Config) { c.Pagination.DefaultPage = 0 }, wantErr: "Config.Pagination.DefaultPage (min)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate(validate)
			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseList(t *testing.T) {
	assert.Nil(t, ParseList(""))
	assert.Nil(t, ParseList(" , "))
	assert.Equal(t, []string{"a", "b"}, ParseList(" a,,b "))
}
