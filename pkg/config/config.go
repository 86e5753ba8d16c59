// Package config holds the validated runtime configuration of the API server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults applied when a flag is not set.
const (
	DefaultPort             = 9091
	DefaultEventBusType     = "memory"
	DefaultLogLevel         = "info"
	DefaultRequestTimeout   = 5 * time.Second
	DefaultCacheTTL         = 10 * time.Minute
	DefaultCacheCodec       = "msgpack"
	DefaultCacheCompression = "zstd"
	DefaultPage             = 1
	DefaultPageSize         = 5
	DefaultMinPageSize      = 1
	DefaultMaxPageSize      = 100
	DefaultServiceName      = "nodeflow-api"
	DefaultPrincipalHeader  = "X-Principal-ID"
)

// Pagination bounds the listing parameters accepted from callers.
type Pagination struct {
	DefaultPage     int `validate:"min=1"`
	DefaultPageSize int `validate:"gtefield=MinPageSize,ltefield=MaxPageSize"`
	MinPageSize     int `validate:"min=1"`
	MaxPageSize     int `validate:"gtefield=MinPageSize"`
}

// DefaultPagination returns the stock pagination bounds.
func DefaultPagination() Pagination {
	return Pagination{
		DefaultPage:     DefaultPage,
		DefaultPageSize: DefaultPageSize,
		MinPageSize:     DefaultMinPageSize,
		MaxPageSize:     DefaultMaxPageSize,
	}
}

// Config is everything the API server needs to start.
type Config struct {
	Port              int           `validate:"min=1,max=65535"`
	DatabaseURL       string        `validate:"required"`
	EventBusType      string        `validate:"oneof=memory kafka"`
	KafkaBrokers      []string      `validate:"required_if=EventBusType kafka"`
	CacheURL          string        `validate:"omitempty,url"`
	CacheTTL          time.Duration `validate:"gt=0"`
	CacheCodec        string        `validate:"oneof=msgpack json"`
	CacheCompression  string        `validate:"oneof=zstd none"`
	LogLevel          string        `validate:"oneof=debug info warn error"`
	RequestTimeout    time.Duration `validate:"gt=0"`
	PremiumPrincipals []string
	OTelEnabled       bool
	ServiceName       string `validate:"required"`
	Pagination        Pagination
}

// Default returns a configuration with every optional value set.
func Default() Config {
	return Config{
		Port:             DefaultPort,
		EventBusType:     DefaultEventBusType,
		CacheTTL:         DefaultCacheTTL,
		CacheCodec:       DefaultCacheCodec,
		CacheCompression: DefaultCacheCompression,
		LogLevel:         DefaultLogLevel,
		RequestTimeout:   DefaultRequestTimeout,
		ServiceName:      DefaultServiceName,
		Pagination:       DefaultPagination(),
	}
}

// Validate checks the struct tags and reports every failing field in one error.
func (c Config) Validate(validate *validator.Validate) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields = append(fields, fmt.Sprintf("%s (%s)", fieldErr.Namespace(), fieldErr.Tag()))
	}

	return fmt.Errorf("invalid configuration: %s: %w", strings.Join(fields, ", "), err)
}

// ParseList splits a comma separated flag value, dropping blanks.
func ParseList(raw string) []string {
	var values []string

	for _, value := range strings.Split(raw, ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			values = append(values, value)
		}
	}

	return values
}
