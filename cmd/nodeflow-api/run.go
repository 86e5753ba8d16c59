package main

import (
	"context"
	"fmt"

	"github.com/dukex/nodeflow/pkg/channels/kafka"
	"github.com/dukex/nodeflow/pkg/cmd"
	"github.com/dukex/nodeflow/pkg/config"
	"github.com/dukex/nodeflow/pkg/log"
	"github.com/dukex/nodeflow/pkg/otelhelper"
	"github.com/dukex/nodeflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	cli "github.com/urfave/cli/v3"
)

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    flagPort,
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:     flagDatabaseURL,
			Usage:    "Database connection URL (postgres://..., file://path)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    flagEventBus,
			Usage:   "Event bus type (memory, kafka)",
			Value:   config.DefaultEventBusType,
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    flagKafkaBrokers,
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    flagCacheURL,
			Usage:   "Redis URL for the graph view cache; empty disables caching",
			Sources: cli.EnvVars("CACHE_URL"),
		},
		&cli.DurationFlag{
			Name:    flagCacheTTL,
			Usage:   "How long a cached graph view lives",
			Value:   config.DefaultCacheTTL,
			Sources: cli.EnvVars("CACHE_TTL"),
		},
		&cli.StringFlag{
			Name:    flagCacheCodec,
			Usage:   "Graph cache value codec (msgpack, json)",
			Value:   config.DefaultCacheCodec,
			Sources: cli.EnvVars("CACHE_CODEC"),
		},
		&cli.StringFlag{
			Name:    flagCacheCompress,
			Usage:   "Graph cache value compression (zstd, none)",
			Value:   config.DefaultCacheCompression,
			Sources: cli.EnvVars("CACHE_COMPRESSION"),
		},
		&cli.StringFlag{
			Name:    flagLogLevel,
			Usage:   "Log level (debug, info, warn, error)",
			Value:   config.DefaultLogLevel,
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.DurationFlag{
			Name:    flagTimeout,
			Usage:   "Deadline applied to every service call",
			Value:   config.DefaultRequestTimeout,
			Sources: cli.EnvVars("REQUEST_TIMEOUT"),
		},
		&cli.IntFlag{
			Name:    flagDefaultPage,
			Usage:   "Page used when a listing request has none",
			Value:   config.DefaultPage,
			Sources: cli.EnvVars("DEFAULT_PAGE"),
		},
		&cli.IntFlag{
			Name:    flagDefaultSize,
			Usage:   "Page size used when a listing request has none",
			Value:   config.DefaultPageSize,
			Sources: cli.EnvVars("DEFAULT_PAGE_SIZE"),
		},
		&cli.IntFlag{
			Name:    flagMinSize,
			Usage:   "Smallest accepted page size",
			Value:   config.DefaultMinPageSize,
			Sources: cli.EnvVars("MIN_PAGE_SIZE"),
		},
		&cli.IntFlag{
			Name:    flagMaxSize,
			Usage:   "Largest accepted page size",
			Value:   config.DefaultMaxPageSize,
			Sources: cli.EnvVars("MAX_PAGE_SIZE"),
		},
		&cli.StringFlag{
			Name:    flagPremium,
			Usage:   "Comma separated principals allowed to create workflows; empty allows everyone",
			Sources: cli.EnvVars("PREMIUM_PRINCIPALS"),
		},
		&cli.BoolFlag{
			Name:    flagOTelEnabled,
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    flagNodeKindsPath,
			Usage:   "Directory of extension node kind definitions (*.json)",
			Value:   defaultKindsPath,
			Sources: cli.EnvVars("NODE_KINDS_PATH"),
		},
	}
}

// configFromCommand collects the flag values into a validated Config.
func configFromCommand(command *cli.Command) (config.Config, error) {
	cfg := config.Default()
	cfg.Port = command.Int(flagPort)
	cfg.DatabaseURL = command.String(flagDatabaseURL)
	cfg.EventBusType = command.String(flagEventBus)
	cfg.KafkaBrokers = kafka.ParseBrokers(command.String(flagKafkaBrokers))
	cfg.CacheURL = command.String(flagCacheURL)
	cfg.CacheTTL = command.Duration(flagCacheTTL)
	cfg.CacheCodec = command.String(flagCacheCodec)
	cfg.CacheCompression = command.String(flagCacheCompress)
	cfg.LogLevel = command.String(flagLogLevel)
	cfg.RequestTimeout = command.Duration(flagTimeout)
	cfg.PremiumPrincipals = config.ParseList(command.String(flagPremium))
	cfg.OTelEnabled = command.Bool(flagOTelEnabled)
	cfg.Pagination = config.Pagination{
		DefaultPage:     command.Int(flagDefaultPage),
		DefaultPageSize: command.Int(flagDefaultSize),
		MinPageSize:     command.Int(flagMinSize),
		MaxPageSize:     command.Int(flagMaxSize),
	}

	err := cfg.Validate(validator.New(validator.WithRequiredStructEnabled()))
	if err != nil {
		return cfg, err
	}

	return cfg, nil
}

func entitlements(cfg config.Config) services.Entitlements {
	if len(cfg.PremiumPrincipals) == 0 {
		return services.AllowAll{}
	}

	return services.NewStaticEntitlements(cfg.PremiumPrincipals)
}

func run(ctx context.Context, command *cli.Command) error {
	cfg, err := configFromCommand(command)
	if err != nil {
		return err
	}

	log.Setup(cfg.LogLevel)

	logger := log.WithModule("api")

	logger.InfoContext(ctx, "Initializing nodeflow API", "port", cfg.Port, "event_bus", cfg.EventBusType)

	shutdownTracing, err := otelhelper.Setup(ctx, cfg.ServiceName, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}

	defer func() {
		err := shutdownTracing(context.Background())
		if err != nil {
			logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
		}
	}()

	registry, err := cmd.NewRegistry(ctx, logger, command.String(flagNodeKindsPath))
	if err != nil {
		return err
	}

	persistence, err := cmd.NewPersistence(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(cfg.EventBusType, logger, cfg.KafkaBrokers, cfg.ServiceName)
	if err != nil {
		return err
	}

	defer func() {
		err := eventBus.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithRegistry(registry),
		services.WithPublisher(eventBus),
		services.WithEntitlements(entitlements(cfg)),
		services.WithPagination(cfg.Pagination),
		services.WithRequestTimeout(cfg.RequestTimeout),
	}

	graphCache, err := cmd.NewGraphCache(ctx, logger, cfg.CacheURL, cfg.CacheTTL, cfg.CacheCodec, cfg.CacheCompression)
	if err != nil {
		return err
	}

	var cacheCheck func(fiber.Ctx) (string, bool)

	if graphCache != nil {
		defer func() {
			err := graphCache.Close()
			if err != nil {
				logger.ErrorContext(ctx, "Failed to close graph cache", "error", err)
			}
		}()

		opts = append(opts, services.WithCache(graphCache))
		cacheCheck = func(c fiber.Ctx) (string, bool) {
			err := graphCache.Ping(c.Context())
			if err != nil {
				return "Graph cache is unhealthy: " + err.Error(), false
			}

			return "Graph cache is healthy", true
		}
	}

	api := NewAPI(logger, services.NewWorkflow(persistence, opts...), registry)
	if cacheCheck != nil {
		api.AddHealthCheck("cache", cacheCheck)
	}

	return api.Start(cfg.Port)
}
