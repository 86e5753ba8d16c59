// Package main provides the nodeflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/nodeflow/pkg/config"
	"github.com/dukex/nodeflow/pkg/registry"
	"github.com/dukex/nodeflow/pkg/services"
	"github.com/dukex/nodeflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger          *slog.Logger
	workflowService *services.Workflow
	registry        *registry.Registry
	validate        *validator.Validate
	principalHeader string
	healthChecks    map[string]func(fiber.Ctx) (string, bool)
}

func NewAPI(
	logger *slog.Logger,
	workflowService *services.Workflow,
	registry *registry.Registry,
) *API {
	return &API{
		logger:          logger,
		workflowService: workflowService,
		registry:        registry,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		principalHeader: config.DefaultPrincipalHeader,
		healthChecks:    make(map[string]func(fiber.Ctx) (string, bool)),
	}
}

// AddHealthCheck adds a dependency check to /health.
func (a *API) AddHealthCheck(name string, check func(fiber.Ctx) (string, bool)) {
	a.healthChecks[name] = check
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.logger, a.workflowService, a.validate, a.registry)
	for name, check := range a.healthChecks {
		handlers.AddHealthCheck(name, check)
	}

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			_, ok := a.workflowService.HealthCheck(c.Context())

			return ok
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("nodeflow API")
	})

	handlers.Register(app, a.principalHeader)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
