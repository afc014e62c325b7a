package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/workgraph/pkg/cmd"
	"github.com/dukex/workgraph/pkg/registry"
	"github.com/dukex/workgraph/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger   *slog.Logger
	engine   *cmd.Engine
	registry *registry.Registry
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, engine *cmd.Engine, registry *registry.Registry) *API {
	return &API{
		logger:   logger,
		engine:   engine,
		registry: registry,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		a.engine.Workflows,
		a.engine.Publishing,
		a.engine.Executions,
		a.engine.Notifier,
		a.validate,
		a.registry,
		a.logger,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Workgraph API")
	})

	handlers.Routes(app)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
