package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"dealersign/internal/config"
	"dealersign/internal/delivery/http/handler"
)

// Router carries the operational surface only. Template CRUD, document
// distribution and signer actions are fronted by the gateway service, not
// this process.
type Router struct {
	app           *fiber.App
	config        *config.Config
	healthHandler *handler.HealthHandler
	workerHandler *handler.WorkerHandler
}

func NewRouter(
	cfg *config.Config,
	healthHandler *handler.HealthHandler,
	workerHandler *handler.WorkerHandler,
) *Router {
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: customErrorHandler,
	})

	return &Router{
		app:           app,
		config:        cfg,
		healthHandler: healthHandler,
		workerHandler: workerHandler,
	}
}

func (r *Router) Setup() *fiber.App {
	// Middleware
	r.app.Use(recover.New())
	r.app.Use(requestid.New())
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	if r.config.IsDevelopment() {
		r.app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	r.app.Get("/health", r.healthHandler.Health)

	api := r.app.Group("/api/v1")
	{
		workers := api.Group("/workers")
		{
			workers.Get("/queue", r.workerHandler.QueueStatus)
			workers.Post("/sweep", r.workerHandler.TriggerSweep)
		}
	}

	return r.app
}

func (r *Router) GetApp() *fiber.App {
	return r.app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": err.Error(),
		"error": fiber.Map{
			"code":    code,
			"message": err.Error(),
		},
	})
}
