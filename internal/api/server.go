// Package api exposes the REST surface: statement uploads and reads,
// client CRUD, transaction reads, health and Prometheus metrics.
package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config carries the handler tunables.
type Config struct {
	UploadDir      string
	MaxUploadBytes int64
	Version        string
}

// New builds the Fiber app with middleware and all routes registered.
func New(cfg Config, st Store, log *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "statement-ingest",
		// Multipart framing needs headroom beyond the file itself.
		BodyLimit:    int(cfg.MaxUploadBytes) + 1<<20,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(requestLogger(log))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	h := &Handler{store: st, cfg: cfg, log: log}
	h.RegisterRoutes(app)
	return app
}

// errorHandler renders every handler error as {"error": "..."}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func requestLogger(log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		log.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start))
		return err
	}
}
