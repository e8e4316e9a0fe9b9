package server

import (
	"github.com/gofiber/fiber/v2"

	"automator/internal/core/job"
	"automator/internal/health"
)

type Dependencies struct {
	Jobs   *job.Service
	Checks map[string]health.Check
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.Handler {
	// Health endpoints
	healthHandler := health.NewHandler(d.Checks)
	app.Get("/v1/health", health.Limiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	jobHandler := NewJobHandler(d.Jobs)
	api.Post("/jobs", jobHandler.HandleCreate)
	api.Get("/jobs", jobHandler.HandleList)
	api.Get("/jobs/:jobId", jobHandler.HandleGet)
	api.Post("/jobs/:jobId/cancel", jobHandler.HandleCancel)
	api.Post("/jobs/:jobId/retry", jobHandler.HandleRetry)
	api.Delete("/jobs/:jobId", jobHandler.HandleDelete)

	api.Get("/queues", jobHandler.HandleQueueCounts)

	return healthHandler
}
