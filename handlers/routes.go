package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes attaches all API routes to the app.
func (h *ApplicationHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthHandler)

	apiV1 := app.Group("/api/v1")

	apiV1.Post("/videos", h.CreateVideoHandler)
	apiV1.Get("/videos", h.ListVideosHandler)
	apiV1.Get("/videos/:videoId/status", h.GetVideoStatusHandler)
	apiV1.Post("/videos/:videoId/process", h.ProcessVideoHandler)
	apiV1.Get("/videos/:videoId/events", h.VideoEventsHandler)
	apiV1.Get("/videos/:videoId/clips", h.ListClipsHandler)

	apiV1.Get("/runs/:runId", h.GetRunHandler)
	apiV1.Post("/runs/:runId/cancel", h.CancelRunHandler)

	apiV1.Post("/clips/:clipId/download", h.DownloadClipHandler)
}

// HealthHandler reports service liveness.
func (h *ApplicationHandler) HealthHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "ok",
		"message": "clipwizard is healthy",
	})
}
