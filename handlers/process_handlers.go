package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/voskpaul/clipwizard/internal/store"
	"github.com/voskpaul/clipwizard/models"
	"github.com/voskpaul/clipwizard/utils"
)

// ProcessVideoRequest selects how the analyzer should pick highlights.
type ProcessVideoRequest struct {
	Tone         string `json:"tone" validate:"omitempty,max=64"`
	Duration     int    `json:"duration" validate:"omitempty,min=5,max=600"`
	CustomPrompt string `json:"custom_prompt" validate:"omitempty,max=2000"`
}

// ProcessVideoHandler starts a processing run for a video. Responds 202 with
// the run id; progress is reported via the status endpoint and event stream.
func (h *ApplicationHandler) ProcessVideoHandler(c *fiber.Ctx) error {
	videoID, err := uuid.Parse(c.Params("videoId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid video id")
	}

	var req ProcessVideoRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		}
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error",
			"errors": utils.FormatValidationErrors(err),
		})
	}

	opts := models.RunOptions{
		Tone:              utils.SanitizeInput(req.Tone),
		TargetClipSeconds: req.Duration,
		CustomPrompt:      utils.SanitizeInput(req.CustomPrompt),
	}

	run, err := h.Pipeline.Start(c.Context(), videoID, opts)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return utils.RespondWithError(c, fiber.StatusNotFound, "Video not found")
		case errors.Is(err, store.ErrRunAlreadyActive):
			return utils.RespondWithError(c, fiber.StatusConflict, "Video already has an active processing run")
		default:
			h.Logger.WithError(err).Error("Could not start processing run")
			return utils.RespondWithError(c, fiber.StatusServiceUnavailable, "Could not start processing run")
		}
	}

	return utils.RespondWithJSON(c, fiber.StatusAccepted, fiber.Map{
		"run_id":   run.ID,
		"video_id": run.VideoID,
		"state":    run.State,
	})
}

// GetRunHandler returns one processing run by id.
func (h *ApplicationHandler) GetRunHandler(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("runId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid run id")
	}

	run, err := h.Store.GetRun(c.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, "Run not found")
		}
		h.Logger.WithError(err).Error("Could not fetch run")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not fetch run")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"run": run})
}

// CancelRunHandler requests cancellation of a queued or in-flight run.
func (h *ApplicationHandler) CancelRunHandler(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("runId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid run id")
	}

	run, err := h.Store.GetRun(c.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, "Run not found")
		}
		h.Logger.WithError(err).Error("Could not fetch run")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not fetch run")
	}
	if run.State.Terminal() {
		return utils.RespondWithError(c, fiber.StatusConflict, "Run already finished")
	}

	if err := h.Pipeline.Cancel(c.Context(), runID); err != nil {
		h.Logger.WithError(err).WithField("run_id", runID).Warn("Cancellation request for inactive run")
		return utils.RespondWithError(c, fiber.StatusConflict, "Run is not active")
	}
	return utils.RespondWithJSON(c, fiber.StatusAccepted, fiber.Map{"run_id": runID})
}
