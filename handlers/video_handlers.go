package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/voskpaul/clipwizard/internal/storage"
	"github.com/voskpaul/clipwizard/internal/store"
	"github.com/voskpaul/clipwizard/models"
	"github.com/voskpaul/clipwizard/utils"
)

// CreateVideoRequest registers a new source video before its bytes are
// uploaded.
type CreateVideoRequest struct {
	Title    string `json:"title" validate:"required,min=1,max=255"`
	Filename string `json:"filename" validate:"required,min=1,max=255"`
	FileSize *int64 `json:"file_size,omitempty" validate:"omitempty,min=1"`
}

// CreateVideoHandler registers a video record and mints an upload URL for
// the client to push the file to.
func (h *ApplicationHandler) CreateVideoHandler(c *fiber.Ctx) error {
	var req CreateVideoRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}
	req.Title = utils.SanitizeInput(req.Title)
	req.Filename = utils.SanitizeInput(req.Filename)
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error",
			"errors": utils.FormatValidationErrors(err),
		})
	}

	video := models.Video{
		ID:               uuid.New(),
		Title:            req.Title,
		OriginalFilename: req.Filename,
		FileSize:         req.FileSize,
		Status:           models.VideoStatusUploaded,
	}
	video.StoragePath = fmt.Sprintf("sources/%s/%s", video.ID, req.Filename)

	if err := h.Store.CreateVideo(c.Context(), &video); err != nil {
		h.Logger.WithError(err).Error("Could not create video record")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not create video record")
	}

	uploadURL, err := h.Artifacts.SignedUploadURL(c.Context(), video.StoragePath)
	if err != nil && !errors.Is(err, storage.ErrSignedUploadUnsupported) {
		h.Logger.WithError(err).Error("Could not create signed upload URL")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not create upload URL")
	}

	h.Logger.WithField("video_id", video.ID).Info("Video registered")
	return utils.RespondWithJSON(c, fiber.StatusCreated, fiber.Map{
		"video":      video,
		"upload_url": uploadURL,
	})
}

// GetVideoStatusHandler returns the video record together with its latest
// processing run, that run's state, progress, error, and clips. It is the
// polling counterpart to the event stream.
func (h *ApplicationHandler) GetVideoStatusHandler(c *fiber.Ctx) error {
	videoID, err := uuid.Parse(c.Params("videoId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid video id")
	}

	video, err := h.Store.GetVideo(c.Context(), videoID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, "Video not found")
		}
		h.Logger.WithError(err).Error("Could not fetch video")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not fetch video")
	}

	resp := fiber.Map{"video": video, "clips": []clipView{}}
	run, err := h.Store.LatestRunForVideo(c.Context(), videoID)
	switch {
	case err == nil:
		resp["latest_run"] = run
		resp["state"] = run.State
		resp["progress"] = run.Progress
		if run.ErrorKind != nil {
			resp["error"] = fiber.Map{"kind": run.ErrorKind, "message": run.ErrorMessage}
		}

		clips, cerr := h.Store.ListClipsByVideo(c.Context(), videoID)
		if cerr != nil {
			h.Logger.WithError(cerr).Error("Could not list clips")
			return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not fetch processing state")
		}
		views := make([]clipView, 0, len(clips))
		for _, clip := range clips {
			if clip.RunID == run.ID {
				views = append(views, h.clipView(clip))
			}
		}
		resp["clips"] = views
	case errors.Is(err, store.ErrNotFound):
		// No runs yet.
	default:
		h.Logger.WithError(err).Error("Could not fetch latest run")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not fetch processing state")
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, resp)
}

// ListVideosHandler returns all registered videos, oldest first.
func (h *ApplicationHandler) ListVideosHandler(c *fiber.Ctx) error {
	videos, err := h.Store.ListVideos(c.Context())
	if err != nil {
		h.Logger.WithError(err).Error("Could not list videos")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not list videos")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"videos": videos})
}
