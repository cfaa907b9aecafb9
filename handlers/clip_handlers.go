package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/voskpaul/clipwizard/internal/store"
	"github.com/voskpaul/clipwizard/models"
	"github.com/voskpaul/clipwizard/utils"
)

type clipView struct {
	models.Clip
	DurationSeconds float64 `json:"duration_seconds"`
	URL             string  `json:"url"`
	ThumbnailURL    *string `json:"thumbnail_url,omitempty"`
}

func (h *ApplicationHandler) clipView(c models.Clip) clipView {
	view := clipView{
		Clip:            c,
		DurationSeconds: c.DurationSeconds(),
		URL:             h.Artifacts.PublicRef(c.StoragePath),
	}
	if c.ThumbnailPath != nil {
		u := h.Artifacts.PublicRef(*c.ThumbnailPath)
		view.ThumbnailURL = &u
	}
	return view
}

// ListClipsHandler returns all clips generated for a video, ordered by their
// position in the source.
func (h *ApplicationHandler) ListClipsHandler(c *fiber.Ctx) error {
	videoID, err := uuid.Parse(c.Params("videoId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid video id")
	}

	if _, err := h.Store.GetVideo(c.Context(), videoID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, "Video not found")
		}
		h.Logger.WithError(err).Error("Could not fetch video")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not fetch video")
	}

	clips, err := h.Store.ListClipsByVideo(c.Context(), videoID)
	if err != nil {
		h.Logger.WithError(err).Error("Could not list clips")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not list clips")
	}

	views := make([]clipView, 0, len(clips))
	for _, clip := range clips {
		views = append(views, h.clipView(clip))
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"clips": views})
}

// DownloadClipHandler bumps the download counter and returns the clip's
// retrieval URL.
func (h *ApplicationHandler) DownloadClipHandler(c *fiber.Ctx) error {
	clipID, err := uuid.Parse(c.Params("clipId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid clip id")
	}

	clip, err := h.Store.GetClip(c.Context(), clipID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, "Clip not found")
		}
		h.Logger.WithError(err).Error("Could not fetch clip")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not fetch clip")
	}

	count, err := h.Store.IncrementDownloadCount(c.Context(), clipID)
	if err != nil {
		h.Logger.WithError(err).WithField("clip_id", clipID).Warn("Could not increment download count")
		count = clip.DownloadCount
	}
	clip.DownloadCount = count

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"clip": h.clipView(clip),
	})
}
