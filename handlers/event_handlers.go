package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/voskpaul/clipwizard/utils"
)

const heartbeatInterval = 15 * time.Second

// VideoEventsHandler streams processing events for one video as server-sent
// events. The stream ends when the subscriber falls behind or the client
// disconnects; clients should then re-query the status endpoint, which is the
// source of truth.
func (h *ApplicationHandler) VideoEventsHandler(c *fiber.Ctx) error {
	videoID, err := uuid.Parse(c.Params("videoId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid video id")
	}

	sub := h.Bus.Subscribe(videoID, 32)
	log := h.Logger.WithField("video_id", videoID)
	log.Info("Event stream opened")

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case ev, ok := <-sub.C:
				if !ok {
					log.Info("Event stream closed by bus")
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
				if err := w.Flush(); err != nil {
					log.Info("Event stream client disconnected")
					return
				}
			case <-heartbeat.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				if err := w.Flush(); err != nil {
					log.Info("Event stream client disconnected")
					return
				}
			}
		}
	}))
	return nil
}
