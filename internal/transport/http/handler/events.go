package handler

import (
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/hydra-scheduler/hydra/internal/eventbus"
	"github.com/hydra-scheduler/hydra/internal/transport/http/middleware"
)

// EventsHandler implements `GET /events/stream`: an SSE subscription to the
// process-local event bus, filtered to the caller's domain unless the
// request authenticated as admin.
type EventsHandler struct {
	events *eventbus.Bus
	logger *slog.Logger
}

func NewEventsHandler(events *eventbus.Bus, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{events: events, logger: logger.With("component", "events_handler")}
}

func (h *EventsHandler) Stream(c *gin.Context) {
	id, ch := h.events.Subscribe()
	defer h.events.Unsubscribe(id)

	admin := middleware.IsAdmin(c)
	domainName := middleware.DomainFromContext(c)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-ch:
			if !ok {
				return false
			}
			if !admin && event.Payload["domain"] != domainName {
				return true
			}
			c.SSEvent(event.Type, event)
			return true
		}
	})
}
