package websocket

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"

	"github.com/cyberguard/guardian/pkg/app/metrics"
	"github.com/cyberguard/guardian/pkg/infra/broadcast"
)

type eventsHandler struct {
	logger  *logrus.Logger
	hub     *broadcast.Hub
	tracker *metrics.Tracker
}

func NewEventsHandler(logger *logrus.Logger, hub *broadcast.Hub, tracker *metrics.Tracker) Handler {
	return &eventsHandler{
		logger:  logger,
		hub:     hub,
		tracker: tracker,
	}
}

// Handle keeps the connection subscribed to moderation events until the
// client goes away. Incoming frames are drained and discarded; the stream
// is one-way.
func (h *eventsHandler) Handle(c *websocket.Conn) {
	h.hub.Register(c)
	defer h.hub.Unregister(c)

	greeting := map[string]interface{}{
		"type":  "connected",
		"stats": h.tracker.Snapshot(),
	}
	if err := h.hub.Send(c, greeting); err != nil {
		h.logger.WithError(err).Debug("failed to send websocket greeting")
		return
	}

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			h.logger.WithError(err).Debug("websocket read ended")
			return
		}
	}
}
