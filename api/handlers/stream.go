package handlers

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/homebase-id/odin-notify/internal/relay"
)

// StreamHandler relays live notifications to local websocket clients.
type StreamHandler struct {
	relay *relay.Handler
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(r *relay.Handler) *StreamHandler {
	return &StreamHandler{relay: r}
}

// Stream handles GET /api/stream - upgrades to a websocket.
func (h *StreamHandler) Stream(c *gin.Context) {
	// The upgrader writes its own error response.
	if err := h.relay.HandleConnection(c.Writer, c.Request); err != nil {
		log.Printf("Stream upgrade failed: %v", err)
	}
}

// RegisterRoutes registers the stream route on a Gin router group.
func (h *StreamHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stream", h.Stream)
}
