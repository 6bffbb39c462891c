package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homebase-id/odin-notify/internal/notify"
)

// StatusSource reports the state of one notification transport.
type StatusSource interface {
	Status() notify.Status
}

// StatusHandler reports the connection state of every transport.
type StatusHandler struct {
	sources []StatusSource
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(sources ...StatusSource) *StatusHandler {
	return &StatusHandler{sources: sources}
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Transports []notify.Status `json:"transports"`
}

// Get handles GET /api/status.
func (h *StatusHandler) Get(c *gin.Context) {
	resp := &StatusResponse{Transports: make([]notify.Status, 0, len(h.sources))}
	for _, s := range h.sources {
		resp.Transports = append(resp.Transports, s.Status())
	}
	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes registers the status route on a Gin router group.
func (h *StatusHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/status", h.Get)
}
