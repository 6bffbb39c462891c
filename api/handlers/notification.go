package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/homebase-id/odin-notify/internal/model"
	"github.com/homebase-id/odin-notify/internal/repository"
)

// NotificationHandler serves the notification journal.
type NotificationHandler struct {
	repo *repository.NotificationRepository
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(repo *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{repo: repo}
}

// ListResponse is the body of GET /api/notifications.
type ListResponse struct {
	Notifications []*model.Entry `json:"notifications"`
	Count         int            `json:"count"`
}

// List handles GET /api/notifications - lists journaled notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	filter := model.EntryFilter{
		Transport:        c.Query("transport"),
		NotificationType: model.NotificationType(c.Query("type")),
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if filter.NotificationType != "" && !filter.NotificationType.Known() {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "unknown notification type "+string(filter.NotificationType))
		return
	}

	entries, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list notifications: "+err.Error())
		return
	}

	if entries == nil {
		entries = []*model.Entry{}
	}
	c.JSON(http.StatusOK, &ListResponse{Notifications: entries, Count: len(entries)})
}

// Get handles GET /api/notifications/:id - returns one journaled notification.
func (h *NotificationHandler) Get(c *gin.Context) {
	id := c.Param("id")

	entry, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrNotificationNotFound) {
			sendError(c, http.StatusNotFound, "NOTIFICATION_NOT_FOUND", "Notification "+id+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get notification: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, entry)
}

// RegisterRoutes registers the journal routes on a Gin router group.
func (h *NotificationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.List)
	rg.GET("/notifications/:id", h.Get)
}
