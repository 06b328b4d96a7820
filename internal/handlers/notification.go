// internal/handlers/notification.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cardvault/cardmarket-backend/internal/realtime"
	"github.com/cardvault/cardmarket-backend/internal/services"
	"github.com/cardvault/cardmarket-backend/internal/utils"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
	hub                 *realtime.Hub
}

func NewNotificationHandler(notificationService *services.NotificationService, hub *realtime.Hub) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		hub:                 hub,
	}
}

// GET /notifications
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	username, exists := utils.GetUsernameFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))

	notifications, total, err := h.notificationService.GetNotifications(username, unreadOnly, params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(notifications, total, params)
	utils.PaginatedResponse(c, result)
}

// PUT /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	username, exists := utils.GetUsernameFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid notification ID", nil)
		return
	}

	notification, err := h.notificationService.MarkRead(username, id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, notification)
}

// GET /ws
func (h *NotificationHandler) ServeWS(c *gin.Context) {
	username, exists := utils.GetUsernameFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	if err := realtime.ServeWS(h.hub, c.Writer, c.Request, username); err != nil {
		utils.InternalErrorResponse(c, "Failed to open websocket")
	}
}
