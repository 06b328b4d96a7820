// internal/handlers/user.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/cardvault/cardmarket-backend/internal/models"
	"github.com/cardvault/cardmarket-backend/internal/services"
	"github.com/cardvault/cardmarket-backend/internal/utils"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GET /users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	username, exists := utils.GetUsernameFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	user, err := h.userService.GetUserByUsername(username)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
		"balance":  user.Balance,
	})
}

// GET /users/me/cards
func (h *UserHandler) GetOwnedCards(c *gin.Context) {
	username, exists := utils.GetUsernameFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	status := models.OwnedCardStatus(c.Query("status"))
	cards, err := h.userService.GetOwnedCards(username, status)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, cards)
}
