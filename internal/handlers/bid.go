// internal/handlers/bid.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cardvault/cardmarket-backend/internal/services"
	"github.com/cardvault/cardmarket-backend/internal/utils"
)

type BidHandler struct {
	bidService *services.BidService
}

func NewBidHandler(bidService *services.BidService) *BidHandler {
	return &BidHandler{bidService: bidService}
}

// POST /auctions/:id/bids
func (h *BidHandler) PlaceBid(c *gin.Context) {
	username, exists := utils.GetUsernameFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid auction ID", nil)
		return
	}

	var req services.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	bid, err := h.bidService.PlaceBid(username, auctionID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, bid)
}

// GET /bids/:id
func (h *BidHandler) GetBid(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid bid ID", nil)
		return
	}

	bid, err := h.bidService.GetBid(id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, bid)
}

// DELETE /bids/:id
func (h *BidHandler) WithdrawBid(c *gin.Context) {
	username, exists := utils.GetUsernameFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid bid ID", nil)
		return
	}

	bid, err := h.bidService.WithdrawBid(username, id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, bid)
}

// GET /bids
func (h *BidHandler) GetActiveBids(c *gin.Context) {
	username, exists := utils.GetUsernameFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)

	bids, total, err := h.bidService.GetActiveBids(username, params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(bids, total, params)
	utils.PaginatedResponse(c, result)
}
