// internal/handlers/auction.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cardvault/cardmarket-backend/internal/services"
	"github.com/cardvault/cardmarket-backend/internal/utils"
)

type AuctionHandler struct {
	auctionService *services.AuctionService
	bidService     *services.BidService
}

func NewAuctionHandler(auctionService *services.AuctionService, bidService *services.BidService) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		bidService:     bidService,
	}
}

// POST /auctions
func (h *AuctionHandler) ListForAuction(c *gin.Context) {
	username, exists := utils.GetUsernameFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.ListForAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	auction, err := h.auctionService.ListForAuction(username, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, auction)
}

// GET /auctions
func (h *AuctionHandler) GetActiveAuctions(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	excludeUsername := ""
	if excludeOwn, _ := strconv.ParseBool(c.DefaultQuery("exclude_own", "false")); excludeOwn {
		if username, exists := utils.GetUsernameFromContext(c); exists {
			excludeUsername = username
		}
	}

	auctions, total, err := h.auctionService.GetActiveAuctions(excludeUsername, params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(auctions, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /auctions/:id
func (h *AuctionHandler) GetAuction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid auction ID", nil)
		return
	}

	auction, err := h.auctionService.GetAuction(id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, auction)
}

// GET /auctions/:id/bids
func (h *AuctionHandler) GetAuctionBids(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid auction ID", nil)
		return
	}

	bids, err := h.bidService.GetAuctionBids(id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, bids)
}

// DELETE /auctions/:id
func (h *AuctionHandler) CancelAuction(c *gin.Context) {
	username, exists := utils.GetUsernameFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid auction ID", nil)
		return
	}

	auction, err := h.auctionService.CancelAuction(username, id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, auction)
}

// POST /admin/auctions/sweep
func (h *AuctionHandler) SweepExpiredAuctions(c *gin.Context) {
	closed, err := h.auctionService.SweepExpiredAuctions()
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"settled":  len(closed),
		"auctions": closed,
	})
}
