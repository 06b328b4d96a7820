// internal/services/bid_service.go
package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cardvault/cardmarket-backend/internal/apperrors"
	"github.com/cardvault/cardmarket-backend/internal/models"
	"github.com/cardvault/cardmarket-backend/internal/utils"
)

// BidService validates and records bids. Solvency is deliberately not checked
// at bid time; an insufficient balance is discovered by the settlement
// re-check, so no funds are ever held in escrow.
type BidService struct {
	db *gorm.DB
}

type PlaceBidRequest struct {
	Amount int64 `json:"amount" validate:"required,min=1"`
}

func NewBidService(db *gorm.DB) *BidService {
	return &BidService{db: db}
}

// PlaceBid records a pending bid against an open auction and appends the
// new-bid ledger entry in the same transaction.
func (s *BidService) PlaceBid(bidderUsername string, auctionID uuid.UUID, req *PlaceBidRequest) (*models.Bid, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Validationf("invalid bid request: %v", err)
	}

	var bid *models.Bid

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var bidder models.User
		if err := tx.Where("username = ?", bidderUsername).First(&bidder).Error; err != nil {
			return apperrors.NotFoundf("bidder %q not found", bidderUsername)
		}

		var auction models.Auction
		if err := tx.First(&auction, "id = ?", auctionID).Error; err != nil {
			return apperrors.NotFoundf("auction %s not found", auctionID)
		}

		if !auction.IsOpen() {
			return apperrors.Conflictf("auction %s is not open (status %s)", auctionID, auction.Status)
		}

		if auction.SellerID == bidder.ID {
			return apperrors.Conflictf("seller %q cannot bid on own auction", bidderUsername)
		}

		// Conditional touch on the auction row: re-checks the open status
		// at write time and takes the row lock, so the insert below
		// serializes against a concurrent cancel or sweep flip.
		res := tx.Model(&models.Auction{}).
			Where("id = ? AND status = ?", auction.ID, models.AuctionStatusOpen).
			Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflictf("auction %s is no longer open", auctionID)
		}

		var pendingCount int64
		if err := tx.Model(&models.Bid{}).
			Where("auction_id = ? AND bidder_id = ? AND status = ?", auction.ID, bidder.ID, models.BidStatusPending).
			Count(&pendingCount).Error; err != nil {
			return err
		}
		if pendingCount > 0 {
			return apperrors.Conflictf("user %q already has a pending bid on auction %s", bidderUsername, auctionID)
		}

		bid = &models.Bid{
			AuctionID:      auction.ID,
			BidderID:       bidder.ID,
			BidderUsername: bidder.Username,
			OwnedCardID:    auction.OwnedCardID,
			CardCode:       auction.CardCode,
			Price:          req.Amount,
			EstimatedEnd:   auction.EstimatedEnd,
			Status:         models.BidStatusPending,
		}

		if err := tx.Create(bid).Error; err != nil {
			return err
		}

		var card models.OwnedCard
		if err := tx.Select("card_id").First(&card, "id = ?", auction.OwnedCardID).Error; err != nil {
			return err
		}

		ledger := &models.Transaction{
			Concept:     models.ConceptNewBid,
			UserID:      bidder.ID,
			Username:    bidder.Username,
			CardID:      card.CardID,
			OwnedCardID: auction.OwnedCardID,
			CardCode:    auction.CardCode,
			Price:       req.Amount,
			AuctionID:   &auction.ID,
			BidID:       &bid.ID,
		}

		return tx.Create(ledger).Error
	})

	if err != nil {
		return nil, storeError(err)
	}

	logrus.WithFields(logrus.Fields{
		"bid_id":     bid.ID,
		"auction_id": auctionID,
		"bidder":     bidderUsername,
		"amount":     req.Amount,
	}).Info("Bid placed")

	return bid, nil
}

// WithdrawBid retires a pending bid at its owner's request.
func (s *BidService) WithdrawBid(bidderUsername string, bidID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&bid, "id = ?", bidID).Error; err != nil {
			return apperrors.NotFoundf("bid %s not found", bidID)
		}

		if bid.BidderUsername != bidderUsername {
			return apperrors.Conflictf("bid %s does not belong to %q", bidID, bidderUsername)
		}

		if !bid.IsPending() {
			return apperrors.Conflictf("bid %s is not pending (status %s)", bidID, bid.Status)
		}

		// Re-checked at write time so a settlement that already picked this
		// bid as winner cannot be overwritten.
		now := time.Now()
		res := tx.Model(&models.Bid{}).
			Where("id = ? AND status = ?", bid.ID, models.BidStatusPending).
			Updates(map[string]interface{}{
				"status":   models.BidStatusWithdrawn,
				"end_date": &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflictf("bid %s is no longer pending", bidID)
		}
		if err := tx.First(&bid, "id = ?", bid.ID).Error; err != nil {
			return err
		}

		var card models.OwnedCard
		if err := tx.Select("card_id").First(&card, "id = ?", bid.OwnedCardID).Error; err != nil {
			return err
		}

		ledger := &models.Transaction{
			Concept:     models.ConceptBidWithdrawn,
			UserID:      bid.BidderID,
			Username:    bid.BidderUsername,
			CardID:      card.CardID,
			OwnedCardID: bid.OwnedCardID,
			CardCode:    bid.CardCode,
			Price:       bid.Price,
			AuctionID:   &bid.AuctionID,
			BidID:       &bid.ID,
		}

		return tx.Create(ledger).Error
	})

	if err != nil {
		return nil, storeError(err)
	}

	logrus.WithFields(logrus.Fields{
		"bid_id": bidID,
		"bidder": bidderUsername,
	}).Info("Bid withdrawn")

	return &bid, nil
}

func (s *BidService) GetBid(id uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	if err := s.db.First(&bid, "id = ?", id).Error; err != nil {
		return nil, apperrors.NotFoundf("bid %s not found", id)
	}
	return &bid, nil
}

// GetActiveBids returns the user's pending bids whose parent auction is
// still open and not yet past its estimated end.
func (s *BidService) GetActiveBids(bidderUsername string, params utils.PaginationParams) ([]models.Bid, int64, error) {
	now := time.Now()
	query := s.db.Model(&models.Bid{}).
		Joins("JOIN auctions ON auctions.id = bids.auction_id").
		Where("bids.bidder_username = ? AND bids.status = ?", bidderUsername, models.BidStatusPending).
		Where("auctions.status = ? AND bids.estimated_end_date >= ?", models.AuctionStatusOpen, now)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeError(err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "price", "estimated_end_date"})
	query = utils.ApplyPagination(query, params)

	var bids []models.Bid
	if err := query.Find(&bids).Error; err != nil {
		return nil, 0, storeError(err)
	}

	return bids, total, nil
}

// GetAuctionBids lists every bid on one auction in placement order.
func (s *BidService) GetAuctionBids(auctionID uuid.UUID) ([]models.Bid, error) {
	var auctionCount int64
	if err := s.db.Model(&models.Auction{}).Where("id = ?", auctionID).Count(&auctionCount).Error; err != nil {
		return nil, storeError(err)
	}
	if auctionCount == 0 {
		return nil, apperrors.NotFoundf("auction %s not found", auctionID)
	}

	var bids []models.Bid
	if err := s.db.Where("auction_id = ?", auctionID).Order("created_at asc").Find(&bids).Error; err != nil {
		return nil, storeError(err)
	}
	return bids, nil
}
