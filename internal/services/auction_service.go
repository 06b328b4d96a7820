// internal/services/auction_service.go
package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cardvault/cardmarket-backend/internal/apperrors"
	"github.com/cardvault/cardmarket-backend/internal/config"
	"github.com/cardvault/cardmarket-backend/internal/models"
	"github.com/cardvault/cardmarket-backend/internal/utils"
)

// AuctionService owns the auction state machine: listing, cancellation and
// the expiry sweep. Settlement of individual expired auctions is delegated to
// the SettlementService inside the same transaction that closes them.
type AuctionService struct {
	db         *gorm.DB
	settlement *SettlementService
	sink       NotificationSink
	config     *config.Config
}

type ListForAuctionRequest struct {
	OwnedCardID   uuid.UUID `json:"owned_card_id" validate:"required"`
	BasePrice     int64     `json:"base_price" validate:"required,min=1"`
	DurationHours int       `json:"duration_hours,omitempty" validate:"omitempty,min=1"`
}

func NewAuctionService(db *gorm.DB, settlement *SettlementService, sink NotificationSink, cfg *config.Config) *AuctionService {
	return &AuctionService{
		db:         db,
		settlement: settlement,
		sink:       sink,
		config:     cfg,
	}
}

// ListForAuction puts an owned card up for auction: card goes on_auction, an
// open auction is created and a for-sale ledger entry is appended, all in one
// transaction.
func (s *AuctionService) ListForAuction(sellerUsername string, req *ListForAuctionRequest) (*models.Auction, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Validationf("invalid listing request: %v", err)
	}

	if req.BasePrice > s.config.Auction.MaxBasePrice {
		return nil, apperrors.Validationf("base price %d exceeds maximum %d", req.BasePrice, s.config.Auction.MaxBasePrice)
	}

	duration := req.DurationHours
	if duration == 0 {
		duration = s.config.Auction.DefaultDurationHours
	}
	if duration < s.config.Auction.MinDurationHours || duration > s.config.Auction.MaxDurationHours {
		return nil, apperrors.Validationf("duration %dh out of range %d-%dh",
			duration, s.config.Auction.MinDurationHours, s.config.Auction.MaxDurationHours)
	}

	var auction *models.Auction

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var seller models.User
		if err := tx.Where("username = ?", sellerUsername).First(&seller).Error; err != nil {
			return apperrors.NotFoundf("seller %q not found", sellerUsername)
		}

		var card models.OwnedCard
		if err := tx.First(&card, "id = ?", req.OwnedCardID).Error; err != nil {
			return apperrors.NotFoundf("owned card %s not found", req.OwnedCardID)
		}

		if card.OwnerID != seller.ID {
			return apperrors.Conflictf("card %s is not owned by %s", card.CardCode, sellerUsername)
		}

		if card.Status != models.OwnedCardStatusNotForSale {
			return apperrors.Conflictf("card %s is not available for listing (status %s)", card.CardCode, card.Status)
		}

		if err := tx.Model(&card).Update("status", models.OwnedCardStatusOnAuction).Error; err != nil {
			return err
		}

		now := time.Now()
		auction = &models.Auction{
			OwnedCardID:    card.ID,
			CardCode:       card.CardCode,
			SellerID:       seller.ID,
			SellerUsername: seller.Username,
			InitialPrice:   req.BasePrice,
			PublishedAt:    now,
			DurationHours:  duration,
			EstimatedEnd:   now.Add(time.Duration(duration) * time.Hour),
			Status:         models.AuctionStatusOpen,
		}

		if err := tx.Create(auction).Error; err != nil {
			return err
		}

		ledger := &models.Transaction{
			Concept:     models.ConceptForSaleOnAuction,
			UserID:      seller.ID,
			Username:    seller.Username,
			CardID:      card.CardID,
			OwnedCardID: card.ID,
			CardCode:    card.CardCode,
			Price:       req.BasePrice,
			AuctionID:   &auction.ID,
		}

		return tx.Create(ledger).Error
	})

	if err != nil {
		return nil, storeError(err)
	}

	logrus.WithFields(logrus.Fields{
		"auction_id": auction.ID,
		"card_code":  auction.CardCode,
		"seller":     sellerUsername,
		"base_price": req.BasePrice,
	}).Info("Card listed for auction")

	return auction, nil
}

// CancelAuction withdraws an open listing. The requester must be the seller
// or an admin. Pending bids are terminated as auction_cancelled and their
// bidders notified.
func (s *AuctionService) CancelAuction(requesterUsername string, auctionID uuid.UUID) (*models.Auction, error) {
	var auction models.Auction
	var events []Event

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var requester models.User
		if err := tx.Where("username = ?", requesterUsername).First(&requester).Error; err != nil {
			return apperrors.NotFoundf("user %q not found", requesterUsername)
		}

		if err := tx.First(&auction, "id = ?", auctionID).Error; err != nil {
			return apperrors.NotFoundf("auction %s not found", auctionID)
		}

		if !auction.IsOpen() {
			return apperrors.Conflictf("auction %s is not open (status %s)", auctionID, auction.Status)
		}

		isSeller := auction.SellerID == requester.ID
		if !isSeller && !requester.IsAdmin() {
			return apperrors.Conflictf("user %q may not cancel auction %s", requesterUsername, auctionID)
		}

		// Conditional flip: the open check is re-run at write time, so a
		// sweep that closed the auction between our read and this update
		// cannot be overwritten into cancelled.
		now := time.Now()
		res := tx.Model(&models.Auction{}).
			Where("id = ? AND status = ?", auction.ID, models.AuctionStatusOpen).
			Updates(map[string]interface{}{
				"status":        models.AuctionStatusCancelled,
				"end_date":      &now,
				"current_price": nil,
				"final_price":   nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflictf("auction %s is no longer open", auctionID)
		}

		var card models.OwnedCard
		if err := tx.First(&card, "id = ?", auction.OwnedCardID).Error; err != nil {
			return apperrors.NotFoundf("owned card %s not found", auction.OwnedCardID)
		}

		if card.Status != models.OwnedCardStatusOnAuction {
			return apperrors.Conflictf("card %s is not on auction (status %s)", card.CardCode, card.Status)
		}

		if err := tx.Model(&card).Update("status", models.OwnedCardStatusNotForSale).Error; err != nil {
			return err
		}

		concept := models.ConceptWithdrawnFromAuction
		if !isSeller {
			concept = models.ConceptAdminWithdrawnAuction
		}

		ledger := &models.Transaction{
			Concept:     concept,
			UserID:      requester.ID,
			Username:    requester.Username,
			CardID:      card.CardID,
			OwnedCardID: card.ID,
			CardCode:    card.CardCode,
			Price:       auction.InitialPrice,
			AuctionID:   &auction.ID,
		}
		if err := tx.Create(ledger).Error; err != nil {
			return err
		}

		var pendingBids []models.Bid
		if err := tx.Where("auction_id = ? AND status = ?", auction.ID, models.BidStatusPending).
			Order("created_at asc").Find(&pendingBids).Error; err != nil {
			return err
		}

		for i := range pendingBids {
			bid := &pendingBids[i]
			bidUpdates := map[string]interface{}{
				"status":   models.BidStatusAuctionCancelled,
				"end_date": &now,
			}
			if err := tx.Model(bid).Updates(bidUpdates).Error; err != nil {
				return err
			}

			bidLedger := &models.Transaction{
				Concept:     models.ConceptBidCancelledFromAuction,
				UserID:      bid.BidderID,
				Username:    bid.BidderUsername,
				CardID:      card.CardID,
				OwnedCardID: card.ID,
				CardCode:    card.CardCode,
				Price:       bid.Price,
				AuctionID:   &auction.ID,
				BidID:       &bid.ID,
			}
			if err := tx.Create(bidLedger).Error; err != nil {
				return err
			}

			events = append(events, Event{
				RecipientID:       bid.BidderID,
				RecipientUsername: bid.BidderUsername,
				Type:              models.NotificationBidCancelled,
				Message:           fmt.Sprintf("The auction for card %s was withdrawn; your bid of %d was cancelled.", card.CardCode, bid.Price),
				Importance:        models.ImportanceLow,
				Realtime:          true,
			})
		}

		events = append(events, Event{
			RecipientID:       auction.SellerID,
			RecipientUsername: auction.SellerUsername,
			Type:              models.NotificationAuctionCancelled,
			Message:           fmt.Sprintf("Your auction for card %s was withdrawn; the card is available again.", card.CardCode),
			Importance:        models.ImportanceLow,
			Realtime:          true,
		})

		return tx.First(&auction, "id = ?", auction.ID).Error
	})

	if err != nil {
		return nil, storeError(err)
	}

	s.emit(events)

	logrus.WithFields(logrus.Fields{
		"auction_id": auction.ID,
		"requester":  requesterUsername,
	}).Info("Auction cancelled")

	return &auction, nil
}

// SweepExpiredAuctions closes and settles every open auction past its
// estimated end. Each auction settles in its own transaction; a failed
// settlement leaves that auction untouched for the next pass and does not
// stop the sweep.
func (s *AuctionService) SweepExpiredAuctions() ([]models.Auction, error) {
	now := time.Now()

	var expired []models.Auction
	if err := s.db.Where("status = ? AND estimated_end_date <= ?", models.AuctionStatusOpen, now).
		Order("estimated_end_date asc").Find(&expired).Error; err != nil {
		return nil, storeError(err)
	}

	closed := make([]models.Auction, 0, len(expired))
	for i := range expired {
		settled, events, err := s.settlement.SettleExpired(expired[i].ID, now)
		if err != nil {
			logrus.WithError(err).WithField("auction_id", expired[i].ID).
				Warn("Settlement failed, auction left for next sweep")
			continue
		}
		if settled == nil {
			// Lost the race to a concurrent sweep.
			continue
		}

		s.emit(events)
		closed = append(closed, *settled)
	}

	if len(closed) > 0 {
		logrus.WithField("count", len(closed)).Info("Expiry sweep settled auctions")
	}

	return closed, nil
}

func (s *AuctionService) GetAuction(id uuid.UUID) (*models.Auction, error) {
	var auction models.Auction
	if err := s.db.Preload("Bids", func(db *gorm.DB) *gorm.DB {
		return db.Order("bids.created_at asc")
	}).First(&auction, "id = ?", id).Error; err != nil {
		return nil, apperrors.NotFoundf("auction %s not found", id)
	}
	return &auction, nil
}

// GetActiveAuctions returns open auctions, optionally excluding those listed
// by the given username.
func (s *AuctionService) GetActiveAuctions(excludeUsername string, params utils.PaginationParams) ([]models.Auction, int64, error) {
	query := s.db.Model(&models.Auction{}).Where("status = ?", models.AuctionStatusOpen)
	if excludeUsername != "" {
		query = query.Where("seller_username <> ?", excludeUsername)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeError(err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "estimated_end_date", "initial_price"})
	query = utils.ApplyPagination(query, params)

	var auctions []models.Auction
	if err := query.Find(&auctions).Error; err != nil {
		return nil, 0, storeError(err)
	}

	return auctions, total, nil
}

func (s *AuctionService) emit(events []Event) {
	if s.sink == nil {
		return
	}
	for _, ev := range events {
		s.sink.Enqueue(ev)
	}
}
