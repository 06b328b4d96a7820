// internal/services/settlement_service.go
package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cardvault/cardmarket-backend/internal/apperrors"
	"github.com/cardvault/cardmarket-backend/internal/models"
)

// SettlementService closes expired auctions, picks a solvent winner and
// executes the atomic card-for-currency transfer. Everything for one auction
// happens inside a single transaction; any failure rolls the whole attempt
// back and the sweep retries on its next pass.
type SettlementService struct {
	db *gorm.DB
}

func NewSettlementService(db *gorm.DB) *SettlementService {
	return &SettlementService{db: db}
}

// SettleExpired flips one auction open -> closed and settles it. The flip is
// a conditional update on status; zero affected rows means another sweep got
// there first, reported as (nil, nil, nil) so the caller treats it as a
// no-op. Returned events must be emitted by the caller after the commit.
func (s *SettlementService) SettleExpired(auctionID uuid.UUID, now time.Time) (*models.Auction, []Event, error) {
	var auction models.Auction
	var events []Event
	alreadySettled := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Auction{}).
			Where("id = ? AND status = ?", auctionID, models.AuctionStatusOpen).
			Updates(map[string]interface{}{
				"status":   models.AuctionStatusClosed,
				"end_date": &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			alreadySettled = true
			return nil
		}

		if err := tx.First(&auction, "id = ?", auctionID).Error; err != nil {
			return err
		}

		var err error
		events, err = s.settle(tx, &auction, now)
		if err != nil {
			return err
		}

		// Reload so the caller sees the settled state, not partially
		// synced in-memory fields.
		return tx.First(&auction, "id = ?", auctionID).Error
	})

	if err != nil {
		return nil, nil, storeError(err)
	}
	if alreadySettled {
		return nil, nil, nil
	}

	return &auction, events, nil
}

// settle runs the winner-selection algorithm for a just-closed auction
// inside the caller's transaction.
func (s *SettlementService) settle(tx *gorm.DB, auction *models.Auction, now time.Time) ([]Event, error) {
	var totalBids int64
	if err := tx.Model(&models.Bid{}).Where("auction_id = ?", auction.ID).Count(&totalBids).Error; err != nil {
		return nil, err
	}

	// Never bid on: closed silently, card goes back on the shelf.
	if totalBids == 0 {
		return nil, s.releaseCard(tx, auction)
	}

	var pending []models.Bid
	if err := tx.Where("auction_id = ? AND status = ?", auction.ID, models.BidStatusPending).
		Find(&pending).Error; err != nil {
		return nil, err
	}

	ranked := rankEligibleBids(pending, auction.InitialPrice)

	winner, err := s.firstSolventBid(tx, ranked)
	if err != nil {
		return nil, err
	}

	if winner == nil {
		if err := s.releaseCard(tx, auction); err != nil {
			return nil, err
		}
		events := []Event{{
			RecipientID:       auction.SellerID,
			RecipientUsername: auction.SellerUsername,
			Type:              models.NotificationCardNotSold,
			Message:           fmt.Sprintf("Your auction for card %s ended without a qualifying bid; the card was returned to you.", auction.CardCode),
			Importance:        models.ImportanceHigh,
			Realtime:          true,
		}}
		logrus.WithField("auction_id", auction.ID).Info("Auction settled with no winner")
		return events, nil
	}

	var events []Event

	// Every losing pending bid is rejected before the transfer so the
	// whole outcome commits or rolls back as one. The pending condition is
	// re-run at write time; a bid withdrawn underneath us is simply skipped.
	for i := range pending {
		bid := &pending[i]
		if bid.ID == winner.ID {
			continue
		}
		res := tx.Model(&models.Bid{}).
			Where("id = ? AND status = ?", bid.ID, models.BidStatusPending).
			Updates(map[string]interface{}{
				"status":   models.BidStatusRejected,
				"end_date": &now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		events = append(events, Event{
			RecipientID:       bid.BidderID,
			RecipientUsername: bid.BidderUsername,
			Type:              models.NotificationBidRejected,
			Message:           fmt.Sprintf("Your bid of %d on card %s did not win.", bid.Price, bid.CardCode),
			Importance:        models.ImportanceLow,
			Realtime:          true,
		})
	}

	res := tx.Model(&models.Bid{}).
		Where("id = ? AND status = ?", winner.ID, models.BidStatusPending).
		Updates(map[string]interface{}{
			"status":   models.BidStatusWinner,
			"end_date": &now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// The winning bid was withdrawn mid-settlement. Abort; the
		// rollback reopens the auction and the next sweep re-ranks.
		return nil, apperrors.Transientf("winning bid %s changed during settlement", winner.ID)
	}

	auctionUpdates := map[string]interface{}{
		"winner_id":       winner.BidderID,
		"winner_username": winner.BidderUsername,
		"current_price":   winner.Price,
		"final_price":     winner.Price,
	}
	if err := tx.Model(auction).Updates(auctionUpdates).Error; err != nil {
		return nil, err
	}

	if err := s.transfer(tx, auction, winner); err != nil {
		return nil, err
	}

	events = append(events,
		Event{
			RecipientID:       winner.BidderID,
			RecipientUsername: winner.BidderUsername,
			Type:              models.NotificationAuctionWon,
			Message:           fmt.Sprintf("You won the auction for card %s at %d.", auction.CardCode, winner.Price),
			Importance:        models.ImportanceHigh,
			Realtime:          true,
		},
		Event{
			RecipientID:       auction.SellerID,
			RecipientUsername: auction.SellerUsername,
			Type:              models.NotificationCardSold,
			Message:           fmt.Sprintf("Your card %s sold for %d to %s.", auction.CardCode, winner.Price, winner.BidderUsername),
			Importance:        models.ImportanceHigh,
			Realtime:          true,
		},
	)

	logrus.WithFields(logrus.Fields{
		"auction_id": auction.ID,
		"winner":     winner.BidderUsername,
		"price":      winner.Price,
	}).Info("Auction settled")

	return events, nil
}

// rankEligibleBids filters pending bids below the floor price and orders the
// rest by price descending; equal prices break on earliest placement, then
// id, so the ranking is deterministic.
func rankEligibleBids(pending []models.Bid, floor int64) []models.Bid {
	eligible := make([]models.Bid, 0, len(pending))
	for _, bid := range pending {
		if bid.Price >= floor {
			eligible = append(eligible, bid)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Price != eligible[j].Price {
			return eligible[i].Price > eligible[j].Price
		}
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
		}
		return eligible[i].ID.String() < eligible[j].ID.String()
	})

	return eligible
}

// firstSolventBid walks the ranked list and returns the first bid whose
// bidder can pay right now. Balances may have moved since the bids were
// placed, which is why solvency is checked here and not at bid time.
func (s *SettlementService) firstSolventBid(tx *gorm.DB, ranked []models.Bid) (*models.Bid, error) {
	for i := range ranked {
		var bidder models.User
		if err := tx.First(&bidder, "id = ?", ranked[i].BidderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		if bidder.Balance >= ranked[i].Price {
			return &ranked[i], nil
		}
	}
	return nil, nil
}

// releaseCard returns an unsold card to its owner's collection.
func (s *SettlementService) releaseCard(tx *gorm.DB, auction *models.Auction) error {
	return tx.Model(&models.OwnedCard{}).
		Where("id = ?", auction.OwnedCardID).
		Update("status", models.OwnedCardStatusNotForSale).Error
}

// transfer atomically moves the card to the buyer, the currency to the
// seller, and appends the sold/purchase ledger pair. It runs inside the
// settlement transaction; a failure here aborts the whole settlement.
func (s *SettlementService) transfer(tx *gorm.DB, auction *models.Auction, winningBid *models.Bid) error {
	var seller models.User
	if err := tx.First(&seller, "id = ?", auction.SellerID).Error; err != nil {
		return apperrors.Conflictf("seller account %s could not be resolved", auction.SellerID)
	}

	var buyer models.User
	if err := tx.First(&buyer, "id = ?", winningBid.BidderID).Error; err != nil {
		return apperrors.Conflictf("buyer account %s could not be resolved", winningBid.BidderID)
	}

	price := winningBid.Price
	if buyer.Balance < price {
		return apperrors.Conflictf("buyer %q balance %d below price %d", buyer.Username, buyer.Balance, price)
	}

	var card models.OwnedCard
	if err := tx.First(&card, "id = ?", auction.OwnedCardID).Error; err != nil {
		return apperrors.Conflictf("owned card %s could not be resolved", auction.OwnedCardID)
	}

	if err := tx.Model(&buyer).
		Update("balance", gorm.Expr("balance - ?", price)).Error; err != nil {
		return err
	}
	if err := tx.Model(&seller).
		Update("balance", gorm.Expr("balance + ?", price)).Error; err != nil {
		return err
	}

	cardUpdates := map[string]interface{}{
		"owner_id":       buyer.ID,
		"owner_username": buyer.Username,
		"status":         models.OwnedCardStatusNotForSale,
	}
	if err := tx.Model(&card).Updates(cardUpdates).Error; err != nil {
		return err
	}

	sold := &models.Transaction{
		Concept:     models.ConceptSoldOnAuction,
		UserID:      seller.ID,
		Username:    seller.Username,
		CardID:      card.CardID,
		OwnedCardID: card.ID,
		CardCode:    card.CardCode,
		Price:       price,
		AuctionID:   &auction.ID,
		BidID:       &winningBid.ID,
	}
	if err := tx.Create(sold).Error; err != nil {
		return err
	}

	purchase := &models.Transaction{
		Concept:     models.ConceptPurchaseByBid,
		UserID:      buyer.ID,
		Username:    buyer.Username,
		CardID:      card.CardID,
		OwnedCardID: card.ID,
		CardCode:    card.CardCode,
		Price:       price,
		AuctionID:   &auction.ID,
		BidID:       &winningBid.ID,
	}
	return tx.Create(purchase).Error
}
