// internal/services/settlement_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cardvault/cardmarket-backend/internal/models"
)

// settlementFixture wires the services a settlement scenario needs and lists
// a card so bids can be placed against it.
type settlementFixture struct {
	db         *gorm.DB
	auctions   *AuctionService
	bids       *BidService
	settlement *SettlementService
	seller     *models.User
	card       *models.OwnedCard
	auction    *models.Auction
}

func newSettlementFixture(t *testing.T, basePrice int64) *settlementFixture {
	t.Helper()

	db := newTestDB(t)
	f := &settlementFixture{
		db:         db,
		auctions:   newTestAuctionService(db),
		bids:       NewBidService(db),
		settlement: NewSettlementService(db),
	}

	f.seller = createTestUser(t, db, "seller", 0)
	f.card = createTestCard(t, db, f.seller)

	auction, err := f.auctions.ListForAuction("seller", &ListForAuctionRequest{
		OwnedCardID: f.card.ID,
		BasePrice:   basePrice,
	})
	require.NoError(t, err)
	f.auction = auction

	return f
}

func (f *settlementFixture) placeBid(t *testing.T, username string, balance, amount int64) *models.Bid {
	t.Helper()

	createTestUser(t, f.db, username, balance)
	bid, err := f.bids.PlaceBid(username, f.auction.ID, &PlaceBidRequest{Amount: amount})
	require.NoError(t, err)
	return bid
}

// expire pushes the auction's estimated end into the past so the settlement
// treats it as due.
func (f *settlementFixture) expire(t *testing.T) {
	t.Helper()

	past := time.Now().Add(-time.Hour)
	require.NoError(t, f.db.Model(&models.Auction{}).
		Where("id = ?", f.auction.ID).
		Update("estimated_end_date", past).Error)
}

func (f *settlementFixture) reloadBid(t *testing.T, id interface{}) models.Bid {
	t.Helper()

	var bid models.Bid
	require.NoError(t, f.db.First(&bid, "id = ?", id).Error)
	return bid
}

func (f *settlementFixture) reloadUser(t *testing.T, username string) models.User {
	t.Helper()

	var user models.User
	require.NoError(t, f.db.Where("username = ?", username).First(&user).Error)
	return user
}

func (f *settlementFixture) reloadCard(t *testing.T) models.OwnedCard {
	t.Helper()

	var card models.OwnedCard
	require.NoError(t, f.db.First(&card, "id = ?", f.card.ID).Error)
	return card
}

func TestSettleExpiredPicksHighestSolventBid(t *testing.T) {
	f := newSettlementFixture(t, 90)

	f.placeBid(t, "alice", 1000, 100)
	bidB := f.placeBid(t, "bob", 1000, 150)
	f.placeBid(t, "carol", 1000, 80)
	f.expire(t)

	settled, events, err := f.settlement.SettleExpired(f.auction.ID, time.Now())
	require.NoError(t, err)
	require.NotNil(t, settled)

	assert.Equal(t, models.AuctionStatusClosed, settled.Status)
	require.NotNil(t, settled.WinnerUsername)
	assert.Equal(t, "bob", *settled.WinnerUsername)
	require.NotNil(t, settled.FinalPrice)
	assert.Equal(t, int64(150), *settled.FinalPrice)

	assert.Equal(t, models.BidStatusWinner, f.reloadBid(t, bidB.ID).Status)

	// carol's 80 is below the floor but still a losing pending bid.
	var rejected int64
	require.NoError(t, f.db.Model(&models.Bid{}).
		Where("auction_id = ? AND status = ?", f.auction.ID, models.BidStatusRejected).
		Count(&rejected).Error)
	assert.Equal(t, int64(2), rejected)

	card := f.reloadCard(t)
	assert.Equal(t, "bob", card.OwnerUsername)
	assert.Equal(t, models.OwnedCardStatusNotForSale, card.Status)

	assert.Equal(t, int64(850), f.reloadUser(t, "bob").Balance)
	assert.Equal(t, int64(150), f.reloadUser(t, "seller").Balance)

	// winner + seller + two rejections
	assert.Len(t, events, 4)
}

func TestSettleExpiredSkipsInsolventHighBid(t *testing.T) {
	f := newSettlementFixture(t, 90)

	bidA := f.placeBid(t, "alice", 1000, 100)
	f.placeBid(t, "bob", 10, 150) // cannot pay at settlement
	f.expire(t)

	settled, _, err := f.settlement.SettleExpired(f.auction.ID, time.Now())
	require.NoError(t, err)
	require.NotNil(t, settled)

	require.NotNil(t, settled.WinnerUsername)
	assert.Equal(t, "alice", *settled.WinnerUsername)
	require.NotNil(t, settled.FinalPrice)
	assert.Equal(t, int64(100), *settled.FinalPrice)

	assert.Equal(t, models.BidStatusWinner, f.reloadBid(t, bidA.ID).Status)
	assert.Equal(t, int64(900), f.reloadUser(t, "alice").Balance)
	assert.Equal(t, int64(10), f.reloadUser(t, "bob").Balance)
}

func TestSettleExpiredNoSolventBidder(t *testing.T) {
	f := newSettlementFixture(t, 90)

	f.placeBid(t, "alice", 50, 100)
	f.placeBid(t, "bob", 50, 150)
	f.expire(t)

	settled, events, err := f.settlement.SettleExpired(f.auction.ID, time.Now())
	require.NoError(t, err)
	require.NotNil(t, settled)

	assert.Equal(t, models.AuctionStatusClosed, settled.Status)
	assert.Nil(t, settled.WinnerUsername)
	assert.Nil(t, settled.FinalPrice)

	card := f.reloadCard(t)
	assert.Equal(t, "seller", card.OwnerUsername)
	assert.Equal(t, models.OwnedCardStatusNotForSale, card.Status)

	require.Len(t, events, 1)
	assert.Equal(t, models.NotificationCardNotSold, events[0].Type)
	assert.Equal(t, models.ImportanceHigh, events[0].Importance)
	assert.Equal(t, "seller", events[0].RecipientUsername)
}

func TestSettleExpiredAllBidsBelowFloor(t *testing.T) {
	f := newSettlementFixture(t, 200)

	f.placeBid(t, "alice", 1000, 100)
	f.placeBid(t, "bob", 1000, 150)
	f.expire(t)

	settled, events, err := f.settlement.SettleExpired(f.auction.ID, time.Now())
	require.NoError(t, err)
	require.NotNil(t, settled)

	assert.Nil(t, settled.WinnerUsername)
	assert.Equal(t, models.OwnedCardStatusNotForSale, f.reloadCard(t).Status)

	require.Len(t, events, 1)
	assert.Equal(t, models.NotificationCardNotSold, events[0].Type)
}

func TestSettleExpiredWithoutBids(t *testing.T) {
	f := newSettlementFixture(t, 90)
	f.expire(t)

	settled, events, err := f.settlement.SettleExpired(f.auction.ID, time.Now())
	require.NoError(t, err)
	require.NotNil(t, settled)

	assert.Equal(t, models.AuctionStatusClosed, settled.Status)
	assert.Nil(t, settled.WinnerUsername)
	assert.Nil(t, settled.CurrentPrice)
	assert.Nil(t, settled.FinalPrice)
	assert.Empty(t, events)

	// Card quietly returns to the seller's collection.
	card := f.reloadCard(t)
	assert.Equal(t, "seller", card.OwnerUsername)
	assert.Equal(t, models.OwnedCardStatusNotForSale, card.Status)
	assert.Equal(t, int64(0), countNotifications(t, f.db))
}

func TestSettleExpiredSecondCallIsNoOp(t *testing.T) {
	f := newSettlementFixture(t, 90)
	f.placeBid(t, "alice", 1000, 100)
	f.expire(t)

	first, _, err := f.settlement.SettleExpired(f.auction.ID, time.Now())
	require.NoError(t, err)
	require.NotNil(t, first)

	txBefore := countTransactions(t, f.db)

	second, events, err := f.settlement.SettleExpired(f.auction.ID, time.Now())
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Nil(t, events)
	assert.Equal(t, txBefore, countTransactions(t, f.db))
}

func TestSettlementLedgerPairAndConservation(t *testing.T) {
	f := newSettlementFixture(t, 90)
	f.placeBid(t, "alice", 300, 120)
	f.expire(t)

	sellerBefore := f.reloadUser(t, "seller").Balance
	buyerBefore := f.reloadUser(t, "alice").Balance

	_, _, err := f.settlement.SettleExpired(f.auction.ID, time.Now())
	require.NoError(t, err)

	var sold, purchase int64
	require.NoError(t, f.db.Model(&models.Transaction{}).
		Where("auction_id = ? AND concept = ?", f.auction.ID, models.ConceptSoldOnAuction).
		Count(&sold).Error)
	require.NoError(t, f.db.Model(&models.Transaction{}).
		Where("auction_id = ? AND concept = ?", f.auction.ID, models.ConceptPurchaseByBid).
		Count(&purchase).Error)
	assert.Equal(t, int64(1), sold)
	assert.Equal(t, int64(1), purchase)

	sellerAfter := f.reloadUser(t, "seller").Balance
	buyerAfter := f.reloadUser(t, "alice").Balance
	assert.Equal(t, sellerBefore+120, sellerAfter)
	assert.Equal(t, buyerBefore-120, buyerAfter)
	assert.Equal(t, sellerBefore+buyerBefore, sellerAfter+buyerAfter)
}

func TestTransferInsolventBuyerRollsBack(t *testing.T) {
	f := newSettlementFixture(t, 90)
	bid := f.placeBid(t, "alice", 50, 100)

	txBefore := countTransactions(t, f.db)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		return f.settlement.transfer(tx, f.auction, bid)
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "below price")

	// Nothing moved: balances, ownership and ledger are untouched.
	assert.Equal(t, int64(50), f.reloadUser(t, "alice").Balance)
	assert.Equal(t, int64(0), f.reloadUser(t, "seller").Balance)
	assert.Equal(t, "seller", f.reloadCard(t).OwnerUsername)
	assert.Equal(t, txBefore, countTransactions(t, f.db))
}

func TestRankEligibleBidsOrderingAndFloor(t *testing.T) {
	base := time.Now()
	pending := []models.Bid{
		{Price: 100, BidderUsername: "alice"},
		{Price: 150, BidderUsername: "bob"},
		{Price: 80, BidderUsername: "carol"},
		{Price: 150, BidderUsername: "dave"},
	}
	pending[0].CreatedAt = base
	pending[1].CreatedAt = base.Add(2 * time.Minute)
	pending[2].CreatedAt = base.Add(3 * time.Minute)
	pending[3].CreatedAt = base.Add(1 * time.Minute)

	ranked := rankEligibleBids(pending, 90)

	require.Len(t, ranked, 3)
	// Ties on price resolve to the earlier bid.
	assert.Equal(t, "dave", ranked[0].BidderUsername)
	assert.Equal(t, "bob", ranked[1].BidderUsername)
	assert.Equal(t, "alice", ranked[2].BidderUsername)
}
