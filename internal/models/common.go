// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return nil
}

// Enums
type UserRole string

const (
	UserRoleStandard UserRole = "standard"
	UserRoleAdmin    UserRole = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

type AuctionStatus string

const (
	AuctionStatusOpen      AuctionStatus = "open"
	AuctionStatusClosed    AuctionStatus = "closed"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

type BidStatus string

const (
	BidStatusPending          BidStatus = "pending"
	BidStatusWinner           BidStatus = "winner"
	BidStatusRejected         BidStatus = "rejected"
	BidStatusWithdrawn        BidStatus = "withdrawn"
	BidStatusAuctionCancelled BidStatus = "auction_cancelled"
)

type OwnedCardStatus string

const (
	OwnedCardStatusNotForSale OwnedCardStatus = "not_for_sale"
	OwnedCardStatusOnAuction  OwnedCardStatus = "on_auction"
)

// TransactionConcept tags one immutable ledger entry with the economic or
// state event it records.
type TransactionConcept string

const (
	ConceptForSaleOnAuction        TransactionConcept = "for_sale_on_auction"
	ConceptNewBid                  TransactionConcept = "new_bid"
	ConceptSoldOnAuction           TransactionConcept = "sold_on_auction"
	ConceptPurchaseByBid           TransactionConcept = "purchase_by_bid"
	ConceptWithdrawnFromAuction    TransactionConcept = "withdrawn_from_auction"
	ConceptAdminWithdrawnAuction   TransactionConcept = "admin_withdrawn_from_auction"
	ConceptBidWithdrawn            TransactionConcept = "bid_withdrawn"
	ConceptBidCancelledFromAuction TransactionConcept = "bid_cancelled_from_auction"
)

type NotificationImportance string

const (
	ImportanceLow    NotificationImportance = "low"
	ImportanceMedium NotificationImportance = "medium"
	ImportanceHigh   NotificationImportance = "high"
)

type NotificationType string

const (
	NotificationAuctionCancelled NotificationType = "auction_cancelled"
	NotificationBidCancelled     NotificationType = "bid_cancelled"
	NotificationBidRejected      NotificationType = "bid_rejected"
	NotificationAuctionWon       NotificationType = "auction_won"
	NotificationCardSold         NotificationType = "card_sold"
	NotificationCardNotSold      NotificationType = "card_not_sold"
)
