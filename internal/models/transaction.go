// internal/models/transaction.go
package models

import (
	"github.com/google/uuid"
)

// Transaction is one append-only ledger entry. Rows are created inside the
// same database transaction as the state change they record and are never
// updated or deleted.
type Transaction struct {
	BaseModel
	Concept     TransactionConcept `json:"concept" gorm:"type:varchar(40);not null;index"`
	UserID      uuid.UUID          `json:"user_id" gorm:"type:uuid;not null;index"`
	Username    string             `json:"username" gorm:"size:50;not null"`
	CardID      uuid.UUID          `json:"card_id" gorm:"type:uuid;not null"`
	OwnedCardID uuid.UUID          `json:"owned_card_id" gorm:"type:uuid;not null;index"`
	CardCode    string             `json:"card_code" gorm:"size:60;not null"`
	Price       int64              `json:"price" gorm:"not null"`
	AuctionID   *uuid.UUID         `json:"auction_id,omitempty" gorm:"type:uuid;index"`
	BidID       *uuid.UUID         `json:"bid_id,omitempty" gorm:"type:uuid"`

	// Relationships
	User      User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
	OwnedCard OwnedCard `json:"owned_card,omitempty" gorm:"foreignKey:OwnedCardID"`
}
