// internal/models/auction.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Auction is a time-bounded listing of one owned card. Status moves
// open -> closed|cancelled and is terminal after that.
type Auction struct {
	BaseModel
	OwnedCardID    uuid.UUID     `json:"owned_card_id" gorm:"type:uuid;not null;index"`
	CardCode       string        `json:"card_code" gorm:"size:60;not null"`
	SellerID       uuid.UUID     `json:"seller_id" gorm:"type:uuid;not null;index"`
	SellerUsername string        `json:"seller_username" gorm:"size:50;not null"`
	InitialPrice   int64         `json:"initial_price" gorm:"not null"`
	CurrentPrice   *int64        `json:"current_price"`
	FinalPrice     *int64        `json:"final_price"`
	PublishedAt    time.Time     `json:"published_at" gorm:"not null"`
	DurationHours  int           `json:"duration_hours" gorm:"not null"`
	EstimatedEnd   time.Time     `json:"estimated_end_date" gorm:"column:estimated_end_date;not null;index"`
	EndDate        *time.Time    `json:"end_date"`
	Status         AuctionStatus `json:"status" gorm:"type:varchar(20);default:'open';index"`
	WinnerID       *uuid.UUID    `json:"winner_id" gorm:"type:uuid"`
	WinnerUsername *string       `json:"winner_username" gorm:"size:50"`

	// Relationships
	OwnedCard OwnedCard `json:"owned_card,omitempty" gorm:"foreignKey:OwnedCardID"`
	Seller    User      `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Bids      []Bid     `json:"bids,omitempty" gorm:"foreignKey:AuctionID"`
}

func (a *Auction) IsOpen() bool {
	return a.Status == AuctionStatusOpen
}

// Bid is one offer against an auction. Price is immutable after creation and
// status is terminal once it leaves pending.
type Bid struct {
	BaseModel
	AuctionID      uuid.UUID  `json:"auction_id" gorm:"type:uuid;not null;index"`
	BidderID       uuid.UUID  `json:"bidder_id" gorm:"type:uuid;not null;index"`
	BidderUsername string     `json:"bidder_username" gorm:"size:50;not null"`
	OwnedCardID    uuid.UUID  `json:"owned_card_id" gorm:"type:uuid;not null"`
	CardCode       string     `json:"card_code" gorm:"size:60;not null"`
	Price          int64      `json:"price" gorm:"not null"`
	EstimatedEnd   time.Time  `json:"estimated_end_date" gorm:"column:estimated_end_date;not null"`
	EndDate        *time.Time `json:"end_date"`
	Status         BidStatus  `json:"status" gorm:"type:varchar(25);default:'pending';index"`

	// Relationships
	Auction Auction `json:"auction,omitempty" gorm:"foreignKey:AuctionID"`
	Bidder  User    `json:"bidder,omitempty" gorm:"foreignKey:BidderID"`
}

func (b *Bid) IsPending() bool {
	return b.Status == BidStatusPending
}
