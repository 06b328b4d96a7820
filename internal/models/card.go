// internal/models/card.go
package models

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Card is a catalog entry; its CRUD lives outside this service, the engine
// only references it from ownership records.
type Card struct {
	BaseModel
	Name   string `json:"name" gorm:"size:255;not null"`
	Code   string `json:"code" gorm:"uniqueIndex;size:40;not null"`
	Series string `json:"series" gorm:"size:100;index"`
	Rarity string `json:"rarity" gorm:"size:30"`
}

// OwnedCard is one physical unit of a catalog card held by a user. Ownership
// changes only through the settlement transfer.
type OwnedCard struct {
	BaseModel
	CardID        uuid.UUID       `json:"card_id" gorm:"type:uuid;not null;index"`
	CardCode      string          `json:"card_code" gorm:"uniqueIndex;size:60;not null"`
	OwnerID       uuid.UUID       `json:"owner_id" gorm:"type:uuid;not null;index"`
	OwnerUsername string          `json:"owner_username" gorm:"size:50;not null"`
	Status        OwnedCardStatus `json:"status" gorm:"type:varchar(20);default:'not_for_sale';index"`

	// Relationships
	Card         Card          `json:"card,omitempty" gorm:"foreignKey:CardID"`
	Owner        User          `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Transactions []Transaction `json:"transactions,omitempty" gorm:"foreignKey:OwnedCardID"`
}

// NewCardCode mints the legible code printed on an owned card, e.g.
// "KNG-01J8ZW9FYM". The catalog prefix keeps codes human-sortable per card.
func NewCardCode(catalogCode string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	return fmt.Sprintf("%s-%s", catalogCode, id.String()[:12])
}
