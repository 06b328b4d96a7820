// internal/models/notification.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a persisted event for a user. Rows are written by the
// notification sink after state changes commit; the only mutation afterwards
// is the read acknowledgement.
type Notification struct {
	BaseModel
	RecipientID       uuid.UUID              `json:"recipient_id" gorm:"type:uuid;not null;index"`
	RecipientUsername string                 `json:"recipient_username" gorm:"size:50;not null;index"`
	Type              NotificationType       `json:"type" gorm:"type:varchar(40);not null"`
	Message           string                 `json:"message" gorm:"type:text;not null"`
	Importance        NotificationImportance `json:"importance" gorm:"type:varchar(10);default:'low'"`
	Realtime          bool                   `json:"realtime" gorm:"default:false"`
	Read              bool                   `json:"read" gorm:"default:false;index"`
	ReadAt            *time.Time             `json:"read_at"`
	Data              JSONB                  `json:"data,omitempty" gorm:"type:jsonb"`

	// Relationships
	Recipient User `json:"recipient,omitempty" gorm:"foreignKey:RecipientID"`
}
