// internal/services/notification_service.go
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

// Event is one notification to deliver. Each emission is its own immutable
// value; emitters never reuse an Event across recipients.
type Event struct {
	RecipientID       uuid.UUID
	RecipientUsername string
	Type              models.NotificationType
	Message           string
	Importance        models.NotificationImportance
	Realtime          bool
	Data              models.JSONB
}

// NotificationSink accepts fire-and-forget events. Implementations must not
// return delivery failures to the caller; settlement never rolls back because
// a notification could not be stored or pushed.
type NotificationSink interface {
	Enqueue(ev Event)
}

// RealtimePublisher pushes a payload to any live session of a user.
// Delivery is best-effort.
type RealtimePublisher interface {
	Publish(username string, payload interface{})
}

type NotificationService struct {
	db       *gorm.DB
	realtime RealtimePublisher
}

func NewNotificationService(db *gorm.DB, realtime RealtimePublisher) *NotificationService {
	return &NotificationService{
		db:       db,
		realtime: realtime,
	}
}

// Enqueue persists the event and, for realtime events, pushes it to live
// sessions. Failures are logged and swallowed.
func (s *NotificationService) Enqueue(ev Event) {
	recipientID := ev.RecipientID
	if recipientID == uuid.Nil {
		var user models.User
		if err := s.db.Where("username = ?", ev.RecipientUsername).First(&user).Error; err != nil {
			logrus.WithError(err).WithField("recipient", ev.RecipientUsername).
				Warn("Dropping notification for unknown recipient")
			return
		}
		recipientID = user.ID
	}

	notification := &models.Notification{
		RecipientID:       recipientID,
		RecipientUsername: ev.RecipientUsername,
		Type:              ev.Type,
		Message:           ev.Message,
		Importance:        ev.Importance,
		Realtime:          ev.Realtime,
		Data:              ev.Data,
	}

	if err := s.db.Create(notification).Error; err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"recipient": ev.RecipientUsername,
			"type":      ev.Type,
		}).Error("Failed to store notification")
		return
	}

	if ev.Realtime && s.realtime != nil {
		s.realtime.Publish(ev.RecipientUsername, notification)
	}
}

func (s *NotificationService) GetNotifications(username string, unreadOnly bool, params utils.PaginationParams) ([]models.Notification, int64, error) {
	query := s.db.Model(&models.Notification{}).Where("recipient_username = ?", username)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeError(err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "importance"})
	query = utils.ApplyPagination(query, params)

	var notifications []models.Notification
	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, storeError(err)
	}

	return notifications, total, nil
}

// MarkRead acknowledges one notification for its recipient.
func (s *NotificationService) MarkRead(username string, id uuid.UUID) (*models.Notification, error) {
	var notification models.Notification
	if err := s.db.First(&notification, "id = ?", id).Error; err != nil {
		return nil, storeError(err)
	}

	if notification.RecipientUsername != username {
		return nil, apperrors.Conflictf("notification %s does not belong to %s", id, username)
	}

	if !notification.Read {
		now := time.Now()
		updates := map[string]interface{}{"read": true, "read_at": &now}
		if err := s.db.Model(&notification).Updates(updates).Error; err != nil {
			return nil, storeError(err)
		}
	}

	return &notification, nil
}
