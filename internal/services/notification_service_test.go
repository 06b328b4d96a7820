// internal/services/notification_service_test.go
package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardvault/cardmarket-backend/internal/apperrors"
	"github.com/cardvault/cardmarket-backend/internal/models"
	"github.com/cardvault/cardmarket-backend/internal/utils"
)

type capturingPublisher struct {
	mu       sync.Mutex
	payloads map[string][]interface{}
}

func (p *capturingPublisher) Publish(username string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.payloads == nil {
		p.payloads = make(map[string][]interface{})
	}
	p.payloads[username] = append(p.payloads[username], payload)
}

func TestEnqueuePersistsAndPushes(t *testing.T) {
	db := newTestDB(t)
	pub := &capturingPublisher{}
	svc := NewNotificationService(db, pub)
	alice := createTestUser(t, db, "alice", 0)

	svc.Enqueue(Event{
		RecipientID:       alice.ID,
		RecipientUsername: "alice",
		Type:              models.NotificationAuctionWon,
		Message:           "You won the auction for card KNG-01.",
		Importance:        models.ImportanceHigh,
		Realtime:          true,
	})

	var stored models.Notification
	require.NoError(t, db.Where("recipient_username = ?", "alice").First(&stored).Error)
	assert.Equal(t, models.NotificationAuctionWon, stored.Type)
	assert.Equal(t, models.ImportanceHigh, stored.Importance)
	assert.False(t, stored.Read)

	assert.Len(t, pub.payloads["alice"], 1)
}

func TestEnqueueDropsUnknownRecipient(t *testing.T) {
	db := newTestDB(t)
	svc := NewNotificationService(db, nil)

	// Fire-and-forget: no error surfaces and nothing is stored.
	svc.Enqueue(Event{
		RecipientUsername: "ghost",
		Type:              models.NotificationBidRejected,
		Message:           "irrelevant",
		Importance:        models.ImportanceLow,
	})

	assert.Equal(t, int64(0), countNotifications(t, db))
}

func TestGetNotificationsUnreadFilter(t *testing.T) {
	db := newTestDB(t)
	svc := NewNotificationService(db, nil)
	alice := createTestUser(t, db, "alice", 0)

	for i := 0; i < 3; i++ {
		svc.Enqueue(Event{
			RecipientID:       alice.ID,
			RecipientUsername: "alice",
			Type:              models.NotificationBidRejected,
			Message:           "Your bid did not win.",
			Importance:        models.ImportanceLow,
		})
	}

	params := utils.PaginationParams{Page: 1, Limit: 20, Order: "desc"}

	all, total, err := svc.GetNotifications("alice", false, params)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	_, err = svc.MarkRead("alice", all[0].ID)
	require.NoError(t, err)

	_, unreadTotal, err := svc.GetNotifications("alice", true, params)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unreadTotal)
}

func TestMarkReadOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := NewNotificationService(db, nil)
	alice := createTestUser(t, db, "alice", 0)
	createTestUser(t, db, "bob", 0)

	svc.Enqueue(Event{
		RecipientID:       alice.ID,
		RecipientUsername: "alice",
		Type:              models.NotificationCardSold,
		Message:           "Your card sold.",
		Importance:        models.ImportanceHigh,
	})

	var stored models.Notification
	require.NoError(t, db.Where("recipient_username = ?", "alice").First(&stored).Error)

	_, err := svc.MarkRead("bob", stored.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	marked, err := svc.MarkRead("alice", stored.ID)
	require.NoError(t, err)
	assert.True(t, marked.Read)
	assert.NotNil(t, marked.ReadAt)
}
