// internal/services/helpers_test.go
package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cardvault/cardmarket-backend/internal/config"
	"github.com/cardvault/cardmarket-backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory store.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Card{},
		&models.OwnedCard{},
		&models.Auction{},
		&models.Bid{},
		&models.Transaction{},
		&models.Notification{},
	))

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Auction: config.AuctionConfig{
			DefaultDurationHours: 48,
			MinDurationHours:     2,
			MaxDurationHours:     96,
			MaxBasePrice:         1000000,
		},
	}
}

func createTestUser(t *testing.T, db *gorm.DB, username string, balance int64) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Role:     models.UserRoleStandard,
		Status:   models.UserStatusActive,
		Balance:  balance,
	}
	require.NoError(t, user.SetPassword("Testing123!"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestAdmin(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	admin := createTestUser(t, db, username, 0)
	require.NoError(t, db.Model(admin).Update("role", models.UserRoleAdmin).Error)
	admin.Role = models.UserRoleAdmin
	return admin
}

func createTestCard(t *testing.T, db *gorm.DB, owner *models.User) *models.OwnedCard {
	t.Helper()

	card := &models.Card{
		Name:   "Knight of Dawn",
		Code:   models.NewCardCode("KNG"),
		Series: "base",
		Rarity: "rare",
	}
	require.NoError(t, db.Create(card).Error)

	owned := &models.OwnedCard{
		CardID:        card.ID,
		CardCode:      models.NewCardCode(card.Code),
		OwnerID:       owner.ID,
		OwnerUsername: owner.Username,
		Status:        models.OwnedCardStatusNotForSale,
	}
	require.NoError(t, db.Create(owned).Error)
	return owned
}

func newTestAuctionService(db *gorm.DB) *AuctionService {
	settlement := NewSettlementService(db)
	sink := NewNotificationService(db, nil)
	return NewAuctionService(db, settlement, sink, testConfig())
}

func countTransactions(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	return count
}

func countNotifications(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	return count
}
