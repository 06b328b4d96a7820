// internal/database/connection.go
package database

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cardvault/cardmarket-backend/internal/config"
	"github.com/cardvault/cardmarket-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.User{},
		&models.Card{},
		&models.OwnedCard{},
		&models.Auction{},
		&models.Bid{},
		&models.Transaction{},
		&models.Notification{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)",

		// Owned card indexes
		"CREATE INDEX IF NOT EXISTS idx_owned_cards_owner_status ON owned_cards(owner_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_owned_cards_code ON owned_cards(card_code)",

		// Auction indexes: the expiry sweep scans open auctions by end date
		"CREATE INDEX IF NOT EXISTS idx_auctions_status_estimated_end ON auctions(status, estimated_end_date)",
		"CREATE INDEX IF NOT EXISTS idx_auctions_seller ON auctions(seller_id, status)",

		// Bid indexes: one-pending-per-(auction,bidder) lookup and active-bid queries
		"CREATE INDEX IF NOT EXISTS idx_bids_auction_status ON bids(auction_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_bids_bidder_status ON bids(bidder_id, status)",

		// Ledger indexes
		"CREATE INDEX IF NOT EXISTS idx_transactions_owned_card ON transactions(owned_card_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_auction ON transactions(auction_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, created_at DESC)",

		// Notification indexes
		"CREATE INDEX IF NOT EXISTS idx_notifications_recipient_read ON notifications(recipient_username, read, created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	var adminCount int64
	db.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.User{
			Username: "admin",
			Email:    "admin@cardvault.io",
			Role:     models.UserRoleAdmin,
			Status:   models.UserStatusActive,
			Balance:  0,
			ProfileData: models.JSONB{
				"display_name": "System Administrator",
			},
		}

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Println("Default admin user created successfully")
	}

	log.Println("Initial data seeding completed")
	return nil
}

// IsSerializationFailure reports whether err is a PostgreSQL write-conflict
// or deadlock abort, the condition the sweep treats as retryable.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
