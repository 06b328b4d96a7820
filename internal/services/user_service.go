// internal/services/user_service.go
package services

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardvault/cardmarket-backend/internal/apperrors"
	"github.com/cardvault/cardmarket-backend/internal/models"
)

// UserService is the narrow user-lookup surface the engine consumes.
// Account management itself lives in the external auth service.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetUserByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, storeError(err)
	}
	return &user, nil
}

func (s *UserService) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, apperrors.NotFoundf("user %q not found", username)
	}
	return &user, nil
}

// GetBalance returns the current balance for a user.
func (s *UserService) GetBalance(username string) (int64, error) {
	user, err := s.GetUserByUsername(username)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// GetOwnedCards lists a user's collection, optionally filtered by status.
func (s *UserService) GetOwnedCards(username string, status models.OwnedCardStatus) ([]models.OwnedCard, error) {
	query := s.db.Where("owner_username = ?", username)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var cards []models.OwnedCard
	if err := query.Preload("Card").Order("created_at asc").Find(&cards).Error; err != nil {
		return nil, storeError(err)
	}
	return cards, nil
}
