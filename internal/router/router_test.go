// internal/router/router_test.go
package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cardvault/cardmarket-backend/internal/config"
	"github.com/cardvault/cardmarket-backend/internal/models"
	"github.com/cardvault/cardmarket-backend/internal/realtime"
	"github.com/cardvault/cardmarket-backend/internal/utils"
)

type routerFixture struct {
	engine *gin.Engine
	db     *gorm.DB
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
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

	cfg := &config.Config{
		Environment: "test",
		JWT:         config.JWTConfig{SecretKey: "test-secret"},
		Auction: config.AuctionConfig{
			DefaultDurationHours: 48,
			MinDurationHours:     2,
			MaxDurationHours:     96,
			MaxBasePrice:         1000000,
		},
	}

	engine, _ := Initialize(db, cfg, realtime.NewHub())
	return &routerFixture{engine: engine, db: db}
}

func (f *routerFixture) createUser(t *testing.T, username string, role models.UserRole, balance int64) (*models.User, string) {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Role:     role,
		Status:   models.UserStatusActive,
		Balance:  balance,
	}
	require.NoError(t, user.SetPassword("Testing123!"))
	require.NoError(t, f.db.Create(user).Error)

	token, err := utils.GenerateJWT(user.ID, user.Username, string(user.Role), 1)
	require.NoError(t, err)
	return user, token
}

func (f *routerFixture) createCard(t *testing.T, owner *models.User) *models.OwnedCard {
	t.Helper()

	card := &models.Card{Name: "Knight of Dawn", Code: models.NewCardCode("KNG"), Series: "base", Rarity: "rare"}
	require.NoError(t, f.db.Create(card).Error)

	owned := &models.OwnedCard{
		CardID:        card.ID,
		CardCode:      models.NewCardCode(card.Code),
		OwnerID:       owner.ID,
		OwnerUsername: owner.Username,
		Status:        models.OwnedCardStatusNotForSale,
	}
	require.NoError(t, f.db.Create(owned).Error)
	return owned
}

func (f *routerFixture) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestAuctionLifecycleOverHTTP(t *testing.T) {
	f := newRouterFixture(t)

	seller, sellerToken := f.createUser(t, "seller", models.UserRoleStandard, 0)
	_, bidderToken := f.createUser(t, "alice", models.UserRoleStandard, 1000)
	card := f.createCard(t, seller)

	// Listing requires authentication.
	w := f.request(t, http.MethodPost, "/v1/auctions", "", gin.H{
		"owned_card_id": card.ID,
		"base_price":    100,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.request(t, http.MethodPost, "/v1/auctions", sellerToken, gin.H{
		"owned_card_id": card.ID,
		"base_price":    100,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data models.Auction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	auctionID := created.Data.ID

	// Sellers cannot bid on their own listing.
	w = f.request(t, http.MethodPost, fmt.Sprintf("/v1/auctions/%s/bids", auctionID), sellerToken, gin.H{"amount": 150})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.request(t, http.MethodPost, fmt.Sprintf("/v1/auctions/%s/bids", auctionID), bidderToken, gin.H{"amount": 150})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// A second pending bid from the same user is rejected.
	w = f.request(t, http.MethodPost, fmt.Sprintf("/v1/auctions/%s/bids", auctionID), bidderToken, gin.H{"amount": 200})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.request(t, http.MethodGet, fmt.Sprintf("/v1/auctions/%s/bids", auctionID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.request(t, http.MethodDelete, fmt.Sprintf("/v1/auctions/%s", auctionID), bidderToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.request(t, http.MethodDelete, fmt.Sprintf("/v1/auctions/%s", auctionID), sellerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reloaded models.Auction
	require.NoError(t, f.db.First(&reloaded, "id = ?", auctionID).Error)
	assert.Equal(t, models.AuctionStatusCancelled, reloaded.Status)
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	f := newRouterFixture(t)
	_, token := f.createUser(t, "alice", models.UserRoleStandard, 0)

	// Unknown auction id resolves to 404.
	w := f.request(t, http.MethodPost, "/v1/auctions/63b3a6f2-7d14-4f58-9e7a-0b9f5f2a6f10/bids", token, gin.H{"amount": 100})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Malformed amount resolves to 400.
	w = f.request(t, http.MethodPost, "/v1/auctions/not-a-uuid/bids", token, gin.H{"amount": 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileAndCollectionEndpoints(t *testing.T) {
	f := newRouterFixture(t)
	alice, token := f.createUser(t, "alice", models.UserRoleStandard, 500)
	f.createCard(t, alice)

	w := f.request(t, http.MethodGet, "/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var profile struct {
		Data struct {
			Username string `json:"username"`
			Balance  int64  `json:"balance"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, "alice", profile.Data.Username)
	assert.Equal(t, int64(500), profile.Data.Balance)

	w = f.request(t, http.MethodGet, "/v1/users/me/cards?status=not_for_sale", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cards struct {
		Data []models.OwnedCard `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cards))
	assert.Len(t, cards.Data, 1)
}

func TestAdminSweepEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	_, userToken := f.createUser(t, "alice", models.UserRoleStandard, 0)
	_, adminToken := f.createUser(t, "moderator", models.UserRoleAdmin, 0)

	w := f.request(t, http.MethodPost, "/v1/admin/auctions/sweep", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.request(t, http.MethodPost, "/v1/admin/auctions/sweep", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
