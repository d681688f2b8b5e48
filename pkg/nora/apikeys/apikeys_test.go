package apikeys

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testTokens = auth.NewTokenManager("test-secret-0123456789", 1)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	models.AutoMigrate(db)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	hash, _ := auth.HashPassword("password123")
	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Test User",
		IsStaff:      true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)

	api := r.Group("/api")
	api.Use(CombinedAuthMiddleware(db, testTokens))
	handler.RegisterRoutes(api)

	return r
}

func getAuthHeader(user models.User) string {
	token, _ := testTokens.GenerateToken(user.ID, user.Email, user.IsStaff)
	return "Bearer " + token
}

func TestCreateAPIKey(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	jsonBody, _ := json.Marshal(CreateAPIKeyRequest{Description: "cron export"})

	req, _ := http.NewRequest("POST", "/api/api-keys", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response CreateAPIKeyResponse
	json.Unmarshal(resp.Body.Bytes(), &response)

	if len(response.Key) != KeyLength*2 {
		t.Errorf("Expected key length %d, got %d", KeyLength*2, len(response.Key))
	}
	if response.KeyPrefix != response.Key[:KeyPrefixLength] {
		t.Error("Key prefix should match the start of the key")
	}
	if response.Description != "cron export" {
		t.Errorf("Expected description 'cron export', got '%s'", response.Description)
	}

	var stored models.APIKey
	db.First(&stored, response.ID)
	if stored.OwnerID != user.ID {
		t.Errorf("Expected key owned by %d, got %d", user.ID, stored.OwnerID)
	}
	if stored.KeyHash == response.Key {
		t.Error("Key must be stored hashed")
	}
}

func TestCreateAPIKeyWithoutBody(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	req, _ := http.NewRequest("POST", "/api/api-keys", nil)
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestListAPIKeysOnlyShowsOwnKeys(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user1 := createTestUser(t, db, "user1@example.com")
	user2 := createTestUser(t, db, "user2@example.com")

	db.Create(&models.APIKey{OwnerID: user1.ID, KeyHash: "hash1", KeyPrefix: "key1abcd"})
	db.Create(&models.APIKey{OwnerID: user1.ID, KeyHash: "hash2", KeyPrefix: "key2abcd"})
	db.Create(&models.APIKey{OwnerID: user2.ID, KeyHash: "hash3", KeyPrefix: "key3efgh"})

	req, _ := http.NewRequest("GET", "/api/api-keys", nil)
	req.Header.Set("Authorization", getAuthHeader(user1))
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var response []APIKeyResponse
	json.Unmarshal(resp.Body.Bytes(), &response)

	if len(response) != 2 {
		t.Fatalf("Expected 2 API keys, got %d", len(response))
	}
	for _, key := range response {
		if key.KeyPrefix == "key3efgh" {
			t.Error("Should only see own API keys")
		}
	}
}

func TestDeleteAPIKey(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	apiKey := models.APIKey{OwnerID: user.ID, KeyHash: "hash1", KeyPrefix: "key1abcd"}
	db.Create(&apiKey)

	req, _ := http.NewRequest("DELETE", fmt.Sprintf("/api/api-keys/%d", apiKey.ID), nil)
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var count int64
	db.Model(&models.APIKey{}).Where("id = ?", apiKey.ID).Count(&count)
	if count != 0 {
		t.Error("API key should be deleted")
	}
}

func TestDeleteAPIKeyNotOwned(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user1 := createTestUser(t, db, "user1@example.com")
	user2 := createTestUser(t, db, "user2@example.com")

	apiKey := models.APIKey{OwnerID: user2.ID, KeyHash: "hash1", KeyPrefix: "key1abcd"}
	db.Create(&apiKey)

	req, _ := http.NewRequest("DELETE", fmt.Sprintf("/api/api-keys/%d", apiKey.ID), nil)
	req.Header.Set("Authorization", getAuthHeader(user1))
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestValidateAPIKey(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "test@example.com")

	key := "abcdef1234567890abcdef1234567890abcdef1234567890abcdef1234567890"
	apiKey := models.APIKey{
		OwnerID:   user.ID,
		KeyHash:   hashAPIKey(key),
		KeyPrefix: key[:KeyPrefixLength],
	}
	db.Create(&apiKey)

	result, err := ValidateAPIKey(db, key)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.ID != apiKey.ID {
		t.Error("Expected to find the API key")
	}

	if _, err := ValidateAPIKey(db, "wrongkey"); err == nil {
		t.Error("Expected error for invalid key")
	}
}

func TestCombinedAuthMiddleware(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "test@example.com")

	key := "abcdef1234567890abcdef1234567890abcdef1234567890abcdef1234567890"
	apiKey := models.APIKey{
		OwnerID:   user.ID,
		KeyHash:   hashAPIKey(key),
		KeyPrefix: key[:KeyPrefixLength],
	}
	db.Create(&apiKey)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CombinedAuthMiddleware(db, testTokens))
	r.GET("/test", func(c *gin.Context) {
		userID, _ := auth.GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})

	for _, token := range []string{key, getAuthHeader(user)[len("Bearer "):]} {
		req, _ := http.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()

		r.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
		}
		var response map[string]interface{}
		json.Unmarshal(resp.Body.Bytes(), &response)
		if uint(response["user_id"].(float64)) != user.ID {
			t.Error("User ID should be set in context")
		}
	}

	var stored models.APIKey
	db.First(&stored, apiKey.ID)
	if stored.LastUsedAt == nil {
		t.Error("Expected last_used_at to be recorded")
	}
}

func TestCombinedAuthMiddlewareRejects(t *testing.T) {
	db := setupTestDB(t)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CombinedAuthMiddleware(db, testTokens))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"unknown key", "Bearer deadbeef"},
		{"bad jwt", "Bearer a.b.c"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, req)

			if resp.Code != http.StatusForbidden {
				t.Errorf("Expected status 403, got %d", resp.Code)
			}
		})
	}
}
