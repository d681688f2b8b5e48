package tags

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/models"
	"github.com/norahq/nora/pkg/nora/web"
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
	user := models.User{Email: email, PasswordHash: hash, Name: "Test User", IsStaff: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestTag(t *testing.T, db *gorm.DB, owner models.User, name string) models.Tag {
	tag := models.Tag{Name: name, OwnerID: owner.ID}
	if err := db.Create(&tag).Error; err != nil {
		t.Fatalf("Failed to create test tag: %v", err)
	}
	return tag
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)

	api := r.Group("/api")
	api.Use(auth.AuthMiddleware(testTokens))
	handler.RegisterRoutes(api)

	return r
}

// setupTestPages serves the tag pages as if user had logged in
func setupTestPages(db *gorm.DB, user models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	web.Setup(r)
	pages := r.Group("/", func(c *gin.Context) {
		auth.SetUser(c, user.ID, user.Email, true)
	})
	NewViews(db).RegisterRoutes(pages)
	return r
}

func getAuthHeader(user models.User) string {
	token, _ := testTokens.GenerateToken(user.ID, user.Email, user.IsStaff)
	return "Bearer " + token
}

func doJSON(router *gin.Engine, method, path string, body interface{}, user models.User) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestCreateTag(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	resp := doJSON(router, "POST", "/api/tags", TagRequest{Name: "vegano"}, user)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var tag TagResponse
	json.Unmarshal(resp.Body.Bytes(), &tag)
	if tag.Name != "vegano" {
		t.Errorf("Expected name vegano, got %s", tag.Name)
	}
	if tag.Owner != "test@example.com" {
		t.Errorf("Expected owner test@example.com, got %s", tag.Owner)
	}
}

func TestCreateTagIgnoresOwnerInBody(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	other := createTestUser(t, db, "other@example.com")

	body := map[string]interface{}{"name": "vegano", "owner": other.Email, "owner_id": other.ID}
	resp := doJSON(router, "POST", "/api/tags", body, user)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.Code)
	}

	var stored models.Tag
	db.First(&stored)
	if stored.OwnerID != user.ID {
		t.Errorf("Expected owner %d, got %d", user.ID, stored.OwnerID)
	}
}

func TestCreateTagValidation(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	tests := []struct {
		name string
		body TagRequest
		want string
	}{
		{"blank", TagRequest{Name: ""}, "This field may not be blank."},
		{"spaces", TagRequest{Name: "   "}, "This field may not be blank."},
		{"too long", TagRequest{Name: strings.Repeat("a", 201)}, "Ensure this field has no more than 200 characters."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(router, "POST", "/api/tags", tt.body, user)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d", resp.Code)
			}

			var body struct {
				Fields map[string][]string `json:"fields"`
			}
			json.Unmarshal(resp.Body.Bytes(), &body)
			if len(body.Fields["name"]) != 1 || body.Fields["name"][0] != tt.want {
				t.Errorf("Expected %q on name, got %v", tt.want, body.Fields)
			}
		})
	}

	var count int64
	db.Model(&models.Tag{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no tags to be created, got %d", count)
	}
}

func TestListTagsOwnerIsolation(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user1 := createTestUser(t, db, "user1@example.com")
	user2 := createTestUser(t, db, "user2@example.com")
	createTestTag(t, db, user1, "vegano")
	createTestTag(t, db, user2, "picante")

	resp := doJSON(router, "GET", "/api/tags", nil, user1)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var tags []TagResponse
	json.Unmarshal(resp.Body.Bytes(), &tags)
	if len(tags) != 1 || tags[0].Name != "vegano" {
		t.Errorf("Expected only vegano, got %+v", tags)
	}
}

func TestForeignTagIsNotFound(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user1 := createTestUser(t, db, "user1@example.com")
	user2 := createTestUser(t, db, "user2@example.com")
	tag := createTestTag(t, db, user2, "picante")
	path := fmt.Sprintf("/api/tags/%d", tag.ID)

	for _, method := range []string{"GET", "PUT", "PATCH", "DELETE"} {
		resp := doJSON(router, method, path, TagRequest{Name: "robado"}, user1)
		if resp.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", method, resp.Code)
		}
	}

	var stored models.Tag
	db.First(&stored, tag.ID)
	if stored.Name != "picante" {
		t.Errorf("Expected foreign tag untouched, got %s", stored.Name)
	}
}

func TestUpdateTag(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	tag := createTestTag(t, db, user, "vegano")

	resp := doJSON(router, "PUT", fmt.Sprintf("/api/tags/%d", tag.ID), TagRequest{Name: "vegetariano"}, user)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(router, "PATCH", fmt.Sprintf("/api/tags/%d", tag.ID), map[string]string{}, user)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for empty patch, got %d: %s", resp.Code, resp.Body.String())
	}

	var stored models.Tag
	db.First(&stored, tag.ID)
	if stored.Name != "vegetariano" {
		t.Errorf("Expected vegetariano, got %s", stored.Name)
	}
}

func TestDeleteTagKeepsMeals(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	tag := createTestTag(t, db, user, "vegano")
	meal := models.Meal{Name: "Ensalada", OwnerID: user.ID, Tags: []models.Tag{tag}}
	db.Create(&meal)

	resp := doJSON(router, "DELETE", fmt.Sprintf("/api/tags/%d", tag.ID), nil, user)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.Code)
	}

	var loaded models.Meal
	if err := db.Preload("Tags").First(&loaded, meal.ID).Error; err != nil {
		t.Fatalf("Expected meal to survive: %v", err)
	}
	if len(loaded.Tags) != 0 {
		t.Errorf("Expected association removed, got %d tags", len(loaded.Tags))
	}
}

func TestUnauthenticatedIsForbidden(t *testing.T) {
	router := setupTestRouter(setupTestDB(t))

	req, _ := http.NewRequest("GET", "/api/tags", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", resp.Code)
	}
}

func TestCreatePageValidation(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "test@example.com")
	router := setupTestPages(db, user)

	req, _ := http.NewRequest("POST", "/tags/create/", strings.NewReader(url.Values{"name": {""}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Este campo es requerido.") {
		t.Error("Expected the Spanish required message")
	}
}

func TestCreatePageRedirectsToList(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "test@example.com")
	router := setupTestPages(db, user)

	req, _ := http.NewRequest("POST", "/tags/create/", strings.NewReader(url.Values{"name": {"picante"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound || resp.Header().Get("Location") != listURL {
		t.Fatalf("Expected 302 to %s, got %d", listURL, resp.Code)
	}

	req, _ = http.NewRequest("GET", listURL, nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if !strings.Contains(resp.Body.String(), "picante") {
		t.Error("Expected the new tag on the list page")
	}
}

func TestUpdatePageForeignTag(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "test@example.com")
	other := createTestUser(t, db, "other@example.com")
	tag := createTestTag(t, db, other, "ajeno")
	router := setupTestPages(db, user)

	req, _ := http.NewRequest("GET", fmt.Sprintf("/tags/%d/update/", tag.ID), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestDeletePage(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "test@example.com")
	tag := createTestTag(t, db, user, "vegano")
	router := setupTestPages(db, user)

	req, _ := http.NewRequest("POST", fmt.Sprintf("/tags/%d/delete/", tag.ID), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d", resp.Code)
	}
	var count int64
	db.Model(&models.Tag{}).Count(&count)
	if count != 0 {
		t.Error("Expected tag to be deleted")
	}
}
