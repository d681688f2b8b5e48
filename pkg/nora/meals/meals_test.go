package meals

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
	api := r.Group("/api")
	api.Use(auth.AuthMiddleware(testTokens))
	NewHandler(db).RegisterRoutes(api)
	return r
}

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

func TestCreateMealWithTags(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	other := createTestUser(t, db, "other@example.com")
	vegano := createTestTag(t, db, user, "vegano")
	foreign := createTestTag(t, db, other, "ajeno")

	resp := doJSON(router, "POST", "/api/meals", MealRequest{
		Name: "Ensalada",
		Tags: []uint{vegano.ID, foreign.ID, 999},
	}, user)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var meal MealResponse
	json.Unmarshal(resp.Body.Bytes(), &meal)
	if len(meal.Tags) != 1 || meal.Tags[0] != "vegano" {
		t.Errorf("Expected only the owned tag, got %v", meal.Tags)
	}
	if meal.Owner != "test@example.com" {
		t.Errorf("Expected owner test@example.com, got %s", meal.Owner)
	}
}

func TestCreateMealNameTooLong(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	resp := doJSON(router, "POST", "/api/meals", MealRequest{Name: strings.Repeat("x", 201)}, user)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Ensure this field has no more than 200 characters.") {
		t.Errorf("Expected max length message, got %s", resp.Body.String())
	}
}

func TestUpdateMealReplacesTags(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	vegano := createTestTag(t, db, user, "vegano")
	picante := createTestTag(t, db, user, "picante")
	meal := models.Meal{Name: "Curry", OwnerID: user.ID, Tags: []models.Tag{vegano}}
	db.Create(&meal)

	resp := doJSON(router, "PUT", fmt.Sprintf("/api/meals/%d", meal.ID), MealRequest{
		Name: "Curry rojo",
		Tags: []uint{picante.ID},
	}, user)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var got MealResponse
	json.Unmarshal(resp.Body.Bytes(), &got)
	if got.Name != "Curry rojo" || len(got.TagIDs) != 1 || got.TagIDs[0] != picante.ID {
		t.Errorf("Unexpected meal after update: %+v", got)
	}

	// PATCH without tags keeps them
	resp = doJSON(router, "PATCH", fmt.Sprintf("/api/meals/%d", meal.ID), map[string]string{"name": "Curry verde"}, user)
	json.Unmarshal(resp.Body.Bytes(), &got)
	if got.Name != "Curry verde" || len(got.TagIDs) != 1 {
		t.Errorf("Expected patch to keep tags, got %+v", got)
	}
}

func TestMealOwnerIsolation(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	other := createTestUser(t, db, "other@example.com")
	meal := models.Meal{Name: "Ajeno", OwnerID: other.ID}
	db.Create(&meal)

	resp := doJSON(router, "GET", "/api/meals", nil, user)
	var list []MealResponse
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 0 {
		t.Errorf("Expected no meals, got %d", len(list))
	}

	resp = doJSON(router, "GET", fmt.Sprintf("/api/meals/%d", meal.ID), nil, user)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
	resp = doJSON(router, "DELETE", fmt.Sprintf("/api/meals/%d", meal.ID), nil, user)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestDeleteMealKeepsPlate(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	meal := models.Meal{Name: "Sopa", OwnerID: user.ID}
	db.Create(&meal)
	plate := models.Plate{Name: "Entrada", OwnerID: user.ID, Meals: []models.Meal{meal}}
	db.Create(&plate)

	resp := doJSON(router, "DELETE", fmt.Sprintf("/api/meals/%d", meal.ID), nil, user)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.Code)
	}

	var loaded models.Plate
	if err := db.Preload("Meals").First(&loaded, plate.ID).Error; err != nil {
		t.Fatalf("Expected plate to survive: %v", err)
	}
	if len(loaded.Meals) != 0 {
		t.Errorf("Expected association removed, got %d meals", len(loaded.Meals))
	}
}

func TestCreatePageRejectsForeignTag(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "test@example.com")
	other := createTestUser(t, db, "other@example.com")
	foreign := createTestTag(t, db, other, "ajeno")
	router := setupTestPages(db, user)

	form := url.Values{"name": {"Ensalada"}, "tags": {fmt.Sprint(foreign.ID)}}
	req, _ := http.NewRequest("POST", "/meals/create/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "no es una de las opciones disponibles") {
		t.Error("Expected the invalid choice message")
	}
	var count int64
	db.Model(&models.Meal{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no meals, got %d", count)
	}
}

func TestCreatePageSavesMeal(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "test@example.com")
	vegano := createTestTag(t, db, user, "vegano")
	router := setupTestPages(db, user)

	form := url.Values{"name": {"Ensalada"}, "tags": {fmt.Sprint(vegano.ID)}}
	req, _ := http.NewRequest("POST", "/meals/create/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound || resp.Header().Get("Location") != listURL {
		t.Fatalf("Expected 302 to %s, got %d", listURL, resp.Code)
	}

	var meal models.Meal
	db.Preload("Tags").First(&meal)
	if meal.OwnerID != user.ID || len(meal.Tags) != 1 {
		t.Errorf("Unexpected meal %+v", meal)
	}
}
