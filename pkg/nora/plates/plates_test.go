package plates

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

func createTestPlate(t *testing.T, db *gorm.DB, owner models.User, name string) models.Plate {
	plate := models.Plate{Name: name, OwnerID: owner.ID}
	if err := db.Create(&plate).Error; err != nil {
		t.Fatalf("Failed to create test plate: %v", err)
	}
	return plate
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

func TestCreatePlateWithMeals(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	sopa := models.Meal{Name: "Sopa", OwnerID: user.ID}
	db.Create(&sopa)

	resp := doJSON(router, "POST", "/api/plates", PlateRequest{Name: "Entrada", Meals: []uint{sopa.ID}}, user)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var plate PlateResponse
	json.Unmarshal(resp.Body.Bytes(), &plate)
	if len(plate.Meals) != 1 || plate.Meals[0] != "Sopa" {
		t.Errorf("Expected Sopa, got %v", plate.Meals)
	}
}

func TestCreatePlateBlankName(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	resp := doJSON(router, "POST", "/api/plates", map[string]interface{}{}, user)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "This field may not be blank.") {
		t.Errorf("Expected blank message, got %s", resp.Body.String())
	}
}

func TestPlateOwnerIsolation(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	other := createTestUser(t, db, "other@example.com")
	createTestPlate(t, db, user, "Propio")
	foreign := createTestPlate(t, db, other, "Ajeno")

	resp := doJSON(router, "GET", "/api/plates", nil, user)
	var list []PlateResponse
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 1 || list[0].Name != "Propio" {
		t.Errorf("Expected only Propio, got %+v", list)
	}

	resp = doJSON(router, "PUT", fmt.Sprintf("/api/plates/%d", foreign.ID), PlateRequest{Name: "x"}, user)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestDeletePlateKeepsMenu(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	sopa := createTestPlate(t, db, user, "Sopa")
	pastel := createTestPlate(t, db, user, "Pastel")
	menu := models.Menu{Name: "Lunes", OwnerID: user.ID, Plates: []models.Plate{sopa, pastel}}
	db.Create(&menu)

	resp := doJSON(router, "DELETE", fmt.Sprintf("/api/plates/%d", sopa.ID), nil, user)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.Code)
	}

	var loaded models.Menu
	if err := db.Preload("Plates").First(&loaded, menu.ID).Error; err != nil {
		t.Fatalf("Expected menu to survive: %v", err)
	}
	if len(loaded.Plates) != 1 || loaded.Plates[0].ID != pastel.ID {
		t.Errorf("Expected only Pastel left on the menu, got %+v", loaded.Plates)
	}
}

func TestUpdatePageShowsSelectedMeals(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "test@example.com")
	sopa := models.Meal{Name: "Sopa", OwnerID: user.ID}
	db.Create(&sopa)
	plate := models.Plate{Name: "Entrada", OwnerID: user.ID, Meals: []models.Meal{sopa}}
	db.Create(&plate)
	router := setupTestPages(db, user)

	req, _ := http.NewRequest("GET", fmt.Sprintf("/plates/%d/update/", plate.ID), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	want := fmt.Sprintf(`<option value="%d" selected>Sopa</option>`, sopa.ID)
	if !strings.Contains(resp.Body.String(), want) {
		t.Errorf("Expected the meal preselected, body: %s", resp.Body.String())
	}
}

func TestUpdatePageSavesPlate(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "test@example.com")
	plate := createTestPlate(t, db, user, "Entrada")
	router := setupTestPages(db, user)

	form := url.Values{"name": {"Fondo"}}
	req, _ := http.NewRequest("POST", fmt.Sprintf("/plates/%d/update/", plate.ID), strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d", resp.Code)
	}
	var stored models.Plate
	db.First(&stored, plate.ID)
	if stored.Name != "Fondo" {
		t.Errorf("Expected Fondo, got %s", stored.Name)
	}
}
