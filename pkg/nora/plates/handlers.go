package plates

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/forms"
	"github.com/norahq/nora/pkg/nora/meals"
	"github.com/norahq/nora/pkg/nora/models"
	"github.com/norahq/nora/pkg/nora/scoped"
	"gorm.io/gorm"
)

// Repository is the owner-scoped plate store
type Repository = scoped.Repository[models.Plate, *models.Plate]

// NewRepository creates the plate store. Meals are always loaded.
func NewRepository(db *gorm.DB) *Repository {
	return scoped.New[models.Plate](db, "Owner", "Meals")
}

// DeleteAssociations drops the join rows of a plate. Meals, menus and
// selections that referenced it are kept.
func DeleteAssociations(tx *gorm.DB, plate *models.Plate) error {
	for _, table := range []string{"plate_meals", "menu_plates", "delivery_selection_plates"} {
		if err := tx.Exec("DELETE FROM "+table+" WHERE plate_id = ?", plate.ID).Error; err != nil {
			return err
		}
	}
	return nil
}

// Handler handles plate API requests
type Handler struct {
	plates *Repository
	meals  *meals.Repository
}

// NewHandler creates a new plates handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{plates: NewRepository(db), meals: meals.NewRepository(db)}
}

// PlateRequest is the body of create and update calls.
// Meal ids that the caller does not own are ignored.
type PlateRequest struct {
	Name  string `json:"name" binding:"notblank,max=200"`
	Meals []uint `json:"meals"`
}

// PlateResponse represents a plate in API responses
type PlateResponse struct {
	ID      uint     `json:"id"`
	Name    string   `json:"name"`
	Meals   []string `json:"meals"`
	MealIDs []uint   `json:"meal_ids"`
	Owner   string   `json:"owner"`
}

func toResponse(plate *models.Plate) PlateResponse {
	resp := PlateResponse{
		ID:      plate.ID,
		Name:    plate.Name,
		Meals:   make([]string, len(plate.Meals)),
		MealIDs: make([]uint, len(plate.Meals)),
		Owner:   plate.Owner.Email,
	}
	for i, meal := range plate.Meals {
		resp.Meals[i] = meal.Name
		resp.MealIDs[i] = meal.ID
	}
	return resp
}

// MealIDs returns the ids of a plate's meals
func MealIDs(plate *models.Plate) []uint {
	ids := make([]uint, len(plate.Meals))
	for i, meal := range plate.Meals {
		ids[i] = meal.ID
	}
	return ids
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plate ID"})
		return 0, false
	}
	return uint(id), true
}

func bind(c *gin.Context, req *PlateRequest) bool {
	errs, err := forms.Collect(c.ShouldBindJSON(req), forms.EN)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	if errs.Any() {
		forms.Abort(c, errs)
		return false
	}
	return true
}

// List returns the caller's plates
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	plates, err := h.plates.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch plates"})
		return
	}

	responses := make([]PlateResponse, len(plates))
	for i := range plates {
		responses[i] = toResponse(&plates[i])
	}
	c.JSON(http.StatusOK, responses)
}

// Create creates a plate owned by the caller
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	ctx := c.Request.Context()

	var req PlateRequest
	if !bind(c, &req) {
		return
	}

	mealRows, err := h.meals.FindIDs(ctx, userID, req.Meals)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch meals"})
		return
	}

	plate := models.Plate{Name: req.Name, Meals: mealRows}
	if err := h.plates.Create(ctx, userID, &plate); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create plate"})
		return
	}

	h.respond(c, http.StatusCreated, userID, plate.ID)
}

// Get returns one of the caller's plates
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	plateID, ok := parseID(c)
	if !ok {
		return
	}

	h.respond(c, http.StatusOK, userID, plateID)
}

// Update replaces (PUT) or patches (PATCH) a plate and its meals
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	ctx := c.Request.Context()
	plateID, ok := parseID(c)
	if !ok {
		return
	}

	plate, err := h.plates.Get(ctx, userID, plateID)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plate not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch plate"})
		return
	}

	var req PlateRequest
	if c.Request.Method == http.MethodPatch {
		req.Name = plate.Name
		req.Meals = MealIDs(plate)
	}
	if !bind(c, &req) {
		return
	}

	mealRows, err := h.meals.FindIDs(ctx, userID, req.Meals)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch meals"})
		return
	}

	plate.Name = req.Name
	if err := h.plates.SaveWith(ctx, userID, plate, "Meals", mealRows); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update plate"})
		return
	}

	h.respond(c, http.StatusOK, userID, plate.ID)
}

// Delete removes a plate and its associations
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	plateID, ok := parseID(c)
	if !ok {
		return
	}

	err := h.plates.Delete(c.Request.Context(), userID, plateID, DeleteAssociations)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plate not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete plate"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) respond(c *gin.Context, status int, userID, plateID uint) {
	plate, err := h.plates.Get(c.Request.Context(), userID, plateID)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plate not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch plate"})
		return
	}
	c.JSON(status, toResponse(plate))
}

// RegisterRoutes registers plate API routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/plates", h.List)
	rg.POST("/plates", h.Create)
	rg.GET("/plates/:id", h.Get)
	rg.PUT("/plates/:id", h.Update)
	rg.PATCH("/plates/:id", h.Update)
	rg.DELETE("/plates/:id", h.Delete)
}
