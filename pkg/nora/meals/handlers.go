package meals

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/forms"
	"github.com/norahq/nora/pkg/nora/models"
	"github.com/norahq/nora/pkg/nora/scoped"
	"github.com/norahq/nora/pkg/nora/tags"
	"gorm.io/gorm"
)

// Repository is the owner-scoped meal store
type Repository = scoped.Repository[models.Meal, *models.Meal]

// NewRepository creates the meal store. Tags are always loaded.
func NewRepository(db *gorm.DB) *Repository {
	return scoped.New[models.Meal](db, "Owner", "Tags")
}

// DeleteAssociations drops the join rows of a meal. Tags and plates are kept.
func DeleteAssociations(tx *gorm.DB, meal *models.Meal) error {
	if err := tx.Exec("DELETE FROM meal_tags WHERE meal_id = ?", meal.ID).Error; err != nil {
		return err
	}
	return tx.Exec("DELETE FROM plate_meals WHERE meal_id = ?", meal.ID).Error
}

// Handler handles meal API requests
type Handler struct {
	meals *Repository
	tags  *tags.Repository
}

// NewHandler creates a new meals handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{meals: NewRepository(db), tags: tags.NewRepository(db)}
}

// MealRequest is the body of create and update calls.
// Tag ids that the caller does not own are ignored.
type MealRequest struct {
	Name string `json:"name" binding:"notblank,max=200"`
	Tags []uint `json:"tags"`
}

// MealResponse represents a meal in API responses
type MealResponse struct {
	ID     uint     `json:"id"`
	Name   string   `json:"name"`
	Tags   []string `json:"tags"`
	TagIDs []uint   `json:"tag_ids"`
	Owner  string   `json:"owner"`
}

func toResponse(meal *models.Meal) MealResponse {
	resp := MealResponse{
		ID:     meal.ID,
		Name:   meal.Name,
		Tags:   make([]string, len(meal.Tags)),
		TagIDs: make([]uint, len(meal.Tags)),
		Owner:  meal.Owner.Email,
	}
	for i, tag := range meal.Tags {
		resp.Tags[i] = tag.Name
		resp.TagIDs[i] = tag.ID
	}
	return resp
}

// TagIDs returns the ids of a meal's tags
func TagIDs(meal *models.Meal) []uint {
	ids := make([]uint, len(meal.Tags))
	for i, tag := range meal.Tags {
		ids[i] = tag.ID
	}
	return ids
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid meal ID"})
		return 0, false
	}
	return uint(id), true
}

func bind(c *gin.Context, req *MealRequest) bool {
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

// List returns the caller's meals
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	meals, err := h.meals.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch meals"})
		return
	}

	responses := make([]MealResponse, len(meals))
	for i := range meals {
		responses[i] = toResponse(&meals[i])
	}
	c.JSON(http.StatusOK, responses)
}

// Create creates a meal owned by the caller
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	ctx := c.Request.Context()

	var req MealRequest
	if !bind(c, &req) {
		return
	}

	tagRows, err := h.tags.FindIDs(ctx, userID, req.Tags)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tags"})
		return
	}

	meal := models.Meal{Name: req.Name, Tags: tagRows}
	if err := h.meals.Create(ctx, userID, &meal); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create meal"})
		return
	}

	h.respond(c, http.StatusCreated, userID, meal.ID)
}

// Get returns one of the caller's meals
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	mealID, ok := parseID(c)
	if !ok {
		return
	}

	h.respond(c, http.StatusOK, userID, mealID)
}

// Update replaces (PUT) or patches (PATCH) a meal and its tags
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	ctx := c.Request.Context()
	mealID, ok := parseID(c)
	if !ok {
		return
	}

	meal, err := h.meals.Get(ctx, userID, mealID)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meal not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch meal"})
		return
	}

	var req MealRequest
	if c.Request.Method == http.MethodPatch {
		req.Name = meal.Name
		req.Tags = TagIDs(meal)
	}
	if !bind(c, &req) {
		return
	}

	tagRows, err := h.tags.FindIDs(ctx, userID, req.Tags)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tags"})
		return
	}

	meal.Name = req.Name
	if err := h.meals.SaveWith(ctx, userID, meal, "Tags", tagRows); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update meal"})
		return
	}

	h.respond(c, http.StatusOK, userID, meal.ID)
}

// Delete removes a meal and its associations
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	mealID, ok := parseID(c)
	if !ok {
		return
	}

	err := h.meals.Delete(c.Request.Context(), userID, mealID, DeleteAssociations)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meal not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete meal"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) respond(c *gin.Context, status int, userID, mealID uint) {
	meal, err := h.meals.Get(c.Request.Context(), userID, mealID)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meal not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch meal"})
		return
	}
	c.JSON(status, toResponse(meal))
}

// RegisterRoutes registers meal API routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/meals", h.List)
	rg.POST("/meals", h.Create)
	rg.GET("/meals/:id", h.Get)
	rg.PUT("/meals/:id", h.Update)
	rg.PATCH("/meals/:id", h.Update)
	rg.DELETE("/meals/:id", h.Delete)
}
