package tags

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/forms"
	"github.com/norahq/nora/pkg/nora/models"
	"github.com/norahq/nora/pkg/nora/scoped"
	"gorm.io/gorm"
)

// Repository is the owner-scoped tag store
type Repository = scoped.Repository[models.Tag, *models.Tag]

// NewRepository creates the tag store
func NewRepository(db *gorm.DB) *Repository {
	return scoped.New[models.Tag](db, "Owner")
}

// DeleteAssociations drops the meal_tags rows of a tag. Meals are kept.
func DeleteAssociations(tx *gorm.DB, tag *models.Tag) error {
	return tx.Exec("DELETE FROM meal_tags WHERE tag_id = ?", tag.ID).Error
}

// Handler handles tag API requests
type Handler struct {
	tags *Repository
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{tags: NewRepository(db)}
}

// TagRequest is the body of create and update calls
type TagRequest struct {
	Name string `json:"name" binding:"notblank,max=200"`
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

func toResponse(tag *models.Tag) TagResponse {
	return TagResponse{ID: tag.ID, Name: tag.Name, Owner: tag.Owner.Email}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tag ID"})
		return 0, false
	}
	return uint(id), true
}

func bind(c *gin.Context, req *TagRequest) bool {
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

// List returns the caller's tags
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	tags, err := h.tags.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tags"})
		return
	}

	responses := make([]TagResponse, len(tags))
	for i := range tags {
		responses[i] = toResponse(&tags[i])
	}
	c.JSON(http.StatusOK, responses)
}

// Create creates a tag owned by the caller
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req TagRequest
	if !bind(c, &req) {
		return
	}

	tag := models.Tag{Name: req.Name}
	if err := h.tags.Create(c.Request.Context(), userID, &tag); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tag"})
		return
	}

	h.respond(c, http.StatusCreated, userID, tag.ID)
}

// Get returns one of the caller's tags
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	tagID, ok := parseID(c)
	if !ok {
		return
	}

	h.respond(c, http.StatusOK, userID, tagID)
}

// Update replaces (PUT) or patches (PATCH) a tag
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	tagID, ok := parseID(c)
	if !ok {
		return
	}

	tag, err := h.tags.Get(c.Request.Context(), userID, tagID)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tag"})
		return
	}

	var req TagRequest
	if c.Request.Method == http.MethodPatch {
		req.Name = tag.Name
	}
	if !bind(c, &req) {
		return
	}

	tag.Name = req.Name
	if err := h.tags.Save(c.Request.Context(), userID, tag); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tag"})
		return
	}

	c.JSON(http.StatusOK, toResponse(tag))
}

// Delete removes a tag and its meal associations
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	tagID, ok := parseID(c)
	if !ok {
		return
	}

	err := h.tags.Delete(c.Request.Context(), userID, tagID, DeleteAssociations)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete tag"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) respond(c *gin.Context, status int, userID, tagID uint) {
	tag, err := h.tags.Get(c.Request.Context(), userID, tagID)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tag"})
		return
	}
	c.JSON(status, toResponse(tag))
}

// RegisterRoutes registers tag API routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
	rg.POST("/tags", h.Create)
	rg.GET("/tags/:id", h.Get)
	rg.PUT("/tags/:id", h.Update)
	rg.PATCH("/tags/:id", h.Update)
	rg.DELETE("/tags/:id", h.Delete)
}
