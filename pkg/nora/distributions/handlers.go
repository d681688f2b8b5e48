package distributions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/deliveries"
	"github.com/norahq/nora/pkg/nora/forms"
	"github.com/norahq/nora/pkg/nora/models"
	"github.com/norahq/nora/pkg/nora/scoped"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository is the owner-scoped distribution store
type Repository = scoped.Repository[models.Distribution, *models.Distribution]

// NewRepository creates the distribution store
func NewRepository(db *gorm.DB) *Repository {
	return scoped.New[models.Distribution](db, "Owner")
}

// DeleteDeliveries removes the deliveries sent through a distribution
func DeleteDeliveries(tx *gorm.DB, dist *models.Distribution) error {
	return deliveries.DeleteForDistribution(tx, dist.ID)
}

// Window is a validated pair of send and cutoff times
type Window struct {
	Send   datatypes.Time
	Cutoff datatypes.Time
}

// ParseWindow validates the send hour and booking cutoff of a distribution.
// Messages are added to errs under the given field names.
func ParseWindow(errs forms.Errors, lang forms.Lang, sendField, send, cutoffField, cutoff string) Window {
	var w Window
	var err error
	sendOK, cutoffOK := false, false

	if !errs.Has(sendField) {
		if w.Send, err = forms.ParseTimeOfDay(send); err != nil {
			errs.AddRule(lang, sendField, forms.RuleInvalidTime)
		} else {
			sendOK = true
		}
	}
	if !errs.Has(cutoffField) {
		if w.Cutoff, err = forms.ParseTimeOfDay(cutoff); err != nil {
			errs.AddRule(lang, cutoffField, forms.RuleInvalidTime)
		} else {
			cutoffOK = true
		}
	}
	if sendOK && cutoffOK && w.Cutoff < w.Send {
		errs.AddRule(lang, cutoffField, forms.RuleTimeOrder)
	}
	return w
}

// Handler handles distribution API requests
type Handler struct {
	distributions *Repository
}

// NewHandler creates a new distributions handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{distributions: NewRepository(db)}
}

// DistributionRequest is the body of create and update calls.
// Hours are hh:mm or hh:mm:ss.
type DistributionRequest struct {
	Name                         string `json:"name" binding:"notblank,max=200"`
	LinkID                       string `json:"link_id" binding:"notblank,max=200"`
	IsActive                     *bool  `json:"is_active"`
	DistributionHourLink         string `json:"distribution_hour_link" binding:"required"`
	EndAvailableDistributionLink string `json:"end_available_distribution_link" binding:"required"`
}

// DistributionResponse represents a distribution in API responses
type DistributionResponse struct {
	ID                           uint   `json:"id"`
	Name                         string `json:"name"`
	LinkID                       string `json:"link_id"`
	IsActive                     bool   `json:"is_active"`
	DistributionHourLink         string `json:"distribution_hour_link"`
	EndAvailableDistributionLink string `json:"end_available_distribution_link"`
	Owner                        string `json:"owner"`
}

func toResponse(dist *models.Distribution) DistributionResponse {
	return DistributionResponse{
		ID:                           dist.ID,
		Name:                         dist.Name,
		LinkID:                       dist.LinkID,
		IsActive:                     dist.IsActive,
		DistributionHourLink:         dist.DistributionHourLink.String(),
		EndAvailableDistributionLink: dist.EndAvailableDistributionLink.String(),
		Owner:                        dist.Owner.Email,
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid distribution ID"})
		return 0, false
	}
	return uint(id), true
}

// bind decodes and validates req, writing the 400 itself on failure
func bind(c *gin.Context, req *DistributionRequest) (Window, bool) {
	errs, err := forms.Collect(c.ShouldBindJSON(req), forms.EN)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return Window{}, false
	}

	w := ParseWindow(errs, forms.EN,
		"distribution_hour_link", req.DistributionHourLink,
		"end_available_distribution_link", req.EndAvailableDistributionLink)
	if errs.Any() {
		forms.Abort(c, errs)
		return Window{}, false
	}
	return w, true
}

func apply(dist *models.Distribution, req *DistributionRequest, w Window) {
	dist.Name = req.Name
	dist.LinkID = req.LinkID
	dist.DistributionHourLink = w.Send
	dist.EndAvailableDistributionLink = w.Cutoff
	if req.IsActive != nil {
		dist.IsActive = *req.IsActive
	}
}

// List returns the caller's distributions
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	dists, err := h.distributions.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch distributions"})
		return
	}

	responses := make([]DistributionResponse, len(dists))
	for i := range dists {
		responses[i] = toResponse(&dists[i])
	}
	c.JSON(http.StatusOK, responses)
}

// Create creates a distribution owned by the caller
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req DistributionRequest
	w, ok := bind(c, &req)
	if !ok {
		return
	}

	var dist models.Distribution
	apply(&dist, &req, w)
	if err := h.distributions.Create(c.Request.Context(), userID, &dist); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create distribution"})
		return
	}

	h.respond(c, http.StatusCreated, userID, dist.ID)
}

// Get returns one of the caller's distributions
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	distID, ok := parseID(c)
	if !ok {
		return
	}

	h.respond(c, http.StatusOK, userID, distID)
}

// Update replaces (PUT) or patches (PATCH) a distribution
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	distID, ok := parseID(c)
	if !ok {
		return
	}

	dist, err := h.distributions.Get(c.Request.Context(), userID, distID)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Distribution not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch distribution"})
		return
	}

	var req DistributionRequest
	if c.Request.Method == http.MethodPatch {
		req = DistributionRequest{
			Name:                         dist.Name,
			LinkID:                       dist.LinkID,
			DistributionHourLink:         dist.DistributionHourLink.String(),
			EndAvailableDistributionLink: dist.EndAvailableDistributionLink.String(),
		}
	}
	w, ok := bind(c, &req)
	if !ok {
		return
	}

	apply(dist, &req, w)
	if err := h.distributions.Save(c.Request.Context(), userID, dist); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update distribution"})
		return
	}

	c.JSON(http.StatusOK, toResponse(dist))
}

// Delete removes a distribution and its deliveries
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	distID, ok := parseID(c)
	if !ok {
		return
	}

	err := h.distributions.Delete(c.Request.Context(), userID, distID, DeleteDeliveries)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Distribution not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete distribution"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) respond(c *gin.Context, status int, userID, distID uint) {
	dist, err := h.distributions.Get(c.Request.Context(), userID, distID)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Distribution not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch distribution"})
		return
	}
	c.JSON(status, toResponse(dist))
}

// RegisterRoutes registers distribution API routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/distributions", h.List)
	rg.POST("/distributions", h.Create)
	rg.GET("/distributions/:id", h.Get)
	rg.PUT("/distributions/:id", h.Update)
	rg.PATCH("/distributions/:id", h.Update)
	rg.DELETE("/distributions/:id", h.Delete)
}
