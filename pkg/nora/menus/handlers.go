package menus

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/distributions"
	"github.com/norahq/nora/pkg/nora/forms"
	"github.com/norahq/nora/pkg/nora/models"
	"github.com/norahq/nora/pkg/nora/plates"
	"github.com/norahq/nora/pkg/nora/scoped"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Handler handles menu API requests
type Handler struct {
	service *Service
	plates  *plates.Repository
}

// NewHandler creates a new menus handler
func NewHandler(db *gorm.DB, service *Service) *Handler {
	return &Handler{service: service, plates: plates.NewRepository(db)}
}

// MenuRequest is the body of create and update calls. Date is YYYY-MM-DD.
// Plate ids that the caller does not own are ignored.
type MenuRequest struct {
	Name   string `json:"name" binding:"notblank,max=200"`
	Plates []uint `json:"plates"`
	Date   string `json:"date" binding:"required"`
}

// MenuResponse represents a menu in API responses
type MenuResponse struct {
	ID             uint     `json:"id"`
	Name           string   `json:"name"`
	Plates         []string `json:"plates"`
	PlateIDs       []uint   `json:"plate_ids"`
	Date           string   `json:"date,omitempty"`
	MenuDeliveryID string   `json:"menu_delivery_id,omitempty"`
	SelectionPath  string   `json:"selection_path,omitempty"`
	Owner          string   `json:"owner"`
}

func toResponse(menu *models.Menu) MenuResponse {
	resp := MenuResponse{
		ID:       menu.ID,
		Name:     menu.Name,
		Plates:   make([]string, len(menu.Plates)),
		PlateIDs: PlateIDs(menu),
		Owner:    menu.Owner.Email,
	}
	for i, plate := range menu.Plates {
		resp.Plates[i] = plate.Name
	}
	if d := FirstDelivery(menu); d != nil {
		resp.Date = forms.FormatDate(d.Date, forms.EN)
		resp.MenuDeliveryID = d.MenuDeliveryID
		resp.SelectionPath = d.SelectionPath()
	}
	return resp
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid menu ID"})
		return 0, false
	}
	return uint(id), true
}

func bind(c *gin.Context, req *MenuRequest) (datatypes.Date, bool) {
	errs, err := forms.Collect(c.ShouldBindJSON(req), forms.EN)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return datatypes.Date{}, false
	}

	var date datatypes.Date
	if !errs.Has("date") {
		if date, err = forms.ParseDate(req.Date, forms.EN); err != nil {
			errs.AddRule(forms.EN, "date", forms.RuleInvalidDate)
		}
	}
	if errs.Any() {
		forms.Abort(c, errs)
		return datatypes.Date{}, false
	}
	return date, true
}

func noDistribution(c *gin.Context) {
	c.JSON(http.StatusConflict, gin.H{
		"error":    "Create a distribution before creating menus",
		"redirect": distributions.CreateURL,
	})
}

// List returns the caller's menus
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	menus, err := h.service.menus.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch menus"})
		return
	}

	responses := make([]MenuResponse, len(menus))
	for i := range menus {
		responses[i] = toResponse(&menus[i])
	}
	c.JSON(http.StatusOK, responses)
}

// Create creates a menu and its delivery. Without a distribution it
// answers 409 and points at the distribution form.
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	ctx := c.Request.Context()

	ok, err := h.service.HasDistribution(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch distributions"})
		return
	}
	if !ok {
		noDistribution(c)
		return
	}

	var req MenuRequest
	date, valid := bind(c, &req)
	if !valid {
		return
	}

	plateRows, err := h.plates.FindIDs(ctx, userID, req.Plates)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch plates"})
		return
	}

	menu := models.Menu{Name: req.Name, Plates: plateRows}
	_, err = h.service.Create(ctx, userID, &menu, date)
	if errors.Is(err, ErrNoDistribution) {
		noDistribution(c)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create menu"})
		return
	}

	h.respond(c, http.StatusCreated, userID, menu.ID)
}

// Get returns one of the caller's menus
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	menuID, ok := parseID(c)
	if !ok {
		return
	}

	h.respond(c, http.StatusOK, userID, menuID)
}

// Update replaces (PUT) or patches (PATCH) a menu and moves its delivery
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	ctx := c.Request.Context()
	menuID, ok := parseID(c)
	if !ok {
		return
	}

	menu, err := h.service.menus.Get(ctx, userID, menuID)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch menu"})
		return
	}

	var req MenuRequest
	if c.Request.Method == http.MethodPatch {
		req.Name = menu.Name
		req.Plates = PlateIDs(menu)
		if d := FirstDelivery(menu); d != nil {
			req.Date = forms.FormatDate(d.Date, forms.EN)
		}
	}
	date, valid := bind(c, &req)
	if !valid {
		return
	}

	plateRows, err := h.plates.FindIDs(ctx, userID, req.Plates)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch plates"})
		return
	}

	menu.Name = req.Name
	if err := h.service.Update(ctx, userID, menu, plateRows, date); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update menu"})
		return
	}

	h.respond(c, http.StatusOK, userID, menu.ID)
}

// Delete removes a menu with its deliveries and their selections
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	menuID, ok := parseID(c)
	if !ok {
		return
	}

	err := h.service.menus.Delete(c.Request.Context(), userID, menuID, DeleteAssociations)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete menu"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) respond(c *gin.Context, status int, userID, menuID uint) {
	menu, err := h.service.menus.Get(c.Request.Context(), userID, menuID)
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch menu"})
		return
	}
	c.JSON(status, toResponse(menu))
}

// RegisterRoutes registers menu API routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/menus", h.List)
	rg.POST("/menus", h.Create)
	rg.GET("/menus/:id", h.Get)
	rg.PUT("/menus/:id", h.Update)
	rg.PATCH("/menus/:id", h.Update)
	rg.DELETE("/menus/:id", h.Delete)
}
