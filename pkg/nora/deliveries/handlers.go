package deliveries

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/forms"
	"github.com/norahq/nora/pkg/nora/models"
	"github.com/norahq/nora/pkg/nora/scoped"
	"github.com/norahq/nora/pkg/nora/web"
	"gorm.io/gorm"
)

// Handler serves the read-only delivery API and the commensals page
type Handler struct {
	deliveries *scoped.Repository[models.Delivery, *models.Delivery]
	selections *scoped.Repository[models.DeliverySelection, *models.DeliverySelection]
	clock      func() time.Time
}

// NewHandler creates the delivery handler
func NewHandler(db *gorm.DB, clock func() time.Time) *Handler {
	if clock == nil {
		clock = time.Now
	}
	return &Handler{
		deliveries: scoped.New[models.Delivery](db, "Menu", "Distribution").OrderBy("date DESC, created_at DESC"),
		selections: scoped.New[models.DeliverySelection](db, "Plates", "Delivery.Menu").OrderBy("id DESC"),
		clock:      clock,
	}
}

// DeliveryResponse represents a delivery in API responses
type DeliveryResponse struct {
	MenuDeliveryID    string  `json:"menu_delivery_id"`
	Date              string  `json:"date"`
	Menu              string  `json:"menu"`
	MenuID            uint    `json:"menu_id"`
	Distribution      string  `json:"distribution"`
	DistributionID    uint    `json:"distribution_id"`
	WasSending        bool    `json:"was_sending"`
	HourSent          *string `json:"hour_sent"`
	IsFinishedBooking bool    `json:"is_finished_booking"`
	SelectionPath     string  `json:"selection_path"`
}

// SelectionResponse represents a commensal's selection in API responses
type SelectionResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Plates      []string  `json:"plates"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *Handler) toResponse(d *models.Delivery) DeliveryResponse {
	resp := DeliveryResponse{
		MenuDeliveryID:    d.MenuDeliveryID,
		Date:              forms.FormatDate(d.Date, forms.EN),
		Menu:              d.Menu.Name,
		MenuID:            d.MenuID,
		Distribution:      d.Distribution.Name,
		DistributionID:    d.DistributionID,
		WasSending:        d.WasSending,
		IsFinishedBooking: d.IsFinishedBooking(h.clock()),
		SelectionPath:     d.SelectionPath(),
	}
	if d.HourSent != nil {
		hour := d.HourSent.String()
		resp.HourSent = &hour
	}
	return resp
}

func plateNames(plates []models.Plate) []string {
	names := make([]string, len(plates))
	for i, plate := range plates {
		names[i] = plate.Name
	}
	return names
}

// List returns the caller's deliveries
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	rows, err := h.deliveries.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch deliveries"})
		return
	}

	responses := make([]DeliveryResponse, len(rows))
	for i := range rows {
		responses[i] = h.toResponse(&rows[i])
	}
	c.JSON(http.StatusOK, responses)
}

// Selections returns the selections made on one of the caller's deliveries
func (h *Handler) Selections(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	ctx := c.Request.Context()

	delivery, err := h.deliveries.GetBy(ctx, userID, "menu_delivery_id", c.Param("id"))
	if errors.Is(err, scoped.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Delivery not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch delivery"})
		return
	}

	var rows []models.DeliverySelection
	err = h.selections.DB().WithContext(ctx).
		Preload("Plates").
		Where("owner_id = ? AND delivery_id = ?", userID, delivery.MenuDeliveryID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch selections"})
		return
	}

	responses := make([]SelectionResponse, len(rows))
	for i, row := range rows {
		responses[i] = SelectionResponse{
			ID:          row.ID,
			Name:        row.Name,
			Description: row.Description,
			Plates:      plateNames(row.Plates),
			CreatedAt:   row.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, responses)
}

// commensal is one line of the commensals page
type commensal struct {
	Date        string
	Menu        string
	Name        string
	Plates      string
	Description string
}

// Commensals lists every selection made on the caller's deliveries
func (h *Handler) Commensals(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	rows, err := h.selections.List(c.Request.Context(), userID)
	if err != nil {
		web.Fail(c)
		return
	}

	lines := make([]commensal, len(rows))
	for i, row := range rows {
		lines[i] = commensal{
			Date:        forms.FormatDate(row.Delivery.Date, forms.ES),
			Menu:        row.Delivery.Menu.Name,
			Name:        row.Name,
			Plates:      strings.Join(plateNames(row.Plates), ", "),
			Description: row.Description,
		}
	}
	web.Render(c, http.StatusOK, "commensals.html", "Comensales", lines)
}

// RegisterRoutes registers the delivery API routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/deliveries", h.List)
	rg.GET("/deliveries/:id/selections", h.Selections)
}

// RegisterPages registers the commensals page on a login-protected group
func (h *Handler) RegisterPages(rg gin.IRoutes) {
	rg.GET("/commensals/list/", h.Commensals)
}
