package deliveries

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/norahq/nora/pkg/nora/forms"
	"github.com/norahq/nora/pkg/nora/log"
	"github.com/norahq/nora/pkg/nora/models"
	"github.com/norahq/nora/pkg/nora/web"
	"gorm.io/gorm"
)

const (
	ThanksURL  = "/thanks/"
	SadnessURL = "/sadness/"
)

// Selection serves the public form commensals use to book plates
type Selection struct {
	db     *gorm.DB
	logger *log.Logger
	clock  func() time.Time
}

// NewSelection creates the selection pages. clock returns the current time
// in the configured zone and decides whether booking is closed.
func NewSelection(db *gorm.DB, logger *log.Logger, clock func() time.Time) *Selection {
	if clock == nil {
		clock = time.Now
	}
	return &Selection{db: db, logger: logger, clock: clock}
}

type selectionForm struct {
	Name        string `form:"name" binding:"notblank,max=200"`
	Description string `form:"description" binding:"max=200"`
	Plates      []uint `form:"plates" binding:"required,min=1"`
}

type selectionPage struct {
	web.FormPage
	Menu string
}

// open loads the delivery of the :id token and checks its booking window.
// It redirects to the sadness page and returns false otherwise.
func (s *Selection) open(c *gin.Context) (*models.Delivery, bool) {
	token, err := uuid.Parse(c.Param("id"))
	if err != nil {
		web.Redirect(c, SadnessURL)
		return nil, false
	}

	var delivery models.Delivery
	err = s.db.WithContext(c.Request.Context()).
		Preload("Distribution").
		Preload("Menu.Plates", func(db *gorm.DB) *gorm.DB { return db.Order("plates.id") }).
		First(&delivery, "menu_delivery_id = ?", token.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		web.Redirect(c, SadnessURL)
		return nil, false
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to load delivery")
		web.Fail(c)
		return nil, false
	}

	if delivery.IsFinishedBooking(s.clock()) {
		web.Redirect(c, SadnessURL)
		return nil, false
	}
	return &delivery, true
}

func render(c *gin.Context, delivery *models.Delivery, form selectionForm, errs forms.Errors) {
	plates := delivery.Menu.Plates
	options := web.Options(plates,
		func(p *models.Plate) uint { return p.ID },
		func(p *models.Plate) string { return p.Name },
		form.Plates)

	page := web.Form("Selecciona tu menu", delivery.SelectionPath(), "", errs,
		web.NameField(form.Name),
		web.Field{Name: "plates", Label: "Platos", Type: "select", Options: options},
		web.Field{Name: "description", Label: "Sugerencia", Type: "textarea", Value: form.Description},
	)
	web.Render(c, http.StatusOK, "selection.html", page.Title, selectionPage{FormPage: page, Menu: delivery.Menu.Name})
}

// Form shows the selection form of an open delivery
func (s *Selection) Form(c *gin.Context) {
	delivery, ok := s.open(c)
	if !ok {
		return
	}
	render(c, delivery, selectionForm{}, forms.Errors{})
}

// Submit stores one commensal's selection
func (s *Selection) Submit(c *gin.Context) {
	delivery, ok := s.open(c)
	if !ok {
		return
	}

	var form selectionForm
	errs := web.BindForm(c, &form)

	offered := make(map[uint]models.Plate, len(delivery.Menu.Plates))
	allowed := make([]uint, len(delivery.Menu.Plates))
	for i, plate := range delivery.Menu.Plates {
		offered[plate.ID] = plate
		allowed[i] = plate.ID
	}
	if !errs.Has("plates") {
		web.CheckChoices(errs, "plates", form.Plates, allowed)
	}
	if errs.Any() {
		render(c, delivery, form, errs)
		return
	}

	chosen := make([]models.Plate, 0, len(form.Plates))
	seen := make(map[uint]bool, len(form.Plates))
	for _, id := range form.Plates {
		if !seen[id] {
			seen[id] = true
			chosen = append(chosen, offered[id])
		}
	}

	selection := models.DeliverySelection{
		Name:        form.Name,
		Description: form.Description,
		DeliveryID:  delivery.MenuDeliveryID,
		OwnerID:     delivery.OwnerID,
		Plates:      chosen,
	}
	if err := s.db.WithContext(c.Request.Context()).Omit("Owner", "Delivery", "Plates.*").Create(&selection).Error; err != nil {
		s.logger.WithError(err).Error("Failed to save selection")
		web.Fail(c)
		return
	}

	s.logger.WithFields(log.Fields{
		"delivery_token": delivery.MenuDeliveryID,
		"selection_id":   selection.ID,
		"type":           "selection",
	}).Info("Selection saved")
	web.Redirect(c, ThanksURL)
}

// Thanks is shown after a successful selection
func Thanks(c *gin.Context) {
	web.Render(c, http.StatusOK, "thanks.html", "Gracias", nil)
}

// Sadness is shown for unknown links and closed bookings
func Sadness(c *gin.Context) {
	web.Render(c, http.StatusOK, "sadness.html", "Lo sentimos", nil)
}

// RegisterRoutes registers the public selection pages. middleware runs
// before the form handlers only.
func (s *Selection) RegisterRoutes(r gin.IRoutes, middleware ...gin.HandlerFunc) {
	r.GET("/menu/:id/", chain(middleware, s.Form)...)
	r.POST("/menu/:id/", chain(middleware, s.Submit)...)
	r.GET(ThanksURL, Thanks)
	r.GET(SadnessURL, Sadness)
}

func chain(middleware []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	handlers := make([]gin.HandlerFunc, 0, len(middleware)+1)
	handlers = append(handlers, middleware...)
	return append(handlers, handler)
}
