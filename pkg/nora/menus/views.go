package menus

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/distributions"
	"github.com/norahq/nora/pkg/nora/forms"
	"github.com/norahq/nora/pkg/nora/models"
	"github.com/norahq/nora/pkg/nora/plates"
	"github.com/norahq/nora/pkg/nora/scoped"
	"github.com/norahq/nora/pkg/nora/web"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	listURL   = "/menus/list/"
	createURL = "/menus/create/"
)

// Views serves the menu pages
type Views struct {
	service *Service
	plates  *plates.Repository
}

// NewViews creates the menu pages
func NewViews(db *gorm.DB, service *Service) *Views {
	return &Views{service: service, plates: plates.NewRepository(db)}
}

type menuForm struct {
	Name   string `form:"name" binding:"notblank,max=200"`
	Plates []uint `form:"plates" binding:"required,min=1"`
	Date   string `form:"date" binding:"required"`
}

func (v *Views) page(c *gin.Context, title, action string, form menuForm, errs forms.Errors) {
	userID, _ := auth.GetUserID(c)
	owned, err := v.plates.List(c.Request.Context(), userID)
	if err != nil {
		web.Fail(c)
		return
	}

	options := web.Options(owned,
		func(p *models.Plate) uint { return p.ID },
		func(p *models.Plate) string { return p.Name },
		form.Plates)

	web.RenderForm(c, web.Form(title, action, listURL, errs,
		web.NameField(form.Name),
		web.Field{Name: "plates", Label: "Platos", Type: "select", Options: options},
		web.Field{Name: "date", Label: "Fecha", Type: "text", Value: form.Date, Placeholder: "dd/mm/aaaa"},
	))
}

// bindMenu reads the form, resolves the chosen plates among the owner's
// and parses the date
func (v *Views) bindMenu(c *gin.Context) (menuForm, []models.Plate, datatypes.Date, forms.Errors, error) {
	userID, _ := auth.GetUserID(c)

	var form menuForm
	errs := web.BindForm(c, &form)

	var date datatypes.Date
	if !errs.Has("date") {
		var err error
		if date, err = forms.ParseDate(form.Date, forms.ES); err != nil {
			errs.AddRule(forms.ES, "date", forms.RuleInvalidDate)
		}
	}

	plateRows, err := v.plates.FindIDs(c.Request.Context(), userID, form.Plates)
	if err != nil {
		return form, nil, date, errs, err
	}
	found := make([]uint, len(plateRows))
	for i, plate := range plateRows {
		found[i] = plate.ID
	}
	if !errs.Has("plates") {
		web.CheckChoices(errs, "plates", form.Plates, found)
	}
	return form, plateRows, date, errs, nil
}

// gate redirects owners without a distribution to the distribution form
func (v *Views) gate(c *gin.Context) bool {
	userID, _ := auth.GetUserID(c)
	ok, err := v.service.HasDistribution(c.Request.Context(), userID)
	if err != nil {
		web.Fail(c)
		return false
	}
	if !ok {
		web.Redirect(c, distributions.CreateURL)
		return false
	}
	return true
}

// List shows the caller's menus
func (v *Views) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	menus, err := v.service.menus.List(c.Request.Context(), userID)
	if err != nil {
		web.Fail(c)
		return
	}

	rows := make([]web.Row, len(menus))
	for i := range menus {
		menu := &menus[i]
		names := make([]string, len(menu.Plates))
		for j, plate := range menu.Plates {
			names[j] = plate.Name
		}
		row := web.Row{
			Cells:     []string{menu.Name, "", strings.Join(names, ", ")},
			UpdateURL: fmt.Sprintf("/menus/%d/update/", menu.ID),
			DeleteURL: fmt.Sprintf("/menus/%d/delete/", menu.ID),
		}
		if d := FirstDelivery(menu); d != nil {
			row.Cells[1] = forms.FormatDate(d.Date, forms.ES)
			row.Link = d.SelectionPath()
		}
		rows[i] = row
	}

	web.RenderList(c, web.ListPage{
		Title:     "Menus",
		CreateURL: createURL,
		Columns:   []string{"Nombre", "Fecha", "Platos"},
		Rows:      rows,
	})
}

// CreatePage shows an empty menu form
func (v *Views) CreatePage(c *gin.Context) {
	if !v.gate(c) {
		return
	}
	v.page(c, "Agregar Menu", createURL, menuForm{}, forms.Errors{})
}

// Create saves a new menu and its delivery
func (v *Views) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	if !v.gate(c) {
		return
	}

	form, plateRows, date, errs, err := v.bindMenu(c)
	if err != nil {
		web.Fail(c)
		return
	}
	if errs.Any() {
		v.page(c, "Agregar Menu", createURL, form, errs)
		return
	}

	menu := models.Menu{Name: form.Name, Plates: plateRows}
	_, err = v.service.Create(c.Request.Context(), userID, &menu, date)
	if errors.Is(err, ErrNoDistribution) {
		web.Redirect(c, distributions.CreateURL)
		return
	}
	if err != nil {
		web.Fail(c)
		return
	}
	web.Redirect(c, listURL)
}

func (v *Views) load(c *gin.Context) (*models.Menu, bool) {
	userID, _ := auth.GetUserID(c)
	id, ok := web.ParseID(c)
	if !ok {
		web.NotFound(c)
		return nil, false
	}

	menu, err := v.service.menus.Get(c.Request.Context(), userID, id)
	if errors.Is(err, scoped.ErrNotFound) {
		web.NotFound(c)
		return nil, false
	}
	if err != nil {
		web.Fail(c)
		return nil, false
	}
	return menu, true
}

// UpdatePage shows the form of an existing menu
func (v *Views) UpdatePage(c *gin.Context) {
	menu, ok := v.load(c)
	if !ok {
		return
	}

	form := menuForm{Name: menu.Name, Plates: PlateIDs(menu)}
	if d := FirstDelivery(menu); d != nil {
		form.Date = forms.FormatDate(d.Date, forms.ES)
	}
	v.page(c, "Editar Menu", fmt.Sprintf("/menus/%d/update/", menu.ID), form, forms.Errors{})
}

// Update saves changes to a menu and moves its delivery
func (v *Views) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	menu, ok := v.load(c)
	if !ok {
		return
	}

	form, plateRows, date, errs, err := v.bindMenu(c)
	if err != nil {
		web.Fail(c)
		return
	}
	if errs.Any() {
		v.page(c, "Editar Menu", fmt.Sprintf("/menus/%d/update/", menu.ID), form, errs)
		return
	}

	menu.Name = form.Name
	if err := v.service.Update(c.Request.Context(), userID, menu, plateRows, date); err != nil {
		web.Fail(c)
		return
	}
	web.Redirect(c, listURL)
}

// Delete removes a menu with its deliveries
func (v *Views) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, ok := web.ParseID(c)
	if !ok {
		web.NotFound(c)
		return
	}

	err := v.service.menus.Delete(c.Request.Context(), userID, id, DeleteAssociations)
	if errors.Is(err, scoped.ErrNotFound) {
		web.NotFound(c)
		return
	}
	if err != nil {
		web.Fail(c)
		return
	}
	web.Redirect(c, listURL)
}

// RegisterRoutes registers the menu pages on a login-protected group
func (v *Views) RegisterRoutes(rg gin.IRoutes) {
	rg.GET(listURL, v.List)
	rg.GET(createURL, v.CreatePage)
	rg.POST(createURL, v.Create)
	rg.GET("/menus/:id/update/", v.UpdatePage)
	rg.POST("/menus/:id/update/", v.Update)
	rg.POST("/menus/:id/delete/", v.Delete)
}
