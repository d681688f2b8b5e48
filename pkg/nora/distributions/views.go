package distributions

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/forms"
	"github.com/norahq/nora/pkg/nora/models"
	"github.com/norahq/nora/pkg/nora/scoped"
	"github.com/norahq/nora/pkg/nora/web"
	"gorm.io/gorm"
)

const (
	listURL = "/distributions/list/"
	// CreateURL is where menu creation sends owners without a distribution
	CreateURL = "/distributions/distribution/create/"
)

// Views serves the distribution pages
type Views struct {
	distributions *Repository
}

// NewViews creates the distribution pages
func NewViews(db *gorm.DB) *Views {
	return &Views{distributions: NewRepository(db)}
}

type distributionForm struct {
	Name                         string `form:"name" binding:"notblank,max=200"`
	LinkID                       string `form:"link_id" binding:"notblank,max=200"`
	DistributionHourLink         string `form:"distribution_hour_link" binding:"required"`
	EndAvailableDistributionLink string `form:"end_available_distribution_link" binding:"required"`
}

func formOf(dist *models.Distribution) distributionForm {
	return distributionForm{
		Name:                         dist.Name,
		LinkID:                       dist.LinkID,
		DistributionHourLink:         dist.DistributionHourLink.String(),
		EndAvailableDistributionLink: dist.EndAvailableDistributionLink.String(),
	}
}

func page(c *gin.Context, title, action string, form distributionForm, errs forms.Errors) {
	web.RenderForm(c, web.Form(title, action, listURL, errs,
		web.NameField(form.Name),
		web.Field{Name: "link_id", Label: "Canal", Type: "text", Value: form.LinkID, Placeholder: "T000/B000/XXXX"},
		web.Field{Name: "distribution_hour_link", Label: "Hora de envío", Type: "time", Value: form.DistributionHourLink},
		web.Field{Name: "end_available_distribution_link", Label: "Hora de cierre", Type: "time", Value: form.EndAvailableDistributionLink},
	))
}

func bindDistribution(c *gin.Context) (distributionForm, Window, forms.Errors) {
	var form distributionForm
	errs := web.BindForm(c, &form)
	w := ParseWindow(errs, forms.ES,
		"distribution_hour_link", form.DistributionHourLink,
		"end_available_distribution_link", form.EndAvailableDistributionLink)
	return form, w, errs
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}

// List shows the caller's distributions
func (v *Views) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	dists, err := v.distributions.List(c.Request.Context(), userID)
	if err != nil {
		web.Fail(c)
		return
	}

	rows := make([]web.Row, len(dists))
	for i, dist := range dists {
		rows[i] = web.Row{
			Cells: []string{
				dist.Name,
				dist.LinkID,
				dist.DistributionHourLink.String(),
				dist.EndAvailableDistributionLink.String(),
				yesNo(dist.IsActive),
			},
			UpdateURL: fmt.Sprintf("/distributions/distribution/%d/update/", dist.ID),
			DeleteURL: fmt.Sprintf("/distributions/distribution/%d/delete/", dist.ID),
		}
	}

	web.RenderList(c, web.ListPage{
		Title:     "Distribuciones",
		CreateURL: CreateURL,
		Columns:   []string{"Nombre", "Canal", "Hora envío", "Hora cierre", "Activa"},
		Rows:      rows,
	})
}

// CreatePage shows an empty distribution form
func (v *Views) CreatePage(c *gin.Context) {
	page(c, "Agregar Distribución", CreateURL, distributionForm{}, forms.Errors{})
}

// Create saves a new, active distribution
func (v *Views) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	form, w, errs := bindDistribution(c)
	if errs.Any() {
		page(c, "Agregar Distribución", CreateURL, form, errs)
		return
	}

	dist := models.Distribution{
		Name:                         form.Name,
		LinkID:                       form.LinkID,
		IsActive:                     true,
		DistributionHourLink:         w.Send,
		EndAvailableDistributionLink: w.Cutoff,
	}
	if err := v.distributions.Create(c.Request.Context(), userID, &dist); err != nil {
		web.Fail(c)
		return
	}
	web.Redirect(c, listURL)
}

func (v *Views) load(c *gin.Context) (*models.Distribution, bool) {
	userID, _ := auth.GetUserID(c)
	id, ok := web.ParseID(c)
	if !ok {
		web.NotFound(c)
		return nil, false
	}

	dist, err := v.distributions.Get(c.Request.Context(), userID, id)
	if errors.Is(err, scoped.ErrNotFound) {
		web.NotFound(c)
		return nil, false
	}
	if err != nil {
		web.Fail(c)
		return nil, false
	}
	return dist, true
}

// UpdatePage shows the form of an existing distribution
func (v *Views) UpdatePage(c *gin.Context) {
	dist, ok := v.load(c)
	if !ok {
		return
	}
	action := fmt.Sprintf("/distributions/distribution/%d/update/", dist.ID)
	page(c, "Editar Distribución", action, formOf(dist), forms.Errors{})
}

// Update saves changes to a distribution
func (v *Views) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	dist, ok := v.load(c)
	if !ok {
		return
	}

	form, w, errs := bindDistribution(c)
	if errs.Any() {
		page(c, "Editar Distribución", fmt.Sprintf("/distributions/distribution/%d/update/", dist.ID), form, errs)
		return
	}

	dist.Name = form.Name
	dist.LinkID = form.LinkID
	dist.DistributionHourLink = w.Send
	dist.EndAvailableDistributionLink = w.Cutoff
	if err := v.distributions.Save(c.Request.Context(), userID, dist); err != nil {
		web.Fail(c)
		return
	}
	web.Redirect(c, listURL)
}

// Delete removes a distribution and its deliveries
func (v *Views) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, ok := web.ParseID(c)
	if !ok {
		web.NotFound(c)
		return
	}

	err := v.distributions.Delete(c.Request.Context(), userID, id, DeleteDeliveries)
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

// RegisterRoutes registers the distribution pages on a login-protected group
func (v *Views) RegisterRoutes(rg gin.IRoutes) {
	rg.GET(listURL, v.List)
	rg.GET(CreateURL, v.CreatePage)
	rg.POST(CreateURL, v.Create)
	rg.GET("/distributions/distribution/:id/update/", v.UpdatePage)
	rg.POST("/distributions/distribution/:id/update/", v.Update)
	rg.POST("/distributions/distribution/:id/delete/", v.Delete)
}
