package tags

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

const listURL = "/tags/list/"

// Views serves the tag pages
type Views struct {
	tags *Repository
}

// NewViews creates the tag pages
func NewViews(db *gorm.DB) *Views {
	return &Views{tags: NewRepository(db)}
}

type tagForm struct {
	Name string `form:"name" binding:"notblank,max=200"`
}

func tagPage(title, action string, form tagForm, errs forms.Errors) web.FormPage {
	return web.Form(title, action, listURL, errs, web.NameField(form.Name))
}

// List shows the caller's tags
func (v *Views) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	tags, err := v.tags.List(c.Request.Context(), userID)
	if err != nil {
		web.Fail(c)
		return
	}

	rows := make([]web.Row, len(tags))
	for i, tag := range tags {
		rows[i] = web.Row{
			Cells:     []string{tag.Name},
			UpdateURL: fmt.Sprintf("/tags/%d/update/", tag.ID),
			DeleteURL: fmt.Sprintf("/tags/%d/delete/", tag.ID),
		}
	}

	web.RenderList(c, web.ListPage{
		Title:     "Etiquetas",
		CreateURL: "/tags/create/",
		Columns:   []string{"Nombre"},
		Rows:      rows,
	})
}

// CreatePage shows an empty tag form
func (v *Views) CreatePage(c *gin.Context) {
	web.RenderForm(c, tagPage("Agregar Etiqueta", "/tags/create/", tagForm{}, forms.Errors{}))
}

// Create saves a new tag
func (v *Views) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var form tagForm
	if errs := web.BindForm(c, &form); errs.Any() {
		web.RenderForm(c, tagPage("Agregar Etiqueta", "/tags/create/", form, errs))
		return
	}

	if err := v.tags.Create(c.Request.Context(), userID, &models.Tag{Name: form.Name}); err != nil {
		web.Fail(c)
		return
	}
	web.Redirect(c, listURL)
}

func (v *Views) load(c *gin.Context) (*models.Tag, bool) {
	userID, _ := auth.GetUserID(c)
	id, ok := web.ParseID(c)
	if !ok {
		web.NotFound(c)
		return nil, false
	}

	tag, err := v.tags.Get(c.Request.Context(), userID, id)
	if errors.Is(err, scoped.ErrNotFound) {
		web.NotFound(c)
		return nil, false
	}
	if err != nil {
		web.Fail(c)
		return nil, false
	}
	return tag, true
}

// UpdatePage shows the form of an existing tag
func (v *Views) UpdatePage(c *gin.Context) {
	tag, ok := v.load(c)
	if !ok {
		return
	}
	action := fmt.Sprintf("/tags/%d/update/", tag.ID)
	web.RenderForm(c, tagPage("Editar Etiqueta", action, tagForm{Name: tag.Name}, forms.Errors{}))
}

// Update saves changes to a tag
func (v *Views) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	tag, ok := v.load(c)
	if !ok {
		return
	}

	var form tagForm
	if errs := web.BindForm(c, &form); errs.Any() {
		action := fmt.Sprintf("/tags/%d/update/", tag.ID)
		web.RenderForm(c, tagPage("Editar Etiqueta", action, form, errs))
		return
	}

	tag.Name = form.Name
	if err := v.tags.Save(c.Request.Context(), userID, tag); err != nil {
		web.Fail(c)
		return
	}
	web.Redirect(c, listURL)
}

// Delete removes a tag
func (v *Views) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, ok := web.ParseID(c)
	if !ok {
		web.NotFound(c)
		return
	}

	err := v.tags.Delete(c.Request.Context(), userID, id, DeleteAssociations)
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

// RegisterRoutes registers the tag pages on a login-protected group
func (v *Views) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/tags/list/", v.List)
	rg.GET("/tags/create/", v.CreatePage)
	rg.POST("/tags/create/", v.Create)
	rg.GET("/tags/:id/update/", v.UpdatePage)
	rg.POST("/tags/:id/update/", v.Update)
	rg.POST("/tags/:id/delete/", v.Delete)
}
