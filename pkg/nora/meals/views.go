package meals

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/forms"
	"github.com/norahq/nora/pkg/nora/models"
	"github.com/norahq/nora/pkg/nora/scoped"
	"github.com/norahq/nora/pkg/nora/tags"
	"github.com/norahq/nora/pkg/nora/web"
	"gorm.io/gorm"
)

const listURL = "/meals/list/"

// Views serves the meal pages
type Views struct {
	meals *Repository
	tags  *tags.Repository
}

// NewViews creates the meal pages
func NewViews(db *gorm.DB) *Views {
	return &Views{meals: NewRepository(db), tags: tags.NewRepository(db)}
}

type mealForm struct {
	Name string `form:"name" binding:"notblank,max=200"`
	Tags []uint `form:"tags"`
}

func (v *Views) page(c *gin.Context, title, action string, form mealForm, errs forms.Errors) {
	userID, _ := auth.GetUserID(c)
	owned, err := v.tags.List(c.Request.Context(), userID)
	if err != nil {
		web.Fail(c)
		return
	}

	options := web.Options(owned,
		func(t *models.Tag) uint { return t.ID },
		func(t *models.Tag) string { return t.Name },
		form.Tags)

	web.RenderForm(c, web.Form(title, action, listURL, errs,
		web.NameField(form.Name),
		web.Field{Name: "tags", Label: "Etiquetas", Type: "select", Options: options},
	))
}

// bindMeal reads the form and resolves the chosen tags among the owner's
func (v *Views) bindMeal(c *gin.Context) (mealForm, []models.Tag, forms.Errors, error) {
	userID, _ := auth.GetUserID(c)

	var form mealForm
	errs := web.BindForm(c, &form)

	tagRows, err := v.tags.FindIDs(c.Request.Context(), userID, form.Tags)
	if err != nil {
		return form, nil, errs, err
	}
	found := make([]uint, len(tagRows))
	for i, tag := range tagRows {
		found[i] = tag.ID
	}
	web.CheckChoices(errs, "tags", form.Tags, found)
	return form, tagRows, errs, nil
}

// List shows the caller's meals
func (v *Views) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	meals, err := v.meals.List(c.Request.Context(), userID)
	if err != nil {
		web.Fail(c)
		return
	}

	rows := make([]web.Row, len(meals))
	for i, meal := range meals {
		names := make([]string, len(meal.Tags))
		for j, tag := range meal.Tags {
			names[j] = tag.Name
		}
		rows[i] = web.Row{
			Cells:     []string{meal.Name, strings.Join(names, ", ")},
			UpdateURL: fmt.Sprintf("/meals/%d/update/", meal.ID),
			DeleteURL: fmt.Sprintf("/meals/%d/delete/", meal.ID),
		}
	}

	web.RenderList(c, web.ListPage{
		Title:     "Comidas",
		CreateURL: "/meals/create/",
		Columns:   []string{"Nombre", "Etiquetas"},
		Rows:      rows,
	})
}

// CreatePage shows an empty meal form
func (v *Views) CreatePage(c *gin.Context) {
	v.page(c, "Agregar Comida", "/meals/create/", mealForm{}, forms.Errors{})
}

// Create saves a new meal
func (v *Views) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	form, tagRows, errs, err := v.bindMeal(c)
	if err != nil {
		web.Fail(c)
		return
	}
	if errs.Any() {
		v.page(c, "Agregar Comida", "/meals/create/", form, errs)
		return
	}

	if err := v.meals.Create(c.Request.Context(), userID, &models.Meal{Name: form.Name, Tags: tagRows}); err != nil {
		web.Fail(c)
		return
	}
	web.Redirect(c, listURL)
}

func (v *Views) load(c *gin.Context) (*models.Meal, bool) {
	userID, _ := auth.GetUserID(c)
	id, ok := web.ParseID(c)
	if !ok {
		web.NotFound(c)
		return nil, false
	}

	meal, err := v.meals.Get(c.Request.Context(), userID, id)
	if errors.Is(err, scoped.ErrNotFound) {
		web.NotFound(c)
		return nil, false
	}
	if err != nil {
		web.Fail(c)
		return nil, false
	}
	return meal, true
}

// UpdatePage shows the form of an existing meal
func (v *Views) UpdatePage(c *gin.Context) {
	meal, ok := v.load(c)
	if !ok {
		return
	}
	action := fmt.Sprintf("/meals/%d/update/", meal.ID)
	v.page(c, "Editar Comida", action, mealForm{Name: meal.Name, Tags: TagIDs(meal)}, forms.Errors{})
}

// Update saves changes to a meal
func (v *Views) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	meal, ok := v.load(c)
	if !ok {
		return
	}

	form, tagRows, errs, err := v.bindMeal(c)
	if err != nil {
		web.Fail(c)
		return
	}
	if errs.Any() {
		v.page(c, "Editar Comida", fmt.Sprintf("/meals/%d/update/", meal.ID), form, errs)
		return
	}

	meal.Name = form.Name
	if err := v.meals.SaveWith(c.Request.Context(), userID, meal, "Tags", tagRows); err != nil {
		web.Fail(c)
		return
	}
	web.Redirect(c, listURL)
}

// Delete removes a meal
func (v *Views) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, ok := web.ParseID(c)
	if !ok {
		web.NotFound(c)
		return
	}

	err := v.meals.Delete(c.Request.Context(), userID, id, DeleteAssociations)
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

// RegisterRoutes registers the meal pages on a login-protected group
func (v *Views) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/meals/list/", v.List)
	rg.GET("/meals/create/", v.CreatePage)
	rg.POST("/meals/create/", v.Create)
	rg.GET("/meals/:id/update/", v.UpdatePage)
	rg.POST("/meals/:id/update/", v.Update)
	rg.POST("/meals/:id/delete/", v.Delete)
}
