package plates

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/forms"
	"github.com/norahq/nora/pkg/nora/meals"
	"github.com/norahq/nora/pkg/nora/models"
	"github.com/norahq/nora/pkg/nora/scoped"
	"github.com/norahq/nora/pkg/nora/web"
	"gorm.io/gorm"
)

const listURL = "/plates/list/"

// Views serves the plate pages
type Views struct {
	plates *Repository
	meals  *meals.Repository
}

// NewViews creates the plate pages
func NewViews(db *gorm.DB) *Views {
	return &Views{plates: NewRepository(db), meals: meals.NewRepository(db)}
}

type plateForm struct {
	Name  string `form:"name" binding:"notblank,max=200"`
	Meals []uint `form:"meals"`
}

func (v *Views) page(c *gin.Context, title, action string, form plateForm, errs forms.Errors) {
	userID, _ := auth.GetUserID(c)
	owned, err := v.meals.List(c.Request.Context(), userID)
	if err != nil {
		web.Fail(c)
		return
	}

	options := web.Options(owned,
		func(m *models.Meal) uint { return m.ID },
		func(m *models.Meal) string { return m.Name },
		form.Meals)

	web.RenderForm(c, web.Form(title, action, listURL, errs,
		web.NameField(form.Name),
		web.Field{Name: "meals", Label: "Comidas", Type: "select", Options: options},
	))
}

// bindPlate reads the form and resolves the chosen meals among the owner's
func (v *Views) bindPlate(c *gin.Context) (plateForm, []models.Meal, forms.Errors, error) {
	userID, _ := auth.GetUserID(c)

	var form plateForm
	errs := web.BindForm(c, &form)

	mealRows, err := v.meals.FindIDs(c.Request.Context(), userID, form.Meals)
	if err != nil {
		return form, nil, errs, err
	}
	found := make([]uint, len(mealRows))
	for i, meal := range mealRows {
		found[i] = meal.ID
	}
	web.CheckChoices(errs, "meals", form.Meals, found)
	return form, mealRows, errs, nil
}

// List shows the caller's plates
func (v *Views) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	plates, err := v.plates.List(c.Request.Context(), userID)
	if err != nil {
		web.Fail(c)
		return
	}

	rows := make([]web.Row, len(plates))
	for i, plate := range plates {
		names := make([]string, len(plate.Meals))
		for j, meal := range plate.Meals {
			names[j] = meal.Name
		}
		rows[i] = web.Row{
			Cells:     []string{plate.Name, strings.Join(names, ", ")},
			UpdateURL: fmt.Sprintf("/plates/%d/update/", plate.ID),
			DeleteURL: fmt.Sprintf("/plates/%d/delete/", plate.ID),
		}
	}

	web.RenderList(c, web.ListPage{
		Title:     "Platos",
		CreateURL: "/plates/create/",
		Columns:   []string{"Nombre", "Comidas"},
		Rows:      rows,
	})
}

// CreatePage shows an empty plate form
func (v *Views) CreatePage(c *gin.Context) {
	v.page(c, "Agregar Plato", "/plates/create/", plateForm{}, forms.Errors{})
}

// Create saves a new plate
func (v *Views) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	form, mealRows, errs, err := v.bindPlate(c)
	if err != nil {
		web.Fail(c)
		return
	}
	if errs.Any() {
		v.page(c, "Agregar Plato", "/plates/create/", form, errs)
		return
	}

	if err := v.plates.Create(c.Request.Context(), userID, &models.Plate{Name: form.Name, Meals: mealRows}); err != nil {
		web.Fail(c)
		return
	}
	web.Redirect(c, listURL)
}

func (v *Views) load(c *gin.Context) (*models.Plate, bool) {
	userID, _ := auth.GetUserID(c)
	id, ok := web.ParseID(c)
	if !ok {
		web.NotFound(c)
		return nil, false
	}

	plate, err := v.plates.Get(c.Request.Context(), userID, id)
	if errors.Is(err, scoped.ErrNotFound) {
		web.NotFound(c)
		return nil, false
	}
	if err != nil {
		web.Fail(c)
		return nil, false
	}
	return plate, true
}

// UpdatePage shows the form of an existing plate
func (v *Views) UpdatePage(c *gin.Context) {
	plate, ok := v.load(c)
	if !ok {
		return
	}
	action := fmt.Sprintf("/plates/%d/update/", plate.ID)
	v.page(c, "Editar Plato", action, plateForm{Name: plate.Name, Meals: MealIDs(plate)}, forms.Errors{})
}

// Update saves changes to a plate
func (v *Views) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	plate, ok := v.load(c)
	if !ok {
		return
	}

	form, mealRows, errs, err := v.bindPlate(c)
	if err != nil {
		web.Fail(c)
		return
	}
	if errs.Any() {
		v.page(c, "Editar Plato", fmt.Sprintf("/plates/%d/update/", plate.ID), form, errs)
		return
	}

	plate.Name = form.Name
	if err := v.plates.SaveWith(c.Request.Context(), userID, plate, "Meals", mealRows); err != nil {
		web.Fail(c)
		return
	}
	web.Redirect(c, listURL)
}

// Delete removes a plate
func (v *Views) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, ok := web.ParseID(c)
	if !ok {
		web.NotFound(c)
		return
	}

	err := v.plates.Delete(c.Request.Context(), userID, id, DeleteAssociations)
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

// RegisterRoutes registers the plate pages on a login-protected group
func (v *Views) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/plates/list/", v.List)
	rg.GET("/plates/create/", v.CreatePage)
	rg.POST("/plates/create/", v.Create)
	rg.GET("/plates/:id/update/", v.UpdatePage)
	rg.POST("/plates/:id/update/", v.Update)
	rg.POST("/plates/:id/delete/", v.Delete)
}
