// Package web holds the server-rendered pages shared by every feature:
// templates, form and list page models, and the browser session.
package web

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/forms"
)

//go:embed templates/*.html
var templateFS embed.FS

// FormErrorKey collects messages that belong to the whole form
const FormErrorKey = "__all__"

// Field is one input of a FormPage
type Field struct {
	Name        string
	Label       string
	Type        string // text, textarea, date, time, select
	Value       string
	Placeholder string
	Options     []Option
	Errors      []string
}

// Option is a choice of a multi-select field
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// FormPage renders crud_form.html
type FormPage struct {
	Title     string
	Action    string
	Submit    string
	CancelURL string
	Fields    []Field
	Errors    []string
}

// ListPage renders crud_list.html
type ListPage struct {
	Title     string
	CreateURL string
	Columns   []string
	Rows      []Row
}

// Row is one line of a ListPage
type Row struct {
	Cells     []string
	Link      string
	UpdateURL string
	DeleteURL string
}

// Templates parses the embedded page templates
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
}

// Setup installs the page templates on the engine
func Setup(r *gin.Engine) {
	r.SetHTMLTemplate(Templates())
}

// Render writes a page inside the shared layout
func Render(c *gin.Context, status int, name, title string, page interface{}) {
	email, _ := auth.GetEmail(c)
	c.HTML(status, name, gin.H{
		"Title": title,
		"User":  email,
		"Page":  page,
	})
}

// RenderForm writes a FormPage with status 200, the status used for forms
// with errors as well
func RenderForm(c *gin.Context, page FormPage) {
	Render(c, http.StatusOK, "crud_form.html", page.Title, page)
}

// RenderList writes a ListPage
func RenderList(c *gin.Context, page ListPage) {
	Render(c, http.StatusOK, "crud_list.html", page.Title, page)
}

// NotFound renders the 404 page
func NotFound(c *gin.Context) {
	Render(c, http.StatusNotFound, "error.html", "No encontrado", gin.H{
		"Message": "La página que buscas no existe.",
	})
	c.Abort()
}

// Fail renders the 500 page
func Fail(c *gin.Context) {
	Render(c, http.StatusInternalServerError, "error.html", "Error", gin.H{
		"Message": "Ocurrió un error inesperado. Inténtalo nuevamente.",
	})
	c.Abort()
}

// Redirect answers with 302 Found, the status browsers follow after a POST
func Redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
}

// ParseID reads the :id route parameter
func ParseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// BindForm binds a urlencoded or multipart form into obj and returns the
// Spanish field messages
func BindForm(c *gin.Context, obj interface{}) forms.Errors {
	errs, err := forms.Collect(c.ShouldBindWith(obj, binding.Form), forms.ES)
	if err != nil {
		errs = forms.Errors{}
		errs.AddRule(forms.ES, FormErrorKey, forms.RuleInvalid)
	}
	return errs
}

// Form builds a FormPage and spreads errs over its fields
func Form(title, action, cancelURL string, errs forms.Errors, fields ...Field) FormPage {
	for i := range fields {
		fields[i].Errors = errs.Get(fields[i].Name)
	}
	return FormPage{
		Title:     title,
		Action:    action,
		Submit:    "Guardar",
		CancelURL: cancelURL,
		Fields:    fields,
		Errors:    errs.Get(FormErrorKey),
	}
}

// NameField is the name input every resource form has
func NameField(value string) Field {
	return Field{Name: "name", Label: "Nombre", Type: "text", Value: value}
}

// Options builds the choices of a multi-select from rows
func Options[T any](rows []T, id func(*T) uint, label func(*T) string, selected []uint) []Option {
	picked := make(map[uint]bool, len(selected))
	for _, s := range selected {
		picked[s] = true
	}
	options := make([]Option, len(rows))
	for i := range rows {
		rowID := id(&rows[i])
		options[i] = Option{
			Value:    strconv.FormatUint(uint64(rowID), 10),
			Label:    label(&rows[i]),
			Selected: picked[rowID],
		}
	}
	return options
}

// CheckChoices adds an invalid choice error on field for the first
// submitted id that is not among allowed
func CheckChoices(errs forms.Errors, field string, submitted, allowed []uint) {
	ok := make(map[uint]bool, len(allowed))
	for _, id := range allowed {
		ok[id] = true
	}
	for _, id := range submitted {
		if !ok[id] {
			errs.AddRule(forms.ES, field, forms.RuleInvalidChoice, strconv.FormatUint(uint64(id), 10))
			return
		}
	}
}
