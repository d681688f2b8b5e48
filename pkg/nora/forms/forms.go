// Package forms turns binding failures into per-field messages shared by the
// JSON API (English) and the server-rendered pages (Spanish).
package forms

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Lang selects the message catalog
type Lang int

const (
	EN Lang = iota
	ES
)

// Rule names a validation failure with a fixed message
type Rule string

const (
	RuleBlank         Rule = "notblank"
	RuleRequired      Rule = "required"
	RuleMaxLength     Rule = "max"
	RuleInvalidChoice Rule = "invalid_choice"
	RuleInvalidDate   Rule = "invalid_date"
	RuleInvalidTime   Rule = "invalid_time"
	RuleTimeOrder     Rule = "time_order"
	RuleInvalid       Rule = "invalid"
)

var catalog = map[Lang]map[Rule]string{
	EN: {
		RuleBlank:         "This field may not be blank.",
		RuleRequired:      "This field is required.",
		RuleMaxLength:     "Ensure this field has no more than %s characters.",
		RuleInvalidChoice: `Invalid pk "%s" - object does not exist.`,
		RuleInvalidDate:   "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.",
		RuleInvalidTime:   "Time has wrong format. Use one of these formats instead: hh:mm[:ss].",
		RuleTimeOrder:     "End time must not be earlier than the send time.",
		RuleInvalid:       "Invalid value.",
	},
	ES: {
		RuleBlank:         "Este campo es requerido.",
		RuleRequired:      "Este campo es requerido.",
		RuleMaxLength:     "Asegúrese de que este valor tenga como máximo %s caracteres.",
		RuleInvalidChoice: "Escoja una opción válida. %s no es una de las opciones disponibles.",
		RuleInvalidDate:   "Introduzca una fecha válida.",
		RuleInvalidTime:   "Introduzca una hora válida.",
		RuleTimeOrder:     "La hora tiene que ser mayor que la inicial",
		RuleInvalid:       "Introduzca un valor válido.",
	},
}

// Message returns the catalog text for rule, with args interpolated
func Message(lang Lang, rule Rule, args ...interface{}) string {
	msg, ok := catalog[lang][rule]
	if !ok {
		msg = catalog[lang][RuleInvalid]
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Errors maps a field name to its messages
type Errors map[string][]string

// Add appends a message to field
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// AddRule appends the catalog message for rule to field
func (e Errors) AddRule(lang Lang, field string, rule Rule, args ...interface{}) {
	e.Add(field, Message(lang, rule, args...))
}

// Has reports whether field has at least one message
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// Any reports whether there are errors at all
func (e Errors) Any() bool {
	return len(e) > 0
}

// Get returns the messages for field
func (e Errors) Get(field string) []string {
	return e[field]
}

var registerOnce sync.Once

// Register installs the notblank rule and tag-based field names on gin's
// validator. It is safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		v.RegisterTagNameFunc(fieldName)
	})
}

func init() {
	Register()
}

// fieldName reports the json name of a field, or its form name
func fieldName(fld reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// Collect converts the result of a gin bind call into field errors.
// Decoding failures (malformed JSON, wrong types) are returned as err.
func Collect(bindErr error, lang Lang) (Errors, error) {
	errs := Errors{}
	if bindErr == nil {
		return errs, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(bindErr, &verrs) {
		return nil, bindErr
	}

	for _, fe := range verrs {
		errs.Add(fe.Field(), translate(fe, lang))
	}
	return errs, nil
}

func translate(fe validator.FieldError, lang Lang) string {
	switch fe.Tag() {
	case "notblank":
		return Message(lang, RuleBlank)
	case "required":
		return Message(lang, RuleRequired)
	case "min":
		if fe.Kind() == reflect.Slice {
			return Message(lang, RuleRequired)
		}
		return Message(lang, RuleInvalid)
	case "max":
		if fe.Kind() == reflect.String {
			return Message(lang, RuleMaxLength, fe.Param())
		}
		return Message(lang, RuleInvalid)
	default:
		return Message(lang, RuleInvalid)
	}
}

// Abort answers a JSON request with 400 and the field errors
func Abort(c *gin.Context, errs Errors) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":  "Validation failed",
		"fields": errs,
	})
}
