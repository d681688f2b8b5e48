package forms

import (
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
)

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrInvalidTime = errors.New("invalid time")
)

var dateLayouts = map[Lang][]string{
	EN: {"2006-01-02"},
	ES: {"02/01/2006", "2006-01-02"},
}

var timeLayouts = []string{"15:04:05", "15:04"}

// ParseDate parses a calendar date in the layouts accepted for lang
func ParseDate(value string, lang Lang) (datatypes.Date, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts[lang] {
		if t, err := time.Parse(layout, value); err == nil {
			return datatypes.Date(t), nil
		}
	}
	return datatypes.Date{}, ErrInvalidDate
}

// ParseTimeOfDay parses hh:mm or hh:mm:ss
func ParseTimeOfDay(value string) (datatypes.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return datatypes.NewTime(t.Hour(), t.Minute(), t.Second(), 0), nil
		}
	}
	return 0, ErrInvalidTime
}

// FormatDate renders a date the way lang's forms expect it back
func FormatDate(d datatypes.Date, lang Lang) string {
	return time.Time(d).Format(dateLayouts[lang][0])
}
