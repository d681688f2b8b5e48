package auth

import (
	"strings"

	"github.com/norahq/nora/pkg/nora/models"
	"gorm.io/gorm"
)

// EnsureAdminExists creates a staff user when the database has no users.
// It reports whether a user was created.
func EnsureAdminExists(db *gorm.DB, email, password string) (bool, error) {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return false, err
	}

	admin := models.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         "Admin",
		PasswordHash: hashedPassword,
		IsStaff:      true,
		Active:       true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return false, err
	}
	return true, nil
}
