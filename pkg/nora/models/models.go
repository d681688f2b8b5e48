package models

import "gorm.io/gorm"

// Owned is implemented by every row that belongs to exactly one staff user
type Owned interface {
	GetOwnerID() uint
	SetOwnerID(id uint)
}

// AllModels returns all models for migration
// Note: User must be migrated first as every other model references it
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&APIKey{},
		&Tag{},
		&Meal{},
		&Plate{},
		&Menu{},
		&Distribution{},
		&Delivery{},
		&DeliverySelection{},
		&NotificationJob{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
