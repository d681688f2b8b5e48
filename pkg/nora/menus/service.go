package menus

import (
	"context"
	"errors"

	"github.com/norahq/nora/pkg/nora/deliveries"
	"github.com/norahq/nora/pkg/nora/models"
	"github.com/norahq/nora/pkg/nora/notify"
	"github.com/norahq/nora/pkg/nora/scoped"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoDistribution is returned when the owner has no distribution to send
// a menu through
var ErrNoDistribution = errors.New("no distribution")

// Repository is the owner-scoped menu store
type Repository = scoped.Repository[models.Menu, *models.Menu]

// NewRepository creates the menu store. Plates and deliveries are always loaded.
func NewRepository(db *gorm.DB) *Repository {
	return scoped.New[models.Menu](db, "Owner", "Plates", "Deliveries")
}

// DeleteAssociations removes the deliveries and plate rows of a menu
func DeleteAssociations(tx *gorm.DB, menu *models.Menu) error {
	if err := deliveries.DeleteForMenu(tx, menu.ID); err != nil {
		return err
	}
	return tx.Exec("DELETE FROM menu_plates WHERE menu_id = ?", menu.ID).Error
}

// FirstDelivery returns the earliest created delivery of a loaded menu
func FirstDelivery(menu *models.Menu) *models.Delivery {
	var first *models.Delivery
	for i := range menu.Deliveries {
		d := &menu.Deliveries[i]
		if first == nil || d.CreatedAt.Before(first.CreatedAt) ||
			(d.CreatedAt.Equal(first.CreatedAt) && d.MenuDeliveryID < first.MenuDeliveryID) {
			first = d
		}
	}
	return first
}

// PlateIDs returns the ids of a menu's plates
func PlateIDs(menu *models.Menu) []uint {
	ids := make([]uint, len(menu.Plates))
	for i, plate := range menu.Plates {
		ids[i] = plate.ID
	}
	return ids
}

// Service creates and edits menus together with their delivery
type Service struct {
	db        *gorm.DB
	menus     *Repository
	scheduler *notify.Scheduler
}

// NewService creates the menu service
func NewService(db *gorm.DB, scheduler *notify.Scheduler) *Service {
	return &Service{db: db, menus: NewRepository(db), scheduler: scheduler}
}

// HasDistribution reports whether the owner can create menus
func (s *Service) HasDistribution(ctx context.Context, ownerID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Distribution{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count > 0, err
}

func firstDistribution(tx *gorm.DB, ownerID uint) (*models.Distribution, error) {
	var dist models.Distribution
	err := tx.Where("owner_id = ?", ownerID).Order("id").First(&dist).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoDistribution
	}
	if err != nil {
		return nil, err
	}
	return &dist, nil
}

// Create stores menu with its plates and one delivery on date through the
// owner's first distribution, then schedules the selection link.
func (s *Service) Create(ctx context.Context, ownerID uint, menu *models.Menu, date datatypes.Date) (*models.Delivery, error) {
	var delivery models.Delivery
	var dist *models.Distribution

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if dist, err = firstDistribution(tx, ownerID); err != nil {
			return err
		}

		menu.SetOwnerID(ownerID)
		if err := tx.Omit("Owner", "Plates.*", "Deliveries").Create(menu).Error; err != nil {
			return err
		}

		delivery = models.Delivery{
			Date:           date,
			MenuID:         menu.ID,
			DistributionID: dist.ID,
			OwnerID:        ownerID,
		}
		return tx.Omit(clause.Associations).Create(&delivery).Error
	})
	if err != nil {
		return nil, err
	}

	s.scheduler.Schedule(ctx, &delivery, dist)
	return &delivery, nil
}

// Update saves menu, replaces its plates and moves its first delivery to
// date. The selection link is scheduled again for the new date.
func (s *Service) Update(ctx context.Context, ownerID uint, menu *models.Menu, plates []models.Plate, date datatypes.Date) error {
	if menu.OwnerID != ownerID {
		return scoped.ErrNotFound
	}

	var delivery *models.Delivery
	var dist *models.Distribution

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(menu).Error; err != nil {
			return err
		}
		assoc := tx.Model(menu).Association("Plates")
		var err error
		if len(plates) == 0 {
			err = assoc.Clear()
		} else {
			err = assoc.Replace(plates)
		}
		if err != nil {
			return err
		}

		delivery = FirstDelivery(menu)
		if delivery == nil {
			// The distribution was deleted along with the delivery
			dist, err = firstDistribution(tx, ownerID)
			if errors.Is(err, ErrNoDistribution) {
				return nil
			}
			if err != nil {
				return err
			}
			delivery = &models.Delivery{MenuID: menu.ID, DistributionID: dist.ID, OwnerID: ownerID, Date: date}
			return tx.Omit(clause.Associations).Create(delivery).Error
		}

		delivery.Date = date
		if err := tx.Model(&models.Delivery{}).
			Where("menu_delivery_id = ?", delivery.MenuDeliveryID).
			Update("date", date).Error; err != nil {
			return err
		}
		dist = &models.Distribution{}
		return tx.First(dist, delivery.DistributionID).Error
	})
	if err != nil {
		return err
	}

	if delivery != nil && dist != nil {
		s.scheduler.Schedule(ctx, delivery, dist)
	}
	return nil
}
