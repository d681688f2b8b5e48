// Package scoped provides owner-filtered data access shared by every
// resource a staff user manages.
package scoped

import (
	"context"
	"errors"
	"reflect"

	"github.com/norahq/nora/pkg/nora/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned for missing rows and for rows owned by someone else
var ErrNotFound = errors.New("not found")

// Repository reads and writes rows of T restricted to a single owner.
// PT is *T and lets the repository set the owner on new rows.
type Repository[T any, PT interface {
	*T
	models.Owned
}] struct {
	db       *gorm.DB
	preloads []string
	order    string
}

// New creates a repository. The named associations are preloaded on every read.
func New[T any, PT interface {
	*T
	models.Owned
}](db *gorm.DB, preloads ...string) *Repository[T, PT] {
	return &Repository[T, PT]{db: db, preloads: preloads, order: "id"}
}

// OrderBy changes the list ordering (default "id")
func (r *Repository[T, PT]) OrderBy(order string) *Repository[T, PT] {
	r.order = order
	return r
}

// DB exposes the handle for transactions spanning several tables
func (r *Repository[T, PT]) DB() *gorm.DB {
	return r.db
}

func (r *Repository[T, PT]) scope(ctx context.Context, ownerID uint) *gorm.DB {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	for _, p := range r.preloads {
		q = q.Preload(p)
	}
	return q
}

// List returns every row owned by ownerID
func (r *Repository[T, PT]) List(ctx context.Context, ownerID uint) ([]T, error) {
	var rows []T
	if err := r.scope(ctx, ownerID).Order(r.order).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Get returns the row with the given primary key if ownerID owns it
func (r *Repository[T, PT]) Get(ctx context.Context, ownerID uint, id uint) (*T, error) {
	return r.GetBy(ctx, ownerID, "id", id)
}

// GetBy returns the first owned row whose column equals value
func (r *Repository[T, PT]) GetBy(ctx context.Context, ownerID uint, column string, value interface{}) (*T, error) {
	var row T
	err := r.scope(ctx, ownerID).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// First returns the owner's row with the lowest id
func (r *Repository[T, PT]) First(ctx context.Context, ownerID uint) (*T, error) {
	var row T
	err := r.scope(ctx, ownerID).Order("id").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Exists reports whether the owner has at least one row
func (r *Repository[T, PT]) Exists(ctx context.Context, ownerID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(new(T)).Where("owner_id = ?", ownerID).Count(&count).Error
	return count > 0, err
}

// FindIDs loads the owner's rows among ids, silently skipping the rest
func (r *Repository[T, PT]) FindIDs(ctx context.Context, ownerID uint, ids []uint) ([]T, error) {
	rows := []T{}
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Order("id").
		Find(&rows).Error
	return rows, err
}

// Create inserts row as belonging to ownerID, whatever owner it carried.
// Associations already set on row are saved with it.
func (r *Repository[T, PT]) Create(ctx context.Context, ownerID uint, row PT) error {
	row.SetOwnerID(ownerID)
	return r.db.WithContext(ctx).Omit("Owner").Create(row).Error
}

// Save updates row's columns. The owner is checked, never changed.
func (r *Repository[T, PT]) Save(ctx context.Context, ownerID uint, row PT) error {
	if row.GetOwnerID() != ownerID {
		return ErrNotFound
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(row).Error
}

// SaveWith updates row and replaces its many-to-many association with
// values in one transaction. values must be a slice; an empty one clears it.
func (r *Repository[T, PT]) SaveWith(ctx context.Context, ownerID uint, row PT, association string, values interface{}) error {
	if row.GetOwnerID() != ownerID {
		return ErrNotFound
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(row).Error; err != nil {
			return err
		}
		assoc := tx.Model(row).Association(association)
		if reflect.ValueOf(values).Len() == 0 {
			return assoc.Clear()
		}
		return assoc.Replace(values)
	})
}

// Delete removes the owned row with the given id. cleanup runs first in the
// same transaction and removes dependent rows.
func (r *Repository[T, PT]) Delete(ctx context.Context, ownerID uint, id uint, cleanup func(tx *gorm.DB, row PT) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row T
		err := tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if cleanup != nil {
			if err := cleanup(tx, PT(&row)); err != nil {
				return err
			}
		}

		return tx.Delete(PT(&row)).Error
	})
}
