package deliveries

import "gorm.io/gorm"

// purge removes the deliveries matching column = value together with their
// selections and the selections' plate rows
func purge(tx *gorm.DB, column string, value uint) error {
	tokens := tx.Table("deliveries").Select("menu_delivery_id").Where(column+" = ?", value)
	selections := tx.Table("delivery_selections").Select("id").Where("delivery_id IN (?)", tokens)

	if err := tx.Exec("DELETE FROM delivery_selection_plates WHERE delivery_selection_id IN (?)", selections).Error; err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM delivery_selections WHERE delivery_id IN (?)", tokens).Error; err != nil {
		return err
	}
	return tx.Exec("DELETE FROM deliveries WHERE "+column+" = ?", value).Error
}

// DeleteForMenu removes every delivery of a menu. It runs inside the
// menu's delete transaction.
func DeleteForMenu(tx *gorm.DB, menuID uint) error {
	return purge(tx, "menu_id", menuID)
}

// DeleteForDistribution removes every delivery sent through a distribution
func DeleteForDistribution(tx *gorm.DB, distributionID uint) error {
	return purge(tx, "distribution_id", distributionID)
}
