package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/awards/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// SeedData inserts default settings without overwriting values changed by an administrator.
// Voting starts closed until an administrator opens it.
func SeedData(db *gorm.DB) error {
	defaults := map[string]any{
		models.SettingVotingOpen:         false,
		models.SettingVotingBlockMessage: "",
	}

	for key, value := range defaults {
		raw, err := encodeSetting(value)
		if err != nil {
			return err
		}
		setting := models.AppSetting{Key: key, Value: raw}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&setting).Error; err != nil {
			return err
		}
	}
	return nil
}
