package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/yaruyo/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Family{},
		&models.Membership{},
		&models.InviteCode{},
		&models.Plan{},
		&models.Record{},
		&models.ActivityEvent{},
		&models.Reaction{},
		&models.NotificationLog{},
		&models.MessageDraft{},
	)
}
