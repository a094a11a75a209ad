package models

import (
	"log"

	"gorm.io/gorm"
)

// AutoMigrate applies the schema. Safe to run on every startup.
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(
		&Admin{},
		&User{},
		&Nas{},
		&Profile{},
		&Session{},
		&AcctRecord{},
		&AuthLog{},
	); err != nil {
		return err
	}

	log.Println("Database migrations completed successfully")
	return nil
}
