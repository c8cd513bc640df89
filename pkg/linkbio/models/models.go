package models

import "gorm.io/gorm"

// AllModels returns all models for migration
// Note: User must be migrated before Profile, and Profile before everything it owns
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Profile{},
		&Link{},
		&AnalyticsEvent{},
		&Subscription{},
		&Product{},
		&Tip{},
		&Order{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
