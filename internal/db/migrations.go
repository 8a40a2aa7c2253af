package db

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Sessions and questions
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Session{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&Question{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("sessions", "questions")
			},
		},

		// Migration 002: Export artifacts
		{
			ID: "002_exports",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Export{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("exports")
			},
		},

		// Migration 003: Durable task queue
		{
			ID: "003_tasks",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Task{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("tasks")
			},
		},
	})

	return m.Migrate()
}
