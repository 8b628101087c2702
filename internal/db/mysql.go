package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"filevault/internal/model"
)

// NewMySQL returns a connected GORM DB instance.
func NewMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	return db, nil
}

// Models lists every persisted model, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.FileMetadata{},
	}
}

// Migrate creates or updates the schema. With reset set, existing tables are dropped first.
func Migrate(db *gorm.DB, reset bool) error {
	if reset {
		models := Models()
		for i := len(models) - 1; i >= 0; i-- {
			if err := db.Migrator().DropTable(models[i]); err != nil {
				return fmt.Errorf("drop table: %w", err)
			}
		}
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
