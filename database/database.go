package database

import (
	"fmt"
	"log"

	"github.com/wyzar/wyzar_messaging/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func gormConfig() *gorm.Config {
	return &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Warn),
	}
}

// ConnectDB opens the store for driver ("postgres" or "sqlite") and keeps the
// handle in DB for the process entrypoint.
func ConnectDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer; serialize at the pool instead of
		// surfacing SQLITE_BUSY to callers.
		sqlDB.SetMaxOpenConns(1)
	}

	DB = db
	fmt.Println("✅ Database connected successfully")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.UserBlock{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Println("✅ Database migration successful")
	return nil
}
