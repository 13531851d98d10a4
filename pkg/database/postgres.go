package database

import (
	"log"

	"github.com/Eursukkul/ticketgate/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewPostgresDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	return db
}

// Migrate creates the schema. The unique indexes on event code, scanner
// api_key/name, payment external_transaction_id and ticket qr_code are
// load-bearing: the idempotency guarantees lean on them.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Event{},
		&models.TicketCategory{},
		&models.Ticket{},
		&models.Payment{},
		&models.Scanner{},
	)
}
