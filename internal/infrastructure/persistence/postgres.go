package persistence

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewPostgresDB opens the PostgreSQL connection with a bounded pool. The pool
// is the only shared mutable resource in the process; connections are used
// for one unit of work at a time and returned promptly.
func NewPostgresDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
