package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connection retry parameters. Transient connectivity at process start gets
// exponential backoff; after the last attempt the error is fatal to startup.
const (
	connectAttempts  = 3
	connectBaseDelay = 2 * time.Second
	connectMaxDelay  = 10 * time.Second
)

func getLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  true,
		},
	)
}

func configureConnectionPool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return nil
}

// NewGormDBFromDSN opens a Postgres connection with retry. Each failed
// attempt doubles the delay up to connectMaxDelay.
func NewGormDBFromDSN(dsn string) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	delay := connectBaseDelay
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: getLogger(),
		})
		if err == nil {
			break
		}

		if attempt == connectAttempts {
			return nil, fmt.Errorf("connect to postgres after %d attempts: %w", connectAttempts, err)
		}

		log.Printf("[WARN] Postgres connect attempt %d failed: %v (retrying in %s)", attempt, err, delay)
		time.Sleep(delay)
		delay = min(delay*2, connectMaxDelay)
	}

	if err := configureConnectionPool(db); err != nil {
		return nil, err
	}

	return db, nil
}
