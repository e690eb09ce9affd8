package data

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GetMySQLDSN returns the MySQL DSN configured via environment.
func GetMySQLDSN() (string, error) {
	dsn := os.Getenv("MYSQL_DSN")
	if strings.TrimSpace(dsn) == "" {
		return "", fmt.Errorf("MYSQL_DSN is not set")
	}
	return dsn, nil
}

// ConnectMySQL opens the settings database with the driver defaults the
// settings table needs.
func ConnectMySQL(dsn string) (*gorm.DB, error) {
	dsn = ensureParam(dsn, "parseTime", "true")
	if !strings.Contains(dsn, "charset=") {
		dsn = ensureParam(dsn, "charset", "utf8mb4")
		dsn = ensureParam(dsn, "collation", "utf8mb4_unicode_ci")
	}
	return gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: newGormLogger()})
}

// OpenSettings connects when MYSQL_DSN is set, migrates the settings table and
// fills the cache. Without a DSN it returns a nil DB and environment values
// are used on their own.
func OpenSettings() (*gorm.DB, error) {
	dsn, err := GetMySQLDSN()
	if err != nil {
		log.Printf("data: %v, using environment only", err)
		return nil, nil
	}
	db, err := ConnectMySQL(dsn)
	if err != nil {
		return nil, fmt.Errorf("data: connect mysql: %w", err)
	}
	if err := db.AutoMigrate(&Setting{}); err != nil {
		return nil, fmt.Errorf("data: migrate settings: %w", err)
	}
	if err := LoadSettings(db); err != nil {
		return nil, fmt.Errorf("data: load settings: %w", err)
	}
	return db, nil
}

// CloseDB releases the pool behind a gorm handle.
func CloseDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func newGormLogger() logger.Interface {
	return logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		logger.Config{SlowThreshold: time.Second, LogLevel: logger.Warn, IgnoreRecordNotFoundError: true, Colorful: false},
	)
}

func ensureParam(dsn, key, val string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + val
}
