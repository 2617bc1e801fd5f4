package runs

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the run history database described by cfg.
func Open(cfg *RunsConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBType {
	case DBTypeSQLite, "":
		dialector = sqlite.Open(cfg.DSN)
	case DBTypePostgres:
		dialector = postgres.Open(cfg.DSN)
	case DBTypeMySQL:
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported run history database type %q", cfg.DBType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s run history: %w", cfg.DBType, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("run history pool: %w", err)
	}
	if cfg.DBType == DBTypeSQLite || cfg.DBType == "" {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
	}
	return db, nil
}
