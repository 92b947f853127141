package db

import (
	"fmt"
	"os"
	"strings"

	"Gin_postgres_redis_supply_tool/config"
	"Gin_postgres_redis_supply_tool/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Options struct {
	Driver string // postgres | sqlite
	DSN    string
	Silent bool
}

// OptionsFromEnv 与之前一样从 DB_* 读取；DATABASE_URL 优先
func OptionsFromEnv() Options {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if driver == "" {
		driver = "postgres"
	}
	if driver == "sqlite" {
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "supply.db"
		}
		return Options{Driver: driver, DSN: path}
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			os.Getenv("DB_HOST"),
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_NAME"),
			os.Getenv("DB_PORT"),
		)
	}
	return Options{Driver: driver, DSN: dsn}
}

func Open(opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}
	if opts.Silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	var dialector gorm.Dialector
	switch opts.Driver {
	case "sqlite":
		dialector = sqlite.Open(opts.DSN)
	case "postgres", "":
		dialector = postgres.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", opts.Driver)
	}
	conn, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}
	if opts.Driver == "sqlite" {
		conn.Exec("PRAGMA journal_mode=WAL")
		conn.Exec("PRAGMA busy_timeout=5000")
		// sqlite 只允许一个写者，串行化连接避免 SQLITE_BUSY
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return conn, nil
}

func ConnectDB(opts Options) *gorm.DB {
	log := config.GetLogger()
	conn, err := Open(opts)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := Migrate(conn); err != nil {
		log.Fatalf("Failed to migrate models: %v", err)
	}
	log.WithField("driver", opts.Driver).Info("Database connected")
	return conn
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Item{},
		&models.Request{},
		&models.RequestLine{},
		&models.Transaction{},
		&models.RISCounter{},
		&models.ActivityLog{},
	); err != nil {
		return err
	}

	// RIS 编号：有值时全局唯一，未生成时允许多条 NULL
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_ris_number_uniq
	  ON %s (ris_number)
	  WHERE ris_number IS NOT NULL;
	`, models.RequestTable, models.RequestTable)).Error; err != nil {
		return err
	}

	// 同一申请内行序号唯一
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_request_position
	  ON %s (request_id, position);
	`, models.RequestLineTable, models.RequestLineTable)).Error; err != nil {
		return err
	}

	// RIS 生成时按申请查出库流水
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_request_type
	  ON %s (request_id, type)
	  WHERE request_id IS NOT NULL;
	`, models.TransactionTable, models.TransactionTable)).Error; err != nil {
		return err
	}

	return nil
}
