// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/limey-tt/limey-backend/internal/config"
	"github.com/limey-tt/limey-backend/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel(cfg.LogLevel)),
		TranslateError: true,
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Database connection established")
	return db, nil
}

func logLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed")
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"pgcrypto\"").Error; err != nil {
		return fmt.Errorf("failed to create pgcrypto extension: %w", err)
	}

	err := db.AutoMigrate(
		&models.Profile{},
		&models.UserSettings{},
		&models.Follow{},
		&models.Video{},
		&models.VideoLike{},
		&models.Chat{},
		&models.Message{},
		&models.TrincreditsTransaction{},
		&models.WalletLink{},
		&models.SponsoredAd{},
		&models.BoostTransaction{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_videos_category_created ON videos(category, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_videos_user_created ON videos(user_id, created_at DESC)",

		"CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages(chat_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(receiver_id) WHERE read_at IS NULL",

		"CREATE INDEX IF NOT EXISTS idx_trincredits_user_status ON trincredits_transactions(user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_trincredits_user_created ON trincredits_transactions(user_id, created_at DESC)",

		"CREATE INDEX IF NOT EXISTS idx_sponsored_ads_status_window ON sponsored_ads(status, starts_at, ends_at)",

		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",

		"CREATE INDEX IF NOT EXISTS idx_videos_search ON videos USING GIN(to_tsvector('english', title || ' ' || description))",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			// Continue with other indexes instead of failing completely
			logrus.WithError(err).WithField("index", index).Warn("Failed to create index")
		}
	}

	return nil
}

// WithTransaction runs fn inside a database transaction.
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// SeedAdminProfile makes sure the account that collects boost payments exists
// and is flagged as admin.
func SeedAdminProfile(db *gorm.DB, adminID string) error {
	if adminID == "" {
		logrus.Warn("ADS_ADMIN_USER_ID not set, skipping admin profile seed")
		return nil
	}

	id, err := uuid.Parse(adminID)
	if err != nil {
		return fmt.Errorf("invalid admin user id: %w", err)
	}

	admin := models.Profile{
		UserID:      id,
		Username:    "limey_admin",
		DisplayName: "Limey",
		IsAdmin:     true,
	}

	err = db.Where(models.Profile{UserID: id}).
		Attrs(admin).
		FirstOrCreate(&admin).Error
	if err != nil {
		return fmt.Errorf("failed to seed admin profile: %w", err)
	}

	if !admin.IsAdmin {
		if err := db.Model(&admin).Update("is_admin", true).Error; err != nil {
			return fmt.Errorf("failed to flag admin profile: %w", err)
		}
	}

	return nil
}
