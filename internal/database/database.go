// internal/database/database.go
// 儲存層初始化 - 依 STORE_DRIVER 建立 PostgreSQL 或 MongoDB 儲存

package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
	"mail-dispatch/internal/repository"
	mongostore "mail-dispatch/internal/repository/mongo"
	pgstore "mail-dispatch/internal/repository/postgres"
)

// Open 建立儲存層並完成 migration / 索引
func Open(ctx context.Context, cfg *config.Config) (*repository.Repositories, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		return openMongo(ctx, cfg)
	case config.StoreDriverPostgres, "":
		return openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.StoreDriver)
	}
}

func openPostgres(cfg *config.Config) (*repository.Repositories, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.Env == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.DeliveryRecord{},
		&models.ClickedLink{},
		&models.DeliveryAttachment{},
		&models.EmailTemplate{},
		&models.ClientToken{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Println("Database migrated successfully")

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 設定連接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &repository.Repositories{
		Deliveries:   pgstore.NewDeliveryRepository(db),
		Templates:    pgstore.NewTemplateRepository(db),
		ClientTokens: pgstore.NewClientTokenRepository(db),
		Ping:         sqlDB.PingContext,
		Close: func(context.Context) error {
			return sqlDB.Close()
		},
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config) (*repository.Repositories, error) {
	client, err := mongostore.Connect(ctx, cfg.MongoURL, cfg.StoreTimeout)
	if err != nil {
		return nil, err
	}

	db := client.Database(cfg.MongoDatabase)
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	log.Println("MongoDB indexes ensured")

	return &repository.Repositories{
		Deliveries:   mongostore.NewDeliveryRepository(db),
		Templates:    mongostore.NewTemplateRepository(db),
		ClientTokens: mongostore.NewClientTokenRepository(db),
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		Close: client.Disconnect,
	}, nil
}
