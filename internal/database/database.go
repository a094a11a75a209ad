package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wisprad/backend/internal/config"
)

var (
	DB    *gorm.DB
	Redis *redis.Client
)

// Connect opens the SQLite store and, when configured, the Redis cache.
// The store is a single local file; WAL journaling lets the RADIUS and
// HTTP handlers read concurrently while writes stay serialized.
func Connect(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", cfg.DatabasePath)

	var err error
	DB, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.DatabasePath, err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY churn
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Printf("Database opened at %s", cfg.DatabasePath)

	// Redis is an optional cache tier. Without it the in-process fallback
	// in cache.go covers token revocation and user lookups.
	if cfg.RedisAddr != "" {
		Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := Redis.Ping(ctx).Result(); err != nil {
			log.Printf("WARNING: Redis at %s unreachable (%v) - falling back to in-process cache", cfg.RedisAddr, err)
			Redis = nil
		} else {
			log.Println("Redis connected successfully")
		}
	}

	return nil
}

func Close() {
	if DB != nil {
		if sqlDB, err := DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if Redis != nil {
		Redis.Close()
	}
}
