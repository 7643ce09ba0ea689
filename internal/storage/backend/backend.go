// Package backend opens the message store and social graph for the configured
// DATABASE.TYPE.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dm-go/internal/config"
	"dm-go/internal/logger"
	"dm-go/internal/storage"
	"dm-go/internal/storage/mongostore"
)

// Backend bundles the repositories of one database.
type Backend struct {
	Type     string
	Messages storage.MessageRepository
	Users    storage.UserRepository
	close    func(ctx context.Context) error
}

// Close releases the underlying connection.
func (b *Backend) Close(ctx context.Context) error {
	if b.close == nil {
		return nil
	}
	return b.close(ctx)
}

// Open connects to postgres (via gorm, with auto-migration) or MongoDB.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Backend, error) {
	switch cfg.Type {
	case "postgres":
		db, err := storage.InitDB(cfg)
		if err != nil {
			return nil, err
		}
		if err := storage.AutoMigrateTables(db); err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql.DB: %w", err)
		}
		return &Backend{
			Type:     cfg.Type,
			Messages: storage.NewGormMessageRepository(db),
			Users:    storage.NewGormUserRepository(db),
			close:    func(context.Context) error { return sqlDB.Close() },
		}, nil

	case "mongo":
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.DBName)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		logger.Info("database connected", zap.String("type", cfg.Type), zap.String("db", cfg.DBName))
		return &Backend{
			Type:     cfg.Type,
			Messages: mongostore.NewMessageRepository(db),
			Users:    mongostore.NewUserRepository(db),
			close:    client.Disconnect,
		}, nil
	}
	return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
}
