package storage

import (
	"context"
	"fmt"

	"github.com/annel0/layoutd/internal/config"
	"github.com/annel0/layoutd/internal/logging"
)

// Open создаёт репозиторий записей по конфигурации
func Open(ctx context.Context, cfg config.StorageConfig) (RecordRepo, error) {
	log := logging.GetStorageLogger()

	switch cfg.Backend {
	case "", "memory":
		log.Warn("⚠️ Записи хранятся в памяти и будут потеряны при перезапуске")
		return NewMemoryRecordRepo(), nil

	case "badger":
		repo, err := NewBadgerRecordRepo(cfg.BadgerDir)
		if err != nil {
			return nil, err
		}
		log.Info("💾 BadgerDB открыта: %s", cfg.BadgerDir)
		return repo, nil

	case "maria":
		repo, err := NewMariaRecordRepo(cfg.Maria.DSN())
		if err != nil {
			return nil, err
		}
		log.Info("💾 MariaDB подключена: %s:%d/%s", cfg.Maria.Host, cfg.Maria.Port, cfg.Maria.Database)
		return repo, nil

	case "mongo":
		repo, err := NewMongoRecordRepo(ctx, MongoRecordConfig{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		log.Info("💾 MongoDB подключена: %s", cfg.Mongo.Database)
		return repo, nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
