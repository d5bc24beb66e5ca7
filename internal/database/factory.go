package database

import (
	"fmt"
	"path/filepath"

	"vfm-go/internal/config"
	"vfm-go/internal/vfm"
)

const defaultMongoDatabase = "vfm"

// NewStoreFromConfig creates a MetadataStore implementation based on the database config type.
// The returned store is not yet initialized.
func NewStoreFromConfig(cfg config.DatabaseConfig, clock vfm.Clock, logger vfm.Logger) (vfm.MetadataStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "vfm.db"), clock, logger), nil
	case "memory":
		return NewSQLiteStore(":memory:", clock, logger), nil
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("mongo_uri required for mongo database")
		}
		name := cfg.MongoDatabase
		if name == "" {
			name = defaultMongoDatabase
		}
		return NewMongoStore(cfg.MongoURI, name, clock, logger), nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
