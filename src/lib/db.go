package lib

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/theleywin/Backend-Social-Feed/src/store"
)

// ConnectMongo opens the document store and makes sure its indexes exist.
func ConnectMongo(ctx context.Context, cfg Config) (*store.MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	s := store.NewMongoStore(client, cfg.MongoDatabase)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	slog.Info("Connected to MongoDB", "database", cfg.MongoDatabase)
	return s, nil
}

// ConnectSQLite opens the sqlite file at path and migrates the schema.
func ConnectSQLite(path string) (*store.SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(&store.TracingPlugin{}); err != nil {
		return nil, err
	}

	// sqlite allows one writer at a time.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	s := store.NewSQLStore(db)
	if err := s.AutoMigrate(); err != nil {
		return nil, err
	}

	slog.Info("Connected to SQLite", "path", path)
	return s, nil
}

// OpenStores builds the document store and the image store for the configured driver.
func OpenStores(ctx context.Context, cfg Config) (store.Store, store.BlobStore, error) {
	switch cfg.StoreDriver {
	case StoreMongo:
		s, err := ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		blobs, err := store.NewGridFSBlobs(s.Database())
		if err != nil {
			return nil, nil, err
		}
		return s, blobs, nil
	case StoreSQLite:
		s, err := ConnectSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		blobs, err := store.NewDiskBlobs(cfg.UploadDir)
		if err != nil {
			return nil, nil, err
		}
		return s, blobs, nil
	default:
		blobs, err := store.NewDiskBlobs(cfg.UploadDir)
		if err != nil {
			return nil, nil, err
		}
		slog.Warn("Using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), blobs, nil
	}
}
