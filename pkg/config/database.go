package config

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/models"
	"github.com/anonto42/shunye-ott/backend/pkg/retry"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB holds the database connections. Either may be nil when not configured.
type DB struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
	log      zerolog.Logger
}

// InitDB opens the configured databases, retrying each until it answers a ping
func InitDB(ctx context.Context, cfg *Config, log zerolog.Logger) (*DB, error) {
	db := &DB{log: log}

	if cfg.Postgres.ConnStr != "" {
		err := retry.Do(ctx, log, "connect postgres", func() error {
			pg, err := initPostgres(cfg.Postgres.ConnStr)
			if err != nil {
				return err
			}
			db.Postgres = pg
			return nil
		}, retry.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		if err := db.Postgres.AutoMigrate(&models.StorySeen{}); err != nil {
			db.CloseDB()
			return nil, fmt.Errorf("failed to auto migrate models: %w", err)
		}
		log.Info().Msg("connected to PostgreSQL, migrations applied")
	}

	if cfg.Store.Backend == "mongo" {
		err := retry.Do(ctx, log, "connect mongo", func() error {
			client, err := initMongo(ctx, cfg.Mongo.URI)
			if err != nil {
				return err
			}
			db.Mongo = client
			return nil
		}, retry.DefaultConfig())
		if err != nil {
			db.CloseDB()
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")
	}

	return db, nil
}

// initPostgres initializes the PostgreSQL database connection using GORM
func initPostgres(connStr string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err = sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// initMongo initializes the MongoDB connection
func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)
	if err := clientOptions.Validate(); err != nil {
		return nil, retry.Permanent(fmt.Errorf("invalid MONGO_URI: %w", err))
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the primary to verify connection
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// CloseDB closes the database connections
func (db *DB) CloseDB() {
	if db.Postgres != nil {
		sqlDB, err := db.Postgres.DB()
		if err != nil {
			db.log.Error().Err(err).Msg("getting SQL DB from GORM failed")
		} else if err := sqlDB.Close(); err != nil {
			db.log.Error().Err(err).Msg("closing PostgreSQL connection failed")
		} else {
			db.log.Info().Msg("PostgreSQL connection closed")
		}
	}

	if db.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Mongo.Disconnect(ctx); err != nil {
			db.log.Error().Err(err).Msg("closing MongoDB connection failed")
		} else {
			db.log.Info().Msg("MongoDB connection closed")
		}
	}
}
