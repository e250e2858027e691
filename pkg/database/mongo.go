package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// NewMongoDatabase connects to MongoDB, verifies the primary is reachable and
// returns a handle to the configured database.
func NewMongoDatabase(ctx context.Context, cfg MongoConfig, logger *slog.Logger) (*mongo.Database, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("create mongo client: %w", err)
	}

	err = withStartupRetry(ctx, logger, "mongo", func() error {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return client.Ping(pingCtx, readpref.Primary())
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return client.Database(cfg.Database), nil
}
