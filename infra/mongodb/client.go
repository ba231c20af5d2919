package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/webitel/im-presence-service/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	retryBackoff   = 500 * time.Millisecond
	authFailedCode = 18
)

// Client owns the driver connection pool and the selected database handle.
type Client struct {
	cli *mongo.Client
	db  *mongo.Database
}

func (c *Client) Database() *mongo.Database { return c.db }

// Connect dials MongoDB and verifies the primary with a ping, retrying
// transient failures up to cfg.ConnectRetries times.
func Connect(ctx context.Context, cfg config.MongoConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo: uri is required")
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetAppName("im-presence-service")
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout).
			SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	attempts := max(cfg.ConnectRetries, 1)

	var (
		cli *mongo.Client
		err error
	)
	for i := range attempts {
		cli, err = dial(ctx, opts)
		if err == nil {
			break
		}
		logger.Warn("MONGO_CONNECT_FAILED", "attempt", i+1, "of", attempts, "err", err)
		if !shouldRetry(ctx, err) || i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("mongo: connect: %w", ctx.Err())
		case <-time.After(retryBackoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: connect after %d attempts: %w", attempts, err)
	}

	logger.Info("MONGO_CONNECTED", "database", cfg.Database)
	return &Client{cli: cli, db: cli.Database(cfg.Database)}, nil
}

func dial(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	return cli, nil
}

// shouldRetry gives up on configuration errors (bad URI, auth) and retries
// everything else while the caller is still waiting.
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == authFailedCode {
		return false
	}
	return !errors.Is(err, mongo.ErrClientDisconnected)
}

// Close drains the connection pool.
func (c *Client) Close(ctx context.Context) error {
	return c.cli.Disconnect(ctx)
}
