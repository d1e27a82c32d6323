package main

import (
	"context"
	"database/sql"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awsdynamodb "github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/hashicorp/go-hclog"
	"github.com/jjeffery/ddbsessions/internal/config"
	"github.com/jjeffery/ddbsessions/storage"
	"github.com/jjeffery/ddbsessions/storage/dynamodb"
	"github.com/jjeffery/ddbsessions/storage/memory"
	"github.com/jjeffery/ddbsessions/storage/postgres"
	redisstorage "github.com/jjeffery/ddbsessions/storage/redis"
	"github.com/jjeffery/errors"
	"github.com/redis/go-redis/v9"
)

// backend is the storage provider selected by configuration, and
// a function that releases its resources.
type backend struct {
	storage.Provider
	close func() error
}

// openBackend creates the storage provider named by cfg.Backend.
func openBackend(cfg *config.Config, logger hclog.Logger) (*backend, error) {
	switch cfg.Backend {
	case "dynamodb":
		awscfg := aws.NewConfig()
		if cfg.DynamoDB.Region != "" {
			awscfg = awscfg.WithRegion(cfg.DynamoDB.Region)
		}
		if cfg.DynamoDB.Endpoint != "" {
			awscfg = awscfg.WithEndpoint(cfg.DynamoDB.Endpoint)
		}
		sess, err := session.NewSessionWithOptions(session.Options{
			Config:            *awscfg,
			SharedConfigState: session.SharedConfigEnable,
		})
		if err != nil {
			return nil, errors.Wrap(err, "cannot create aws session")
		}
		db := dynamodb.New(awsdynamodb.New(sess), cfg.DynamoDB.Table)
		db.Logger = logger.Named("dynamodb")
		db.Table = dynamodb.TableOptions{
			ReadCapacity:  cfg.DynamoDB.ReadCapacity,
			WriteCapacity: cfg.DynamoDB.WriteCapacity,
			MaxAttempts:   cfg.DynamoDB.MaxAttempts,
			InitialDelay:  cfg.DynamoDB.InitialDelay,
			MaxDelay:      cfg.DynamoDB.MaxDelay,
		}
		return &backend{Provider: db, close: noClose}, nil

	case "postgres":
		sqldb, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "cannot open database")
		}
		return &backend{Provider: postgres.New(sqldb, cfg.Postgres.Table), close: sqldb.Close}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		db := redisstorage.New(client)
		db.Prefix = cfg.Redis.Prefix
		return &backend{Provider: db, close: client.Close}, nil

	case "memory":
		return &backend{Provider: memory.New(), close: noClose}, nil
	}
	return nil, errors.New("unknown backend").With("backend", cfg.Backend)
}

// provision prepares the backend storage, dropping it first if drop is set.
// Backends that need no preparation are left alone.
func (b *backend) provision(ctx context.Context, drop bool) (bool, error) {
	if drop {
		if dropper, ok := b.Provider.(interface{ DropTable(context.Context) error }); ok {
			if err := dropper.DropTable(ctx); err != nil {
				return false, err
			}
		}
	}
	provisioner, ok := b.Provider.(storage.Provisioner)
	if !ok {
		return false, nil
	}
	if err := provisioner.Provision(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func noClose() error { return nil }
