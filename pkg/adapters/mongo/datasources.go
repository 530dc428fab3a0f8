// Package mongo provides the MongoDB datasources: users live on the primary
// database and products on the secondary one, each with its own client.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultPrimaryDatabase   = "primary"
	DefaultSecondaryDatabase = "secondary"
	UsersCollection          = "users"
	ProductsCollection       = "products"
	defaultConnectTimeout    = 10 * time.Second
)

// Source configures one datasource.
type Source struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// Config holds both datasources. The primary is the default datasource.
type Config struct {
	Primary   Source `yaml:"primary"`
	Secondary Source `yaml:"secondary"`
}

// Datasources owns the two independently configured clients.
type Datasources struct {
	primary   *mongo.Client
	secondary *mongo.Client
	cfg       Config
}

// Open connects both clients and pings them.
func Open(ctx context.Context, cfg Config) (*Datasources, error) {
	if cfg.Primary.Database == "" {
		cfg.Primary.Database = DefaultPrimaryDatabase
	}
	if cfg.Secondary.Database == "" {
		cfg.Secondary.Database = DefaultSecondaryDatabase
	}

	primary, err := connect(ctx, cfg.Primary.URI)
	if err != nil {
		return nil, fmt.Errorf("primary datasource: %w", err)
	}
	secondary, err := connect(ctx, cfg.Secondary.URI)
	if err != nil {
		_ = primary.Disconnect(context.Background())
		return nil, fmt.Errorf("secondary datasource: %w", err)
	}

	return &Datasources{primary: primary, secondary: secondary, cfg: cfg}, nil
}

func connect(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.New("uri is required")
	}
	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// Primary returns the primary database.
func (d *Datasources) Primary() *mongo.Database {
	return d.primary.Database(d.cfg.Primary.Database)
}

// Secondary returns the secondary database.
func (d *Datasources) Secondary() *mongo.Database {
	return d.secondary.Database(d.cfg.Secondary.Database)
}

// Users returns the users repository bound to the primary datasource.
func (d *Datasources) Users() *UserRepository {
	return NewUserRepository(d.Primary())
}

// Products returns the products repository bound to the secondary datasource.
func (d *Datasources) Products() *ProductRepository {
	return NewProductRepository(d.Secondary())
}

// Close disconnects both clients.
func (d *Datasources) Close(ctx context.Context) error {
	return errors.Join(d.primary.Disconnect(ctx), d.secondary.Disconnect(ctx))
}
