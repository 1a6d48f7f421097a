package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/docstore"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
)

// Supported document store drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite"
)

// Options selects and locates the document store backend.
type Options struct {
	Driver        string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	SQLitePath    string
	// Timeout bounds each collection call. Zero means no bound.
	Timeout time.Duration
}

// Collections holds the three logical collections on one backend.
type Collections struct {
	Offers  docstore.Collection[string, model.Offer]
	Users   docstore.Collection[int64, model.User]
	Finders docstore.Collection[string, model.Finder]

	close func(context.Context) error
}

// Close releases the backend connection.
func (c *Collections) Close(ctx context.Context) error {
	if c.close == nil {
		return nil
	}
	return c.close(ctx)
}

// Open connects to the configured backend and prepares the offers, users
// and finders collections.
func Open(ctx context.Context, opts Options) (*Collections, error) {
	var (
		c   *Collections
		err error
	)
	switch opts.Driver {
	case DriverPostgres:
		c, err = openPostgres(ctx, opts.DatabaseURL)
	case DriverMongo:
		c, err = openMongo(ctx, opts.MongoURI, opts.MongoDatabase)
	case DriverSQLite:
		c, err = openSQLite(ctx, opts.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	c.Offers = docstore.WithTimeout(c.Offers, opts.Timeout)
	c.Users = docstore.WithTimeout(c.Users, opts.Timeout)
	c.Finders = docstore.WithTimeout(c.Finders, opts.Timeout)
	return c, nil
}

func openPostgres(ctx context.Context, url string) (*Collections, error) {
	pool, err := NewPostgresPool(ctx, url)
	if err != nil {
		return nil, err
	}
	c := &Collections{close: func(context.Context) error { pool.Close(); return nil }}

	if c.Offers, err = docstore.NewPostgres[string, model.Offer](ctx, pool, "offers"); err != nil {
		pool.Close()
		return nil, err
	}
	if c.Users, err = docstore.NewPostgres[int64, model.User](ctx, pool, "users"); err != nil {
		pool.Close()
		return nil, err
	}
	if c.Finders, err = docstore.NewPostgres[string, model.Finder](ctx, pool, "finders"); err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

func openMongo(ctx context.Context, uri, database string) (*Collections, error) {
	client, err := NewMongoClient(ctx, uri)
	if err != nil {
		return nil, err
	}
	mdb := client.Database(database)
	c := &Collections{close: client.Disconnect}

	if c.Offers, err = docstore.NewMongo[string, model.Offer](ctx, mdb.Collection("offers"), "data_id"); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	if c.Users, err = docstore.NewMongo[int64, model.User](ctx, mdb.Collection("users"), "chat_id"); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	if c.Finders, err = docstore.NewMongo[string, model.Finder](ctx, mdb.Collection("finders"), "finder_id"); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return c, nil
}

func openSQLite(ctx context.Context, path string) (*Collections, error) {
	conn, err := OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	c := &Collections{close: func(context.Context) error { return conn.Close() }}

	if c.Offers, err = docstore.NewSQLite[string, model.Offer](ctx, conn, "offers"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if c.Users, err = docstore.NewSQLite[int64, model.User](ctx, conn, "users"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if c.Finders, err = docstore.NewSQLite[string, model.Finder](ctx, conn, "finders"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}
