package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

type Client struct {
	DB *mongo.Database
}

// New connects to uri. Transactions need a replica set or sharded cluster.
func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// Store bundles the repositories that share one database.
type Store struct {
	Guides      *GuideRepository
	Bookings    *BookingRepository
	Idempotency *IdempotencyStore
}

// NewStore builds the repositories and creates their indexes.
func NewStore(ctx context.Context, db *mongo.Database, idempotencyTTL time.Duration) (*Store, error) {
	s := &Store{
		Guides:      NewGuideRepository(db),
		Bookings:    NewBookingRepository(db),
		Idempotency: NewIdempotencyStore(db, idempotencyTTL),
	}
	if err := s.Bookings.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	if err := s.Idempotency.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Factory returns a unit of work factory over the store's repositories.
func (s *Store) Factory(db *mongo.Database) Factory {
	return Factory{DB: db, GuidesRepo: s.Guides, BookingsRepo: s.Bookings}
}
