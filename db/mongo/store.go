// Package mongo implements db.Store on MongoDB with one collection per
// resource.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adeilh/emergency-backend/db"
)

var ErrMissingURI = errors.New("mongo: URI is required")

const (
	colUsers         = "users"
	colIncidents     = "incidents"
	colTyphoons      = "typhoons"
	colSubscriptions = "push_subscriptions"
	colNotifications = "notification_logs"
	colEvents        = "analytics_events"
	colStatus        = "status_checks"
)

// Store persists every resource in a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ db.Store = (*Store)(nil)

// Connect dials MongoDB and verifies the deployment answers a ping.
func Connect(ctx context.Context, opts ...Option) (*Store, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.URI == "" {
		return nil, ErrMissingURI
	}

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetServerSelectionTimeout(cfg.ConnectTimeout)
	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return &Store{client: client, db: client.Database(cfg.Database)}, nil
}

// Database exposes the underlying database handle.
func (s *Store) Database() *mongo.Database { return s.db }

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

// Migrate creates the indexes backing the query patterns.
func (s *Store) Migrate(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		colIncidents: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "priority", Value: 1}}},
			{Keys: bson.D{{Key: "fullName", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "priority", Value: 1}}},
		},
		colTyphoons: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colSubscriptions: {
			{Keys: bson.D{{Key: "endpoint", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "active", Value: 1}}},
		},
		colNotifications: {
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
		colEvents: {
			{Keys: bson.D{{Key: "timestamp", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.col(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Stats(ctx context.Context) (db.Stats, error) {
	var raw struct {
		DataSize    float64 `bson:"dataSize"`
		Collections int     `bson:"collections"`
	}
	if err := s.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&raw); err != nil {
		return db.Stats{}, fmt.Errorf("mongo: dbStats: %w", err)
	}
	mb := raw.DataSize / (1024 * 1024)
	return db.Stats{
		Driver:      "mongo",
		StorageMB:   float64(int64(mb*100+0.5)) / 100,
		Collections: raw.Collections,
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return db.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", db.ErrConflict, err)
	default:
		return err
	}
}

func byID(id string) bson.D {
	return bson.D{{Key: "id", Value: id}}
}

func timeRange(filter bson.D, field string, since, until time.Time) bson.D {
	cond := bson.D{}
	if !since.IsZero() {
		cond = append(cond, bson.E{Key: "$gte", Value: since})
	}
	if !until.IsZero() {
		cond = append(cond, bson.E{Key: "$lte", Value: until})
	}
	if len(cond) > 0 {
		filter = append(filter, bson.E{Key: field, Value: cond})
	}
	return filter
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]T, error) {
	cur, err := c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, translateError(err)
	}
	out := make([]T, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

func findOne[T any](ctx context.Context, c *mongo.Collection, filter bson.D) (T, error) {
	var v T
	if err := c.FindOne(ctx, filter).Decode(&v); err != nil {
		var zero T
		return zero, translateError(err)
	}
	return v, nil
}

func replaceByID(ctx context.Context, c *mongo.Collection, id string, doc any) error {
	res, err := c.ReplaceOne(ctx, byID(id), doc)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, c *mongo.Collection, id string) error {
	res, err := c.DeleteOne(ctx, byID(id))
	if err != nil {
		return translateError(err)
	}
	if res.DeletedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func page(skip, limit int) *options.FindOptionsBuilder {
	o := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "id", Value: -1}}).
		SetLimit(int64(db.ClampLimit(limit)))
	if skip > 0 {
		o.SetSkip(int64(skip))
	}
	return o
}
