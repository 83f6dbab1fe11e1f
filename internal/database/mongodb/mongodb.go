// Package mongodb is the document database.Store. Friend requests carry a
// canonical pair_key with a unique index so the one-request-per-pair rule holds
// under concurrent sends.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jason-s-yu/streamify/internal/database"
)

const (
	usersCollection          = "users"
	friendRequestsCollection = "friend_requests"
)

// Config selects the deployment and database.
type Config struct {
	URI         string
	Database    string
	MaxPoolSize uint64
}

// Store wraps a connected client and database handle.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ database.Store = (*Store)(nil)

// Connect dials the deployment, pings it and ensures indexes.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping error: %w", err)
	}

	s := &Store{client: client, db: client.Database(cfg.Database)}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique and lookup indexes. Safe to call repeatedly.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "is_onboarded", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	_, err = s.db.Collection(friendRequestsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create friend request indexes: %w", err)
	}
	return nil
}

func (s *Store) Users() database.Users {
	return &users{coll: s.db.Collection(usersCollection)}
}

func (s *Store) FriendRequests() database.FriendRequests {
	return &friendRequests{
		coll:  s.db.Collection(friendRequestsCollection),
		users: s.db.Collection(usersCollection),
	}
}

func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

// translate maps driver errors onto the database sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return database.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", database.ErrDuplicate, err)
	}
	return err
}
