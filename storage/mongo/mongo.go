// Package mongo implements the connection storage on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ipfs-force-community/sophon-connector/storage"
)

var log = logging.Logger("storage_mongo")

const (
	DefaultDatabase   = "sophon"
	DefaultCollection = "connector_kv"
)

var _ storage.Storage = (*Storage)(nil)

// Storage keeps one document per key: {_id: key, value: value}.
type Storage struct {
	c   *mgo.Client
	col *mgo.Collection
}

type item struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// New connects to uri and uses database/collection, falling back to the
// defaults when empty.
func New(ctx context.Context, uri, database, collection string) (*Storage, error) {
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c, err := mgo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}
	if err = c.Ping(ctx, nil); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, fmt.Errorf("cannot ping mongo DB in %s: %w", uri, err)
	}
	log.Infof("connected to mongo %s/%s", database, collection)

	return &Storage{c: c, col: c.Database(database).Collection(collection)}, nil
}

func (s *Storage) Close(ctx context.Context) error {
	return s.c.Disconnect(ctx)
}

func (s *Storage) GetItem(ctx context.Context, key string) (string, bool, error) {
	var it item
	err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&it)
	if errors.Is(err, mgo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get item %s: %w", key, err)
	}
	return it.Value, true, nil
}

func (s *Storage) SetItem(ctx context.Context, key, value string) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.D{{Key: "$set", Value: bson.D{{Key: "value", Value: value}}}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set item %s: %w", key, err)
	}
	return nil
}

func (s *Storage) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("remove item %s: %w", key, err)
	}
	return nil
}
