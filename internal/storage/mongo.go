package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo connects to MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// slotDocument is the stored shape: {_id: key, value: "<json>"}.
type slotDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoSlot keeps the collection in one document of a MongoDB collection.
type MongoSlot struct {
	Collection *mongo.Collection
	Key        string
}

// Load reads the document stored under the slot key.
func (s *MongoSlot) Load(ctx context.Context) ([]byte, error) {
	if s.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	var doc slotDocument
	err := s.Collection.FindOne(ctx, bson.M{"_id": s.Key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc.Value), nil
}

// Save replaces (or inserts) the document stored under the slot key.
func (s *MongoSlot) Save(ctx context.Context, data []byte) error {
	if s.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	doc := slotDocument{Key: s.Key, Value: string(data), UpdatedAt: time.Now()}
	_, err := s.Collection.ReplaceOne(ctx, bson.M{"_id": s.Key}, doc, options.Replace().SetUpsert(true))
	return err
}
