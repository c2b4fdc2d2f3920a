package journal

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for the MongoDB journal.
type MongoConfig struct {
	URI        string // e.g. mongodb://localhost:27017
	Database   string // e.g. treefell
	Collection string // e.g. chops
}

// Mongo implements Journal on MongoDB backend.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

// NewMongo establishes connection and returns journal.
func NewMongo(cfg MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "treefell"
	}
	if cfg.Collection == "" {
		cfg.Collection = "chops"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	j := &Mongo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
	}
	if err := j.ensureIndexes(); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return j, nil
}

func (m *Mongo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	finishedIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "finished_at", Value: -1}},
		Options: options.Index().SetName("finished_at_desc"),
	}
	playerIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "player_id", Value: 1}},
		Options: options.Index().SetName("player_id"),
	}
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{finishedIdx, playerIdx})
	return err
}

// Append implements Journal.
func (m *Mongo) Append(ctx context.Context, r Record) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	_, err := m.collection.InsertOne(ctx, r)
	return err
}

// Recent implements Journal.
func (m *Mongo) Recent(ctx context.Context, n int) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "finished_at", Value: -1}})
	if n > 0 {
		opts.SetLimit(int64(n))
	}
	cur, err := m.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close disconnects the client.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
