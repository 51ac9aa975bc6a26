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

// MongoRecordConfig contains connection settings for the MongoDB record repository.
type MongoRecordConfig struct {
	URI        string // e.g. mongodb://localhost:27017
	Database   string // e.g. layoutd
	Collection string // e.g. layouts
}

// MongoRecordRepo implements RecordRepo on MongoDB backend.
type MongoRecordRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoRecordRepo establishes connection and returns repository.
func NewMongoRecordRepo(ctx context.Context, cfg MongoRecordConfig) (*MongoRecordRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "layoutd"
	}
	if cfg.Collection == "" {
		cfg.Collection = "layouts"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	repo := &MongoRecordRepo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}

	ownerIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("owner_created"),
	}
	if _, err := repo.collection.Indexes().CreateOne(ctx, ownerIdx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	return repo, nil
}

// Save upserts the record by id.
func (m *MongoRecordRepo) Save(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	doc := *rec
	doc.CreatedAt = doc.CreatedAt.UTC()

	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": rec.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save record %s: %w", rec.ID, err)
	}
	return nil
}

func (m *MongoRecordRepo) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return &rec, nil
}

func (m *MongoRecordRepo) List(ctx context.Context, owner string, limit int) ([]*Record, error) {
	filter := bson.M{}
	if owner != "" {
		filter["owner"] = owner
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(normalizeLimit(limit)))

	cur, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer cur.Close(ctx)

	var result []*Record
	if err := cur.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return result, nil
}

func (m *MongoRecordRepo) Delete(ctx context.Context, id string) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return nil
}

// Close disconnects the client.
func (m *MongoRecordRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
