package nodestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/starford/facdocs/internal/apperr"
	"github.com/starford/facdocs/internal/models"
)

const (
	itemsCollection      = "doc_items"
	facilitiesCollection = "facilities"
)

// Mongo is the document-database Store driver.
type Mongo struct {
	client     *mongo.Client
	items      *mongo.Collection
	facilities *mongo.Collection
}

// OpenMongo connects to uri, pings the primary and ensures indexes.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("nodestore: connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("nodestore: ping mongo: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client:     client,
		items:      db.Collection(itemsCollection),
		facilities: db.Collection(facilitiesCollection),
	}
	_, err = m.items.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "parentId", Value: 1}, {Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
		{Keys: bson.D{{Key: "storagePath", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("nodestore: ensure indexes: %w", err)
	}
	return m, nil
}

// Close disconnects the client.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *Mongo) CreateNode(ctx context.Context, n *models.Node) error {
	doc := *n
	doc.Tags = nonNil(doc.Tags)
	if _, err := m.items.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("item %q already exists", n.ID)
		}
		return fmt.Errorf("nodestore: insert item: %w", err)
	}
	return nil
}

func (m *Mongo) GetNode(ctx context.Context, id string) (*models.Node, error) {
	var n models.Node
	err := m.items.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("item %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("nodestore: get item: %w", err)
	}
	n.Tags = nonNil(n.Tags)
	return &n, nil
}

func (m *Mongo) UpdateNode(ctx context.Context, n *models.Node) error {
	set := bson.M{
		"name":        n.Name,
		"parentId":    n.ParentID,
		"tags":        nonNil(n.Tags),
		"storagePath": n.StoragePath,
		"size":        n.Size,
		"contentType": n.ContentType,
		"checksum":    n.Checksum,
		"url":         n.URL,
		"updatedAt":   n.UpdatedAt,
	}
	res, err := m.items.UpdateOne(ctx, bson.M{"_id": n.ID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("nodestore: update item: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("item %q not found", n.ID)
	}
	return nil
}

func (m *Mongo) DeleteNode(ctx context.Context, id string) error {
	res, err := m.items.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("nodestore: delete item: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("item %q not found", id)
	}
	return nil
}

func (m *Mongo) ListNodes(ctx context.Context, f Filter) ([]models.Node, error) {
	filter := bson.M{}
	if f.ParentID != "" {
		filter["parentId"] = f.ParentID
	}
	if f.Tag != "" {
		filter["tags"] = f.Tag
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.items.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("nodestore: list items: %w", err)
	}
	defer cur.Close(ctx)

	out := []models.Node{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("nodestore: decode items: %w", err)
	}
	for i := range out {
		out[i].Tags = nonNil(out[i].Tags)
	}
	return out, nil
}

func (m *Mongo) StoragePaths(ctx context.Context) (map[string]struct{}, error) {
	filter := bson.M{"type": string(models.TypeFile), "storagePath": bson.M{"$nin": bson.A{"", nil}}}
	opts := options.Find().SetProjection(bson.M{"storagePath": 1})
	cur, err := m.items.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("nodestore: storage paths: %w", err)
	}
	defer cur.Close(ctx)

	out := make(map[string]struct{})
	for cur.Next(ctx) {
		var doc struct {
			StoragePath string `bson:"storagePath"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out[doc.StoragePath] = struct{}{}
	}
	return out, cur.Err()
}

func (m *Mongo) CreateFacility(ctx context.Context, f *models.Facility) error {
	if _, err := m.facilities.InsertOne(ctx, f); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("facility %q already exists", f.ID)
		}
		return fmt.Errorf("nodestore: insert facility: %w", err)
	}
	return nil
}

func (m *Mongo) GetFacility(ctx context.Context, id string) (*models.Facility, error) {
	var f models.Facility
	err := m.facilities.FindOne(ctx, bson.M{"_id": id}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("facility %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("nodestore: get facility: %w", err)
	}
	return &f, nil
}

func (m *Mongo) ListFacilities(ctx context.Context) ([]models.Facility, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.facilities.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("nodestore: list facilities: %w", err)
	}
	defer cur.Close(ctx)
	out := []models.Facility{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("nodestore: decode facilities: %w", err)
	}
	return out, nil
}
