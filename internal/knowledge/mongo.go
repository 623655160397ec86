package knowledge

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lewisedginton/triage_assistant/internal/embedding"
)

// DefaultCollection is the collection the catalogue is kept in.
const DefaultCollection = "medical_knowledge"

// LoadMongo reads every condition document from coll in insertion (_id) order.
func LoadMongo(ctx context.Context, coll *mongo.Collection, embedder embedding.Embedder) (*KnowledgeBase, error) {
	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	var records []ConditionRecord
	for cursor.Next(ctx) {
		var rec ConditionRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode condition document: %w", err)
		}
		records = append(records, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	kb, err := New(ctx, records, embedder)
	if err != nil {
		return nil, fmt.Errorf("invalid knowledge in collection %s: %w", coll.Name(), err)
	}
	return kb, nil
}

// SeedMongo replaces the collection contents with records.
func SeedMongo(ctx context.Context, coll *mongo.Collection, records []ConditionRecord) error {
	if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear %s: %w", coll.Name(), err)
	}
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, len(records))
	for i, r := range records {
		docs[i] = r
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to seed %s: %w", coll.Name(), err)
	}
	return nil
}
