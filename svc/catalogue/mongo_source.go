package catalogue

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// PlansCollection is the collection plans are persisted in.
const PlansCollection = "plans"

// MongoSource persists plans in MongoDB.
type MongoSource struct {
	coll *mongo.Collection
}

// NewMongoSource creates a source over the plans collection of db.
func NewMongoSource(db *mongo.Database) *MongoSource {
	return &MongoSource{coll: db.Collection(PlansCollection)}
}

// Indexes returns the index models the plans collection requires.
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		PlansCollection: {
			{Keys: bson.D{{Key: "plan_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
}

func (s *MongoSource) Load(ctx context.Context) ([]Plan, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "sort_order", Value: 1}}))
	if err != nil {
		return nil, errors.Join(ErrLoadFailed, err)
	}
	var plans []Plan
	if err := cur.All(ctx, &plans); err != nil {
		return nil, errors.Join(ErrLoadFailed, err)
	}
	return plans, nil
}

// Save upserts every plan by plan_id.
func (s *MongoSource) Save(ctx context.Context, plans []Plan) error {
	for _, p := range plans {
		_, err := s.coll.ReplaceOne(ctx,
			bson.D{{Key: "plan_id", Value: p.ID}},
			p,
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			return errors.Join(ErrSeedFailed, err)
		}
	}
	return nil
}
