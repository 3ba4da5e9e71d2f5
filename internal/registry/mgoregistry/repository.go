package mgoregistry

import (
	"context"

	"github.com/denismitr/imgslot/internal/registry"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (r *MongoRegistry) getRecent(ctx context.Context) ([]recentRecord, error) {
	var records []recentRecord

	opts := options.Find().SetSort(newestFirst).SetLimit(int64(r.cfg.Limit))

	cursor, err := r.recent.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrapf(registry.ErrRegistryReadFailed, "mongodb could not find recent uploads: %v", err)
	}

	if err := cursor.All(ctx, &records); err != nil {
		return nil, errors.Wrapf(registry.ErrRegistryReadFailed, "mongodb could not decode recent uploads: %v", err)
	}

	return records, nil
}

func (r *MongoRegistry) getRecentByID(ctx context.Context, id primitive.ObjectID) (*recentRecord, error) {
	var record recentRecord
	if err := r.recent.FindOne(ctx, bson.M{"_id": id}).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(registry.ErrEntityNotFound, "recent upload with ID [%s] not found", id.Hex())
		}

		return nil, errors.Wrapf(registry.ErrRegistryReadFailed, "mongodb could not get recent upload [%s]: %v", id.Hex(), err)
	}

	return &record, nil
}

func (r *MongoRegistry) createRecent(ctx context.Context, record *recentRecord) error {
	result, err := r.recent.InsertOne(ctx, record)
	if err != nil || result == nil {
		return errors.Wrapf(registry.ErrRegistryWriteFailed, "could not insert recent upload into MongoDB collection %v", err)
	}

	return nil
}

// trimRecent drops everything older than the configured limit.
func (r *MongoRegistry) trimRecent(ctx context.Context) error {
	opts := options.Find().
		SetSort(newestFirst).
		SetSkip(int64(r.cfg.Limit)).
		SetProjection(bson.M{"_id": 1})

	cursor, err := r.recent.Find(ctx, bson.M{}, opts)
	if err != nil {
		return errors.Wrapf(registry.ErrRegistryReadFailed, "mongodb could not find stale recent uploads: %v", err)
	}

	var stale []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &stale); err != nil {
		return errors.Wrapf(registry.ErrRegistryReadFailed, "mongodb could not decode stale recent uploads: %v", err)
	}

	if len(stale) == 0 {
		return nil
	}

	ids := make([]primitive.ObjectID, 0, len(stale))
	for _, s := range stale {
		ids = append(ids, s.ID)
	}

	if _, err := r.recent.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return errors.Wrapf(registry.ErrRegistryWriteFailed, "mongodb could not trim recent uploads: %v", err)
	}

	return nil
}
