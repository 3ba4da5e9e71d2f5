package mgoregistry

import (
	"context"
	"time"

	"github.com/denismitr/imgslot/internal/media"
	"github.com/denismitr/imgslot/internal/registry"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

type Config struct {
	DB               string
	RecentCollection string
	Limit            int
	// Transactions need a replica set, standalone servers must leave it off
	UseTransactions bool
}

type MongoRegistry struct {
	cfg    Config
	client *mongo.Client
	db     *mongo.Database
	recent *mongo.Collection
}

func New(client *mongo.Client, cfg Config) *MongoRegistry {
	if cfg.Limit <= 0 {
		cfg.Limit = registry.DefaultLimit
	}

	if cfg.RecentCollection == "" {
		cfg.RecentCollection = "recent_uploads"
	}

	r := MongoRegistry{
		cfg:    cfg,
		client: client,
		db:     client.Database(cfg.DB),
	}

	r.recent = r.db.Collection(cfg.RecentCollection)

	return &r
}

func (r *MongoRegistry) Migrate(ctx context.Context) error {
	_, err := r.recent.Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		},
	)

	if err != nil {
		return errors.Wrap(err, "could not create index on recent uploads collection")
	}

	return nil
}

func (r *MongoRegistry) List(ctx context.Context) ([]media.RecentUpload, error) {
	records, err := r.getRecent(ctx)
	if err != nil {
		return nil, err
	}

	return mapMongoRecordsToRecentUploads(records), nil
}

func (r *MongoRegistry) Append(ctx context.Context, content []byte, mime string, size int) ([]media.RecentUpload, error) {
	record := newRecentRecord(primitive.NewObjectID(), content, mime, size, time.Now())

	write := func(ctx context.Context) error {
		if err := r.createRecent(ctx, record); err != nil {
			return err
		}

		return r.trimRecent(ctx)
	}

	var err error
	if r.cfg.UseTransactions {
		err = r.transaction(ctx, 3*time.Second, func(sessCtx mongo.SessionContext) error {
			return write(sessCtx)
		})
	} else {
		err = write(ctx)
	}

	if err != nil {
		return nil, errors.Wrap(err, "could not append recent upload")
	}

	return r.List(ctx)
}

func (r *MongoRegistry) Get(ctx context.Context, id media.ID) (*media.RecentUpload, error) {
	objectID, err := primitive.ObjectIDFromHex(id.String())
	if err != nil {
		return nil, errors.Wrapf(registry.ErrInvalidID, "%s is not an object id", id.String())
	}

	record, err := r.getRecentByID(ctx, objectID)
	if err != nil {
		return nil, err
	}

	upload := mapMongoRecordToRecentUpload(record)

	return &upload, nil
}

func (r *MongoRegistry) Clear(ctx context.Context) error {
	if _, err := r.recent.DeleteMany(ctx, bson.M{}); err != nil {
		return errors.Wrapf(registry.ErrRegistryWriteFailed, "mongodb could not clear recent uploads: %v", err)
	}

	return nil
}

func (r *MongoRegistry) transaction(ctx context.Context, commitTime time.Duration, f func(sessCtx mongo.SessionContext) error) error {
	txnOpts := options.Transaction().
		SetWriteConcern(writeconcern.Majority()).
		SetReadConcern(readconcern.Snapshot()).
		SetMaxCommitTime(&commitTime)

	sess, err := r.client.StartSession()
	if err != nil {
		return errors.Wrapf(registry.ErrCouldNotOpenTx, "mongo db session failed %v", err)
	}

	defer sess.EndSession(ctx)

	_, txErr := sess.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if err := f(sessCtx); err != nil {
			return nil, err
		}

		return nil, nil
	}, txnOpts)

	return txErr
}
