package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/metrics"
	"github.com/cschleiden/go-orchestrations/internal/metrickeys"
)

const (
	instancesCollection = "instances"
	eventsCollection    = "events"
	workItemsCollection = "work_items"
)

type mongoBackend struct {
	db      *mongo.Database
	options *MongoOptions
}

var _ backend.Backend = (*mongoBackend)(nil)

// NewMongoBackend connects to the given deployment and uses the database named app. Transactions require a
// replica set or a sharded cluster.
func NewMongoBackend(uri, app string, opts ...MongoBackendOption) (*mongoBackend, error) {
	bo := backend.ApplyOptions()

	mo := &MongoOptions{
		Options: &bo,
	}

	for _, opt := range opts {
		opt(mo)
	}

	// connect to db
	client, err := mongo.Connect(
		context.Background(),
		options.Client().ApplyURI(uri),
		options.Client().SetAppName(app),
		options.Client().SetConnectTimeout(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo: %w", err)
	}

	b := &mongoBackend{
		db:      client.Database(app),
		options: mo,
	}

	if err := b.createIndexes(context.Background()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return b, nil
}

func (b *mongoBackend) createIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		instancesCollection: {
			{
				Keys:    bson.D{{Key: "task_hub", Value: 1}, {Key: "instance_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "task_hub", Value: 1}, {Key: "created_at", Value: 1}, {Key: "instance_id", Value: 1}},
			},
		},
		eventsCollection: {
			{
				Keys:    bson.D{{Key: "task_hub", Value: 1}, {Key: "instance_id", Value: 1}, {Key: "sequence_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		workItemsCollection: {
			{
				Keys: bson.D{{Key: "task_hub", Value: 1}, {Key: "queue", Value: 1}, {Key: "available_at", Value: 1}},
			},
			{
				Keys: bson.D{{Key: "task_hub", Value: 1}, {Key: "instance_id", Value: 1}},
			},
		},
	}

	for coll, models := range indexes {
		if _, err := b.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating indexes for %s: %w", coll, err)
		}
	}

	return nil
}

// withTransaction runs fn in a transaction. The driver retries transient errors like write conflicts.
func (b *mongoBackend) withTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := b.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})

	return err
}

func (b *mongoBackend) Tracer() trace.Tracer {
	return b.options.TracerProvider.Tracer(backend.TracerName)
}

func (b *mongoBackend) Metrics() metrics.Client {
	return b.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "mongo"})
}

func (b *mongoBackend) Options() *backend.Options {
	return b.options.Options
}

func (b *mongoBackend) Close() error {
	return b.db.Client().Disconnect(context.Background())
}

func (b *mongoBackend) taskHub() string {
	return b.options.TaskHub
}

func (b *mongoBackend) now() int64 {
	return b.options.Clock.Now().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
