// driver/mongo/mongo.go
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/chmenegatti/typeprefs/pkg/backends"
	"github.com/chmenegatti/typeprefs/pkg/backends/common"
	"github.com/chmenegatti/typeprefs/pkg/config"
)

// Name is the registry name of this backend.
const Name = "mongodb"

var _ common.Backend = (*Backend)(nil)

func init() {
	backends.Register(Name, func() common.Backend { return New() })
}

// preferenceDoc is the stored document: the key doubles as _id.
type preferenceDoc struct {
	Key   string `bson:"_id"`
	Value int64  `bson:"value"`
}

// Backend stores one document per preference in a MongoDB collection.
type Backend struct {
	connMu     sync.RWMutex
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// New returns an unopened MongoDB backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string { return Name }

// Open connects with cfg.DSN (a mongodb:// URI) and uses collection cfg.Table
// of database cfg.Database.
func (b *Backend) Open(cfg config.StoreConfig) error {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if b.client != nil {
		return fmt.Errorf("mongo: %w", common.ErrAlreadyOpen)
	}
	if cfg.DSN == "" {
		return errors.New("mongo: URI (dsn) is required")
	}
	if cfg.Database == "" || cfg.Table == "" {
		return errors.New("mongo: database and collection (table) names are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.DSN)
	if cfg.Pool.MaxOpenConns > 0 {
		clientOptions.SetMaxPoolSize(uint64(cfg.Pool.MaxOpenConns))
	}
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("mongo: failed to connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("mongo: failed to verify connection: %w", err)
	}

	b.client = client
	b.collection = client.Database(cfg.Database).Collection(cfg.Table)
	b.timeout = timeout
	zap.L().Info("mongo backend opened",
		zap.String("database", cfg.Database), zap.String("collection", cfg.Table))
	return nil
}

// Collection returns the underlying collection, or nil when not open.
func (b *Backend) Collection() *mongo.Collection {
	b.connMu.RLock()
	defer b.connMu.RUnlock()
	return b.collection
}

func (b *Backend) conn() (*mongo.Client, *mongo.Collection, error) {
	b.connMu.RLock()
	defer b.connMu.RUnlock()
	if b.client == nil {
		return nil, nil, fmt.Errorf("mongo: %w", common.ErrNotOpen)
	}
	return b.client, b.collection, nil
}

func (b *Backend) Close() error {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if b.client == nil {
		return fmt.Errorf("mongo: %w", common.ErrNotOpen)
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	err := b.client.Disconnect(ctx)
	b.client, b.collection = nil, nil
	if err != nil {
		return fmt.Errorf("mongo: disconnect: %w", err)
	}
	return nil
}

func (b *Backend) Ping(ctx context.Context) error {
	client, _, err := b.conn()
	if err != nil {
		return err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo: ping: %w", err)
	}
	return nil
}

func (b *Backend) GetInt(ctx context.Context, key string) (int, bool, error) {
	_, coll, err := b.conn()
	if err != nil {
		return 0, false, err
	}
	var doc preferenceDoc
	err = coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("mongo: get '%s': %w", key, err)
	}
	return int(doc.Value), true, nil
}

func (b *Backend) PutInt(ctx context.Context, key string, value int) error {
	_, coll, err := b.conn()
	if err != nil {
		return err
	}
	doc := preferenceDoc{Key: key, Value: int64(value)}
	_, err = coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: put '%s': %w", key, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	_, coll, err := b.conn()
	if err != nil {
		return err
	}
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongo: delete '%s': %w", key, err)
	}
	return nil
}

func (b *Backend) Keys(ctx context.Context) ([]string, error) {
	_, coll, err := b.conn()
	if err != nil {
		return nil, err
	}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1})
	cursor, err := coll.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo: list keys: %w", err)
	}
	defer cursor.Close(ctx)

	keys := make([]string, 0)
	for cursor.Next(ctx) {
		var doc preferenceDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode key: %w", err)
		}
		keys = append(keys, doc.Key)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo: iterate keys: %w", err)
	}
	return keys, nil
}
