package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/example/localdelivery/pkg/config"
	"github.com/example/localdelivery/pkg/errs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Dialer opens a client for cfg. Swapped out in tests.
type Dialer func(ctx context.Context, cfg *config.MongoDBConfig) (*mongo.Client, error)

func dialMongo(ctx context.Context, cfg *config.MongoDBConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// MongoRepository owns the process-wide client. The client is dialed on
// first use and reused until a network error invalidates it, after which
// the next call dials again.
type MongoRepository struct {
	config *config.MongoDBConfig
	logger *zap.Logger
	dial   Dialer

	mu     sync.Mutex
	client *mongo.Client
}

func NewMongoRepository(cfg *config.MongoDBConfig, logger *zap.Logger) *MongoRepository {
	return &MongoRepository{config: cfg, logger: logger, dial: dialMongo}
}

// NewMongoRepositoryWithDialer is NewMongoRepository with a custom dialer.
func NewMongoRepositoryWithDialer(cfg *config.MongoDBConfig, logger *zap.Logger, dial Dialer) *MongoRepository {
	return &MongoRepository{config: cfg, logger: logger, dial: dial}
}

func (m *MongoRepository) Database(ctx context.Context) (*mongo.Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		client, err := m.dial(ctx, m.config)
		if err != nil {
			return nil, errs.Unexpected(fmt.Errorf("failed to connect to MongoDB: %w", err), "reach the database")
		}
		m.client = client
		m.logger.Info("Connected to MongoDB", zap.String("database", m.config.Database))
	}
	return m.client.Database(m.config.Database), nil
}

func (m *MongoRepository) collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := m.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

// invalidate drops the cached client so the next call reconnects.
func (m *MongoRepository) invalidate() {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()

	if client == nil {
		return
	}
	m.logger.Warn("MongoDB connection invalidated")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	}()
}

// translate maps driver errors onto the service error kinds.
func (m *MongoRepository) translate(err error, entity, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return errs.NotFound(entity)
	case mongo.IsDuplicateKeyError(err):
		return errs.Conflict("%s already exists", duplicateField(err))
	}

	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	if mongo.IsNetworkError(err) {
		m.invalidate()
	}
	return errs.Unexpected(err, op)
}

var (
	dupKeyField = regexp.MustCompile(`dup key: \{\s*"?([A-Za-z0-9_.]+)"?\s*:`)
	dupKeyIndex = regexp.MustCompile(`index: ([A-Za-z0-9_.]+)`)
)

// duplicateField extracts the offending field from an E11000 message.
func duplicateField(err error) string {
	msg := err.Error()
	if m := dupKeyField.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	if m := dupKeyIndex.FindStringSubmatch(msg); m != nil {
		return strings.TrimSuffix(strings.TrimSuffix(m[1], "_1"), "_-1")
	}
	return "record"
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	db, err := m.Database(ctx)
	if err != nil {
		return err
	}
	return m.translate(db.Client().Ping(ctx, nil), "database", "ping the database")
}

func (m *MongoRepository) Close(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the unique and lookup indexes the stores rely on.
func (m *MongoRepository) EnsureIndexes(ctx context.Context) error {
	cols := m.config.Collections
	specs := map[string][]mongo.IndexModel{
		cols.Users: {
			{Keys: bson.D{{Key: "useremail", Value: 1}}, Options: options.Index().SetUnique(true)},
			{
				Keys: bson.D{{Key: "userphone", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"userphone": bson.M{"$type": "string"}}),
			},
		},
		cols.Products: {
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		cols.Orders: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		cols.ServiceAreas: {
			{Keys: bson.D{{Key: "pincode", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		cols.AuditLog: {
			{Keys: bson.D{{Key: "entity_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for name, indexes := range specs {
		coll, err := m.collection(ctx, name)
		if err != nil {
			return err
		}
		if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
			return m.translate(fmt.Errorf("failed to create indexes on %s: %w", name, err), "index", "create indexes")
		}
	}
	return nil
}

// AuditLog is one recorded order event.
type AuditLog struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Service   string    `bson:"service" json:"service"`
	Action    string    `bson:"action" json:"action"`
	EntityID  string    `bson:"entity_id" json:"entity_id"`
	Data      bson.M    `bson:"data" json:"data"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func (m *MongoRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	collection, err := m.collection(ctx, m.config.Collections.AuditLog)
	if err != nil {
		return err
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	_, err = collection.InsertOne(ctx, log)
	return m.translate(err, "audit log", "write audit log")
}

func (m *MongoRepository) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	collection, err := m.collection(ctx, m.config.Collections.AuditLog)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, m.translate(err, "audit log", "read audit log")
	}
	defer cursor.Close(ctx)

	logs := []*AuditLog{}
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, m.translate(err, "audit log", "read audit log")
	}

	return logs, nil
}
