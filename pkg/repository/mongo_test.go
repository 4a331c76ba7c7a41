package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/localdelivery/pkg/config"
	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func countingDialer(t *testing.T, calls *int) Dialer {
	return func(ctx context.Context, cfg *config.MongoDBConfig) (*mongo.Client, error) {
		*calls++
		// NewClient does not touch the network until Connect.
		client, err := mongo.NewClient(options.Client().ApplyURI("mongodb://127.0.0.1:1"))
		require.NoError(t, err)
		return client, nil
	}
}

func testMongoConfig() *config.MongoDBConfig {
	return &config.MongoDBConfig{URI: "mongodb://127.0.0.1:1", Database: "localdelivery_test", ConnectTimeout: time.Second}
}

func TestMongoConnectionIsMemoised(t *testing.T) {
	var calls int
	repo := NewMongoRepositoryWithDialer(testMongoConfig(), zap.NewNop(), countingDialer(t, &calls))
	ctx := context.Background()

	db1, err := repo.Database(ctx)
	require.NoError(t, err)
	db2, err := repo.Database(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Same(t, db1.Client(), db2.Client())
	assert.Equal(t, "localdelivery_test", db1.Name())
}

func TestMongoNetworkErrorInvalidatesConnection(t *testing.T) {
	var calls int
	repo := NewMongoRepositoryWithDialer(testMongoConfig(), zap.NewNop(), countingDialer(t, &calls))
	ctx := context.Background()

	_, err := repo.Database(ctx)
	require.NoError(t, err)

	err = repo.translate(mongo.CommandError{Message: "connection reset", Labels: []string{"NetworkError"}}, "order", "load order")
	assert.Equal(t, errs.KindUnexpected, errs.KindOf(err))

	_, err = repo.Database(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	// Other failures keep the connection.
	_ = repo.translate(errors.New("boom"), "order", "load order")
	_, err = repo.Database(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMongoDialFailureIsRetried(t *testing.T) {
	var calls int
	repo := NewMongoRepositoryWithDialer(testMongoConfig(), zap.NewNop(),
		func(ctx context.Context, cfg *config.MongoDBConfig) (*mongo.Client, error) {
			calls++
			return nil, errors.New("server selection timeout")
		})

	_, err := repo.Database(context.Background())
	assert.Equal(t, errs.KindUnexpected, errs.KindOf(err))
	_, err = repo.Database(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestTranslate(t *testing.T) {
	repo := NewMongoRepositoryWithDialer(testMongoConfig(), zap.NewNop(), nil)

	assert.NoError(t, repo.translate(nil, "user", "load user"))

	err := repo.translate(mongo.ErrNoDocuments, "user", "load user")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.Equal(t, "user not found", errs.Message(err))

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code:    11000,
		Message: `E11000 duplicate key error collection: localdelivery.users index: useremail_1 dup key: { useremail: "a@b.co" }`,
	}}}
	err = repo.translate(dup, "user", "create user")
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	assert.Equal(t, "useremail already exists", errs.Message(err))

	err = repo.translate(errors.New("disk full"), "user", "create user")
	assert.Equal(t, errs.KindUnexpected, errs.KindOf(err))
	assert.Equal(t, "failed to create user", errs.Message(err))
}

func TestDuplicateField(t *testing.T) {
	assert.Equal(t, "userphone", duplicateField(errors.New(`E11000 duplicate key error index: userphone_1`)))
	assert.Equal(t, "pincode", duplicateField(errors.New(`E11000 dup key: { pincode: "800001" }`)))
	assert.Equal(t, "record", duplicateField(errors.New("E11000")))
}

func TestProductFilter(t *testing.T) {
	lo, hi := 10.0, 99.5
	filter := productFilter(service.ProductQuery{
		ActiveOnly: true,
		Category:   "grocery",
		Search:     "dal (1kg)",
		MinPrice:   &lo,
		MaxPrice:   &hi,
	})

	assert.Equal(t, true, filter["isActive"])
	assert.Equal(t, "grocery", filter["category"])
	assert.Equal(t, bson.M{"$gte": 10.0, "$lte": 99.5}, filter["price"])

	or, ok := filter["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)
	assert.Equal(t, bson.M{"name": primitive.Regex{Pattern: `dal \(1kg\)`, Options: "i"}}, or[0])

	assert.Empty(t, productFilter(service.ProductQuery{}))
}

func TestProductSort(t *testing.T) {
	assert.Equal(t, "price", productSort(service.SortPriceAsc)[0].Key)
	assert.Equal(t, -1, productSort(service.SortPriceDesc)[0].Value)
	assert.Equal(t, "createdAt", productSort("")[0].Key)
}

func TestProductSet(t *testing.T) {
	now := time.Now()
	price, active := 12.5, false
	set := productSet(service.ProductUpdate{Price: &price, IsActive: &active}, now)
	assert.Equal(t, bson.M{"price": 12.5, "isActive": false, "updatedAt": now}, set)
}

func TestTransitionFilter(t *testing.T) {
	id, owner := primitive.NewObjectID(), primitive.NewObjectID()
	from := []models.OrderStatus{models.OrderStatusCreated}

	scoped := transitionFilter(id, owner, from)
	assert.Equal(t, owner, scoped["userId"])
	assert.Equal(t, bson.M{"$in": from}, scoped["status"])

	admin := transitionFilter(id, primitive.NilObjectID, from)
	_, hasOwner := admin["userId"]
	assert.False(t, hasOwner)
}
