package repository

import (
	"context"
	"errors"
	"time"

	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/service"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OrderStore persists orders. Line items and the address snapshot are
// written once by Insert; later writes only touch status, payment status
// and gateway references.
type OrderStore struct {
	repo *MongoRepository
}

func NewOrderStore(repo *MongoRepository) *OrderStore {
	return &OrderStore{repo: repo}
}

func (s *OrderStore) coll(ctx context.Context) (*mongo.Collection, error) {
	return s.repo.collection(ctx, s.repo.config.Collections.Orders)
}

func (s *OrderStore) Insert(ctx context.Context, o *models.Order) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	_, err = coll.InsertOne(ctx, o)
	return s.repo.translate(err, "order", "create order")
}

func (s *OrderStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	var o models.Order
	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, s.repo.translate(err, "order", "load order")
	}
	return &o, nil
}

func (s *OrderStore) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return s.find(ctx, bson.M{"userId": userID})
}

func (s *OrderStore) List(ctx context.Context, q service.OrderQuery) ([]models.Order, error) {
	filter := bson.M{}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	return s.find(ctx, filter)
}

func (s *OrderStore) find(ctx context.Context, filter bson.M) ([]models.Order, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, s.repo.translate(err, "order", "list orders")
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, s.repo.translate(err, "order", "list orders")
	}
	return orders, nil
}

func (s *OrderStore) TransitionStatus(ctx context.Context, id, owner primitive.ObjectID, from []models.OrderStatus, to models.OrderStatus, at time.Time) (*models.Order, error) {
	update := bson.M{"$set": bson.M{"status": to, "updatedAt": at}}
	return s.conditional(ctx, transitionFilter(id, owner, from), update, "update order status")
}

func (s *OrderStore) MarkPaid(ctx context.Context, id, owner primitive.ObjectID, gatewayOrderID, paymentID string, at time.Time) (*models.Order, error) {
	filter := bson.M{
		"_id":           id,
		"userId":        owner,
		"paymentStatus": models.PaymentStatusPending,
	}
	update := bson.M{"$set": bson.M{
		"paymentStatus":    models.PaymentStatusPaid,
		"gatewayOrderId":   gatewayOrderID,
		"gatewayPaymentId": paymentID,
		"paidAt":           at,
		"updatedAt":        at,
	}}
	return s.conditional(ctx, filter, update, "mark order paid")
}

// conditional applies update to the document matching filter and returns
// it, or nil when nothing matched.
func (s *OrderStore) conditional(ctx context.Context, filter, update bson.M, op string) (*models.Order, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var o models.Order
	err = coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, s.repo.translate(err, "order", op)
	}
	return &o, nil
}

func transitionFilter(id, owner primitive.ObjectID, from []models.OrderStatus) bson.M {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": from},
	}
	if !owner.IsZero() {
		filter["userId"] = owner
	}
	return filter
}

var _ service.OrderStore = (*OrderStore)(nil)
