package repository

import (
	"context"
	"regexp"
	"time"

	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/service"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProductStore struct {
	repo *MongoRepository
}

func NewProductStore(repo *MongoRepository) *ProductStore {
	return &ProductStore{repo: repo}
}

func (s *ProductStore) coll(ctx context.Context) (*mongo.Collection, error) {
	return s.repo.collection(ctx, s.repo.config.Collections.Products)
}

func (s *ProductStore) Create(ctx context.Context, p *models.Product) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err = coll.InsertOne(ctx, p)
	return s.repo.translate(err, "product", "create product")
}

func (s *ProductStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	var p models.Product
	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, s.repo.translate(err, "product", "load product")
	}
	return &p, nil
}

func (s *ProductStore) Update(ctx context.Context, id primitive.ObjectID, u service.ProductUpdate) (*models.Product, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Product
	err = coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": productSet(u, time.Now())}, opts).Decode(&p)
	if err != nil {
		return nil, s.repo.translate(err, "product", "update product")
	}
	return &p, nil
}

func (s *ProductStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return s.repo.translate(err, "product", "delete product")
	}
	if res.DeletedCount == 0 {
		return errs.NotFound("product")
	}
	return nil
}

func (s *ProductStore) FindActiveByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "isActive": true})
	if err != nil {
		return nil, s.repo.translate(err, "product", "load products")
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, s.repo.translate(err, "product", "load products")
	}
	return products, nil
}

func (s *ProductStore) List(ctx context.Context, q service.ProductQuery) ([]models.Product, int64, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, 0, err
	}

	filter := productFilter(q)
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, s.repo.translate(err, "product", "count products")
	}

	opts := options.Find().SetSort(productSort(q.Sort)).SetSkip(q.Skip)
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, s.repo.translate(err, "product", "list products")
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, s.repo.translate(err, "product", "list products")
	}
	return products, total, nil
}

func (s *ProductStore) CategoryCounts(ctx context.Context) ([]models.CategoryCount, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"isActive": true}}},
		{{Key: "$group", Value: bson.M{"_id": "$category", "count": bson.M{"$sum": 1}}}},
		{{Key: "$project", Value: bson.M{"_id": 0, "category": "$_id", "count": 1}}},
		{{Key: "$sort", Value: bson.D{{Key: "category", Value: 1}}}},
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, s.repo.translate(err, "product", "count categories")
	}
	defer cursor.Close(ctx)

	counts := []models.CategoryCount{}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, s.repo.translate(err, "product", "count categories")
	}
	return counts, nil
}

func productFilter(q service.ProductQuery) bson.M {
	filter := bson.M{}
	if q.ActiveOnly {
		filter["isActive"] = true
	}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		price := bson.M{}
		if q.MinPrice != nil {
			price["$gte"] = *q.MinPrice
		}
		if q.MaxPrice != nil {
			price["$lte"] = *q.MaxPrice
		}
		filter["price"] = price
	}
	return filter
}

func productSort(sort service.ProductSort) bson.D {
	switch sort {
	case service.SortPriceAsc:
		return bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case service.SortPriceDesc:
		return bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	}
}

func productSet(u service.ProductUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Price != nil {
		set["price"] = *u.Price
	}
	if u.ImageURL != nil {
		set["imageUrl"] = *u.ImageURL
	}
	if u.Category != nil {
		set["category"] = *u.Category
	}
	if u.Stock != nil {
		set["stock"] = *u.Stock
	}
	if u.IsActive != nil {
		set["isActive"] = *u.IsActive
	}
	return set
}

var _ service.ProductStore = (*ProductStore)(nil)
