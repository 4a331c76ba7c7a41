package repository

import (
	"context"
	"errors"

	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/service"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ServiceAreaStore struct {
	repo *MongoRepository
}

func NewServiceAreaStore(repo *MongoRepository) *ServiceAreaStore {
	return &ServiceAreaStore{repo: repo}
}

func (s *ServiceAreaStore) coll(ctx context.Context) (*mongo.Collection, error) {
	return s.repo.collection(ctx, s.repo.config.Collections.ServiceAreas)
}

// Upsert keys on pincode; createdAt is only written on insert.
func (s *ServiceAreaStore) Upsert(ctx context.Context, area *models.ServiceArea) (*models.ServiceArea, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}

	update := bson.M{
		"$set": bson.M{
			"areaName":    area.AreaName,
			"deliveryFee": area.DeliveryFee,
			"isActive":    area.IsActive,
			"updatedAt":   area.UpdatedAt,
		},
		"$setOnInsert": bson.M{"createdAt": area.CreatedAt},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored models.ServiceArea
	if err := coll.FindOneAndUpdate(ctx, bson.M{"pincode": area.Pincode}, update, opts).Decode(&stored); err != nil {
		return nil, s.repo.translate(err, "service area", "save service area")
	}
	return &stored, nil
}

func (s *ServiceAreaStore) List(ctx context.Context) ([]models.ServiceArea, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "pincode", Value: 1}}))
	if err != nil {
		return nil, s.repo.translate(err, "service area", "list service areas")
	}
	defer cursor.Close(ctx)

	areas := []models.ServiceArea{}
	if err := cursor.All(ctx, &areas); err != nil {
		return nil, s.repo.translate(err, "service area", "list service areas")
	}
	return areas, nil
}

func (s *ServiceAreaStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return s.repo.translate(err, "service area", "delete service area")
	}
	if res.DeletedCount == 0 {
		return errs.NotFound("service area")
	}
	return nil
}

func (s *ServiceAreaStore) FindByPincode(ctx context.Context, pincode string) (*models.ServiceArea, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}
	var area models.ServiceArea
	err = coll.FindOne(ctx, bson.M{"pincode": pincode}).Decode(&area)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, s.repo.translate(err, "service area", "look up service area")
	}
	return &area, nil
}

var _ service.ServiceAreaStore = (*ServiceAreaStore)(nil)
