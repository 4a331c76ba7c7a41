package repository

import (
	"context"
	"time"

	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/service"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserStore struct {
	repo *MongoRepository
}

func NewUserStore(repo *MongoRepository) *UserStore {
	return &UserStore{repo: repo}
}

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	coll, err := s.repo.collection(ctx, s.repo.config.Collections.Users)
	if err != nil {
		return err
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err = coll.InsertOne(ctx, u)
	return s.repo.translate(err, "user", "create user")
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	coll, err := s.repo.collection(ctx, s.repo.config.Collections.Users)
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, s.repo.translate(err, "user", "load user")
	}
	return &u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"useremail": email})
}

func (s *UserStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, u service.ProfileUpdate) (*models.User, error) {
	coll, err := s.repo.collection(ctx, s.repo.config.Collections.Users)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": time.Now()}
	if u.Username != nil {
		set["username"] = *u.Username
	}
	if u.Email != nil {
		set["useremail"] = *u.Email
	}
	if u.Phone != nil {
		set["userphone"] = *u.Phone
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	err = coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		return nil, s.repo.translate(err, "user", "update profile")
	}
	return &updated, nil
}

// SaveAddresses replaces the list only while __v still equals version and
// bumps it, so two interleaved read-modify-writes cannot both land.
func (s *UserStore) SaveAddresses(ctx context.Context, id primitive.ObjectID, version int64, addrs []models.Address) error {
	coll, err := s.repo.collection(ctx, s.repo.config.Collections.Users)
	if err != nil {
		return err
	}
	if addrs == nil {
		addrs = []models.Address{}
	}

	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": id, "__v": version},
		bson.M{
			"$set": bson.M{"addresses": addrs, "updatedAt": time.Now()},
			"$inc": bson.M{"__v": 1},
		})
	if err != nil {
		return s.repo.translate(err, "user", "save addresses")
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return s.repo.translate(err, "user", "save addresses")
	}
	if n == 0 {
		return errs.NotFound("user")
	}
	return errs.Conflict("address book was modified concurrently, retry")
}

var _ service.UserStore = (*UserStore)(nil)
