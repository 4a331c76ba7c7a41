// Package service holds the business operations behind the HTTP gateway
// and the admin RPC server. Persistence, caching and event delivery are
// reached through the interfaces below; pkg/repository and pkg/notify
// provide the production implementations.
package service

import (
	"context"
	"time"

	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceAsc  ProductSort = "price_asc"
	SortPriceDesc ProductSort = "price_desc"
)

type ProductQuery struct {
	ActiveOnly bool
	Category   string
	Search     string
	MinPrice   *float64
	MaxPrice   *float64
	Sort       ProductSort
	Skip       int64
	Limit      int64
}

// ProductUpdate holds the admin-editable fields; nil means unchanged.
type ProductUpdate struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	ImageURL    *string  `json:"imageUrl"`
	Category    *string  `json:"category"`
	Stock       *int     `json:"stock"`
	IsActive    *bool    `json:"isActive"`
}

type ProductStore interface {
	Create(ctx context.Context, p *models.Product) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Update(ctx context.Context, id primitive.ObjectID, u ProductUpdate) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// FindActiveByIDs loads the active products among ids in one query.
	// Missing and inactive ids are simply absent from the result.
	FindActiveByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	List(ctx context.Context, q ProductQuery) ([]models.Product, int64, error)
	CategoryCounts(ctx context.Context) ([]models.CategoryCount, error)
}

type ProfileUpdate struct {
	Username *string
	Email    *string
	Phone    *string
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, u ProfileUpdate) (*models.User, error)
	// SaveAddresses replaces the address list in a single document write,
	// provided the stored version still equals version.
	SaveAddresses(ctx context.Context, id primitive.ObjectID, version int64, addrs []models.Address) error
}

type ServiceAreaStore interface {
	Upsert(ctx context.Context, area *models.ServiceArea) (*models.ServiceArea, error)
	List(ctx context.Context) ([]models.ServiceArea, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// FindByPincode returns nil, nil when no area is registered.
	FindByPincode(ctx context.Context, pincode string) (*models.ServiceArea, error)
}

type OrderQuery struct {
	Status models.OrderStatus
}

type OrderStore interface {
	Insert(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	List(ctx context.Context, q OrderQuery) ([]models.Order, error)
	// TransitionStatus moves the order to `to` only while its status is one
	// of from, scoped to owner unless owner is zero. It returns nil, nil
	// when no document matched.
	TransitionStatus(ctx context.Context, id, owner primitive.ObjectID, from []models.OrderStatus, to models.OrderStatus, at time.Time) (*models.Order, error)
	// MarkPaid flips paymentStatus PENDING to PAID and records the gateway
	// references. It returns nil, nil when the order is not pending.
	MarkPaid(ctx context.Context, id, owner primitive.ObjectID, gatewayOrderID, paymentID string, at time.Time) (*models.Order, error)
}

type IdentityCache interface {
	GetIdentity(ctx context.Context, userID string) (*models.Identity, error)
	SetIdentity(ctx context.Context, identity *models.Identity) error
	DeleteIdentity(ctx context.Context, userID string) error
}

type CategoryCache interface {
	GetCategories(ctx context.Context) ([]models.CategoryCount, error)
	SetCategories(ctx context.Context, categories []models.CategoryCount) error
	InvalidateCategories(ctx context.Context) error
}

type EventPublisher interface {
	Publish(event models.OrderEvent)
}

type PaymentLedger interface {
	Record(ctx context.Context, attempt *models.PaymentAttempt) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.OrderEvent) {}

type nopLedger struct{}

func (nopLedger) Record(context.Context, *models.PaymentAttempt) error { return nil }

func parseID(raw, entity string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, errs.NotFound(entity)
	}
	return id, nil
}
