package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/repository/memory"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	store *memory.Store
	user  models.User
	addr  models.Address
}

// newFixture seeds one user whose default address is in a serviceable
// pincode (800001, fee 20).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()

	addr := models.Address{
		ID:          primitive.NewObjectID(),
		Label:       "Home",
		Name:        "Asha",
		Phone:       "9876543210",
		AddressLine: "12 Station Road",
		City:        "Patna",
		State:       "Bihar",
		Pincode:     "800001",
		IsDefault:   true,
	}
	user := models.User{
		ID:        primitive.NewObjectID(),
		Username:  "asha",
		Email:     "asha@example.com",
		Addresses: []models.Address{addr},
	}
	store.Users().Put(user)

	_, err := store.ServiceAreas().Upsert(context.Background(), &models.ServiceArea{
		Pincode:     "800001",
		AreaName:    "Patna Junction",
		DeliveryFee: 20,
		IsActive:    true,
	})
	require.NoError(t, err)

	return &fixture{store: store, user: user, addr: addr}
}

func (f *fixture) product(t *testing.T, name string, price float64, active bool) models.Product {
	t.Helper()
	p := &models.Product{
		Name:      name,
		Price:     price,
		Category:  "grocery",
		Stock:     10,
		IsActive:  active,
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.store.Products().Create(context.Background(), p))
	return *p
}

func (f *fixture) addAddress(t *testing.T, pincode string) models.Address {
	t.Helper()
	addr := f.addr
	addr.ID = primitive.NewObjectID()
	addr.Pincode = pincode
	addr.IsDefault = false

	user, err := f.store.Users().FindByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	user.Addresses = append(user.Addresses, addr)
	f.store.Users().Put(*user)
	return addr
}
