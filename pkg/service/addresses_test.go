package service_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newAddressInput(label string) service.AddressInput {
	return service.AddressInput{
		Label:       label,
		Name:        "Ravi",
		Phone:       "+91 98765-43210",
		AddressLine: "4 Boring Road",
		City:        "Patna",
		State:       "Bihar",
		Pincode:     "800001",
	}
}

func emptyUser(t *testing.T, f *fixture) primitive.ObjectID {
	t.Helper()
	id := primitive.NewObjectID()
	f.store.Users().Put(models.User{ID: id, Email: id.Hex() + "@example.com"})
	return id
}

func defaults(addrs []models.Address) int {
	n := 0
	for _, a := range addrs {
		if a.IsDefault {
			n++
		}
	}
	return n
}

func TestFirstAddressBecomesDefault(t *testing.T) {
	f := newFixture(t)
	userID := emptyUser(t, f)
	book := service.NewAddressBook(f.store.Users())
	ctx := context.Background()

	first, _, err := book.Add(ctx, userID, newAddressInput("Home"))
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.Equal(t, "9876543210", first.Phone)

	second, addrs, err := book.Add(ctx, userID, newAddressInput(""))
	require.NoError(t, err)
	assert.False(t, second.IsDefault)
	assert.Equal(t, "Home", second.Label)
	assert.Equal(t, 1, defaults(addrs))

	in := newAddressInput("Office")
	in.IsDefault = true
	third, addrs, err := book.Add(ctx, userID, in)
	require.NoError(t, err)
	assert.True(t, third.IsDefault)
	assert.Equal(t, 1, defaults(addrs))
}

func TestSetDefaultAndDeletePromotion(t *testing.T) {
	f := newFixture(t)
	userID := emptyUser(t, f)
	book := service.NewAddressBook(f.store.Users())
	ctx := context.Background()

	a, _, err := book.Add(ctx, userID, newAddressInput("A"))
	require.NoError(t, err)
	b, _, err := book.Add(ctx, userID, newAddressInput("B"))
	require.NoError(t, err)

	addrs, err := book.SetDefault(ctx, userID, b.ID.Hex())
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.False(t, addrs[0].IsDefault)
	assert.True(t, addrs[1].IsDefault)

	addrs, err = book.Delete(ctx, userID, b.ID.Hex())
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, a.ID, addrs[0].ID)
	assert.True(t, addrs[0].IsDefault)

	addrs, err = book.Delete(ctx, userID, a.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, addrs)

	_, err = book.SetDefault(ctx, userID, a.ID.Hex())
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestUpdateCannotClearOnlyDefault(t *testing.T) {
	f := newFixture(t)
	book := service.NewAddressBook(f.store.Users())
	off := false

	updated, addrs, err := book.Update(context.Background(), f.user.ID, f.addr.ID.Hex(), service.AddressPatch{IsDefault: &off})
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)
	assert.Equal(t, 1, defaults(addrs))
}

func TestAddressValidation(t *testing.T) {
	f := newFixture(t)
	book := service.NewAddressBook(f.store.Users())
	ctx := context.Background()

	in := newAddressInput("Home")
	in.Pincode = "8000"
	_, _, err := book.Add(ctx, f.user.ID, in)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	in = newAddressInput("Home")
	in.Phone = "12345"
	_, _, err = book.Add(ctx, f.user.ID, in)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	in = newAddressInput("Home")
	in.AddressLine = "  "
	_, _, err = book.Add(ctx, f.user.ID, in)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, _, err = book.Update(ctx, f.user.ID, primitive.NewObjectID().Hex(), service.AddressPatch{})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	_, err = book.Delete(ctx, f.user.ID, "nope")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestAddressBookKeepsSingleDefault(t *testing.T) {
	f := newFixture(t)
	userID := emptyUser(t, f)
	book := service.NewAddressBook(f.store.Users())
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for step := 0; step < 300; step++ {
		addrs, err := book.List(ctx, userID)
		require.NoError(t, err)

		pick := func() string {
			if len(addrs) == 0 {
				return primitive.NewObjectID().Hex()
			}
			return addrs[rng.Intn(len(addrs))].ID.Hex()
		}

		switch rng.Intn(4) {
		case 0:
			in := newAddressInput("Home")
			in.IsDefault = rng.Intn(2) == 0
			_, _, err = book.Add(ctx, userID, in)
		case 1:
			flag := rng.Intn(2) == 0
			_, _, err = book.Update(ctx, userID, pick(), service.AddressPatch{IsDefault: &flag})
		case 2:
			_, err = book.Delete(ctx, userID, pick())
		case 3:
			_, err = book.SetDefault(ctx, userID, pick())
		}
		if err != nil {
			require.Equal(t, errs.KindNotFound, errs.KindOf(err), "step %d", step)
		}

		addrs, err = book.List(ctx, userID)
		require.NoError(t, err)
		if len(addrs) == 0 {
			assert.Zero(t, defaults(addrs), "step %d", step)
		} else {
			assert.Equal(t, 1, defaults(addrs), "step %d", step)
		}
	}
}

func TestStaleAddressWriteConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.store.Users().FindByID(ctx, f.user.ID)
	require.NoError(t, err)
	require.NoError(t, f.store.Users().SaveAddresses(ctx, f.user.ID, user.Version, user.Addresses))

	err = f.store.Users().SaveAddresses(ctx, f.user.ID, user.Version, nil)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}

func TestAddressNeedsOnlyLineAndPincode(t *testing.T) {
	f := newFixture(t)
	book := service.NewAddressBook(f.store.Users())
	ctx := context.Background()
	uid := emptyUser(t, f)

	addr, addrs, err := book.Add(ctx, uid, service.AddressInput{AddressLine: "4 Boring Road", Pincode: "800001"})
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, "Home", addr.Label)
	assert.Empty(t, addr.Phone)
	assert.True(t, addr.IsDefault)

	blank := "  "
	updated, _, err := book.Update(ctx, uid, addr.ID.Hex(), service.AddressPatch{City: &blank, Phone: &blank})
	require.NoError(t, err)
	assert.Empty(t, updated.City)

	_, _, err = book.Add(ctx, uid, service.AddressInput{Pincode: "800001"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	listed, err := book.List(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
