package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var pincodePattern = regexp.MustCompile(`^[0-9]{6}$`)

type AddressInput struct {
	Label       string `json:"label"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	AddressLine string `json:"addressLine"`
	City        string `json:"city"`
	State       string `json:"state"`
	Pincode     string `json:"pincode"`
	IsDefault   bool   `json:"isDefault"`
}

// AddressPatch changes only the non-nil fields.
type AddressPatch struct {
	Label       *string `json:"label"`
	Name        *string `json:"name"`
	Phone       *string `json:"phone"`
	AddressLine *string `json:"addressLine"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	Pincode     *string `json:"pincode"`
	IsDefault   *bool   `json:"isDefault"`
}

// AddressBook edits the address list embedded in a user document. Every
// operation rewrites the list in one versioned write, so readers never see
// zero or several defaults on a non-empty list.
type AddressBook struct {
	users UserStore
}

func NewAddressBook(users UserStore) *AddressBook {
	return &AddressBook{users: users}
}

func (b *AddressBook) List(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error) {
	user, err := b.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Addresses == nil {
		return []models.Address{}, nil
	}
	return user.Addresses, nil
}

func (b *AddressBook) Add(ctx context.Context, userID primitive.ObjectID, in AddressInput) (*models.Address, []models.Address, error) {
	addr, err := newAddress(in)
	if err != nil {
		return nil, nil, err
	}

	addrs, err := b.mutate(ctx, userID, func(addrs []models.Address) ([]models.Address, primitive.ObjectID, error) {
		preferred := primitive.NilObjectID
		if len(addrs) == 0 || in.IsDefault {
			preferred = addr.ID
		}
		return append(addrs, addr), preferred, nil
	})
	if err != nil {
		return nil, nil, err
	}
	added, _ := findAddress(addrs, addr.ID)
	return &added, addrs, nil
}

func (b *AddressBook) Update(ctx context.Context, userID primitive.ObjectID, rawID string, patch AddressPatch) (*models.Address, []models.Address, error) {
	id, err := parseID(rawID, "address")
	if err != nil {
		return nil, nil, err
	}

	addrs, err := b.mutate(ctx, userID, func(addrs []models.Address) ([]models.Address, primitive.ObjectID, error) {
		i := indexOfAddress(addrs, id)
		if i < 0 {
			return nil, primitive.NilObjectID, errs.NotFound("address")
		}
		updated, err := applyAddressPatch(addrs[i], patch)
		if err != nil {
			return nil, primitive.NilObjectID, err
		}
		addrs[i] = updated

		// Clearing the flag on the current default is ignored; the list
		// must keep one. Use SetDefault on another address instead.
		preferred := primitive.NilObjectID
		if patch.IsDefault != nil && *patch.IsDefault {
			preferred = id
		}
		return addrs, preferred, nil
	})
	if err != nil {
		return nil, nil, err
	}
	updated, _ := findAddress(addrs, id)
	return &updated, addrs, nil
}

// Delete removes an address. When it was the default, the first remaining
// address is promoted.
func (b *AddressBook) Delete(ctx context.Context, userID primitive.ObjectID, rawID string) ([]models.Address, error) {
	id, err := parseID(rawID, "address")
	if err != nil {
		return nil, err
	}

	return b.mutate(ctx, userID, func(addrs []models.Address) ([]models.Address, primitive.ObjectID, error) {
		i := indexOfAddress(addrs, id)
		if i < 0 {
			return nil, primitive.NilObjectID, errs.NotFound("address")
		}
		return append(addrs[:i], addrs[i+1:]...), primitive.NilObjectID, nil
	})
}

// SetDefault clears the flag on every sibling and sets it on the target,
// persisted as one write.
func (b *AddressBook) SetDefault(ctx context.Context, userID primitive.ObjectID, rawID string) ([]models.Address, error) {
	id, err := parseID(rawID, "address")
	if err != nil {
		return nil, err
	}

	return b.mutate(ctx, userID, func(addrs []models.Address) ([]models.Address, primitive.ObjectID, error) {
		if indexOfAddress(addrs, id) < 0 {
			return nil, primitive.NilObjectID, errs.NotFound("address")
		}
		return addrs, id, nil
	})
}

type addressMutation func(addrs []models.Address) ([]models.Address, primitive.ObjectID, error)

func (b *AddressBook) mutate(ctx context.Context, userID primitive.ObjectID, fn addressMutation) ([]models.Address, error) {
	user, err := b.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	working := make([]models.Address, len(user.Addresses))
	copy(working, user.Addresses)

	next, preferred, err := fn(working)
	if err != nil {
		return nil, err
	}
	next = settleDefault(next, preferred)

	if err := b.users.SaveAddresses(ctx, userID, user.Version, next); err != nil {
		return nil, err
	}
	return next, nil
}

// settleDefault leaves exactly one default on a non-empty list: preferred
// when given, else the existing default, else the first entry.
func settleDefault(addrs []models.Address, preferred primitive.ObjectID) []models.Address {
	if len(addrs) == 0 {
		return addrs
	}

	target := -1
	if !preferred.IsZero() {
		target = indexOfAddress(addrs, preferred)
	}
	if target < 0 {
		for i, a := range addrs {
			if a.IsDefault {
				target = i
				break
			}
		}
	}
	if target < 0 {
		target = 0
	}

	for i := range addrs {
		addrs[i].IsDefault = i == target
	}
	return addrs
}

func indexOfAddress(addrs []models.Address, id primitive.ObjectID) int {
	for i, a := range addrs {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func findAddress(addrs []models.Address, id primitive.ObjectID) (models.Address, bool) {
	if i := indexOfAddress(addrs, id); i >= 0 {
		return addrs[i], true
	}
	return models.Address{}, false
}

func newAddress(in AddressInput) (models.Address, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = "Home"
	}
	addr := models.Address{
		ID:          primitive.NewObjectID(),
		Label:       label,
		Name:        strings.TrimSpace(in.Name),
		Phone:       in.Phone,
		AddressLine: strings.TrimSpace(in.AddressLine),
		City:        strings.TrimSpace(in.City),
		State:       strings.TrimSpace(in.State),
		Pincode:     strings.TrimSpace(in.Pincode),
	}
	return validateAddress(addr)
}

func applyAddressPatch(a models.Address, p AddressPatch) (models.Address, error) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&a.Label, p.Label)
	set(&a.Name, p.Name)
	set(&a.AddressLine, p.AddressLine)
	set(&a.City, p.City)
	set(&a.State, p.State)
	set(&a.Pincode, p.Pincode)
	if p.Phone != nil {
		a.Phone = *p.Phone
	}
	if a.Label == "" {
		a.Label = "Home"
	}
	return validateAddress(a)
}

// validateAddress requires only the address line and a 6-digit pincode.
// The phone is normalised when one is given.
func validateAddress(a models.Address) (models.Address, error) {
	a.Phone = strings.TrimSpace(a.Phone)
	if a.Phone != "" {
		phone, ok := normalizePhone(a.Phone)
		if !ok {
			return a, errs.Validation("address phone must have at least 10 digits")
		}
		a.Phone = phone
	}
	if a.AddressLine == "" {
		return a, errs.Validation("addressLine is required")
	}
	if !pincodePattern.MatchString(a.Pincode) {
		return a, errs.Validation("pincode must be 6 digits")
	}
	return a, nil
}
