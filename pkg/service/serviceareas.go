package service

import (
	"context"
	"strings"
	"time"

	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
)

type ServiceAreaInput struct {
	Pincode     string   `json:"pincode"`
	AreaName    string   `json:"areaName"`
	DeliveryFee *float64 `json:"deliveryFee"`
	IsActive    *bool    `json:"isActive"`
}

// Deliverability is the public answer for a pincode.
type Deliverability struct {
	Pincode     string  `json:"pincode"`
	Serviceable bool    `json:"serviceable"`
	DeliveryFee float64 `json:"deliveryFee"`
	AreaName    string  `json:"areaName,omitempty"`
}

type ServiceAreaRegistry struct {
	areas ServiceAreaStore
	now   func() time.Time
}

func NewServiceAreaRegistry(areas ServiceAreaStore) *ServiceAreaRegistry {
	return &ServiceAreaRegistry{areas: areas, now: time.Now}
}

// Upsert creates the area for a pincode or replaces its name, fee and
// active flag. A new area is active unless isActive says otherwise.
func (r *ServiceAreaRegistry) Upsert(ctx context.Context, in ServiceAreaInput) (*models.ServiceArea, error) {
	pincode := strings.TrimSpace(in.Pincode)
	if !pincodePattern.MatchString(pincode) {
		return nil, errs.Validation("pincode must be 6 digits")
	}
	fee := 0.0
	if in.DeliveryFee != nil {
		fee = *in.DeliveryFee
	}
	if fee < 0 {
		return nil, errs.Validation("deliveryFee must be non-negative")
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	now := r.now()
	return r.areas.Upsert(ctx, &models.ServiceArea{
		Pincode:     pincode,
		AreaName:    strings.TrimSpace(in.AreaName),
		DeliveryFee: money(fee).InexactFloat64(),
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (r *ServiceAreaRegistry) List(ctx context.Context) ([]models.ServiceArea, error) {
	return r.areas.List(ctx)
}

func (r *ServiceAreaRegistry) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID, "service area")
	if err != nil {
		return err
	}
	return r.areas.Delete(ctx, id)
}

func (r *ServiceAreaRegistry) Check(ctx context.Context, pincode string) (*Deliverability, error) {
	pincode = strings.TrimSpace(pincode)
	if !pincodePattern.MatchString(pincode) {
		return nil, errs.Validation("pincode must be 6 digits")
	}
	area, err := r.areas.FindByPincode(ctx, pincode)
	if err != nil {
		return nil, err
	}
	d := &Deliverability{Pincode: pincode, Serviceable: area.Serviceable()}
	if d.Serviceable {
		d.DeliveryFee = area.DeliveryFee
		d.AreaName = area.AreaName
	}
	return d, nil
}
