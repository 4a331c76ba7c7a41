package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Address is owned by its User and lives only inside the user document.
type Address struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	Label       string             `bson:"label" json:"label"`
	Name        string             `bson:"name" json:"name"`
	Phone       string             `bson:"phone" json:"phone"`
	AddressLine string             `bson:"addressLine" json:"addressLine"`
	City        string             `bson:"city" json:"city"`
	State       string             `bson:"state" json:"state"`
	Pincode     string             `bson:"pincode" json:"pincode"`
	IsDefault   bool               `bson:"isDefault" json:"isDefault"`
}

// Snapshot copies the fields an order keeps of this address.
func (a Address) Snapshot() DeliveryAddress {
	return DeliveryAddress{
		Label:       a.Label,
		Name:        a.Name,
		Phone:       a.Phone,
		AddressLine: a.AddressLine,
		City:        a.City,
		State:       a.State,
		Pincode:     a.Pincode,
	}
}

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"useremail" json:"useremail"`
	Phone        string             `bson:"userphone,omitempty" json:"userphone,omitempty"`
	PasswordHash string             `bson:"userpassword" json:"-"`
	IsAdmin      bool               `bson:"isAdmin" json:"isAdmin"`
	Addresses    []Address          `bson:"addresses" json:"addresses"`
	// Version guards read-modify-write of the address list.
	Version   int64     `bson:"__v" json:"-"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) FindAddress(id primitive.ObjectID) (Address, bool) {
	for _, a := range u.Addresses {
		if a.ID == id {
			return a, true
		}
	}
	return Address{}, false
}

// Identity is what the auth gate attaches to a request.
type Identity struct {
	UserID  primitive.ObjectID `json:"id"`
	IsAdmin bool               `json:"isAdmin"`
}
