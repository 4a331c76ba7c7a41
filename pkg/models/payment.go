package models

import (
	"time"
)

// PaymentAttempt is one row of the payment ledger, written for every
// verification call whether or not the signature matched.
type PaymentAttempt struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID        string    `gorm:"type:varchar(24);not null;index" json:"order_id"`
	UserID         string    `gorm:"type:varchar(24);not null;index" json:"user_id"`
	GatewayOrderID string    `gorm:"type:varchar(64);not null" json:"gateway_order_id"`
	PaymentID      string    `gorm:"type:varchar(64);not null" json:"payment_id"`
	Amount         float64   `gorm:"type:decimal(10,2)" json:"amount"`
	SignatureValid bool      `gorm:"not null" json:"signature_valid"`
	Outcome        string    `gorm:"type:varchar(20)" json:"outcome"`
	CreatedAt      time.Time `json:"created_at"`
}

func (PaymentAttempt) TableName() string {
	return "payment_attempts"
}

const (
	PaymentOutcomePaid      = "paid"
	PaymentOutcomeDuplicate = "already_paid"
	PaymentOutcomeRejected  = "rejected"
)
