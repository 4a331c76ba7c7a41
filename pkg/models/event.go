package models

import "time"

type OrderEventType string

const (
	OrderEventCreated       OrderEventType = "order.created"
	OrderEventCancelled     OrderEventType = "order.cancelled"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
	OrderEventPaid          OrderEventType = "order.paid"
)

type OrderEvent struct {
	Type          OrderEventType `json:"event_type"`
	OrderID       string         `json:"order_id"`
	UserID        string         `json:"user_id"`
	Status        OrderStatus    `json:"status"`
	PaymentStatus PaymentStatus  `json:"payment_status"`
	TotalAmount   float64        `json:"total_amount"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

func NewOrderEvent(t OrderEventType, o *Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          t,
		OrderID:       o.ID.Hex(),
		UserID:        o.UserID.Hex(),
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount,
		OccurredAt:    at,
	}
}
