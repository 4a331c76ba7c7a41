package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/example/localdelivery/pkg/auth"
	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var errNoKeySecret = errors.New("payment key secret not configured")

type VerifyPaymentInput struct {
	OrderID        string `json:"orderId"`
	GatewayOrderID string `json:"gatewayOrderId"`
	PaymentID      string `json:"paymentId"`
	Signature      string `json:"signature"`
}

type PaymentService struct {
	orders    OrderStore
	ledger    PaymentLedger
	events    EventPublisher
	keySecret string
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaymentService builds the verification service. ledger and events may
// be nil.
func NewPaymentService(orders OrderStore, ledger PaymentLedger, events EventPublisher, keySecret string, logger *zap.Logger) *PaymentService {
	if ledger == nil {
		ledger = nopLedger{}
	}
	if events == nil {
		events = nopPublisher{}
	}
	return &PaymentService{
		orders:    orders,
		ledger:    ledger,
		events:    events,
		keySecret: keySecret,
		logger:    logger,
		now:       time.Now,
	}
}

// Verify checks the gateway callback signature and marks the order PAID.
// Verifying an order that is already PAID returns it unchanged.
func (s *PaymentService) Verify(ctx context.Context, userID primitive.ObjectID, in VerifyPaymentInput) (*models.Order, error) {
	in.GatewayOrderID = strings.TrimSpace(in.GatewayOrderID)
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	in.Signature = strings.TrimSpace(in.Signature)

	if in.OrderID == "" || in.GatewayOrderID == "" || in.PaymentID == "" || in.Signature == "" {
		return nil, errs.Validation("orderId, gatewayOrderId, paymentId and signature are required")
	}
	if s.keySecret == "" {
		return nil, errs.Unexpected(errNoKeySecret, "verify payment")
	}

	id, err := parseID(in.OrderID, "order")
	if err != nil {
		return nil, err
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, errs.NotFound("order")
	}
	if order.PaymentMethod != models.PaymentMethodOnline {
		return nil, errs.Validation("only ONLINE orders can be verified")
	}

	if !auth.VerifyPaymentSignature(s.keySecret, in.GatewayOrderID, in.PaymentID, in.Signature) {
		s.record(ctx, order, in, false, models.PaymentOutcomeRejected)
		s.logger.Warn("Payment signature mismatch",
			zap.String("order_id", order.ID.Hex()),
			zap.String("gateway_order_id", in.GatewayOrderID))
		return nil, errs.Validation("invalid payment signature")
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		s.record(ctx, order, in, true, models.PaymentOutcomeDuplicate)
		return order, nil
	}

	now := s.now()
	paid, err := s.orders.MarkPaid(ctx, order.ID, userID, in.GatewayOrderID, in.PaymentID, now)
	if err != nil {
		return nil, err
	}
	if paid == nil {
		// Another verification won the race; report the stored order.
		s.record(ctx, order, in, true, models.PaymentOutcomeDuplicate)
		return s.orders.FindByID(ctx, order.ID)
	}

	s.record(ctx, paid, in, true, models.PaymentOutcomePaid)
	s.logger.Info("Order paid",
		zap.String("order_id", paid.ID.Hex()),
		zap.String("payment_id", in.PaymentID))
	s.events.Publish(models.NewOrderEvent(models.OrderEventPaid, paid, now))
	return paid, nil
}

func (s *PaymentService) record(ctx context.Context, order *models.Order, in VerifyPaymentInput, valid bool, outcome string) {
	attempt := &models.PaymentAttempt{
		ID:             uuid.NewString(),
		OrderID:        order.ID.Hex(),
		UserID:         order.UserID.Hex(),
		GatewayOrderID: in.GatewayOrderID,
		PaymentID:      in.PaymentID,
		Amount:         order.TotalAmount,
		SignatureValid: valid,
		Outcome:        outcome,
		CreatedAt:      s.now(),
	}
	if err := s.ledger.Record(ctx, attempt); err != nil {
		s.logger.Warn("Payment ledger write failed",
			zap.String("order_id", attempt.OrderID),
			zap.String("outcome", outcome),
			zap.Error(err))
	}
}
