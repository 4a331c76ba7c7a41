package service_test

import (
	"context"
	"testing"

	"github.com/example/localdelivery/pkg/auth"
	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const keySecret = "rzp_test_secret"

func (f *fixture) onlineOrder(t *testing.T) *models.Order {
	t.Helper()
	p1 := f.product(t, "Rice 1kg", 50, true)
	in := f.cart(service.CartItem{ProductID: p1.ID.Hex(), Quantity: 2})
	in.PaymentMethod = "ONLINE"
	order, err := f.orderService().CreateOrder(context.Background(), f.user.ID, in)
	require.NoError(t, err)
	return order
}

func verifyInput(order *models.Order, gatewayOrderID, paymentID string) service.VerifyPaymentInput {
	return service.VerifyPaymentInput{
		OrderID:        order.ID.Hex(),
		GatewayOrderID: gatewayOrderID,
		PaymentID:      paymentID,
		Signature:      auth.PaymentSignature(keySecret, gatewayOrderID, paymentID),
	}
}

func TestVerifyPaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	order := f.onlineOrder(t)
	payments := service.NewPaymentService(f.store.Orders(), f.store, f.store, keySecret, zap.NewNop())
	ctx := context.Background()

	paid, err := payments.Verify(ctx, f.user.ID, verifyInput(order, "order_G1", "pay_P1"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, paid.PaymentStatus)
	assert.Equal(t, "order_G1", paid.GatewayOrderID)
	assert.Equal(t, "pay_P1", paid.GatewayPaymentID)
	require.NotNil(t, paid.PaidAt)

	again, err := payments.Verify(ctx, f.user.ID, verifyInput(order, "order_G1", "pay_P1"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, again.PaymentStatus)
	assert.Equal(t, "pay_P1", again.GatewayPaymentID)

	bad := verifyInput(order, "order_G1", "pay_P2")
	bad.Signature = "00"
	_, err = payments.Verify(ctx, f.user.ID, bad)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	stored, err := f.store.Orders().FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)

	attempts := f.store.Attempts()
	require.Len(t, attempts, 3)
	assert.Equal(t, models.PaymentOutcomePaid, attempts[0].Outcome)
	assert.Equal(t, models.PaymentOutcomeDuplicate, attempts[1].Outcome)
	assert.Equal(t, models.PaymentOutcomeRejected, attempts[2].Outcome)
	assert.False(t, attempts[2].SignatureValid)

	var paidEvents int
	for _, ev := range f.store.Events() {
		if ev.Type == models.OrderEventPaid {
			paidEvents++
		}
	}
	assert.Equal(t, 1, paidEvents)
}

func TestVerifyPaymentRejections(t *testing.T) {
	f := newFixture(t)
	order := f.onlineOrder(t)
	ctx := context.Background()
	payments := service.NewPaymentService(f.store.Orders(), nil, nil, keySecret, zap.NewNop())

	_, err := payments.Verify(ctx, f.user.ID, service.VerifyPaymentInput{OrderID: order.ID.Hex()})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	tampered := verifyInput(order, "order_G1", "pay_P1")
	tampered.PaymentID = "pay_P9"
	_, err = payments.Verify(ctx, f.user.ID, tampered)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Equal(t, "invalid payment signature", errs.Message(err))

	_, err = payments.Verify(ctx, primitive.NewObjectID(), verifyInput(order, "order_G1", "pay_P1"))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	p1 := f.product(t, "Dal", 80, true)
	cod, err := f.orderService().CreateOrder(ctx, f.user.ID, f.cart(service.CartItem{ProductID: p1.ID.Hex(), Quantity: 1}))
	require.NoError(t, err)
	_, err = payments.Verify(ctx, f.user.ID, verifyInput(cod, "order_G2", "pay_P2"))
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	unconfigured := service.NewPaymentService(f.store.Orders(), nil, nil, "", zap.NewNop())
	_, err = unconfigured.Verify(ctx, f.user.ID, verifyInput(order, "order_G1", "pay_P1"))
	assert.Equal(t, errs.KindUnexpected, errs.KindOf(err))

	stored, err := f.store.Orders().FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
}
