package service

import (
	"context"
	"time"

	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const msgNotServiceable = "delivery not available in this area"

type CartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderInput struct {
	Items             []CartItem `json:"items"`
	DeliveryAddressID string     `json:"deliveryAddressId"`
	PaymentMethod     string     `json:"paymentMethod"`
}

type OrderService struct {
	orders   OrderStore
	products ProductStore
	users    UserStore
	areas    ServiceAreaStore
	events   EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrderService(orders OrderStore, products ProductStore, users UserStore, areas ServiceAreaStore, events EventPublisher, logger *zap.Logger) *OrderService {
	if events == nil {
		events = nopPublisher{}
	}
	return &OrderService{
		orders:   orders,
		products: products,
		users:    users,
		areas:    areas,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// cleanCart drops entries without a usable product id or with a
// non-positive quantity.
func cleanCart(items []CartItem) []cartLine {
	lines := make([]cartLine, 0, len(items))
	for _, it := range items {
		if it.ProductID == "" || it.Quantity <= 0 {
			continue
		}
		id, err := primitive.ObjectIDFromHex(it.ProductID)
		if err != nil {
			continue
		}
		lines = append(lines, cartLine{productID: id, quantity: it.Quantity})
	}
	return lines
}

func uniqueProductIDs(lines []cartLine) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(lines))
	ids := make([]primitive.ObjectID, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.productID]; ok {
			continue
		}
		seen[l.productID] = struct{}{}
		ids = append(ids, l.productID)
	}
	return ids
}

// resolveDelivery finds the caller's saved address and the service area
// covering its pincode.
func (s *OrderService) resolveDelivery(ctx context.Context, userID, addressID primitive.ObjectID) (models.Address, *models.ServiceArea, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return models.Address{}, nil, err
	}
	addr, ok := user.FindAddress(addressID)
	if !ok {
		return models.Address{}, nil, errs.NotFound("address")
	}
	area, err := s.areas.FindByPincode(ctx, addr.Pincode)
	if err != nil {
		return models.Address{}, nil, err
	}
	if !area.Serviceable() {
		return models.Address{}, nil, errs.ServiceUnavailable(msgNotServiceable)
	}
	return addr, area, nil
}

// CreateOrder turns a cart and one of the caller's saved addresses into a
// persisted order priced at current product prices. Nothing is written
// unless every check passes; stock is not reserved.
func (s *OrderService) CreateOrder(ctx context.Context, userID primitive.ObjectID, in CreateOrderInput) (*models.Order, error) {
	if len(in.Items) == 0 || in.DeliveryAddressID == "" {
		return nil, errs.Validation("items[] and deliveryAddressId are required")
	}
	method, ok := models.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return nil, errs.Validation("paymentMethod must be COD or ONLINE")
	}

	lines := cleanCart(in.Items)
	if len(lines) == 0 {
		return nil, errs.Validation("At least one valid item (productId + quantity > 0) is required")
	}

	addressID, err := parseID(in.DeliveryAddressID, "address")
	if err != nil {
		return nil, err
	}

	var (
		addr     models.Address
		area     *models.ServiceArea
		products []models.Product
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		addr, area, err = s.resolveDelivery(gctx, userID, addressID)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = s.products.FindActiveByIDs(gctx, uniqueProductIDs(lines))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		if p.IsActive {
			byID[p.ID] = p
		}
	}

	q := priceCart(lines, byID, area.DeliveryFee)
	if len(q.items) == 0 {
		return nil, errs.Validation("Cart items are invalid or products inactive")
	}
	if !q.total.IsPositive() {
		return nil, errs.Validation("order total must be greater than zero")
	}

	now := s.now()
	order := &models.Order{
		ID:              primitive.NewObjectID(),
		UserID:          userID,
		Items:           q.items,
		DeliveryFee:     q.deliveryFee.InexactFloat64(),
		TotalAmount:     q.total.InexactFloat64(),
		DeliveryAddress: addr.Snapshot(),
		PaymentMethod:   method,
		PaymentStatus:   models.PaymentStatusPending,
		Status:          models.OrderStatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.Hex()),
		zap.String("user_id", userID.Hex()),
		zap.Int("item_count", len(order.Items)),
		zap.Float64("total_amount", order.TotalAmount))

	s.events.Publish(models.NewOrderEvent(models.OrderEventCreated, order, now))
	return order, nil
}

// ListForUser returns the caller's orders, newest first.
func (s *OrderService) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// GetForUser hides orders owned by someone else behind NotFound.
func (s *OrderService) GetForUser(ctx context.Context, userID primitive.ObjectID, rawID string) (*models.Order, error) {
	id, err := parseID(rawID, "order")
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
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, rawID string) (*models.Order, error) {
	id, err := parseID(rawID, "order")
	if err != nil {
		return nil, err
	}
	return s.orders.FindByID(ctx, id)
}

// ListAll is the admin view across users, optionally filtered by status.
func (s *OrderService) ListAll(ctx context.Context, status string) ([]models.Order, error) {
	q := OrderQuery{}
	if status != "" {
		st := models.OrderStatus(status)
		if _, ok := models.ParseAdminStatus(status); !ok && st != models.OrderStatusCancelled {
			return nil, errs.Validation("invalid status filter %q", status)
		}
		q.Status = st
	}
	return s.orders.List(ctx, q)
}

// Cancel moves a CREATED order owned by the caller to CANCELLED. The
// update is conditional, so an order already advanced by an admin is
// rejected rather than overwritten.
func (s *OrderService) Cancel(ctx context.Context, userID primitive.ObjectID, rawID string) (*models.Order, error) {
	id, err := parseID(rawID, "order")
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.orders.TransitionStatus(ctx, id, userID,
		[]models.OrderStatus{models.OrderStatusCreated}, models.OrderStatusCancelled, now)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		current, err := s.GetForUser(ctx, userID, rawID)
		if err != nil {
			return nil, err
		}
		return nil, errs.Conflict("order can no longer be cancelled (status %s)", current.Status)
	}

	s.events.Publish(models.NewOrderEvent(models.OrderEventCancelled, updated, now))
	return updated, nil
}

// UpdateStatus is the admin transition. Any admin status is accepted from
// a non-terminal state; DELIVERED and CANCELLED orders are frozen.
func (s *OrderService) UpdateStatus(ctx context.Context, rawID, status string) (*models.Order, error) {
	to, ok := models.ParseAdminStatus(status)
	if !ok {
		return nil, errs.Validation("status must be one of CREATED, CONFIRMED, OUT_FOR_DELIVERY, DELIVERED")
	}
	id, err := parseID(rawID, "order")
	if err != nil {
		return nil, err
	}

	from := []models.OrderStatus{
		models.OrderStatusCreated,
		models.OrderStatusConfirmed,
		models.OrderStatusOutForDelivery,
	}
	now := s.now()
	updated, err := s.orders.TransitionStatus(ctx, id, primitive.NilObjectID, from, to, now)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		current, err := s.orders.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, errs.Conflict("order is already %s", current.Status)
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", updated.ID.Hex()),
		zap.String("status", string(updated.Status)))

	s.events.Publish(models.NewOrderEvent(models.OrderEventStatusChanged, updated, now))
	return updated, nil
}
