// Package memory implements the service store interfaces in process memory.
// It mirrors the conditional-update and uniqueness behavior of the Mongo
// stores and backs the service, gateway and RPC tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]models.User
	products map[primitive.ObjectID]models.Product
	orders   map[primitive.ObjectID]models.Order
	areas    map[primitive.ObjectID]models.ServiceArea
	attempts []models.PaymentAttempt
	events   []models.OrderEvent
}

func New() *Store {
	return &Store{
		users:    make(map[primitive.ObjectID]models.User),
		products: make(map[primitive.ObjectID]models.Product),
		orders:   make(map[primitive.ObjectID]models.Order),
		areas:    make(map[primitive.ObjectID]models.ServiceArea),
	}
}

func (s *Store) Users() *Users               { return &Users{s} }
func (s *Store) Products() *Products         { return &Products{s} }
func (s *Store) Orders() *Orders             { return &Orders{s} }
func (s *Store) ServiceAreas() *ServiceAreas { return &ServiceAreas{s} }

// OrderCount reports how many orders have been inserted.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// Record implements service.PaymentLedger.
func (s *Store) Record(_ context.Context, attempt *models.PaymentAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, *attempt)
	return nil
}

func (s *Store) Attempts() []models.PaymentAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PaymentAttempt(nil), s.attempts...)
}

func (s *Store) AttemptsForOrder(_ context.Context, orderID string) ([]models.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.PaymentAttempt{}
	for _, a := range s.attempts {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

// Publish implements service.EventPublisher.
func (s *Store) Publish(event models.OrderEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *Store) Events() []models.OrderEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OrderEvent(nil), s.events...)
}

type Users struct{ s *Store }

func (u *Users) Create(_ context.Context, user *models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if err := u.checkUnique(user.ID, user.Email, user.Phone); err != nil {
		return err
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	u.s.users[user.ID] = cloneUser(*user)
	return nil
}

func (u *Users) checkUnique(self primitive.ObjectID, email, phone string) error {
	for id, other := range u.s.users {
		if id == self {
			continue
		}
		if email != "" && other.Email == email {
			return errs.Conflict("useremail already exists")
		}
		if phone != "" && other.Phone == phone {
			return errs.Conflict("userphone already exists")
		}
	}
	return nil
}

func (u *Users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return nil, errs.NotFound("user")
	}
	out := cloneUser(user)
	return &out, nil
}

func (u *Users) FindByEmail(_ context.Context, email string) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if user.Email == email {
			out := cloneUser(user)
			return &out, nil
		}
	}
	return nil, errs.NotFound("user")
}

func (u *Users) UpdateProfile(_ context.Context, id primitive.ObjectID, p service.ProfileUpdate) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return nil, errs.NotFound("user")
	}
	if p.Username != nil {
		user.Username = *p.Username
	}
	if p.Email != nil {
		user.Email = *p.Email
	}
	if p.Phone != nil {
		user.Phone = *p.Phone
	}
	if err := u.checkUnique(id, user.Email, user.Phone); err != nil {
		return nil, err
	}
	user.UpdatedAt = time.Now()
	u.s.users[id] = user
	out := cloneUser(user)
	return &out, nil
}

func (u *Users) SaveAddresses(_ context.Context, id primitive.ObjectID, version int64, addrs []models.Address) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return errs.NotFound("user")
	}
	if user.Version != version {
		return errs.Conflict("address book was modified concurrently, retry")
	}
	user.Addresses = append([]models.Address(nil), addrs...)
	user.Version++
	user.UpdatedAt = time.Now()
	u.s.users[id] = user
	return nil
}

// Put stores a user as is, bypassing validation.
func (u *Users) Put(user models.User) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	u.s.users[user.ID] = cloneUser(user)
}

func cloneUser(u models.User) models.User {
	u.Addresses = append([]models.Address(nil), u.Addresses...)
	return u
}

type Products struct{ s *Store }

func (p *Products) Create(_ context.Context, product *models.Product) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	p.s.products[product.ID] = *product
	return nil
}

func (p *Products) Get(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	product, ok := p.s.products[id]
	if !ok {
		return nil, errs.NotFound("product")
	}
	return &product, nil
}

func (p *Products) Update(_ context.Context, id primitive.ObjectID, u service.ProductUpdate) (*models.Product, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	product, ok := p.s.products[id]
	if !ok {
		return nil, errs.NotFound("product")
	}
	if u.Name != nil {
		product.Name = *u.Name
	}
	if u.Description != nil {
		product.Description = *u.Description
	}
	if u.Price != nil {
		product.Price = *u.Price
	}
	if u.ImageURL != nil {
		product.ImageURL = *u.ImageURL
	}
	if u.Category != nil {
		product.Category = *u.Category
	}
	if u.Stock != nil {
		product.Stock = *u.Stock
	}
	if u.IsActive != nil {
		product.IsActive = *u.IsActive
	}
	product.UpdatedAt = time.Now()
	p.s.products[id] = product
	return &product, nil
}

func (p *Products) Delete(_ context.Context, id primitive.ObjectID) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.products[id]; !ok {
		return errs.NotFound("product")
	}
	delete(p.s.products, id)
	return nil
}

func (p *Products) FindActiveByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if product, ok := p.s.products[id]; ok && product.IsActive {
			out = append(out, product)
		}
	}
	return out, nil
}

func (p *Products) List(_ context.Context, q service.ProductQuery) ([]models.Product, int64, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	search := strings.ToLower(q.Search)
	var matched []models.Product
	for _, product := range p.s.products {
		if q.ActiveOnly && !product.IsActive {
			continue
		}
		if q.Category != "" && product.Category != q.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(product.Name), search) &&
			!strings.Contains(strings.ToLower(product.Description), search) {
			continue
		}
		if q.MinPrice != nil && product.Price < *q.MinPrice {
			continue
		}
		if q.MaxPrice != nil && product.Price > *q.MaxPrice {
			continue
		}
		matched = append(matched, product)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		switch q.Sort {
		case service.SortPriceAsc:
			return matched[i].Price < matched[j].Price
		case service.SortPriceDesc:
			return matched[i].Price > matched[j].Price
		default:
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
	})

	total := int64(len(matched))
	if q.Skip >= total {
		return []models.Product{}, total, nil
	}
	matched = matched[q.Skip:]
	if q.Limit > 0 && int64(len(matched)) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}

func (p *Products) CategoryCounts(_ context.Context) ([]models.CategoryCount, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	counts := make(map[string]int64)
	for _, product := range p.s.products {
		if product.IsActive {
			counts[product.Category]++
		}
	}
	out := make([]models.CategoryCount, 0, len(counts))
	for category, n := range counts {
		out = append(out, models.CategoryCount{Category: category, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

type Orders struct{ s *Store }

func (o *Orders) Insert(_ context.Context, order *models.Order) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	o.s.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (o *Orders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	order, ok := o.s.orders[id]
	if !ok {
		return nil, errs.NotFound("order")
	}
	out := cloneOrder(order)
	return &out, nil
}

func (o *Orders) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return o.list(func(order models.Order) bool { return order.UserID == userID }), nil
}

func (o *Orders) List(_ context.Context, q service.OrderQuery) ([]models.Order, error) {
	return o.list(func(order models.Order) bool { return q.Status == "" || order.Status == q.Status }), nil
}

func (o *Orders) list(keep func(models.Order) bool) []models.Order {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	out := []models.Order{}
	for _, order := range o.s.orders {
		if keep(order) {
			out = append(out, cloneOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (o *Orders) TransitionStatus(_ context.Context, id, owner primitive.ObjectID, from []models.OrderStatus, to models.OrderStatus, at time.Time) (*models.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	order, ok := o.s.orders[id]
	if !ok || (!owner.IsZero() && order.UserID != owner) {
		return nil, nil
	}
	allowed := false
	for _, st := range from {
		if order.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, nil
	}
	order.Status = to
	order.UpdatedAt = at
	o.s.orders[id] = order
	out := cloneOrder(order)
	return &out, nil
}

func (o *Orders) MarkPaid(_ context.Context, id, owner primitive.ObjectID, gatewayOrderID, paymentID string, at time.Time) (*models.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	order, ok := o.s.orders[id]
	if !ok || order.UserID != owner || order.PaymentStatus != models.PaymentStatusPending {
		return nil, nil
	}
	order.PaymentStatus = models.PaymentStatusPaid
	order.GatewayOrderID = gatewayOrderID
	order.GatewayPaymentID = paymentID
	order.PaidAt = &at
	order.UpdatedAt = at
	o.s.orders[id] = order
	out := cloneOrder(order)
	return &out, nil
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

type ServiceAreas struct{ s *Store }

func (a *ServiceAreas) Upsert(_ context.Context, area *models.ServiceArea) (*models.ServiceArea, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	for id, existing := range a.s.areas {
		if existing.Pincode == area.Pincode {
			existing.AreaName = area.AreaName
			existing.DeliveryFee = area.DeliveryFee
			existing.IsActive = area.IsActive
			existing.UpdatedAt = area.UpdatedAt
			a.s.areas[id] = existing
			return &existing, nil
		}
	}
	created := *area
	if created.ID.IsZero() {
		created.ID = primitive.NewObjectID()
	}
	a.s.areas[created.ID] = created
	return &created, nil
}

func (a *ServiceAreas) List(_ context.Context) ([]models.ServiceArea, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	out := make([]models.ServiceArea, 0, len(a.s.areas))
	for _, area := range a.s.areas {
		out = append(out, area)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pincode < out[j].Pincode })
	return out, nil
}

func (a *ServiceAreas) Delete(_ context.Context, id primitive.ObjectID) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.areas[id]; !ok {
		return errs.NotFound("service area")
	}
	delete(a.s.areas, id)
	return nil
}

func (a *ServiceAreas) FindByPincode(_ context.Context, pincode string) (*models.ServiceArea, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	for _, area := range a.s.areas {
		if area.Pincode == pincode {
			return &area, nil
		}
	}
	return nil, nil
}

var (
	_ service.UserStore        = (*Users)(nil)
	_ service.ProductStore     = (*Products)(nil)
	_ service.OrderStore       = (*Orders)(nil)
	_ service.ServiceAreaStore = (*ServiceAreas)(nil)
	_ service.PaymentLedger    = (*Store)(nil)
	_ service.EventPublisher   = (*Store)(nil)
)
