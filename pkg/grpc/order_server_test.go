package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/example/localdelivery/pkg/config"
	"github.com/example/localdelivery/pkg/discovery"
	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/repository/memory"
	"github.com/example/localdelivery/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const testAPIKey = "admin-key"

type harness struct {
	store  *memory.Store
	order  *models.Order
	client *OrderAdminClient
	conn   *grpc.ClientConn
	cfg    *config.Config
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Name = "localdelivery-admin"
	cfg.Server.Port = 50052
	cfg.Auth.AdminAPIKey = testAPIKey
	return cfg
}

func seedOrder(t *testing.T, store *memory.Store) *models.Order {
	t.Helper()
	now := time.Now()
	order := &models.Order{
		ID:            primitive.NewObjectID(),
		UserID:        primitive.NewObjectID(),
		Items:         []models.OrderItem{{ProductID: primitive.NewObjectID(), Name: "Rice", Price: 50, Quantity: 2, Subtotal: 100}},
		DeliveryFee:   20,
		TotalAmount:   120,
		PaymentMethod: models.PaymentMethodCOD,
		PaymentStatus: models.PaymentStatusPending,
		Status:        models.OrderStatusCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.Orders().Insert(context.Background(), order))
	return order
}

func startServer(t *testing.T, key string) *harness {
	t.Helper()
	store := memory.New()
	order := seedOrder(t, store)

	cfg := testConfig()
	orders := service.NewOrderService(store.Orders(), store.Products(), store.Users(), store.ServiceAreas(), store, zap.NewNop())
	srv := NewOrderServer(orders, cfg, zap.NewNop())

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	clientCfg := testConfig()
	clientCfg.Auth.AdminAPIKey = key
	manager := NewClientManager(clientCfg, zap.NewNop(), nil,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, manager.Connect(context.Background(), "bufnet"))
	t.Cleanup(func() { _ = manager.Close() })

	return &harness{store: store, order: order, client: manager.AdminClient(), conn: manager.adminConn, cfg: cfg}
}

func request(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestGetOrder(t *testing.T) {
	h := startServer(t, testAPIKey)
	ctx := context.Background()

	resp, err := h.client.GetOrder(ctx, request(t, map[string]interface{}{"id": h.order.ID.Hex()}))
	require.NoError(t, err)

	order := resp.GetFields()["order"].GetStructValue().GetFields()
	assert.Equal(t, h.order.ID.Hex(), order["_id"].GetStringValue())
	assert.Equal(t, 120.0, order["totalAmount"].GetNumberValue())
	assert.Equal(t, "CREATED", order["status"].GetStringValue())

	_, err = h.client.GetOrder(ctx, request(t, map[string]interface{}{"id": primitive.NewObjectID().Hex()}))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestUpdateOrderStatusAndList(t *testing.T) {
	h := startServer(t, testAPIKey)
	ctx := context.Background()

	resp, err := h.client.UpdateOrderStatus(ctx, request(t, map[string]interface{}{
		"id":     h.order.ID.Hex(),
		"status": "CONFIRMED",
	}))
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMED", resp.GetFields()["order"].GetStructValue().GetFields()["status"].GetStringValue())

	_, err = h.client.UpdateOrderStatus(ctx, request(t, map[string]interface{}{
		"id":     h.order.ID.Hex(),
		"status": "CANCELLED",
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	list, err := h.client.ListOrders(ctx, request(t, map[string]interface{}{"status": "CONFIRMED"}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, list.GetFields()["total"].GetNumberValue())
	assert.Len(t, list.GetFields()["orders"].GetListValue().GetValues(), 1)

	list, err = h.client.ListOrders(ctx, &structpb.Struct{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, list.GetFields()["total"].GetNumberValue())

	for _, st := range []string{"OUT_FOR_DELIVERY", "DELIVERED"} {
		_, err = h.client.UpdateOrderStatus(ctx, request(t, map[string]interface{}{"id": h.order.ID.Hex(), "status": st}))
		require.NoError(t, err)
	}
	_, err = h.client.UpdateOrderStatus(ctx, request(t, map[string]interface{}{"id": h.order.ID.Hex(), "status": "CONFIRMED"}))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestAPIKeyRequired(t *testing.T) {
	h := startServer(t, "wrong-key")
	ctx := context.Background()

	_, err := h.client.GetOrder(ctx, request(t, map[string]interface{}{"id": h.order.ID.Hex()}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	health, err := healthpb.NewHealthClient(h.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: OrderAdminServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, health.GetStatus())
}

type staticDiscoverer struct {
	instances []*discovery.ServiceInstance
}

func (d staticDiscoverer) Discover(context.Context, string) ([]*discovery.ServiceInstance, error) {
	return d.instances, nil
}

func TestResolveTarget(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Host = "0.0.0.0"

	m := NewClientManager(cfg, zap.NewNop(), nil)
	assert.Equal(t, "localhost:50052", m.resolve(context.Background()))

	m = NewClientManager(cfg, zap.NewNop(), staticDiscoverer{})
	assert.Equal(t, "localhost:50052", m.resolve(context.Background()))

	m = NewClientManager(cfg, zap.NewNop(), staticDiscoverer{instances: []*discovery.ServiceInstance{
		{Name: "localdelivery-admin", Host: "10.1.2.3", Port: 6000},
	}})
	assert.Equal(t, "10.1.2.3:6000", m.resolve(context.Background()))
}
