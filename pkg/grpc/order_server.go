package grpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/example/localdelivery/pkg/config"
	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/service"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const apiKeyHeader = "x-api-key"

// OrderServer is the back-office order API. Every call goes through the
// same OrderService as the HTTP admin routes.
type OrderServer struct {
	orders *service.OrderService
	config *config.Config
	logger *zap.Logger

	server *grpc.Server
	health *health.Server
}

func NewOrderServer(orders *service.OrderService, cfg *config.Config, logger *zap.Logger) *OrderServer {
	s := &OrderServer{
		orders: orders,
		config: cfg,
		logger: logger,
		health: health.NewServer(),
	}

	s.server = grpc.NewServer(grpc.ChainUnaryInterceptor(
		loggingInterceptor(logger),
		apiKeyInterceptor(cfg.Auth.AdminAPIKey),
	))
	RegisterOrderAdminServer(s.server, s)
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	s.health.SetServingStatus(OrderAdminServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

func (s *OrderServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("Order admin service started", zap.String("address", addr))
	return s.Serve(lis)
}

func (s *OrderServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

func (s *OrderServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

func (s *OrderServer) GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	order, err := s.orders.Get(ctx, field(req, "id"))
	if err != nil {
		return nil, s.fail(methodOf(ctx), err)
	}
	return orderReply(order)
}

func (s *OrderServer) ListOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orders, err := s.orders.ListAll(ctx, field(req, "status"))
	if err != nil {
		return nil, s.fail(methodOf(ctx), err)
	}

	list := make([]interface{}, 0, len(orders))
	for i := range orders {
		m, err := toMap(&orders[i])
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to encode order")
		}
		list = append(list, m)
	}

	out, err := structpb.NewStruct(map[string]interface{}{
		"orders": list,
		"total":  len(orders),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode orders")
	}
	return out, nil
}

func (s *OrderServer) UpdateOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	order, err := s.orders.UpdateStatus(ctx, field(req, "id"), field(req, "status"))
	if err != nil {
		return nil, s.fail(methodOf(ctx), err)
	}
	return orderReply(order)
}

func field(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

func orderReply(order *models.Order) (*structpb.Struct, error) {
	m, err := toMap(order)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode order")
	}
	out, err := structpb.NewStruct(map[string]interface{}{"order": m})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode order")
	}
	return out, nil
}

// toMap renders the order with its JSON field names.
func toMap(order *models.Order) (map[string]interface{}, error) {
	data, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

var kindCodes = map[errs.Kind]codes.Code{
	errs.KindValidation:         codes.InvalidArgument,
	errs.KindNotFound:           codes.NotFound,
	errs.KindServiceUnavailable: codes.FailedPrecondition,
	errs.KindConflict:           codes.FailedPrecondition,
	errs.KindAuth:               codes.Unauthenticated,
	errs.KindForbidden:          codes.PermissionDenied,
	errs.KindUnexpected:         codes.Internal,
}

func toStatus(err error) error {
	return status.Error(kindCodes[errs.KindOf(err)], errs.Message(err))
}

// fail logs the cause of unexpected errors before it is reduced to a status.
func (s *OrderServer) fail(method string, err error) error {
	if errs.KindOf(err) == errs.KindUnexpected {
		s.logger.Error("Admin RPC failed", zap.String("method", method), zap.Error(err))
	}
	return toStatus(err)
}

func methodOf(ctx context.Context) string {
	if method, ok := grpc.Method(ctx); ok {
		return method
	}
	return ""
}

func apiKeyInterceptor(key string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}
		if key == "" {
			return nil, status.Error(codes.Unauthenticated, "admin api key not configured")
		}

		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get(apiKeyHeader)
		if len(values) == 0 || subtle.ConstantTimeCompare([]byte(values[0]), []byte(key)) != 1 {
			return nil, status.Error(codes.Unauthenticated, "invalid api key")
		}
		return handler(ctx, req)
	}
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		}
		if status.Code(err) == codes.Internal {
			logger.Error("RPC failed", append(fields, zap.Error(err))...)
		} else {
			logger.Info("RPC", fields...)
		}
		return resp, err
	}
}
