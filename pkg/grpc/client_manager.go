package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/example/localdelivery/pkg/config"
	"github.com/example/localdelivery/pkg/discovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Discoverer resolves service instances, usually through etcd.
type Discoverer interface {
	Discover(ctx context.Context, serviceName string) ([]*discovery.ServiceInstance, error)
}

// ClientManager owns the connection to the order admin service.
type ClientManager struct {
	config    *config.Config
	discovery Discoverer
	logger    *zap.Logger
	dialOpts  []grpc.DialOption

	adminClient *OrderAdminClient
	adminConn   *grpc.ClientConn
}

// NewClientManager creates a client manager. disc may be nil; extra dial
// options are appended to the defaults.
func NewClientManager(cfg *config.Config, logger *zap.Logger, disc Discoverer, opts ...grpc.DialOption) *ClientManager {
	return &ClientManager{
		config:    cfg,
		discovery: disc,
		logger:    logger,
		dialOpts:  opts,
	}
}

// Connect resolves the admin service and dials it. target overrides both
// discovery and the configured address when non-empty.
func (m *ClientManager) Connect(ctx context.Context, target string) error {
	if target == "" {
		target = m.resolve(ctx)
	}

	m.logger.Info("Connecting to order admin service", zap.String("target", target))

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(apiKeyClientInterceptor(m.config.Auth.AdminAPIKey)),
		grpc.WithBlock(),
	}, m.dialOpts...)

	conn, err := grpc.DialContext(dialCtx, target, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to order admin service: %w", err)
	}

	m.adminConn = conn
	m.adminClient = NewOrderAdminClient(conn)
	return nil
}

func (m *ClientManager) resolve(ctx context.Context) string {
	host := m.config.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	target := fmt.Sprintf("%s:%d", host, m.config.Server.Port)

	if m.discovery == nil {
		return target
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	instances, err := m.discovery.Discover(ctx, m.config.Server.Name)
	if err == nil && len(instances) > 0 {
		target = instances[0].Address()
		m.logger.Info("Discovered order admin service", zap.String("address", target))
	} else {
		m.logger.Info("Using default address for order admin service", zap.String("address", target), zap.Error(err))
	}
	return target
}

func (m *ClientManager) AdminClient() *OrderAdminClient {
	return m.adminClient
}

func (m *ClientManager) Close() error {
	if m.adminConn == nil {
		return nil
	}
	if err := m.adminConn.Close(); err != nil {
		return fmt.Errorf("admin connection close error: %w", err)
	}
	return nil
}

func apiKeyClientInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if key != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, apiKeyHeader, key)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
