// Package app wires configuration into the stores, caches, event sinks
// and services shared by the API and admin RPC binaries.
package app

import (
	"context"
	"time"

	"github.com/example/localdelivery/gateway"
	"github.com/example/localdelivery/pkg/auth"
	"github.com/example/localdelivery/pkg/config"
	"github.com/example/localdelivery/pkg/discovery"
	"github.com/example/localdelivery/pkg/notify"
	"github.com/example/localdelivery/pkg/repository"
	"github.com/example/localdelivery/pkg/service"
	"go.uber.org/zap"
)

const (
	startupTimeout = 10 * time.Second
	flushTimeout   = 5 * time.Second
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Mongo    *repository.MongoRepository
	Redis    *repository.RedisRepository
	Ledger   *repository.PaymentLedger
	Notifier *notify.Notifier
	Services gateway.Services

	kafka *notify.KafkaSink
}

// Build creates every dependency. Only the event actor must start; the
// database is dialed on first use and the optional backends degrade to
// warnings.
func Build(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	a.Mongo = repository.NewMongoRepository(&cfg.MongoDB, logger.Named("mongo"))
	a.Redis = repository.NewRedisRepository(&cfg.Redis)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if err := a.Mongo.EnsureIndexes(ctx); err != nil {
		logger.Warn("MongoDB indexes not ensured, will connect on first request", zap.Error(err))
	}
	if err := a.Redis.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed", zap.Error(err))
	} else {
		logger.Info("Redis connected successfully")
	}

	var ledger service.PaymentLedger
	if cfg.MySQL.Enabled() {
		l, err := repository.NewPaymentLedger(&cfg.MySQL)
		if err != nil {
			logger.Warn("Payment ledger disabled", zap.Error(err))
		} else {
			a.Ledger = l
			ledger = l
			logger.Info("Payment ledger connected", zap.String("database", cfg.MySQL.Database))
		}
	}

	sinks := []notify.Sink{notify.NewAuditSink(a.Mongo)}
	if cfg.Kafka.Enabled() {
		k, err := notify.NewKafkaSink(&cfg.Kafka)
		if err != nil {
			logger.Warn("Kafka sink disabled", zap.Error(err))
		} else {
			a.kafka = k
			sinks = append(sinks, k)
		}
	}

	n, err := notify.Start(logger.Named("notify"), sinks...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Notifier = n

	users := repository.NewUserStore(a.Mongo)
	products := repository.NewProductStore(a.Mongo)
	orders := repository.NewOrderStore(a.Mongo)
	areas := repository.NewServiceAreaStore(a.Mongo)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	a.Services = gateway.Services{
		Users:     service.NewUserService(users, tokens, a.Redis, logger),
		Addresses: service.NewAddressBook(users),
		Catalog:   service.NewCatalog(products, a.Redis, logger),
		Orders:    service.NewOrderService(orders, products, users, areas, n, logger),
		Payments:  service.NewPaymentService(orders, ledger, n, cfg.Payment.KeySecret, logger),
		Areas:     service.NewServiceAreaRegistry(areas),
		Audit:     a.Mongo,
	}
	if a.Ledger != nil {
		a.Services.Attempts = a.Ledger
	}
	return a, nil
}

// Register announces an instance in etcd when endpoints are configured.
// The returned function deregisters it and closes the client.
func (a *App) Register(instance *discovery.ServiceInstance) func() {
	if !a.Config.Etcd.Enabled() {
		return func() {}
	}

	sd, err := discovery.NewServiceDiscovery(&a.Config.Etcd, a.Logger.Named("discovery"))
	if err != nil {
		a.Logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		return func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := sd.Register(ctx, instance); err != nil {
		a.Logger.Warn("Failed to register service", zap.String("name", instance.Name), zap.Error(err))
		_ = sd.Close()
		return func() {}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sd.Deregister(ctx, instance); err != nil {
			a.Logger.Error("Failed to deregister service", zap.Error(err))
		}
		_ = sd.Close()
	}
}

// Close flushes pending events and releases every connection.
func (a *App) Close() {
	if a.Notifier != nil {
		if err := a.Notifier.Flush(flushTimeout); err != nil {
			a.Logger.Warn("Pending order events not delivered", zap.Error(err))
		}
		a.Notifier.Stop()
	}
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.Logger.Warn("Kafka producer close error", zap.Error(err))
		}
	}
	if a.Ledger != nil {
		if err := a.Ledger.Close(); err != nil {
			a.Logger.Warn("Payment ledger close error", zap.Error(err))
		}
	}
	if err := a.Redis.Close(); err != nil {
		a.Logger.Warn("Redis close error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Mongo.Close(ctx); err != nil {
		a.Logger.Warn("MongoDB disconnect error", zap.Error(err))
	}
}
