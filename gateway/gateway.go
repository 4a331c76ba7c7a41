package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/localdelivery/pkg/config"
	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/repository"
	"github.com/example/localdelivery/pkg/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// AuditReader reads the recorded events of one order.
type AuditReader interface {
	GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error)
}

// AttemptReader reads the payment ledger of one order.
type AttemptReader interface {
	AttemptsForOrder(ctx context.Context, orderID string) ([]models.PaymentAttempt, error)
}

// Services are the handlers' collaborators. Audit and Attempts may be nil,
// in which case order history reports empty lists.
type Services struct {
	Users     *service.UserService
	Addresses *service.AddressBook
	Catalog   *service.Catalog
	Orders    *service.OrderService
	Payments  *service.PaymentService
	Areas     *service.ServiceAreaRegistry
	Audit     AuditReader
	Attempts  AttemptReader
}

type Gateway struct {
	config   *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	services Services
	server   *http.Server
}

func NewGateway(cfg *config.Config, logger *zap.Logger, services Services) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware(logger))
	router.Use(corsMiddleware(cfg.Gateway.AllowedOrigins))

	g := &Gateway{
		config:   cfg,
		logger:   logger,
		router:   router,
		services: services,
	}
	g.SetupRoutes()
	return g
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "API is running")
	})
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Accounts
	g.router.POST("/userregister", g.register)
	g.router.POST("/userlogin", g.login)

	// Storefront
	g.router.GET("/products", g.listProducts)
	g.router.GET("/products/:id", g.getProduct)
	g.router.GET("/categories", g.listCategories)
	g.router.GET("/service-areas/:pincode", g.checkServiceArea)

	authed := g.router.Group("")
	authed.Use(g.authMiddleware())
	{
		user := authed.Group("/user")
		{
			user.GET("/profile", g.getProfile)
			user.PUT("/profile", g.updateProfile)

			user.GET("/addresses", g.listAddresses)
			user.POST("/addresses", g.addAddress)
			user.PUT("/addresses/:id", g.updateAddress)
			user.DELETE("/addresses/:id", g.deleteAddress)
			user.PUT("/addresses/:id/default", g.setDefaultAddress)
		}

		orders := authed.Group("/orders")
		{
			orders.POST("", g.createOrder)
			orders.GET("", g.listOrders)
			orders.GET("/:id", g.getOrder)
			orders.PUT("/:id/cancel", g.cancelOrder)
		}

		authed.POST("/payments/verify", g.verifyPayment)

		admin := authed.Group("/admin")
		admin.Use(g.adminMiddleware())
		{
			admin.GET("/products", g.adminListProducts)
			admin.GET("/products/export", g.exportProducts)
			admin.POST("/products", g.createProduct)
			admin.PUT("/products/:id", g.updateProduct)
			admin.DELETE("/products/:id", g.deleteProduct)

			admin.GET("/orders", g.adminListOrders)
			admin.GET("/orders/:id/history", g.orderHistory)
			admin.PUT("/orders/:id/status", g.updateOrderStatus)

			admin.GET("/service-areas", g.listServiceAreas)
			admin.POST("/service-areas", g.upsertServiceArea)
			admin.DELETE("/service-areas/:id", g.deleteServiceArea)
		}
	}

	// Swagger
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Start serves until Shutdown is called. A clean shutdown returns nil.
func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.config.Gateway.Host, g.config.Gateway.Port)
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway server error: %w", err)
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("Gateway shutting down")
	return g.server.Shutdown(ctx)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", requestIDHeader)
	cfg.ExposeHeaders = []string{requestIDHeader}
	return cors.New(cfg)
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
	}
}
