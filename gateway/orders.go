package gateway

import (
	"net/http"

	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/repository"
	"github.com/example/localdelivery/pkg/service"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const historyLimit = 100

type statusRequest struct {
	Status string `json:"status"`
}

func (g *Gateway) createOrder(c *gin.Context) {
	var req service.CreateOrderInput
	if !g.bind(c, &req) {
		return
	}

	order, err := g.services.Orders.CreateOrder(c.Request.Context(), identityOf(c).UserID, req)
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"order": order})
}

func (g *Gateway) listOrders(c *gin.Context) {
	orders, err := g.services.Orders.ListForUser(c.Request.Context(), identityOf(c).UserID)
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"orders": nonNilOrders(orders)})
}

func (g *Gateway) getOrder(c *gin.Context) {
	order, err := g.services.Orders.GetForUser(c.Request.Context(), identityOf(c).UserID, c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"order": order})
}

func (g *Gateway) cancelOrder(c *gin.Context) {
	order, err := g.services.Orders.Cancel(c.Request.Context(), identityOf(c).UserID, c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Order cancelled", "order": order})
}

func (g *Gateway) verifyPayment(c *gin.Context) {
	var req service.VerifyPaymentInput
	if !g.bind(c, &req) {
		return
	}

	order, err := g.services.Payments.Verify(c.Request.Context(), identityOf(c).UserID, req)
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Payment verified", "order": order})
}

func (g *Gateway) adminListOrders(c *gin.Context) {
	orders, err := g.services.Orders.ListAll(c.Request.Context(), c.Query("status"))
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"orders": nonNilOrders(orders)})
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if !g.bind(c, &req) {
		return
	}

	order, err := g.services.Orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"order": order})
}

// orderHistory joins the audit trail and the payment ledger of one order.
func (g *Gateway) orderHistory(c *gin.Context) {
	ctx := c.Request.Context()
	order, err := g.services.Orders.Get(ctx, c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	orderID := order.ID.Hex()

	events := []*repository.AuditLog{}
	attempts := []models.PaymentAttempt{}

	eg, egCtx := errgroup.WithContext(ctx)
	if g.services.Audit != nil {
		eg.Go(func() error {
			logs, err := g.services.Audit.GetAuditLogs(egCtx, orderID, historyLimit)
			if err == nil && logs != nil {
				events = logs
			}
			return err
		})
	}
	if g.services.Attempts != nil {
		eg.Go(func() error {
			rows, err := g.services.Attempts.AttemptsForOrder(egCtx, orderID)
			if err == nil && rows != nil {
				attempts = rows
			}
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		g.fail(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"order":           order,
		"events":          events,
		"paymentAttempts": attempts,
	})
}

func nonNilOrders(orders []models.Order) []models.Order {
	if orders == nil {
		return []models.Order{}
	}
	return orders
}
