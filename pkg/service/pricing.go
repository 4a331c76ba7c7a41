package service

import (
	"github.com/example/localdelivery/pkg/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// cartLine is a cleaned cart entry: a parsed product id and quantity > 0.
type cartLine struct {
	productID primitive.ObjectID
	quantity  int
}

// quote is the priced result of a cart against current product data.
type quote struct {
	items       []models.OrderItem
	deliveryFee decimal.Decimal
	total       decimal.Decimal
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// priceCart snapshots the current price and name of every line whose
// product is present in products, dropping the rest. The delivery fee is
// added once per order.
func priceCart(lines []cartLine, products map[primitive.ObjectID]models.Product, deliveryFee float64) quote {
	q := quote{deliveryFee: money(deliveryFee)}
	subtotal := decimal.Zero

	for _, line := range lines {
		p, ok := products[line.productID]
		if !ok {
			continue
		}
		price := money(p.Price)
		lineTotal := price.Mul(decimal.NewFromInt(int64(line.quantity))).Round(2)
		subtotal = subtotal.Add(lineTotal)

		q.items = append(q.items, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     price.InexactFloat64(),
			Quantity:  line.quantity,
			Subtotal:  lineTotal.InexactFloat64(),
		})
	}

	q.total = subtotal.Add(q.deliveryFee)
	return q
}
