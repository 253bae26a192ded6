// Package checkout settles a cart: it validates the lines, resolves the
// payment and hands the result to the sale engine.
package checkout

import (
	"context"
	"fmt"

	"emporio-pos/internal/cart"
	"emporio-pos/internal/catalog"
	"emporio-pos/internal/models"
	"emporio-pos/internal/payment"
	"emporio-pos/internal/sales"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ProductLookup reads current stock for the pre-authorization check.
type ProductLookup interface {
	GetProductByID(ctx context.Context, id uint) (*models.Product, error)
}

// Request is a finished cart as sent by a till.
type Request struct {
	Items         []sales.ItemInput
	Total         decimal.Decimal
	PaymentMethod string
	CashReceived  decimal.NullDecimal
	ChangeAmount  decimal.NullDecimal
	UserID        *uint
}

type Service struct {
	engine   *sales.Engine
	resolver *payment.Resolver
	products ProductLookup
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewService(engine *sales.Engine, resolver *payment.Resolver, products ProductLookup, logger *zap.Logger) *Service {
	return &Service{
		engine:   engine,
		resolver: resolver,
		products: products,
		logger:   logger,
		tracer:   otel.Tracer("emporio-pos/checkout"),
	}
}

// Checkout records the sale once payment is settled. Nothing is written when
// validation fails or the card is declined.
func (s *Service) Checkout(ctx context.Context, req Request) (*models.Sale, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Checkout")
	defer span.End()

	in := sales.CreateInput{
		Items:         req.Items,
		Total:         req.Total,
		PaymentMethod: req.PaymentMethod,
		CashReceived:  req.CashReceived,
		ChangeAmount:  req.ChangeAmount,
		UserID:        req.UserID,
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	method, _ := payment.ParseMethod(req.PaymentMethod)
	span.SetAttributes(attribute.String("payment_method", string(method)))

	tender, err := payment.TenderFor(method, req.CashReceived)
	if err != nil {
		return nil, err
	}

	if method == models.PaymentCard {
		if err := s.checkStock(ctx, req.Items); err != nil {
			return nil, err
		}
	}

	outcome, err := s.resolver.Resolve(ctx, req.Total, tender)
	if err != nil {
		return nil, err
	}

	in.PaymentMethod = string(outcome.Method)
	in.AuthorizationID = outcome.AuthorizationID
	in.CardBrand = outcome.CardBrand

	sale, err := s.engine.CreateSale(ctx, in)
	if err != nil {
		if outcome.AuthorizationID != "" {
			s.logger.Error("sale failed after card approval, reverse the charge manually",
				zap.String("authorization_id", outcome.AuthorizationID),
				zap.String("total", req.Total.StringFixed(2)),
				zap.Error(err))
		}
		return nil, err
	}
	return sale, nil
}

// CheckoutCart settles an open register cart and empties it on success. The
// cart stays locked while the card terminal is waited on.
func (s *Service) CheckoutCart(ctx context.Context, carts *cart.Registry, cartID string, method string, cashReceived, changeAmount decimal.NullDecimal, userID *uint) (*models.Sale, error) {
	var sale *models.Sale
	err := carts.With(cartID, func(c *cart.Cart) error {
		lines := c.Lines()
		items := make([]sales.ItemInput, 0, len(lines))
		for _, l := range lines {
			items = append(items, sales.ItemInput{
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				Quantity:    l.Quantity,
				UnitPrice:   l.UnitPrice,
				TotalPrice:  decimal.NewNullDecimal(l.TotalPrice),
			})
		}

		var err error
		sale, err = s.Checkout(ctx, Request{
			Items:         items,
			Total:         c.Total(),
			PaymentMethod: method,
			CashReceived:  cashReceived,
			ChangeAmount:  changeAmount,
			UserID:        userID,
		})
		if err != nil {
			return err
		}
		c.Clear()
		return nil
	})
	return sale, err
}

// ReaderConnected reports whether card payments can be attempted.
func (s *Service) ReaderConnected() bool {
	return s.resolver.ReaderConnected()
}

// checkStock refuses a card charge for a cart that could not be committed
// anyway. The engine's conditional decrement remains the real guard.
func (s *Service) checkStock(ctx context.Context, items []sales.ItemInput) error {
	wanted := make(map[uint]int, len(items))
	order := make([]uint, 0, len(items))
	for _, it := range items {
		if _, seen := wanted[it.ProductID]; !seen {
			order = append(order, it.ProductID)
		}
		wanted[it.ProductID] += it.Quantity
	}

	for _, id := range order {
		p, err := s.products.GetProductByID(ctx, id)
		if err != nil {
			return err
		}
		if p.Stock < wanted[id] {
			return fmt.Errorf("%w: %s has %d in stock", catalog.ErrInsufficientStock, p.Name, p.Stock)
		}
	}
	return nil
}
