// Package payment decides whether a sale total can be settled with the chosen
// tender. Cash is arithmetic, card goes through an Authorizer, PIX is
// confirmed by committing the sale.
package payment

import (
	"fmt"
	"net/http"
	"strings"

	"emporio-pos/internal/apperr"
	"emporio-pos/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownMethod      = apperr.New(apperr.ErrValidation, "unknown_payment_method", "unknown payment method")
	ErrCashRequired       = apperr.New(apperr.ErrValidation, "cash_received_required", "cash_received is required for cash payments")
	ErrInsufficientCash   = apperr.New(apperr.ErrValidation, "insufficient_cash", "cash received is less than the sale total")
	ErrReaderNotConnected = apperr.WithStatus(apperr.New(apperr.ErrExternal, "reader_not_connected", "card reader not connected"), http.StatusServiceUnavailable)
	ErrDeclined           = apperr.WithStatus(apperr.New(apperr.ErrExternal, "card_declined", "card authorization declined"), http.StatusPaymentRequired)
	ErrTerminal           = apperr.New(apperr.ErrExternal, "terminal_error", "payment terminal failed")
	ErrAmountPrecision    = apperr.New(apperr.ErrValidation, "invalid_amount_precision", "amounts carry at most two decimal places")
)

// ParseMethod normalises the wire name of a payment method. Missing means
// cash; credit_card and debit_card are both card.
func ParseMethod(raw string) (models.PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "cash":
		return models.PaymentCash, nil
	case "card", "credit_card", "debit_card":
		return models.PaymentCard, nil
	case "pix":
		return models.PaymentPix, nil
	default:
		return "", ErrUnknownMethod
	}
}

// Tender is what the customer pays with. The concrete types are Cash, Card
// and Pix; no other implementations exist.
type Tender interface {
	Method() models.PaymentMethod
	tender()
}

// Cash is notes and coins handed to the cashier.
type Cash struct {
	Received decimal.Decimal
}

// Card is settled by the card terminal at resolve time.
type Card struct{}

// Pix is confirmed outside the system; committing the sale is the confirmation.
type Pix struct{}

func (Cash) Method() models.PaymentMethod { return models.PaymentCash }
func (Card) Method() models.PaymentMethod { return models.PaymentCard }
func (Pix) Method() models.PaymentMethod  { return models.PaymentPix }

func (Cash) tender() {}
func (Card) tender() {}
func (Pix) tender()  {}

// TenderFor builds the tender for a method. Cash needs the amount received;
// the other methods ignore it.
func TenderFor(method models.PaymentMethod, cashReceived decimal.NullDecimal) (Tender, error) {
	switch method {
	case models.PaymentCash:
		if !cashReceived.Valid {
			return nil, ErrCashRequired
		}
		if !IsCents(cashReceived.Decimal) {
			return nil, fmt.Errorf("%w: cash_received %s", ErrAmountPrecision, cashReceived.Decimal)
		}
		return Cash{Received: cashReceived.Decimal}, nil
	case models.PaymentCard:
		return Card{}, nil
	case models.PaymentPix:
		return Pix{}, nil
	default:
		return nil, ErrUnknownMethod
	}
}

// IsCents reports whether d fits the two-decimal money columns unchanged.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}

// CanFinalize reports whether the tender may settle total without asking
// anyone. Card always needs the terminal, so it is finalizable only in the
// sense that an authorization may be attempted.
func CanFinalize(total decimal.Decimal, t Tender) bool {
	switch v := t.(type) {
	case Cash:
		return !v.Received.IsNegative() && v.Received.GreaterThanOrEqual(total)
	case Card, Pix:
		return true
	default:
		return false
	}
}

// Change is what goes back to the customer, never negative.
func Change(total decimal.Decimal, c Cash) decimal.Decimal {
	change := c.Received.Sub(total)
	if change.IsNegative() {
		return decimal.Zero
	}
	return change
}

// Outcome is an approved settlement ready to be recorded on a sale.
type Outcome struct {
	Method          models.PaymentMethod
	CashReceived    decimal.NullDecimal
	Change          decimal.NullDecimal
	AuthorizationID string
	CardBrand       string
}
