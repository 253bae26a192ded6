package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"emporio-pos/internal/models"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DefaultAuthTimeout bounds a single card authorization.
const DefaultAuthTimeout = 30 * time.Second

// Authorization is the terminal's answer for one charge.
type Authorization struct {
	Approved      bool
	TransactionID string
	CardBrand     string
	Reason        string
}

// Authorizer talks to the card reader.
type Authorizer interface {
	// Connected must answer without touching the device.
	Connected() bool
	// Authorize blocks until the terminal approves or declines amount.
	Authorize(ctx context.Context, amount decimal.Decimal) (Authorization, error)
}

// Resolver turns a total and a tender into an Outcome or a payment error.
type Resolver struct {
	authorizer Authorizer
	timeout    time.Duration
	logger     *zap.Logger
	authCount  metric.Int64Counter
}

func NewResolver(authorizer Authorizer, timeout time.Duration, logger *zap.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}
	counter, err := otel.Meter("emporio-pos/payment").Int64Counter("pos.card.authorizations",
		metric.WithDescription("Card authorizations by outcome"))
	if err != nil {
		logger.Warn("card authorization counter unavailable", zap.Error(err))
	}
	return &Resolver{authorizer: authorizer, timeout: timeout, logger: logger, authCount: counter}
}

// ReaderConnected reports whether card payments can be attempted.
func (r *Resolver) ReaderConnected() bool {
	return r.authorizer != nil && r.authorizer.Connected()
}

// Resolve settles total with t. Card payments suspend until the terminal
// answers or the timeout elapses; a timeout counts as a decline.
func (r *Resolver) Resolve(ctx context.Context, total decimal.Decimal, t Tender) (Outcome, error) {
	switch v := t.(type) {
	case Cash:
		if !CanFinalize(total, v) {
			return Outcome{}, fmt.Errorf("%w: received %s, total %s", ErrInsufficientCash, v.Received.StringFixed(2), total.StringFixed(2))
		}
		return Outcome{
			Method:       models.PaymentCash,
			CashReceived: decimal.NewNullDecimal(v.Received),
			Change:       decimal.NewNullDecimal(Change(total, v)),
		}, nil

	case Pix:
		return Outcome{Method: models.PaymentPix}, nil

	case Card:
		return r.authorize(ctx, total)

	default:
		return Outcome{}, ErrUnknownMethod
	}
}

func (r *Resolver) authorize(ctx context.Context, total decimal.Decimal) (Outcome, error) {
	if !r.ReaderConnected() {
		r.record(ctx, "not_connected")
		return Outcome{}, ErrReaderNotConnected
	}

	authCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		auth Authorization
		err  error
	}
	done := make(chan result, 1)

	started := time.Now()
	go func() {
		auth, err := r.authorizer.Authorize(authCtx, total)
		done <- result{auth, err}
	}()

	var auth Authorization
	var err error
	select {
	case res := <-done:
		auth, err = res.auth, res.err
		// an answer that lands after the deadline is not trusted
		if err == nil && authCtx.Err() != nil {
			r.reportLate(auth, total)
			err = authCtx.Err()
		}
	case <-authCtx.Done():
		err = authCtx.Err()
		go func() {
			if res := <-done; res.err == nil {
				r.reportLate(res.auth, total)
			}
		}()
	}
	elapsed := time.Since(started)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(authCtx.Err(), context.DeadlineExceeded) {
			r.record(ctx, "timeout")
			r.logger.Warn("card authorization timed out",
				zap.String("amount", total.StringFixed(2)), zap.Duration("timeout", r.timeout))
			return Outcome{}, fmt.Errorf("%w: authorization timed out after %s", ErrDeclined, r.timeout)
		}
		r.record(ctx, "error")
		r.logger.Error("card terminal failed", zap.String("amount", total.StringFixed(2)), zap.Error(err))
		return Outcome{}, fmt.Errorf("%w: %v", ErrTerminal, err)
	}

	if !auth.Approved {
		r.record(ctx, "declined")
		r.logger.Info("card declined",
			zap.String("amount", total.StringFixed(2)), zap.String("reason", auth.Reason), zap.Duration("elapsed", elapsed))
		if auth.Reason != "" {
			return Outcome{}, fmt.Errorf("%w: %s", ErrDeclined, auth.Reason)
		}
		return Outcome{}, ErrDeclined
	}

	r.record(ctx, "approved")
	r.logger.Info("card approved",
		zap.String("amount", total.StringFixed(2)),
		zap.String("transaction_id", auth.TransactionID),
		zap.Duration("elapsed", elapsed))

	return Outcome{
		Method:          models.PaymentCard,
		AuthorizationID: auth.TransactionID,
		CardBrand:       auth.CardBrand,
	}, nil
}

// reportLate logs an approval that came back after the sale was already
// declined, so the charge can be reversed at the terminal.
func (r *Resolver) reportLate(auth Authorization, total decimal.Decimal) {
	if !auth.Approved {
		return
	}
	r.logger.Error("card approved after timeout, reverse the charge",
		zap.String("amount", total.StringFixed(2)), zap.String("transaction_id", auth.TransactionID))
}

func (r *Resolver) record(ctx context.Context, outcome string) {
	if r.authCount == nil {
		return
	}
	r.authCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
