package checkout

import (
	"context"
	"testing"

	"emporio-pos/internal/cart"
	"emporio-pos/internal/catalog"
	"emporio-pos/internal/models"
	"emporio-pos/internal/payment"
	"emporio-pos/internal/sales"
	"emporio-pos/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type mockAuthorizer struct {
	mock.Mock
}

func (m *mockAuthorizer) Connected() bool {
	return m.Called().Bool(0)
}

func (m *mockAuthorizer) Authorize(ctx context.Context, amount decimal.Decimal) (payment.Authorization, error) {
	args := m.Called(ctx, amount)
	return args.Get(0).(payment.Authorization), args.Error(1)
}

type env struct {
	db       *gorm.DB
	svc      *Service
	auth     *mockAuthorizer
	a, b     models.Product
	products *catalog.Store
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	logger := zaptest.NewLogger(t)
	store := catalog.NewStore(db)
	auth := new(mockAuthorizer)

	e := &env{
		db:       db,
		auth:     auth,
		products: store,
		a:        testutil.SeedProduct(t, db, "Product A", "10.00", 10),
		b:        testutil.SeedProduct(t, db, "Product B", "5.00", 5),
	}
	e.svc = NewService(
		sales.NewEngine(db, store, logger),
		payment.NewResolver(auth, payment.DefaultAuthTimeout, logger),
		store,
		logger,
	)
	return e
}

func (e *env) scenario(t *testing.T, method string) Request {
	return Request{
		Items: []sales.ItemInput{
			{ProductID: e.a.ID, ProductName: "Product A", Quantity: 2, UnitPrice: testutil.Money(t, "10.00")},
			{ProductID: e.b.ID, ProductName: "Product B", Quantity: 1, UnitPrice: testutil.Money(t, "5.00")},
		},
		Total:         testutil.Money(t, "25.00"),
		PaymentMethod: method,
	}
}

func countSales(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Model(&models.Sale{}).Count(&n).Error)
	return n
}

func TestCheckout_CardDeclinedPersistsNothing(t *testing.T) {
	e := setup(t)
	e.auth.On("Connected").Return(true)
	e.auth.On("Authorize", mock.Anything, mock.Anything).
		Return(payment.Authorization{Approved: false, Reason: "do not honor"}, nil)

	_, err := e.svc.Checkout(context.Background(), e.scenario(t, "card"))
	assert.ErrorIs(t, err, payment.ErrDeclined)

	assert.Zero(t, countSales(t, e.db))
	assert.Equal(t, 10, testutil.Stock(t, e.db, e.a.ID))
	assert.Equal(t, 5, testutil.Stock(t, e.db, e.b.ID))
}

func TestCheckout_CardApproved(t *testing.T) {
	e := setup(t)
	e.auth.On("Connected").Return(true)
	e.auth.On("Authorize", mock.Anything, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(25))
	})).Return(payment.Authorization{Approved: true, TransactionID: "TX-9F8E7D6C", CardBrand: "Visa"}, nil)

	sale, err := e.svc.Checkout(context.Background(), e.scenario(t, "debit_card"))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentCard, sale.PaymentMethod)
	require.NotNil(t, sale.AuthorizationID)
	assert.Equal(t, "TX-9F8E7D6C", *sale.AuthorizationID)
	assert.Equal(t, 8, testutil.Stock(t, e.db, e.a.ID))
	assert.Equal(t, 4, testutil.Stock(t, e.db, e.b.ID))
	e.auth.AssertExpectations(t)
}

func TestCheckout_CardNotChargedWhenStockShort(t *testing.T) {
	e := setup(t)
	e.auth.On("Connected").Return(true)

	req := e.scenario(t, "card")
	req.Items[1].Quantity = 6
	req.Total = testutil.Money(t, "50.00")

	_, err := e.svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
	e.auth.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
}

func TestCheckout_ReaderNotConnected(t *testing.T) {
	e := setup(t)
	e.auth.On("Connected").Return(false)

	_, err := e.svc.Checkout(context.Background(), e.scenario(t, "card"))
	assert.ErrorIs(t, err, payment.ErrReaderNotConnected)
	assert.False(t, e.svc.ReaderConnected())
	assert.Zero(t, countSales(t, e.db))
}

func TestCheckout_CashAndPix(t *testing.T) {
	e := setup(t)

	req := e.scenario(t, "")
	req.CashReceived = decimal.NewNullDecimal(testutil.Money(t, "30.00"))
	sale, err := e.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCash, sale.PaymentMethod)
	assert.Equal(t, "5.00", sale.ChangeAmount.Decimal.StringFixed(2))

	short := e.scenario(t, "cash")
	short.CashReceived = decimal.NewNullDecimal(testutil.Money(t, "20.00"))
	_, err = e.svc.Checkout(context.Background(), short)
	assert.ErrorIs(t, err, payment.ErrInsufficientCash)

	pix, err := e.svc.Checkout(context.Background(), e.scenario(t, "pix"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPix, pix.PaymentMethod)

	assert.EqualValues(t, 2, countSales(t, e.db))
	e.auth.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
}

func TestCheckoutCart(t *testing.T) {
	e := setup(t)
	carts := cart.NewRegistry()
	id := carts.Open()
	ctx := context.Background()

	require.NoError(t, carts.With(id, func(c *cart.Cart) error {
		if err := c.AddItem(e.a, 2); err != nil {
			return err
		}
		return c.AddItem(e.b, 1)
	}))

	// short cash keeps the cart for another try
	_, err := e.svc.CheckoutCart(ctx, carts, id, "cash", decimal.NewNullDecimal(testutil.Money(t, "10")), decimal.NullDecimal{}, nil)
	assert.ErrorIs(t, err, payment.ErrInsufficientCash)
	require.NoError(t, carts.With(id, func(c *cart.Cart) error {
		assert.Equal(t, 3, c.ItemCount())
		return nil
	}))

	userID := uint(7)
	sale, err := e.svc.CheckoutCart(ctx, carts, id, "cash", decimal.NewNullDecimal(testutil.Money(t, "50")), decimal.NullDecimal{}, &userID)
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(testutil.Money(t, "25")))
	assert.Equal(t, "25.00", sale.ChangeAmount.Decimal.StringFixed(2))
	require.NotNil(t, sale.UserID)
	assert.Equal(t, userID, *sale.UserID)

	require.NoError(t, carts.With(id, func(c *cart.Cart) error {
		assert.True(t, c.IsEmpty())
		return nil
	}))

	_, err = e.svc.CheckoutCart(ctx, carts, id, "pix", decimal.NullDecimal{}, decimal.NullDecimal{}, nil)
	assert.ErrorIs(t, err, sales.ErrEmptySale)

	_, err = e.svc.CheckoutCart(ctx, carts, "nope", "pix", decimal.NullDecimal{}, decimal.NullDecimal{}, nil)
	assert.ErrorIs(t, err, cart.ErrCartNotFound)
}
