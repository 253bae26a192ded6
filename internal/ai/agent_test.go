package ai

import (
	"context"
	"testing"
	"time"

	"emporio-pos/internal/catalog"
	"emporio-pos/internal/reports"
	"emporio-pos/internal/sales"
	"emporio-pos/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	agent  *Agent
	db     *gorm.DB
	store  *catalog.Store
	engine *sales.Engine
}

func newFixture(t *testing.T) fixture {
	db := testutil.NewDB(t)
	store := catalog.NewStore(db)
	engine := sales.NewEngine(db, store, zaptest.NewLogger(t))
	agg := reports.NewAggregator(db, store, engine)
	return fixture{
		agent:  NewAgent("", "test-model", store, agg, time.UTC, zaptest.NewLogger(t)),
		db:     db,
		store:  store,
		engine: engine,
	}
}

func TestDispatch_Inventory(t *testing.T) {
	f := newFixture(t)
	agent := f.agent
	ctx := context.Background()
	testutil.SeedProduct(t, f.db, "Banana", "2.50", 40)

	out, err := agent.dispatch(ctx, "check_inventory", map[string]any{"query": "bana"})
	require.NoError(t, err)
	products := out["products"].([]any)
	require.Len(t, products, 1)
	first := products[0].(map[string]any)
	assert.Equal(t, "Banana", first["name"])
	assert.Equal(t, "2.50", first["selling_price"])
	assert.EqualValues(t, 40, first["stock"])
}

func TestDispatch_UpdatePrice(t *testing.T) {
	f := newFixture(t)
	agent, store := f.agent, f.store
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Coffee", "4.00", 10)

	out, err := agent.dispatch(ctx, "update_product_price", map[string]any{"product_id": float64(p.ID), "new_price": 4.499})
	require.NoError(t, err)
	assert.Equal(t, "4.50", out["new_price"])

	got, err := store.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.SellingPrice.Equal(decimal.RequireFromString("4.5")), got.SellingPrice.String())

	_, err = agent.dispatch(ctx, "update_product_price", map[string]any{"product_id": float64(9999), "new_price": 1.0})
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	_, err = agent.dispatch(ctx, "update_product_price", map[string]any{"new_price": 1.0})
	assert.Error(t, err)
}

func TestDispatch_SalesReport(t *testing.T) {
	f := newFixture(t)
	agent, engine := f.agent, f.engine
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Bread", "3.00", 10)

	item := sales.ItemInput{ProductID: p.ID, ProductName: p.Name, Quantity: 2, UnitPrice: testutil.Money(t, "3.00")}
	_, err := engine.CreateSale(ctx, sales.CreateInput{Items: []sales.ItemInput{item}, Total: testutil.Money(t, "6.00"), PaymentMethod: "pix"})
	require.NoError(t, err)
	cancelled, err := engine.CreateSale(ctx, sales.CreateInput{Items: []sales.ItemInput{item}, Total: testutil.Money(t, "6.00"), PaymentMethod: "pix"})
	require.NoError(t, err)
	_, err = engine.CancelSale(ctx, cancelled.ID)
	require.NoError(t, err)

	today := time.Now().UTC().Format("2006-01-02")
	out, err := agent.dispatch(ctx, "get_sales_report", map[string]any{"start_date": today, "end_date": today})
	require.NoError(t, err)
	assert.EqualValues(t, 1, out["sales_count"])
	assert.Equal(t, "6.00", out["revenue"])

	_, err = agent.dispatch(ctx, "get_sales_report", map[string]any{"start_date": "yesterday", "end_date": today})
	assert.ErrorIs(t, err, sales.ErrInvalidRange)
}

func TestDispatch_LowStockAndUnknown(t *testing.T) {
	f := newFixture(t)
	agent := f.agent
	ctx := context.Background()
	testutil.SeedProduct(t, f.db, "Milk", "5.00", 0)
	testutil.SeedProduct(t, f.db, "Rice", "9.00", 50)

	out, err := agent.dispatch(ctx, "low_stock_products", nil)
	require.NoError(t, err)
	require.Len(t, out["products"], 1)

	_, err = agent.dispatch(ctx, "drop_tables", nil)
	assert.ErrorIs(t, err, errUnknownTool)
}

func TestAsk_NotConfigured(t *testing.T) {
	_, err := newFixture(t).agent.Ask(context.Background(), "how are sales today?")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
