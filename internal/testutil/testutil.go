// Package testutil provides an isolated sqlite database and catalog fixtures
// for package tests.
package testutil

import (
	"fmt"
	"testing"

	"emporio-pos/internal/database"
	"emporio-pos/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB opens a private in-memory sqlite database with the full schema.
// A single connection serialises writers the way row locks would on MySQL.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.Config(false))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Money parses a decimal literal and fails the test on bad input.
func Money(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// SeedProduct inserts a product with the given price and stock.
func SeedProduct(t *testing.T, db *gorm.DB, name, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{
		Name:         name,
		SellingPrice: Money(t, price),
		CostPrice:    Money(t, price).Div(decimal.NewFromInt(2)),
		Stock:        stock,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// Stock reloads the persisted stock of a product.
func Stock(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, id).Error)
	return p.Stock
}
