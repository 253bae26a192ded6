package database

import (
	"errors"
	"fmt"
	"testing"

	"emporio-pos/internal/models"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDialector(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres", "sqlite"} {
		d, err := Dialector(driver, "dsn")
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}

	_, err := Dialector("oracle", "dsn")
	assert.Error(t, err)
}

func TestConnect_SQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Connect("sqlite", dsn, false, zaptest.NewLogger(t))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}

	// the CHECK guard rejects negative stock even outside the engine
	err = db.Create(&models.Product{Name: "Broken", Stock: -1}).Error
	require.Error(t, err)
	assert.True(t, IsCheckViolation(err), err.Error())

	code := "789"
	require.NoError(t, db.Create(&models.Product{Name: "A", Barcode: &code}).Error)
	err = db.Create(&models.Product{Name: "B", Barcode: &code}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err), err.Error())
}

func TestErrorClassification(t *testing.T) {
	wrap := func(err error) error { return fmt.Errorf("insert: %w", err) }

	assert.True(t, IsCheckViolation(wrap(&mysql.MySQLError{Number: 3819})))
	assert.False(t, IsCheckViolation(wrap(&mysql.MySQLError{Number: 1062})))
	assert.True(t, IsCheckViolation(wrap(&pgconn.PgError{Code: "23514"})))

	assert.True(t, IsUniqueViolation(wrap(&mysql.MySQLError{Number: 1062})))
	assert.True(t, IsUniqueViolation(wrap(&pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(wrap(&pgconn.PgError{Code: "23514"})))

	assert.False(t, IsCheckViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
}
