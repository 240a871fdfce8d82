package store

import (
	"testing"

	"position-ledger-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Position{}))
	return db
}

func testPosition() *models.Position {
	return &models.Position{
		Exchange:        "binance",
		Symbol:          "BTC",
		Side:            "long-close",
		MatchedQuantity: 1.5,
		EntryPrice:      30000,
		ClosePrice:      31000,
		OpenTimestamp:   1000,
		CloseTimestamp:  2000,
		GrossPnL:        1500,
		NetPnL:          1497,
		EntryFeeQuote:   1.5,
		ExitFeeQuote:    1.5,
		Notional:        45000,
	}
}

func TestInsertIfAbsent(t *testing.T) {
	db := setupTestDB(t)
	st := NewGormStore(db)

	inserted, err := st.InsertIfAbsent(testPosition())
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same identity again: must be skipped, not duplicated.
	inserted, err = st.InsertIfAbsent(testPosition())
	require.NoError(t, err)
	assert.False(t, inserted)

	var count int64
	require.NoError(t, db.Model(&models.Position{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInsertIfAbsentDistinguishesIdentity(t *testing.T) {
	db := setupTestDB(t)
	st := NewGormStore(db)

	first := testPosition()
	inserted, err := st.InsertIfAbsent(first)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Any change to an identity column is a different record.
	other := testPosition()
	other.CloseTimestamp = 3000
	inserted, err = st.InsertIfAbsent(other)
	require.NoError(t, err)
	assert.True(t, inserted)

	var count int64
	require.NoError(t, db.Model(&models.Position{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestIdentityOf(t *testing.T) {
	p := testPosition()
	id := IdentityOf(p)
	assert.Equal(t, "binance", id.Exchange)
	assert.Equal(t, "BTC", id.Symbol)
	assert.Equal(t, int64(2000), id.CloseTimestamp)
	assert.Equal(t, 1.5, id.MatchedQuantity)
	assert.Contains(t, id.String(), "binance/BTC")
}
