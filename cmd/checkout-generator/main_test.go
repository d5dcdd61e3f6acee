package main

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLQuote(t *testing.T) {
	assert.Equal(t, "'O''Brien'", sqlQuote("O'Brien"))
	assert.Equal(t, "''", sqlQuote(""))
}

func TestSeedSQL(t *testing.T) {
	// --- Arrange & Act ---
	sql := seedSQL(3, 2, rand.New(rand.NewSource(1)))

	// --- Assert ---
	assert.True(t, strings.HasPrefix(sql, "BEGIN;\n"))
	assert.True(t, strings.HasSuffix(sql, "COMMIT;\n"))
	assert.Equal(t, 3, strings.Count(sql, "INSERT INTO products"))
	assert.Equal(t, 2, strings.Count(sql, "INSERT INTO customers"))
	assert.Equal(t, 3, strings.Count(sql, "INSERT INTO promotions"))
	assert.Contains(t, sql, "'P003'")
	assert.Contains(t, sql, "'C002'")
	assert.Contains(t, sql, "'PROMO-P001'")
}

func TestSeedSQLWithoutProductsSkipsProductPromotion(t *testing.T) {
	sql := seedSQL(0, 0, rand.New(rand.NewSource(1)))

	assert.NotContains(t, sql, "PROMO-P001")
	assert.Equal(t, 2, strings.Count(sql, "INSERT INTO promotions"))
}
