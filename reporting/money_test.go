package reporting_test

import (
	"testing"

	"certipanel/reporting"

	"github.com/stretchr/testify/assert"
)

func TestMoney(t *testing.T) {
	assert.Equal(t, "0.00", reporting.Money(0))
	assert.Equal(t, "1.50", reporting.Money(150))
	assert.Equal(t, "12345.67", reporting.Money(1234567))
	assert.Equal(t, "-4.00", reporting.Money(-400))
}

func TestUnitPriceCents(t *testing.T) {
	assert.Equal(t, int64(200), reporting.UnitPriceCents(400, 2))
	assert.Equal(t, int64(150), reporting.UnitPriceCents(150, 1))
	// Truncates rather than rounds when a total does not split evenly.
	assert.Equal(t, int64(33), reporting.UnitPriceCents(100, 3))
	assert.Equal(t, int64(0), reporting.UnitPriceCents(100, 0))
}
