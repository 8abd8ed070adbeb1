package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductStatus(t *testing.T) {
	tests := []struct {
		name     string
		quantity int64
		minimum  int64
		want     Status
	}{
		{"zero is out of stock", 0, 10, StatusOutOfStock},
		{"negative is out of stock", -20, 10, StatusOutOfStock},
		{"at minimum is low", 10, 10, StatusLowStock},
		{"below minimum is low", 7, 10, StatusLowStock},
		{"above minimum is available", 85, 20, StatusAvailable},
		{"zero minimum", 1, 0, StatusAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{Quantity: tt.quantity, MinimumStock: tt.minimum}
			assert.Equal(t, tt.want, p.Status())
			assert.Equal(t, tt.want != StatusAvailable, p.IsLow())
		})
	}
}

func TestProductFamily(t *testing.T) {
	key := "cheddar-200g"
	assert.Equal(t, "", Product{}.Family())
	assert.Equal(t, key, Product{FamilyKey: &key}.Family())
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultProductLimit, clampLimit(0))
	assert.Equal(t, 25, clampLimit(25))
	assert.Equal(t, maxProductLimit, clampLimit(10_000))
}
