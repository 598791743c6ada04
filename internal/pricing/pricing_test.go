package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{"preço com moeda e milhar", "$1,234.56", 1234.56, true},
		{"preço simples", "$29.99", 29.99, true},
		{"sem símbolo de moeda", "19.99", 19.99, true},
		{"espaços ao redor", "  $5.00  ", 5.00, true},
		{"vazio", "", 0, false},
		{"não disponível", "N/A", 0, false},
		{"só texto", "indisponível", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDiscountPercent(t *testing.T) {
	assert.Equal(t, 25.0, DiscountPercent(100, 75))
	assert.Equal(t, 0.0, DiscountPercent(0, 10))
	assert.Equal(t, 0.0, DiscountPercent(-5, 10))
	assert.Equal(t, 33.34, DiscountPercent(29.99, 19.99))
	assert.Equal(t, 50.0, DiscountPercent(30, 15))
}
