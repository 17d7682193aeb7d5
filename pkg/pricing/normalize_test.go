package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   float64
		wantOK bool
	}{
		{"dot thousands comma decimals", "1.234,56", 1234.56, true},
		{"plain integer", "999", 999, true},
		{"grouped thousands", "1.299.990", 1299990, true},
		{"surrounding whitespace", "  45.990 \n", 45990, true},
		{"inner spaces", "12 990", 12990, true},
		{"no-break spaces trimmed", "\u00a019.990\u00a0", 19990, true},
		{"separator control trimmed", "19.990\x1f", 19990, true},
		{"inner no-break space", "1\u00a0990", 0, false},
		{"us format is misread", "1,234.56", 1.23456, true},
		{"comma decimals only", "19,99", 19.99, true},
		{"zero", "0", 0, false},
		{"negative", "-10", 0, false},
		{"letters", "abc", 0, false},
		{"empty", "", 0, false},
		{"currency symbol left in", "$1.000", 0, false},
		{"infinity", "inf", 0, false},
		{"nan", "NaN", 0, false},
		{"overflow", "1e400", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
