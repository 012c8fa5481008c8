package promo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode_Validate(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		code    Code
		wantErr string
	}{
		{name: "percentage", code: Code{DiscountType: Percentage, Value: d("100")}},
		{name: "fixed above 100", code: Code{DiscountType: FixedAmount, Value: d("150")}},
		{name: "zero value", code: Code{DiscountType: FixedAmount, Value: d("0")}, wantErr: "value must be positive"},
		{name: "negative value", code: Code{DiscountType: FixedAmount, Value: d("-5")}, wantErr: "value must be positive"},
		{
			name:    "percentage over 100",
			code:    Code{DiscountType: Percentage, Value: d("100.01")},
			wantErr: "percentage value must not exceed 100",
		},
		{
			name:    "negative min order",
			code:    Code{DiscountType: Percentage, Value: d("10"), MinOrderAmount: dp("-1")},
			wantErr: "min order amount must not be negative",
		},
		{
			name:    "negative max discount",
			code:    Code{DiscountType: Percentage, Value: d("10"), MaxDiscountAmount: dp("-1")},
			wantErr: "max discount amount must not be negative",
		},
		{
			name:    "negative usage limit",
			code:    Code{DiscountType: Percentage, Value: d("10"), UsageLimit: -1},
			wantErr: "usage limit must not be negative",
		},
		{
			name:    "inverted validity",
			code:    Code{DiscountType: Percentage, Value: d("10"), ValidFrom: from, ValidUntil: from.Add(-time.Hour)},
			wantErr: "valid until is before valid from",
		},
		{
			name: "open ended validity",
			code: Code{DiscountType: Percentage, Value: d("10"), ValidFrom: from},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.code.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
