// Package minutespkg provides common minutes related functionality for apps.
package minutespkg

import (
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places a minutes amount may carry.
const Scale = 4

var sixty = decimal.NewFromInt(60)

// HasValidScale reports whether m is representable with Scale decimals.
func HasValidScale(m decimal.Decimal) bool {
	return m.Equal(m.Round(Scale))
}

// ToSeconds converts minutes to whole seconds rounding down.
// Balances have no upper bound, so the result stays a decimal.
func ToSeconds(m decimal.Decimal) decimal.Decimal {
	return m.Mul(sixty).Floor()
}

// ValidMinutes validates whether the field is a positive minutes amount.
var ValidMinutes validator.Func = func(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return false
	}

	return HasValidScale(decimal.NewFromFloat(f))
}
