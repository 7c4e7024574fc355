// Package utils provides small shared helpers: currency rounding and
// compact trading-date parsing.
package utils

import "math"

// RoundTo rounds half away from zero to the given number of decimals.
// This is the venue convention for cash amounts (2 decimals for CNY,
// 4 for HKD/USD simulation precision).
func RoundTo(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

// Float64Ptr returns a pointer to v. Used for nullable metric fields.
func Float64Ptr(v float64) *float64 { return &v }
