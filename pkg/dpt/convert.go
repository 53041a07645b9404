package dpt

import (
	"math"
	"reflect"
)

// toFloat converts any Go numeric value to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// toInt64 converts integral Go values, and floats without a fraction, to int64.
func toInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

// roundDigits rounds v half-to-even at the given number of decimal digits.
// Negative digits round to tens, hundreds and so on.
func roundDigits(v float64, digits int) float64 {
	switch {
	case digits == 0:
		return math.RoundToEven(v)
	case digits < 0:
		p := math.Pow10(-digits)
		return math.RoundToEven(v/p) * p
	}
	p := math.Pow10(digits)
	return math.RoundToEven(v*p) / p
}

// resolutionDigits is the number of decimals a resolution below 1 carries.
func resolutionDigits(res float64) int {
	if res >= 1 {
		return 0
	}
	return int(math.Round(-math.Log10(res)))
}
