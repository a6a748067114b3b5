// Package clinical holds derived clinical measurements.
package clinical

import "math"

// ComputeBMI returns weight / (height in metres)^2 rounded to two decimals.
// It returns nil when either measurement is missing or not positive.
func ComputeBMI(weightKg, heightCm *float64) *float64 {
	if weightKg == nil || heightCm == nil {
		return nil
	}
	w, h := *weightKg, *heightCm
	if w <= 0 || h <= 0 {
		return nil
	}
	m := h / 100
	bmi := math.Round(w/(m*m)*100) / 100
	return &bmi
}
