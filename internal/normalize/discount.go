package normalize

// maxDiscount keeps rounded discounts strictly below 100.
const maxDiscount = 99.9

// ComputeDiscount returns the percentage saved going from original to
// current, rounded to one decimal. An absent original (<= 0), an original
// that is not above current, or an unpriced listing (current <= 0) all yield 0.
func ComputeDiscount(original, current float64) float64 {
	if original <= 0 || current <= 0 || original <= current {
		return 0
	}
	d := roundTo((original-current)/original*100, 1)
	if d > maxDiscount {
		d = maxDiscount
	}
	return d
}
