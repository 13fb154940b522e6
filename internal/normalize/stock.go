package normalize

import "pricecompare/internal/registry"

// InferStock applies the two-signal heuristic: an explicit out-of-stock marker
// wins; otherwise a listing is in stock iff its price parsed to something > 0.
func InferStock(outOfStockMarker bool, price float64) bool {
	if outOfStockMarker {
		return false
	}
	return price > 0
}

// InferStockPolicy is InferStock with a per-source override.
//
//	two_signal (default)  marker absent and price > 0
//	marker                marker absent
//	price                 price > 0
func InferStockPolicy(policy string, outOfStockMarker bool, price float64) bool {
	switch policy {
	case registry.StockMarker:
		return !outOfStockMarker
	case registry.StockPrice:
		return price > 0
	default:
		return InferStock(outOfStockMarker, price)
	}
}
