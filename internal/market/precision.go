package market

// precisionByKey fixes the decimal precision per instrument key. The same
// precision is applied on every fetch for a given key so consecutive polls
// produce numerically comparable, identically formatted values.
var precisionByKey = map[string]int32{
	"Gold":      2,
	"Silver":    3,
	"Crude Oil": 2,
	"EUR/USD":   4,
	"GBP/USD":   4,
	"USD/JPY":   2,
}

// Precision returns the fixed decimal precision for an instrument key.
// Keys without an explicit entry (equities, crypto) use 2.
func Precision(key string) int32 {
	if p, ok := precisionByKey[key]; ok {
		return p
	}
	return 2
}
