package om

import "math"

// unscale reverses the scalar quantization applied by the writer (spec
// §4.4 step 5): int16Max is the missing-value sentinel and always decodes
// to NaN regardless of compression kind; otherwise linear compression
// divides by the scale factor and logarithmic compression additionally
// reverses a log10 transform.
func unscale(v int16, compression CompressionKind, scaleFactor float32) float32 {
	if v == int16Max {
		return float32(math.NaN())
	}
	switch compression {
	case CompressionLogarithmicQuantized:
		return float32(math.Pow(10, float64(v)/float64(scaleFactor))) - 1
	default:
		return float32(v) / scaleFactor
	}
}

// scale is the inverse of unscale. It is not used by the read path (spec
// §1 keeps the writer side out of scope) but building round-trip test
// fixtures (spec.md §8 property 6) needs it, so it lives next to its
// inverse rather than duplicated across test files.
func scale(v float32, compression CompressionKind, scaleFactor float32) int16 {
	if math.IsNaN(float64(v)) {
		return int16Max
	}
	var raw float64
	switch compression {
	case CompressionLogarithmicQuantized:
		raw = math.Log10(float64(v)+1) * float64(scaleFactor)
	default:
		raw = float64(v) * float64(scaleFactor)
	}
	rounded := math.Round(raw)
	if rounded >= float64(int16Max) {
		return int16Max - 1
	}
	if rounded <= math.MinInt16 {
		return math.MinInt16
	}
	return int16(rounded)
}
