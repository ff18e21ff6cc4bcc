package catalogue

import (
	"fmt"
	"math"
)

const basisPoints = 10_000

// VAT is a single fixed inclusive tax rate held in basis points, so that
// price arithmetic stays in integers.
type VAT struct {
	bps int64
}

// NewVAT converts a fractional rate (0.1 for 10%) to a VAT.
func NewVAT(rate float64) (VAT, error) {
	if math.IsNaN(rate) || rate < 0 || rate >= 1 {
		return VAT{}, fmt.Errorf("%w: %v", ErrInvalidVATRate, rate)
	}
	return VAT{bps: int64(math.Round(rate * basisPoints))}, nil
}

// Tax returns the VAT on base, rounded half up.
func (v VAT) Tax(base int64) int64 {
	return (base*v.bps + basisPoints/2) / basisPoints
}

// Total returns base plus VAT.
func (v VAT) Total(base int64) int64 {
	return base + v.Tax(base)
}

// Rate returns the fractional rate.
func (v VAT) Rate() float64 {
	return float64(v.bps) / basisPoints
}
