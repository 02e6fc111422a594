// Package funds computes dispute fund splits from contract-reported values.
// Everything here is pure fixed-point arithmetic: no I/O, no side effects.
package funds

import "math/big"

// The arbiter pool always receives 95% of the disputed remainder; the rest
// stays in the treasury.
var (
	poolNumerator   = big.NewInt(95)
	poolDenominator = big.NewInt(100)
)

// Distribution returns the amount released to the arbiter pool, in
// 18-decimal fixed-point.
//
// For a terminal resolution (the contract reports AuditExpired or
// AuditCompleted) the pool receives 95% of (escrowed − newOffer).
//
// For an adjusted, still-active engagement the pool's cut is pro-rated by
// the contract-reported share ratio against the decided haircut:
// (escrowed − newOffer) × share/(share+haircut) × 95%.
//
// All multiplications happen before divisions so integer truncation is
// applied once, at the end.
func Distribution(escrowed18, newOffer18, haircut, shareRatio *big.Int, terminal bool) *big.Int {
	diff := new(big.Int).Sub(escrowed18, newOffer18)

	if terminal {
		out := new(big.Int).Mul(diff, poolNumerator)
		return out.Quo(out, poolDenominator)
	}

	denom := new(big.Int).Add(shareRatio, haircut)
	out := new(big.Int).Mul(diff, shareRatio)
	out.Mul(out, poolNumerator)
	out.Quo(out, denom)
	return out.Quo(out, poolDenominator)
}
