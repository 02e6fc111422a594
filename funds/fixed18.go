package funds

import "math/big"

// precision is the fixed-point scale used for every monetary value crossing
// the chain boundary.
const precision = 18

var scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(precision), nil)

// ToFixed18 converts a whole-token amount into its 18-decimal fixed-point
// representation.
func ToFixed18(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), scale)
}

// FromFixed18 converts an 18-decimal fixed-point amount back to whole
// tokens, truncating any sub-token remainder. ToFixed18(FromFixed18(x)) == x
// whenever x is an exact multiple of 10^18.
func FromFixed18(x *big.Int) int64 {
	return new(big.Int).Quo(x, scale).Int64()
}
