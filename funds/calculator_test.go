package funds

import (
	"math/big"
	"testing"
)

func TestFixed18RoundTrip(t *testing.T) {
	for _, units := range []int64{0, 1, 40, 100, 1_000_000} {
		x := ToFixed18(units)
		if got := FromFixed18(x); got != units {
			t.Fatalf("FromFixed18(ToFixed18(%d)) = %d", units, got)
		}
		if y := ToFixed18(FromFixed18(x)); y.Cmp(x) != 0 {
			t.Fatalf("ToFixed18(FromFixed18(%s)) = %s", x, y)
		}
	}
}

func TestFromFixed18Truncates(t *testing.T) {
	// 1.5 tokens
	x := new(big.Int).Add(ToFixed18(1), new(big.Int).Div(ToFixed18(1), big.NewInt(2)))
	if got := FromFixed18(x); got != 1 {
		t.Fatalf("expected truncation to 1, got %d", got)
	}
}

func TestDistribution_Terminal(t *testing.T) {
	// escrowed 100, contract reports newOffer 40: pool gets (100-40)*0.95 = 57.
	got := Distribution(ToFixed18(100), ToFixed18(40), nil, nil, true)
	if want := ToFixed18(57); got.Cmp(want) != 0 {
		t.Fatalf("terminal distribution = %s, want %s", got, want)
	}
}

func TestDistribution_ProRated(t *testing.T) {
	// share 10, haircut 10: the pool's half of the 95% cut.
	// (100-40) * 10/(10+10) * 0.95 = 28.5
	got := Distribution(ToFixed18(100), ToFixed18(40), big.NewInt(10), big.NewInt(10), false)

	want := new(big.Int).Mul(ToFixed18(60), big.NewInt(95))
	want.Quo(want, big.NewInt(2))
	want.Quo(want, big.NewInt(100))
	if got.Cmp(want) != 0 {
		t.Fatalf("pro-rated distribution = %s, want %s", got, want)
	}
}

func TestDistribution_ProRatedZeroHaircut(t *testing.T) {
	// With no haircut the pro-rated split degenerates to the terminal one.
	got := Distribution(ToFixed18(100), ToFixed18(40), big.NewInt(0), big.NewInt(10), false)
	if want := ToFixed18(57); got.Cmp(want) != 0 {
		t.Fatalf("zero-haircut distribution = %s, want %s", got, want)
	}
}
