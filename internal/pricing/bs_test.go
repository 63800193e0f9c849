package pricing

import (
	"math"
	"testing"
)

const (
	spot  = 100.0
	rate  = 0.02
	vol   = 0.25
	year  = 1.0
	month = 30.0 / 365
)

func TestPutCallParity(t *testing.T) {
	for _, K := range []float64{80, 100, 120} {
		call := Price(true, spot, K, year, rate, vol)
		put := Price(false, spot, K, year, rate, vol)

		lhs := call - put
		rhs := spot - K*math.Exp(-rate*year)
		if math.Abs(lhs-rhs) > 1e-9 {
			t.Fatalf("parity violated at K=%v: C-P=%v, S-Ke^-rT=%v", K, lhs, rhs)
		}
	}
}

func TestPriceConvergesToIntrinsicAtExpiry(t *testing.T) {
	if got := Price(true, 110, 100, 0, rate, vol); got != 10 {
		t.Fatalf("expired ITM call should be intrinsic, got %v", got)
	}
	if got := Price(true, 90, 100, 0, rate, vol); got != 0 {
		t.Fatalf("expired OTM call should be worthless, got %v", got)
	}
	if got := Price(false, 90, 100, 0, rate, vol); got != 10 {
		t.Fatalf("expired ITM put should be intrinsic, got %v", got)
	}
}

func TestDeltaBounds(t *testing.T) {
	for _, K := range []float64{70, 100, 130} {
		d := Delta(true, spot, K, month, rate, vol)
		if d <= 0 || d >= 1 {
			t.Fatalf("call delta out of (0,1) at K=%v: %v", K, d)
		}
		p := Delta(false, spot, K, month, rate, vol)
		if p >= 0 || p <= -1 {
			t.Fatalf("put delta out of (-1,0) at K=%v: %v", K, p)
		}
		if math.Abs(d-p-1) > 1e-12 {
			t.Fatalf("call-put delta should equal 1 at K=%v: %v - %v", K, d, p)
		}
	}
}

func TestDeltaExpiredStepFunction(t *testing.T) {
	if got := Delta(true, 110, 100, 0, rate, vol); got != 1 {
		t.Fatalf("expired ITM call delta should be 1, got %v", got)
	}
	if got := Delta(true, 90, 100, 0, rate, vol); got != 0 {
		t.Fatalf("expired OTM call delta should be 0, got %v", got)
	}
	if got := Delta(false, 90, 100, 0, rate, vol); got != -1 {
		t.Fatalf("expired ITM put delta should be -1, got %v", got)
	}
}

func TestGammaPeaksNearTheMoney(t *testing.T) {
	atm := Gamma(spot, 100, month, rate, vol)
	otm := Gamma(spot, 130, month, rate, vol)
	if atm <= otm {
		t.Fatalf("gamma should peak near the money: atm=%v otm=%v", atm, otm)
	}
	if Gamma(spot, 100, 0, rate, vol) != 0 {
		t.Fatalf("expired gamma should be 0")
	}
}

func TestThetaIsDailyDecay(t *testing.T) {
	th := Theta(true, spot, 100, month, rate, vol)
	if th >= 0 {
		t.Fatalf("long ATM call theta should be negative, got %v", th)
	}
	// A 30-day ATM option is worth a few dollars; one day of decay must be
	// a small fraction of that, confirming the per-day scaling.
	price := Price(true, spot, 100, month, rate, vol)
	if -th > price/5 {
		t.Fatalf("theta %v implausibly large against price %v", th, price)
	}
}
