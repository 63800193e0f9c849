// Package pricing implements the Black-Scholes model pieces the synthetic
// provider needs to emit realistic quotes and Greeks.
package pricing

import "math"

const sqrt2Pi = 2.5066282746310002

// Price calculates the theoretical price of a European option.
//
// Parameters:
//   - isCall: true for call, false for put
//   - S: spot price of the underlying
//   - K: strike price
//   - T: time to expiry in years
//   - r: risk-free rate (annual)
//   - sigma: volatility (annual, as a decimal)
//
// If time to expiry or volatility is non-positive, the intrinsic value is
// returned instead.
func Price(isCall bool, S, K, T, r, sigma float64) float64 {
	if T <= 0 || sigma <= 0 {
		if isCall {
			return math.Max(0, S-K)
		}
		return math.Max(0, K-S)
	}

	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
	d2 := d1 - sigma*math.Sqrt(T)

	if isCall {
		return S*normCDF(d1) - K*math.Exp(-r*T)*normCDF(d2)
	}
	return K*math.Exp(-r*T)*normCDF(-d2) - S*normCDF(-d1)
}

// Delta returns the option's sensitivity to a $1 move in the underlying.
// Calls are in (0, 1), puts in (-1, 0). Expired or zero-vol inputs return
// the step-function limit.
func Delta(isCall bool, S, K, T, r, sigma float64) float64 {
	if T <= 0 || sigma <= 0 {
		switch {
		case isCall && S > K:
			return 1
		case !isCall && S < K:
			return -1
		default:
			return 0
		}
	}

	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
	if isCall {
		return normCDF(d1)
	}
	return normCDF(d1) - 1
}

// Gamma returns the rate of change of delta with the underlying; it is the
// same for calls and puts.
func Gamma(S, K, T, r, sigma float64) float64 {
	if T <= 0 || sigma <= 0 {
		return 0
	}

	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
	return normPDF(d1) / (S * sigma * math.Sqrt(T))
}

// Theta returns the per-day time decay of the option price (negative for
// long options).
func Theta(isCall bool, S, K, T, r, sigma float64) float64 {
	if T <= 0 || sigma <= 0 {
		return 0
	}

	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
	d2 := d1 - sigma*math.Sqrt(T)

	decay := -(S * normPDF(d1) * sigma) / (2 * math.Sqrt(T))
	if isCall {
		return (decay - r*K*math.Exp(-r*T)*normCDF(d2)) / 365
	}
	return (decay + r*K*math.Exp(-r*T)*normCDF(-d2)) / 365
}

// normPDF is the standard normal probability density at x.
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / sqrt2Pi
}

// normCDF is the standard normal cumulative distribution at x, via the
// error function.
func normCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}
