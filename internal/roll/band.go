package roll

// Strike band offsets from spot, in dollars. Deep-OTM targets live well
// away from the money, so the band shifts entirely to one side of spot;
// near-the-money targets get a band straddling spot.
const (
	deepOTMDelta = 0.15

	deepBandNear = 20
	deepBandFar  = 250

	nearBandIn  = 50
	nearBandOut = 150
)

// SampleStrikes computes a bounded candidate strike set for the target
// delta. The sign of targetDelta selects the side: positive for calls,
// negative for puts.
//
// The band is a function of |targetDelta|: below 0.15 (deep OTM) it sits
// entirely above spot for calls and entirely below for puts, since that is
// where matching strikes live; otherwise it straddles spot, biased toward
// the out-of-the-money side. This avoids scanning the full chain when the
// target is known to occupy a narrow region.
//
// If the band holds at most maxStrikes entries they are all returned;
// otherwise maxStrikes indices are selected evenly across the band rather
// than as a prefix, so the sample does not cluster at one edge.
//
// A missing spot (<= 0) falls back to the first maxStrikes strikes of the
// chain; rare during market hours, and better than returning nothing.
func SampleStrikes(strikes []float64, spot, targetDelta float64, maxStrikes int) []float64 {
	if maxStrikes <= 0 {
		maxStrikes = 20
	}

	sorted := sortedCopy(strikes)

	if spot <= 0 {
		if len(sorted) > maxStrikes {
			return sorted[:maxStrikes]
		}
		return sorted
	}

	lo, hi := bandBounds(spot, targetDelta)

	var band []float64
	for _, k := range sorted {
		if k >= lo && k <= hi {
			band = append(band, k)
		}
	}

	if len(band) <= maxStrikes {
		return band
	}

	// Even spacing across the band.
	step := len(band) / maxStrikes
	out := make([]float64, 0, maxStrikes)
	for i := 0; i < len(band) && len(out) < maxStrikes; i += step {
		out = append(out, band[i])
	}
	return out
}

// bandBounds returns the inclusive strike band [lo, hi] around spot for
// the signed target delta.
func bandBounds(spot, targetDelta float64) (lo, hi float64) {
	mag := targetDelta
	if mag < 0 {
		mag = -mag
	}
	isCall := targetDelta >= 0

	switch {
	case isCall && mag < deepOTMDelta:
		return spot + deepBandNear, spot + deepBandFar
	case isCall:
		return spot - nearBandIn, spot + nearBandOut
	case mag < deepOTMDelta:
		return spot - deepBandFar, spot - deepBandNear
	default:
		return spot - nearBandOut, spot + nearBandIn
	}
}
