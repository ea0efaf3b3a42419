package trueskill

import "math"

// The v and w functions are the additive and multiplicative corrections
// applied to a team-performance difference by a truncated Gaussian:
// vWin/wWin clamp the difference above the draw margin (a decisive
// outcome), vDraw/wDraw clamp it inside [-margin, +margin] (a draw).

// denomFloor keeps near-zero normalization terms from dividing by zero
// when a difference lands deep in the tail of the truncation.
const denomFloor = 1e-15

func vWin(diff, margin float64) float64 {
	x := diff - margin
	denom := normCDF(x)
	if denom < denomFloor {
		return -x
	}
	return normPDF(x) / denom
}

func wWin(diff, margin float64) float64 {
	x := diff - margin
	v := vWin(diff, margin)
	w := v * (v + x)
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

func vDraw(diff, margin float64) float64 {
	absDiff := math.Abs(diff)
	a, b := margin-absDiff, -margin-absDiff
	denom := normCDF(a) - normCDF(b)
	var v float64
	if denom < denomFloor {
		v = a
	} else {
		v = (normPDF(b) - normPDF(a)) / denom
	}
	if diff < 0 {
		return -v
	}
	return v
}

func wDraw(diff, margin float64) float64 {
	absDiff := math.Abs(diff)
	a, b := margin-absDiff, -margin-absDiff
	denom := normCDF(a) - normCDF(b)
	if denom < denomFloor {
		return 1
	}
	v := vDraw(absDiff, margin)
	w := v*v + (a*normPDF(a)-b*normPDF(b))/denom
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

// drawMargin is the half-width of the tie band between two adjacent
// teams, calibrated to their combined performance variance: the more
// virtual players on either side, the wider the band for the same
// draw probability.
func drawMargin(drawProbability, beta float64, size int) float64 {
	return normPPF((drawProbability+1)/2) * math.Sqrt(float64(size)) * beta
}
