package trueskill

import "math"

// gaussian is a one-dimensional Gaussian in precision form: pi is the
// precision (1/sigma²) and tau the precision-adjusted mean (pi*mu).
// The zero value is the uninformative (flat) distribution.
type gaussian struct {
	pi  float64
	tau float64
}

func newGaussian(mu, sigma float64) gaussian {
	pi := 1 / (sigma * sigma)
	return gaussian{pi: pi, tau: pi * mu}
}

func (g gaussian) mu() float64 {
	if g.pi == 0 {
		return 0
	}
	return g.tau / g.pi
}

func (g gaussian) sigma() float64 {
	if g.pi == 0 {
		return math.Inf(1)
	}
	return math.Sqrt(1 / g.pi)
}

func (g gaussian) mul(o gaussian) gaussian {
	return gaussian{pi: g.pi + o.pi, tau: g.tau + o.tau}
}

func (g gaussian) div(o gaussian) gaussian {
	return gaussian{pi: g.pi - o.pi, tau: g.tau - o.tau}
}

// delta measures how far two beliefs are apart, used as the
// convergence criterion of the message-passing schedule.
func (g gaussian) delta(o gaussian) float64 {
	piDelta := math.Abs(g.pi - o.pi)
	if math.IsInf(piDelta, 1) {
		return 0
	}
	return math.Max(math.Abs(g.tau-o.tau), math.Sqrt(piDelta))
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// normPPF is the inverse of normCDF.
func normPPF(p float64) float64 {
	return -math.Sqrt2 * math.Erfcinv(2*p)
}
