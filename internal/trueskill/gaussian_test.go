package trueskill

import (
	"math"
	"testing"
)

func TestGaussianRoundTrip(t *testing.T) {
	g := newGaussian(1200, 200)
	if math.Abs(g.mu()-1200) > 1e-9 {
		t.Errorf("mu round trip: %f", g.mu())
	}
	if math.Abs(g.sigma()-200) > 1e-9 {
		t.Errorf("sigma round trip: %f", g.sigma())
	}
}

func TestGaussianMulDiv(t *testing.T) {
	a := newGaussian(1200, 200)
	b := newGaussian(1300, 150)
	back := a.mul(b).div(b)
	if math.Abs(back.mu()-a.mu()) > 1e-9 || math.Abs(back.sigma()-a.sigma()) > 1e-9 {
		t.Errorf("mul/div not inverse: got (%f, %f)", back.mu(), back.sigma())
	}
}

func TestGaussianZeroValueIsFlat(t *testing.T) {
	var g gaussian
	if !math.IsInf(g.sigma(), 1) {
		t.Errorf("zero-value sigma = %f, want +Inf", g.sigma())
	}
	if g.mu() != 0 {
		t.Errorf("zero-value mu = %f, want 0", g.mu())
	}
}

func TestNormPPFInvertsCDF(t *testing.T) {
	for _, p := range []float64{0.01, 0.1, 0.25, 0.5, 0.75, 0.9, 0.99} {
		x := normPPF(p)
		if math.Abs(normCDF(x)-p) > 1e-12 {
			t.Errorf("cdf(ppf(%f)) = %f", p, normCDF(x))
		}
	}
	if normPPF(0.5) != 0 {
		t.Errorf("ppf(0.5) = %f, want 0", normPPF(0.5))
	}
}

func TestTruncationCorrections(t *testing.T) {
	// vWin is positive and decreasing in the difference.
	if vWin(-1, 0) <= vWin(1, 0) {
		t.Error("vWin should decrease as the favorite's margin grows")
	}
	// wWin stays inside [0, 1].
	for _, d := range []float64{-30, -3, 0, 3, 30} {
		w := wWin(d, 0.5)
		if w < 0 || w > 1 {
			t.Errorf("wWin(%f) = %f out of [0,1]", d, w)
		}
	}
	// vDraw is odd around zero.
	if math.Abs(vDraw(0.7, 1)+vDraw(-0.7, 1)) > 1e-12 {
		t.Errorf("vDraw not antisymmetric: %f vs %f", vDraw(0.7, 1), vDraw(-0.7, 1))
	}
	if vDraw(0, 1) != 0 {
		t.Errorf("vDraw(0) = %f, want 0", vDraw(0, 1))
	}
}
