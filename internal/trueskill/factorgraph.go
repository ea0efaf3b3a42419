package trueskill

import "math"

// The factor graph is rebuilt from scratch on every Rate call; nothing
// here survives the call, so variables and factors are plain structs
// linked by pointers and freed together when the call returns.

// variable holds the current marginal belief plus the last message
// received from each attached factor, keyed by factor id.
type variable struct {
	val      gaussian
	messages map[int]gaussian
}

func newVariable() *variable {
	return &variable{messages: make(map[int]gaussian)}
}

func (v *variable) set(val gaussian) float64 {
	delta := v.val.delta(val)
	v.val = val
	return delta
}

// updateMessage replaces the message from factor fid and folds the
// change into the marginal.
func (v *variable) updateMessage(fid int, msg gaussian) float64 {
	old := v.messages[fid]
	v.messages[fid] = msg
	return v.set(v.val.div(old).mul(msg))
}

// updateValue forces the marginal to val and back-solves the message
// from factor fid that makes the other incoming messages consistent.
func (v *variable) updateValue(fid int, val gaussian) float64 {
	old := v.messages[fid]
	v.messages[fid] = val.mul(old).div(v.val)
	return v.set(val)
}

// priorFactor anchors a skill variable to the player's previous belief,
// inflated by the dynamics variance.
type priorFactor struct {
	id    int
	v     *variable
	prior gaussian
}

func (f *priorFactor) down() float64 {
	return f.v.updateValue(f.id, f.prior)
}

// likelihoodFactor relates a skill variable to a performance variable
// through additive noise of the given variance (beta²).
type likelihoodFactor struct {
	id       int
	mean     *variable
	value    *variable
	variance float64
}

func (f *likelihoodFactor) down() float64 {
	msg := f.mean.val.div(f.mean.messages[f.id])
	a := 1 / (1 + f.variance*msg.pi)
	return f.value.updateMessage(f.id, gaussian{pi: a * msg.pi, tau: a * msg.tau})
}

func (f *likelihoodFactor) up() float64 {
	msg := f.value.val.div(f.value.messages[f.id])
	a := 1 / (1 + f.variance*msg.pi)
	return f.mean.updateMessage(f.id, gaussian{pi: a * msg.pi, tau: a * msg.tau})
}

// sumFactor constrains sum = Σ coeffs[i]*terms[i]. It models both the
// team-performance sum (all coefficients 1) and the adjacent-team
// difference (coefficients 1, -1).
type sumFactor struct {
	id     int
	sum    *variable
	terms  []*variable
	coeffs []float64
}

func (f *sumFactor) down() float64 {
	return f.update(f.sum, f.terms, f.coeffs)
}

// up sends a message to terms[index], solving the constraint for it.
func (f *sumFactor) up(index int) float64 {
	coeff := f.coeffs[index]
	coeffs := make([]float64, len(f.coeffs))
	for i, c := range f.coeffs {
		switch {
		case coeff == 0:
			coeffs[i] = 0
		case i == index:
			coeffs[i] = 1 / coeff
		default:
			coeffs[i] = -c / coeff
		}
	}
	vals := make([]*variable, len(f.terms))
	copy(vals, f.terms)
	vals[index] = f.sum
	return f.update(f.terms[index], vals, coeffs)
}

func (f *sumFactor) update(target *variable, vals []*variable, coeffs []float64) float64 {
	var piInv, mu float64
	for i, v := range vals {
		div := v.val.div(v.messages[f.id])
		mu += coeffs[i] * div.mu()
		if math.IsInf(piInv, 1) {
			continue
		}
		if div.pi == 0 {
			piInv = math.Inf(1)
			continue
		}
		piInv += coeffs[i] * coeffs[i] / div.pi
	}
	pi := 1 / piInv
	return target.updateMessage(f.id, gaussian{pi: pi, tau: pi * mu})
}

// truncateFactor applies the win or draw inequality to a
// team-performance difference variable.
type truncateFactor struct {
	id     int
	v      *variable
	vFunc  func(diff, margin float64) float64
	wFunc  func(diff, margin float64) float64
	margin float64
}

func (f *truncateFactor) up() float64 {
	div := f.v.val.div(f.v.messages[f.id])
	sqrtPi := math.Sqrt(div.pi)
	vv := f.vFunc(div.tau/sqrtPi, f.margin*sqrtPi)
	ww := f.wFunc(div.tau/sqrtPi, f.margin*sqrtPi)
	denom := 1 - ww
	if denom < denomFloor {
		denom = denomFloor
	}
	pi := div.pi / denom
	tau := (div.tau + sqrtPi*vv) / denom
	return f.v.updateValue(f.id, gaussian{pi: pi, tau: tau})
}
