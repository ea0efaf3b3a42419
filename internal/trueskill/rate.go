// Package trueskill implements Gaussian factor-graph inference over
// ranked multi-team match outcomes. Rate is a pure function: it builds
// a throwaway factor graph per call and shares no state between calls.
package trueskill

import (
	"fmt"
	"math"
	"sort"
)

// Rating is a Gaussian belief over a player's latent skill.
type Rating struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
}

// Params are the global inference parameters of a ladder.
type Params struct {
	// Beta is the skill-class width: performance variance contributed
	// by chance and execution, independent of true skill.
	Beta float64
	// Tau is the dynamics factor: added skill uncertainty per match,
	// modeling drift since the player's last observation.
	Tau float64
	// DrawProbability is the prior likelihood that two otherwise-equal
	// opponents tie. Must be in [0, 1).
	DrawProbability float64
}

const (
	// varianceFloor guards the performance variance against exact
	// zeros in the sum-factor precision arithmetic.
	varianceFloor = 1e-6

	// Convergence controls of the difference-chain sweeps.
	sweepLimit = 10
	minDelta   = 1e-4
)

// Rate consumes one match outcome: teams in any order, ranks[i] the
// finish rank of teams[i] (lower is better, equal ranks denote a
// draw), and returns updated ratings in the same team/player order.
//
// Malformed input is a caller bug and is reported synchronously.
func Rate(teams [][]Rating, ranks []int, p Params) ([][]Rating, error) {
	if len(teams) < 2 {
		return nil, fmt.Errorf("trueskill: need at least 2 teams, got %d", len(teams))
	}
	if len(teams) != len(ranks) {
		return nil, fmt.Errorf("trueskill: %d teams but %d ranks", len(teams), len(ranks))
	}
	for i, team := range teams {
		if len(team) == 0 {
			return nil, fmt.Errorf("trueskill: team %d is empty", i)
		}
		for j, r := range team {
			if !(r.Sigma > 0) {
				return nil, fmt.Errorf("trueskill: team %d player %d has non-positive sigma %v", i, j, r.Sigma)
			}
		}
	}

	beta := p.Beta
	if beta < math.Sqrt(varianceFloor) {
		beta = math.Sqrt(varianceFloor)
	}

	// The difference chain assumes teams adjacent in finish order, so
	// process in rank order and restore the input order at the end.
	order := make([]int, len(teams))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return ranks[order[a]] < ranks[order[b]] })

	var fid int
	nextID := func() int { fid++; return fid }

	skillVars := make([][]*variable, len(teams))
	perfVars := make([][]*variable, len(teams))
	teamPerfVars := make([]*variable, len(teams))
	for i, ti := range order {
		n := len(teams[ti])
		skillVars[i] = make([]*variable, n)
		perfVars[i] = make([]*variable, n)
		for j := range skillVars[i] {
			skillVars[i][j] = newVariable()
			perfVars[i][j] = newVariable()
		}
		teamPerfVars[i] = newVariable()
	}

	var priors []*priorFactor
	var likelihoods []*likelihoodFactor
	var teamSums []*sumFactor
	for i, ti := range order {
		for j, r := range teams[ti] {
			sigma := math.Sqrt(r.Sigma*r.Sigma + p.Tau*p.Tau)
			priors = append(priors, &priorFactor{
				id:    nextID(),
				v:     skillVars[i][j],
				prior: newGaussian(r.Mu, sigma),
			})
			likelihoods = append(likelihoods, &likelihoodFactor{
				id:       nextID(),
				mean:     skillVars[i][j],
				value:    perfVars[i][j],
				variance: beta * beta,
			})
		}
		coeffs := make([]float64, len(perfVars[i]))
		for c := range coeffs {
			coeffs[c] = 1
		}
		teamSums = append(teamSums, &sumFactor{
			id:     nextID(),
			sum:    teamPerfVars[i],
			terms:  perfVars[i],
			coeffs: coeffs,
		})
	}

	chainLen := len(teams) - 1
	diffSums := make([]*sumFactor, chainLen)
	truncs := make([]*truncateFactor, chainLen)
	for i := 0; i < chainLen; i++ {
		diffVar := newVariable()
		diffSums[i] = &sumFactor{
			id:     nextID(),
			sum:    diffVar,
			terms:  []*variable{teamPerfVars[i], teamPerfVars[i+1]},
			coeffs: []float64{1, -1},
		}
		size := len(teams[order[i]]) + len(teams[order[i+1]])
		t := &truncateFactor{
			id:     nextID(),
			v:      diffVar,
			margin: drawMargin(p.DrawProbability, beta, size),
		}
		if ranks[order[i]] == ranks[order[i+1]] {
			t.vFunc, t.wFunc = vDraw, wDraw
		} else {
			t.vFunc, t.wFunc = vWin, wWin
		}
		truncs[i] = t
	}

	// Downward pass: priors into skills, skills into performances,
	// performances into team performances.
	for _, f := range priors {
		f.down()
	}
	for _, f := range likelihoods {
		f.down()
	}
	for _, f := range teamSums {
		f.down()
	}

	// Forward/backward sweeps over the adjacent-pair difference chain
	// until the marginals stop moving.
	for sweep := 0; sweep < sweepLimit; sweep++ {
		var delta float64
		if chainLen == 1 {
			diffSums[0].down()
			delta = truncs[0].up()
		} else {
			for x := 0; x < chainLen-1; x++ {
				diffSums[x].down()
				delta = math.Max(delta, truncs[x].up())
				diffSums[x].up(1)
			}
			for x := chainLen - 1; x > 0; x-- {
				diffSums[x].down()
				delta = math.Max(delta, truncs[x].up())
				diffSums[x].up(0)
			}
		}
		if delta <= minDelta {
			break
		}
	}

	// Upward pass back to individual skills.
	diffSums[0].up(0)
	diffSums[chainLen-1].up(1)
	for _, f := range teamSums {
		for x := range f.terms {
			f.up(x)
		}
	}
	for _, f := range likelihoods {
		f.up()
	}

	out := make([][]Rating, len(teams))
	for i, ti := range order {
		out[ti] = make([]Rating, len(teams[ti]))
		for j, v := range skillVars[i] {
			out[ti][j] = Rating{Mu: v.val.mu(), Sigma: v.val.sigma()}
		}
	}
	return out, nil
}
