// Package rating implements the Bayesian skill model used for ranked
// matches: a Gaussian (mu, sigma) belief per player, a multi-team update
// run over ranked team outcomes, and the substitution-aware delta
// policy applied on top of the raw posterior.
//
// The update follows the TrueSkill formulation with the usual pairwise
// approximation for more than two teams: every pair of teams is treated
// as a two-team game (win, loss, or draw on equal placement), the mean
// shifts are summed and the variance multipliers composed. Symbols
// follow Herbrich & Graepel's paper: beta is the per-player performance
// variance, tau the additive dynamics variance, v and w the truncated
// Gaussian correction functions.
package rating

import (
	"fmt"
	"math"
)

// Skill is a Gaussian belief over a player's latent ability.
// Invariant: Sigma > 0.
type Skill struct {
	Mu    float64
	Sigma float64
}

// Env carries the fixed parameters of the skill model. Zero values are
// not usable; construct with NewEnv.
type Env struct {
	mu       float64
	sigma    float64
	beta     float64
	tau      float64
	drawProb float64
}

// NewEnv builds a skill environment. mu/sigma are the default prior,
// beta the performance variance, tau the dynamics variance, drawProb the
// assumed probability of a drawn pairwise outcome.
func NewEnv(mu, sigma, beta, tau, drawProb float64) *Env {
	return &Env{mu: mu, sigma: sigma, beta: beta, tau: tau, drawProb: drawProb}
}

// Prior returns the default belief assigned to an unseen player.
func (e *Env) Prior() Skill {
	return Skill{Mu: e.mu, Sigma: e.sigma}
}

// Rate computes posterior skills for ranked teams. teams holds one
// Skill per seat grouped by team; ranks holds one placement per team
// (0 = best, equal values = tie). The returned slice is shaped like
// teams. At least two teams are required.
func (e *Env) Rate(teams [][]Skill, ranks []int) ([][]Skill, error) {
	if len(teams) != len(ranks) {
		return nil, fmt.Errorf("rating: %d teams but %d ranks", len(teams), len(ranks))
	}
	if len(teams) < 2 {
		return nil, fmt.Errorf("rating: need at least 2 teams, got %d", len(teams))
	}
	for i, team := range teams {
		if len(team) == 0 {
			return nil, fmt.Errorf("rating: team %d is empty", i)
		}
	}

	// Per-seat variance with dynamics noise folded in, and per-team
	// performance aggregates.
	vars := make([][]float64, len(teams))
	teamMu := make([]float64, len(teams))
	teamVar := make([]float64, len(teams))
	for i, team := range teams {
		vars[i] = make([]float64, len(team))
		for j, s := range team {
			v := s.Sigma*s.Sigma + e.tau*e.tau
			vars[i][j] = v
			teamMu[i] += s.Mu
			teamVar[i] += v
		}
	}

	// Accumulated mean shift and variance multiplier per seat.
	muShift := make([][]float64, len(teams))
	varScale := make([][]float64, len(teams))
	for i := range teams {
		muShift[i] = make([]float64, len(teams[i]))
		varScale[i] = make([]float64, len(teams[i]))
		for j := range varScale[i] {
			varScale[i][j] = 1
		}
	}

	for i := 0; i < len(teams); i++ {
		for j := i + 1; j < len(teams); j++ {
			n := float64(len(teams[i]) + len(teams[j]))
			c := math.Sqrt(teamVar[i] + teamVar[j] + n*e.beta*e.beta)
			eps := drawMargin(e.drawProb, e.beta, n) / c

			// t is measured from the higher-placed team's side.
			hi, lo := i, j
			if ranks[j] < ranks[i] {
				hi, lo = j, i
			}
			t := (teamMu[hi] - teamMu[lo]) / c

			var v, w float64
			if ranks[i] == ranks[j] {
				v = vDraw(t, eps)
				w = wDraw(t, eps)
			} else {
				v = vWin(t, eps)
				w = wWin(t, eps)
			}

			for k := range teams[hi] {
				muShift[hi][k] += vars[hi][k] / c * v
				varScale[hi][k] *= 1 - vars[hi][k]/(c*c)*w
			}
			for k := range teams[lo] {
				muShift[lo][k] -= vars[lo][k] / c * v
				varScale[lo][k] *= 1 - vars[lo][k]/(c*c)*w
			}
		}
	}

	post := make([][]Skill, len(teams))
	for i, team := range teams {
		post[i] = make([]Skill, len(team))
		for j, s := range team {
			scale := varScale[i][j]
			if scale < 1e-6 {
				scale = 1e-6
			}
			post[i][j] = Skill{
				Mu:    s.Mu + muShift[i][j],
				Sigma: math.Sqrt(vars[i][j] * scale),
			}
		}
	}
	return post, nil
}

// drawMargin converts a draw probability into the performance margin
// inside which a pairwise outcome counts as a draw.
func drawMargin(drawProb, beta, n float64) float64 {
	if drawProb <= 0 {
		return 0
	}
	return normInvCDF((drawProb+1)/2) * math.Sqrt(n) * beta
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normInvCDF(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

// vWin is the additive mean correction for a decisive outcome, wWin the
// matching multiplicative variance correction. Both take the scaled
// performance difference t and draw margin eps.
func vWin(t, eps float64) float64 {
	denom := normCDF(t - eps)
	if denom < 1e-10 {
		// Deep in the tail the truncated mean degenerates to the margin.
		return eps - t
	}
	return normPDF(t-eps) / denom
}

func wWin(t, eps float64) float64 {
	v := vWin(t, eps)
	w := v * (v + t - eps)
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

func vDraw(t, eps float64) float64 {
	denom := normCDF(eps-t) - normCDF(-eps-t)
	if denom < 1e-10 {
		if t > 0 {
			return -t + eps
		}
		return -t - eps
	}
	return (normPDF(-eps-t) - normPDF(eps-t)) / denom
}

func wDraw(t, eps float64) float64 {
	denom := normCDF(eps-t) - normCDF(-eps-t)
	if denom < 1e-10 {
		return 1
	}
	v := vDraw(t, eps)
	w := v*v + ((eps-t)*normPDF(eps-t)+(eps+t)*normPDF(-eps-t))/denom
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}
