package rating

import (
	"math"

	"github.com/ElementalEngine/core-api-backend/internal/models"
)

// RawDelta is the rounded change between posterior and prior mean.
// Seats without a bound identity carry no rating signal and get 0.
func RawDelta(p *models.MatchPlayer, prior, posterior Skill) int {
	if !p.Linked() {
		return 0
	}
	return int(math.Round(posterior.Mu - prior.Mu))
}

// PolicyDelta applies the substitution overlay to a raw delta:
// substitutes that entered are never credited below minSubPoints, and
// substituted-out players only ever lose points.
func PolicyDelta(p *models.MatchPlayer, raw, minSubPoints int) int {
	switch {
	case p.IsSub:
		if raw < minSubPoints {
			return minSubPoints
		}
		return raw
	case p.SubbedOut:
		if raw > 0 {
			return 0
		}
		return raw
	default:
		return raw
	}
}
