package service

import (
	"time"

	"github.com/ElementalEngine/core-api-backend/internal/models"
	"github.com/ElementalEngine/core-api-backend/internal/rating"
	"github.com/ElementalEngine/core-api-backend/internal/repository"
)

// statSpace enumerates the three parallel ranking spaces every
// recompute covers.
type statSpace int

const (
	spaceStandard statSpace = iota
	spaceSeasonal
	spaceCombined
)

var statSpaces = [...]statSpace{spaceStandard, spaceSeasonal, spaceCombined}

func (s *MatchService) storeFor(m *models.PendingMatch, space statSpace) (repository.StatStore, error) {
	return repository.ResolveStatStore(
		m.IsCloud,
		m.GameMode,
		m.Game,
		space == spaceSeasonal,
		space == spaceCombined,
	)
}

func spaceDelta(p *models.MatchPlayer, space statSpace) int {
	switch space {
	case spaceSeasonal:
		return p.SeasonDelta
	case spaceCombined:
		return p.CombinedDelta
	default:
		return p.Delta
	}
}

func setSpaceDelta(p *models.MatchPlayer, space statSpace, delta int) {
	switch space {
	case spaceSeasonal:
		p.SeasonDelta = delta
	case spaceCombined:
		p.CombinedDelta = delta
	default:
		p.Delta = delta
	}
}

// seatPriors loads every seat's current stats row in the given store.
// Unbound seats and first appearances get the configured prior.
func (s *MatchService) seatPriors(m *models.PendingMatch, store repository.StatStore) ([]models.PlayerStats, error) {
	priors := make([]models.PlayerStats, len(m.Players))
	for i := range m.Players {
		p := &m.Players[i]

		if p.Linked() {
			row, err := s.stats.Find(store, p.DiscordID)
			if err != nil {
				return nil, err
			}
			if row != nil {
				priors[i] = *row
				continue
			}
		}

		prior := s.env.Prior()
		priors[i] = models.PlayerStats{
			UserID: p.DiscordID,
			Mu:     prior.Mu,
			Sigma:  prior.Sigma,
		}
	}
	return priors, nil
}

// rateSeats runs the skill update over both substitution views and
// merges posteriors back by seat index: substitute-in seats take the
// view that excludes substituted-out players, every other seat takes
// the view that excludes substitutes. Matches with fewer than two
// distinct teams carry no ranking signal and yield nil.
func (s *MatchService) rateSeats(m *models.PendingMatch, priors []rating.Skill) ([]rating.Skill, error) {
	if m.DistinctTeams() < 2 {
		return nil, nil
	}

	woSubs, withSubIns := rating.PartitionTeams(m.Players)

	postWo, err := s.env.Rate(woSubs.Skills(priors), woSubs.Placements(m.Players))
	if err != nil {
		return nil, err
	}
	postWith, err := s.env.Rate(withSubIns.Skills(priors), withSubIns.Placements(m.Players))
	if err != nil {
		return nil, err
	}

	merged := make([]rating.Skill, len(priors))
	copy(merged, priors)
	for ti, seats := range withSubIns.Seats {
		for k, seat := range seats {
			if m.Players[seat].IsSub {
				merged[seat] = postWith[ti][k]
			}
		}
	}
	for ti, seats := range woSubs.Seats {
		for k, seat := range seats {
			merged[seat] = postWo[ti][k]
		}
	}
	return merged, nil
}

// updateSpace recomputes one ranking space: it runs the double-rated
// skill update, writes the policy-adjusted delta onto every seat, and
// returns the posterior rows (prior counters, shifted mean). Deltas,
// not raw posteriors, are the unit of truth: the persisted mean is
// prior mean plus adjusted delta. A nil row slice means the match had
// no ranking signal and the seats were left untouched.
func (s *MatchService) updateSpace(m *models.PendingMatch, space statSpace) ([]models.PlayerStats, error) {
	store, err := s.storeFor(m, space)
	if err != nil {
		return nil, wrapValidation(err)
	}

	priorRows, err := s.seatPriors(m, store)
	if err != nil {
		return nil, err
	}

	priors := make([]rating.Skill, len(priorRows))
	for i := range priorRows {
		priors[i] = rating.Skill{Mu: priorRows[i].Mu, Sigma: priorRows[i].Sigma}
	}

	post, err := s.rateSeats(m, priors)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, nil
	}

	rows := make([]models.PlayerStats, len(priorRows))
	for i := range m.Players {
		p := &m.Players[i]
		raw := rating.RawDelta(p, priors[i], post[i])
		delta := rating.PolicyDelta(p, raw, s.minSubPoints)
		setSpaceDelta(p, space, delta)

		rows[i] = priorRows[i]
		rows[i].Mu = priors[i].Mu + float64(delta)
		rows[i].Sigma = post[i].Sigma
	}
	return rows, nil
}

// recomputeRatings refreshes the preview deltas across all three
// ranking spaces after a composition or placement change.
func (s *MatchService) recomputeRatings(m *models.PendingMatch) error {
	for _, space := range statSpaces {
		if _, err := s.updateSpace(m, space); err != nil {
			return err
		}
	}
	return nil
}

// finalStatRow folds one approved seat into its posterior stats row:
// bumped game counter, conditional win/first/sub counters, and the civ
// usage map.
func finalStatRow(p *models.MatchPlayer, post models.PlayerStats, delta int, now time.Time) models.PlayerStats {
	row := post
	row.UserID = p.DiscordID
	row.Games++
	if delta > 0 {
		row.Wins++
	}
	if p.Placement == 0 {
		row.First++
	}
	if p.IsSub {
		row.SubbedIn++
	}
	if p.SubbedOut {
		row.SubbedOut++
	}
	if p.Civ != "" {
		civs := make(map[string]int, len(post.Civs)+1)
		for k, v := range post.Civs {
			civs[k] = v
		}
		civs[civLabel(p)]++
		row.Civs = civs
	}
	row.LastModified = now
	return row
}

// civLabel renders the civilization/leader usage key. Civ 6 saves carry
// only a civ, Civ 7 a civ and leader pair.
func civLabel(p *models.MatchPlayer) string {
	if p.Leader != "" {
		return p.Civ + "/" + p.Leader
	}
	return p.Civ
}
