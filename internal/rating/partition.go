package rating

import "github.com/ElementalEngine/core-api-backend/internal/models"

// Grouping is one substitution-aware view of a match: seats grouped by
// team, teams in first-appearance order, seats in seat order.
type Grouping struct {
	TeamIDs []int
	Seats   [][]int
}

// Placements returns one placement per team, taken from the team's
// first seat. All seats of a team share a placement by construction.
func (g *Grouping) Placements(players []models.MatchPlayer) []int {
	ranks := make([]int, len(g.Seats))
	for i, seats := range g.Seats {
		ranks[i] = players[seats[0]].Placement
	}
	return ranks
}

// Skills projects the grouping onto the given per-seat skills.
func (g *Grouping) Skills(seatSkills []Skill) [][]Skill {
	teams := make([][]Skill, len(g.Seats))
	for i, seats := range g.Seats {
		teams[i] = make([]Skill, len(seats))
		for j, seat := range seats {
			teams[i][j] = seatSkills[seat]
		}
	}
	return teams
}

// PartitionTeams splits the seats into the two team views the rating
// update is run over: one excluding substitutes that entered (the
// substituted-out original stands in for the team) and one excluding
// substituted-out players (the substitute stands in). A seat with
// neither flag joins both views.
func PartitionTeams(players []models.MatchPlayer) (woSubs, withSubIns Grouping) {
	woIdx := make(map[int]int)
	withIdx := make(map[int]int)

	add := func(g *Grouping, idx map[int]int, team, seat int) {
		ti, ok := idx[team]
		if !ok {
			ti = len(g.TeamIDs)
			idx[team] = ti
			g.TeamIDs = append(g.TeamIDs, team)
			g.Seats = append(g.Seats, nil)
		}
		g.Seats[ti] = append(g.Seats[ti], seat)
	}

	for i := range players {
		switch {
		case players[i].IsSub:
			add(&withSubIns, withIdx, players[i].Team, i)
		case players[i].SubbedOut:
			add(&woSubs, woIdx, players[i].Team, i)
		default:
			add(&woSubs, woIdx, players[i].Team, i)
			add(&withSubIns, withIdx, players[i].Team, i)
		}
	}
	return woSubs, withSubIns
}
