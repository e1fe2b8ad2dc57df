package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ElementalEngine/core-api-backend/internal/models"
	"github.com/ElementalEngine/core-api-backend/pkg/database"
)

// StatsRepository reads and writes aggregate player stats. All rows of
// all ranking stores live in one table keyed by (user, game, seasonal,
// bucket); the StatStore value selects the slice a query touches.
type StatsRepository struct {
	db *database.DB
}

func NewStatsRepository(db *database.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Find returns the player's row in the given store, or nil when the
// player has no row there yet.
func (r *StatsRepository) Find(store StatStore, userID string) (*models.PlayerStats, error) {
	query := `
		SELECT user_id, mu, sigma, games, wins, first, subbed_in, subbed_out,
		       civs, last_modified
		FROM player_stats
		WHERE user_id = $1 AND game = $2 AND seasonal = $3 AND bucket = $4
	`

	s := &models.PlayerStats{}
	var civs []byte

	err := r.db.QueryRow(query, userID, store.Game, store.Seasonal, store.Bucket).Scan(
		&s.UserID,
		&s.Mu,
		&s.Sigma,
		&s.Games,
		&s.Wins,
		&s.First,
		&s.SubbedIn,
		&s.SubbedOut,
		&civs,
		&s.LastModified,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan player stats: %w", err)
	}

	if len(civs) > 0 {
		if err := json.Unmarshal(civs, &s.Civs); err != nil {
			return nil, fmt.Errorf("failed to decode civ counts: %w", err)
		}
	}
	return s, nil
}

// UpsertTx replaces-or-inserts the player's whole row in the given
// store. Runs inside the approval transaction.
func (r *StatsRepository) UpsertTx(tx *sql.Tx, store StatStore, s *models.PlayerStats) error {
	civs, err := json.Marshal(s.Civs)
	if err != nil {
		return fmt.Errorf("failed to encode civ counts: %w", err)
	}

	query := `
		INSERT INTO player_stats (
			user_id, game, seasonal, bucket, mu, sigma, games, wins, first,
			subbed_in, subbed_out, civs, last_modified
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, game, seasonal, bucket) DO UPDATE
		SET mu = EXCLUDED.mu,
		    sigma = EXCLUDED.sigma,
		    games = EXCLUDED.games,
		    wins = EXCLUDED.wins,
		    first = EXCLUDED.first,
		    subbed_in = EXCLUDED.subbed_in,
		    subbed_out = EXCLUDED.subbed_out,
		    civs = EXCLUDED.civs,
		    last_modified = EXCLUDED.last_modified
	`

	_, err = tx.Exec(query,
		s.UserID,
		store.Game,
		store.Seasonal,
		store.Bucket,
		s.Mu,
		s.Sigma,
		s.Games,
		s.Wins,
		s.First,
		s.SubbedIn,
		s.SubbedOut,
		civs,
		s.LastModified,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert player stats: %w", err)
	}

	return nil
}

// IncrementSubsInTx bumps the standalone substitute-activity counter.
func (r *StatsRepository) IncrementSubsInTx(tx *sql.Tx, userID string) error {
	query := `
		INSERT INTO sub_counters (user_id, subs_in)
		VALUES ($1, 1)
		ON CONFLICT (user_id) DO UPDATE
		SET subs_in = sub_counters.subs_in + 1
	`
	if _, err := tx.Exec(query, userID); err != nil {
		return fmt.Errorf("failed to increment subs counter: %w", err)
	}
	return nil
}

// Leaderboard returns up to limit rows with more than minGames games,
// best skill mean first; equal means rank the lower uncertainty higher.
func (r *StatsRepository) Leaderboard(store StatStore, minGames, limit int) ([]models.LeaderboardEntry, error) {
	query := `
		SELECT user_id, mu, games, wins, first
		FROM player_stats
		WHERE game = $1 AND seasonal = $2 AND bucket = $3 AND games > $4
		ORDER BY mu DESC, sigma ASC
		LIMIT $5
	`

	rows, err := r.db.Query(query, store.Game, store.Seasonal, store.Bucket, minGames, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		var mu float64
		if err := rows.Scan(&e.UserID, &mu, &e.Games, &e.Wins, &e.First); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		e.Rating = int(mu)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leaderboard rows: %w", err)
	}

	return entries, nil
}
