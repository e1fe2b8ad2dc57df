package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ElementalEngine/core-api-backend/internal/models"
	"github.com/ElementalEngine/core-api-backend/pkg/database"
)

type PendingMatchRepository struct {
	db *database.DB
}

func NewPendingMatchRepository(db *database.DB) *PendingMatchRepository {
	return &PendingMatchRepository{db: db}
}

const pendingMatchColumns = `
	id, game, turn, age, map_type, game_mode, is_cloud, players,
	parser_version, message_ids, created_at, flagged, flagged_by,
	save_hash, reporter_id
`

// Insert stores a freshly ingested pending match.
func (r *PendingMatchRepository) Insert(m *models.PendingMatch) error {
	players, err := json.Marshal(m.Players)
	if err != nil {
		return fmt.Errorf("failed to encode players: %w", err)
	}

	query := `
		INSERT INTO pending_matches (` + pendingMatchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.db.Exec(query,
		m.ID,
		m.Game,
		m.Turn,
		m.Age,
		m.MapType,
		m.GameMode,
		m.IsCloud,
		players,
		m.ParserVersion,
		pq.Array(m.MessageIDs),
		m.CreatedAt,
		m.Flagged,
		m.FlaggedBy,
		m.SaveHash,
		m.ReporterID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pending match: %w", err)
	}

	return nil
}

// FindByID returns the pending match, or nil when absent.
func (r *PendingMatchRepository) FindByID(id uuid.UUID) (*models.PendingMatch, error) {
	query := `SELECT ` + pendingMatchColumns + ` FROM pending_matches WHERE id = $1`
	return r.scanOne(r.db.QueryRow(query, id))
}

// FindBySaveHash returns the pending match carrying the given content
// fingerprint, or nil when absent.
func (r *PendingMatchRepository) FindBySaveHash(hash string) (*models.PendingMatch, error) {
	query := `SELECT ` + pendingMatchColumns + ` FROM pending_matches WHERE save_hash = $1`
	return r.scanOne(r.db.QueryRow(query, hash))
}

// Replace rewrites the whole mutable state of the record. Returns false
// when the record no longer exists.
func (r *PendingMatchRepository) Replace(m *models.PendingMatch) (bool, error) {
	players, err := json.Marshal(m.Players)
	if err != nil {
		return false, fmt.Errorf("failed to encode players: %w", err)
	}

	query := `
		UPDATE pending_matches
		SET players = $2,
		    message_ids = $3,
		    flagged = $4,
		    flagged_by = $5
		WHERE id = $1
	`

	res, err := r.db.Exec(query, m.ID, players, pq.Array(m.MessageIDs), m.Flagged, m.FlaggedBy)
	if err != nil {
		return false, fmt.Errorf("failed to replace pending match: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ApplyPatch writes exactly the fields the patch names. Returns false
// when the record no longer exists.
func (r *PendingMatchRepository) ApplyPatch(id uuid.UUID, patch *models.MatchPatch) (bool, error) {
	set := make([]string, 0, 3)
	args := []interface{}{id}

	if patch.Players != nil {
		players, err := json.Marshal(*patch.Players)
		if err != nil {
			return false, fmt.Errorf("failed to encode players: %w", err)
		}
		args = append(args, players)
		set = append(set, fmt.Sprintf("players = $%d", len(args)))
	}
	if patch.Flagged != nil {
		args = append(args, *patch.Flagged)
		set = append(set, fmt.Sprintf("flagged = $%d", len(args)))
	}
	if patch.FlaggedBy != nil {
		args = append(args, *patch.FlaggedBy)
		set = append(set, fmt.Sprintf("flagged_by = $%d", len(args)))
	}
	if len(set) == 0 {
		return false, fmt.Errorf("patch is empty")
	}

	query := "UPDATE pending_matches SET " + joinSet(set) + " WHERE id = $1"
	res, err := r.db.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to patch pending match: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// Delete removes the record outside the approval path. Returns false
// when it was already gone.
func (r *PendingMatchRepository) Delete(id uuid.UUID) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM pending_matches WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete pending match: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// DeleteTx removes the record inside the approval transaction.
func (r *PendingMatchRepository) DeleteTx(tx *sql.Tx, id uuid.UUID) error {
	if _, err := tx.Exec(`DELETE FROM pending_matches WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete pending match: %w", err)
	}
	return nil
}

func (r *PendingMatchRepository) scanOne(row *sql.Row) (*models.PendingMatch, error) {
	m := &models.PendingMatch{}
	var players []byte

	err := row.Scan(
		&m.ID,
		&m.Game,
		&m.Turn,
		&m.Age,
		&m.MapType,
		&m.GameMode,
		&m.IsCloud,
		&players,
		&m.ParserVersion,
		pq.Array(&m.MessageIDs),
		&m.CreatedAt,
		&m.Flagged,
		&m.FlaggedBy,
		&m.SaveHash,
		&m.ReporterID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending match: %w", err)
	}

	if err := json.Unmarshal(players, &m.Players); err != nil {
		return nil, fmt.Errorf("failed to decode players: %w", err)
	}
	return m, nil
}

func joinSet(set []string) string {
	out := set[0]
	for _, s := range set[1:] {
		out += ", " + s
	}
	return out
}
