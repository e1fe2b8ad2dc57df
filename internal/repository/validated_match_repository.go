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

type ValidatedMatchRepository struct {
	db *database.DB
}

func NewValidatedMatchRepository(db *database.DB) *ValidatedMatchRepository {
	return &ValidatedMatchRepository{db: db}
}

// InsertTx writes the immutable approved snapshot inside the approval
// transaction.
func (r *ValidatedMatchRepository) InsertTx(tx *sql.Tx, m *models.ValidatedMatch) error {
	players, err := json.Marshal(m.Players)
	if err != nil {
		return fmt.Errorf("failed to encode players: %w", err)
	}

	query := `
		INSERT INTO validated_matches (
			id, game, turn, age, map_type, game_mode, is_cloud, players,
			parser_version, message_ids, created_at, approved_at,
			approver_id, flagged, flagged_by, save_hash, reporter_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err = tx.Exec(query,
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
		m.ApprovedAt,
		m.ApproverID,
		m.Flagged,
		m.FlaggedBy,
		m.SaveHash,
		m.ReporterID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert validated match: %w", err)
	}

	return nil
}

// FindByID returns an approved match, or nil when absent.
func (r *ValidatedMatchRepository) FindByID(id uuid.UUID) (*models.ValidatedMatch, error) {
	query := `
		SELECT id, game, turn, age, map_type, game_mode, is_cloud, players,
		       parser_version, message_ids, created_at, approved_at,
		       approver_id, flagged, flagged_by, save_hash, reporter_id
		FROM validated_matches
		WHERE id = $1
	`

	m := &models.ValidatedMatch{}
	var players []byte

	err := r.db.QueryRow(query, id).Scan(
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
		&m.ApprovedAt,
		&m.ApproverID,
		&m.Flagged,
		&m.FlaggedBy,
		&m.SaveHash,
		&m.ReporterID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan validated match: %w", err)
	}

	if err := json.Unmarshal(players, &m.Players); err != nil {
		return nil, fmt.Errorf("failed to decode players: %w", err)
	}
	return m, nil
}
