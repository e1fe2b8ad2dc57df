package repository

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/ElementalEngine/core-api-backend/internal/models"
	"github.com/ElementalEngine/core-api-backend/pkg/database"
)

// StatUpsert is one player row destined for one ranking store.
type StatUpsert struct {
	Store StatStore
	Row   models.PlayerStats
}

// ApprovalCommit is everything an approval writes as a single unit: the
// final stat rows across all affected stores, the substitute-activity
// increments, the validated snapshot, and the pending row to retire.
type ApprovalCommit struct {
	Match     *models.ValidatedMatch
	PendingID uuid.UUID
	Stats     []StatUpsert
	SubsIn    []string
}

// ApprovalRepository performs the terminal all-or-nothing write of an
// approval. Any failing step rolls back every write in the unit.
type ApprovalRepository struct {
	db        *database.DB
	stats     *StatsRepository
	validated *ValidatedMatchRepository
	pending   *PendingMatchRepository
}

func NewApprovalRepository(
	db *database.DB,
	stats *StatsRepository,
	validated *ValidatedMatchRepository,
	pending *PendingMatchRepository,
) *ApprovalRepository {
	return &ApprovalRepository{
		db:        db,
		stats:     stats,
		validated: validated,
		pending:   pending,
	}
}

// Commit runs the whole approval write unit in one transaction.
func (r *ApprovalRepository) Commit(c *ApprovalCommit) error {
	return r.db.WithinTx(func(tx *sql.Tx) error {
		for i := range c.Stats {
			if err := r.stats.UpsertTx(tx, c.Stats[i].Store, &c.Stats[i].Row); err != nil {
				return err
			}
		}
		for _, userID := range c.SubsIn {
			if err := r.stats.IncrementSubsInTx(tx, userID); err != nil {
				return err
			}
		}
		if err := r.validated.InsertTx(tx, c.Match); err != nil {
			return err
		}
		return r.pending.DeleteTx(tx, c.PendingID)
	})
}
