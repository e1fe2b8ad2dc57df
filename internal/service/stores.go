package service

import (
	"github.com/google/uuid"

	"github.com/ElementalEngine/core-api-backend/internal/models"
	"github.com/ElementalEngine/core-api-backend/internal/repository"
)

// Storage and collaborator contracts the engine consumes. Satisfied by
// internal/repository and the pkg clients in production, and by
// in-memory fakes in tests.

type PendingMatchStore interface {
	Insert(m *models.PendingMatch) error
	FindByID(id uuid.UUID) (*models.PendingMatch, error)
	FindBySaveHash(hash string) (*models.PendingMatch, error)
	Replace(m *models.PendingMatch) (bool, error)
	ApplyPatch(id uuid.UUID, patch *models.MatchPatch) (bool, error)
	Delete(id uuid.UUID) (bool, error)
}

type ValidatedMatchStore interface {
	FindByID(id uuid.UUID) (*models.ValidatedMatch, error)
}

type StatsStore interface {
	Find(store repository.StatStore, userID string) (*models.PlayerStats, error)
	Leaderboard(store repository.StatStore, minGames, limit int) ([]models.LeaderboardEntry, error)
}

// ApprovalCommitter writes an approval as one all-or-nothing unit.
type ApprovalCommitter interface {
	Commit(c *repository.ApprovalCommit) error
}

// IdentityDirectory maps platform accounts to persistent identities.
// Best-effort: a miss returns an empty id with a nil error.
type IdentityDirectory interface {
	SteamToDiscord(steamID string) (string, error)
	DiscordToSteam(discordID string) (string, error)
}

// SaveParser turns raw save-file bytes into structured match fields.
type SaveParser interface {
	Parse(data []byte) (*models.ParsedMatch, error)
}

// SaveArchive keeps uploaded save files for audit, keyed by content
// fingerprint.
type SaveArchive interface {
	Store(hash string, data []byte) (string, error)
}

// LeaderboardCache is a read-through cache over leaderboard
// projections. Failures degrade to misses.
type LeaderboardCache interface {
	Get(key string) ([]models.LeaderboardEntry, bool)
	Set(key string, entries []models.LeaderboardEntry)
	Invalidate(keys ...string)
}
