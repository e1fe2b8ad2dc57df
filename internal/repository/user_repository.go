package repository

import (
	"database/sql"
	"fmt"

	"github.com/ElementalEngine/core-api-backend/pkg/database"
)

// UserRepository is the read side of the identity directory: it maps
// platform (Steam) accounts to persistent (Discord) identities and
// back. Lookups are best-effort; a miss returns an empty id, not an
// error.
type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// SteamToDiscord resolves a platform account to its persistent identity.
func (r *UserRepository) SteamToDiscord(steamID string) (string, error) {
	if steamID == "" {
		return "", nil
	}

	var discordID string
	err := r.db.QueryRow(
		`SELECT discord_id FROM users WHERE steam_id = $1`, steamID,
	).Scan(&discordID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve steam id: %w", err)
	}
	return discordID, nil
}

// DiscordToSteam resolves a persistent identity to its linked platform
// account.
func (r *UserRepository) DiscordToSteam(discordID string) (string, error) {
	if discordID == "" {
		return "", nil
	}

	var steamID sql.NullString
	err := r.db.QueryRow(
		`SELECT steam_id FROM users WHERE discord_id = $1`, discordID,
	).Scan(&steamID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve discord id: %w", err)
	}
	return steamID.String, nil
}
