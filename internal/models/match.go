package models

import (
	"time"

	"github.com/google/uuid"
)

// Supported game titles. The parser service reports one of these based
// on the save file's 4-byte magic prefix.
const (
	GameCiv6 = "civ6"
	GameCiv7 = "civ7"
)

// MatchPlayer is one seat of a match, in in-game seat order. At most one
// of IsSub/SubbedOut is true per row: IsSub marks a substitute who
// entered the game, SubbedOut marks the original player who left. A
// SubbedOut row always sits immediately after the IsSub row it vacated
// and carries the same civ/leader/team/placement at substitution time.
type MatchPlayer struct {
	SteamID       string `json:"steamId,omitempty"`
	DiscordID     string `json:"discordId,omitempty"`
	UserName      string `json:"userName,omitempty"`
	Civ           string `json:"civ"`
	Leader        string `json:"leader,omitempty"`
	Team          int    `json:"team"`
	Alive         bool   `json:"alive"`
	Placement     int    `json:"placement"` // 0 = first place
	Quit          bool   `json:"quit"`
	Delta         int    `json:"delta"`
	SeasonDelta   int    `json:"seasonDelta"`
	CombinedDelta int    `json:"combinedDelta"`
	IsSub         bool   `json:"isSub"`
	SubbedOut     bool   `json:"subbedOut"`
}

// Linked reports whether the seat is bound to a persistent identity.
func (p *MatchPlayer) Linked() bool {
	return p.DiscordID != ""
}

// PendingMatch is the mutable aggregate awaiting human approval. The
// player slice is the single unit of truth for composition and
// placement; every mutation operation rewrites it as a whole.
type PendingMatch struct {
	ID            uuid.UUID     `json:"matchId" db:"id"`
	Game          string        `json:"game" db:"game"`
	Turn          int           `json:"turn" db:"turn"`
	Age           string        `json:"age,omitempty" db:"age"`
	MapType       string        `json:"mapType" db:"map_type"`
	GameMode      string        `json:"gameMode" db:"game_mode"`
	IsCloud       bool          `json:"isCloud" db:"is_cloud"`
	Players       []MatchPlayer `json:"players" db:"players"`
	ParserVersion string        `json:"parserVersion" db:"parser_version"`
	MessageIDs    []string      `json:"messageIds" db:"message_ids"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
	ApprovedAt    *time.Time    `json:"approvedAt,omitempty" db:"approved_at"`
	ApproverID    string        `json:"approverId,omitempty" db:"approver_id"`
	Flagged       bool          `json:"flagged" db:"flagged"`
	FlaggedBy     string        `json:"flaggedBy,omitempty" db:"flagged_by"`
	SaveHash      string        `json:"saveHash" db:"save_hash"`
	ReporterID    string        `json:"reporterId" db:"reporter_id"`

	// Repeated is set on ingestion when the save hash matched an
	// existing pending record. Never persisted.
	Repeated bool `json:"repeated" db:"-"`
}

// DistinctTeams counts the distinct team indices across all seats.
func (m *PendingMatch) DistinctTeams() int {
	teams := make(map[int]struct{}, len(m.Players))
	for i := range m.Players {
		teams[m.Players[i].Team] = struct{}{}
	}
	return len(teams)
}

// ValidatedMatch is the immutable snapshot written at approval. It has
// the same shape as the pending record plus the approval stamp already
// applied; it is never mutated after insert.
type ValidatedMatch = PendingMatch

// ParsedMatch is the structured output of the external save parser,
// before any identity resolution or rating work.
type ParsedMatch struct {
	Game          string         `json:"game"`
	Turn          int            `json:"turn"`
	Age           string         `json:"age,omitempty"`
	MapType       string         `json:"mapType"`
	GameMode      string         `json:"gameMode"`
	ParserVersion string         `json:"parserVersion"`
	Players       []ParsedPlayer `json:"players"`
}

// ParsedPlayer is one seat as reported by the parser.
type ParsedPlayer struct {
	SteamID   string `json:"steamId,omitempty"`
	UserName  string `json:"userName,omitempty"`
	Civ       string `json:"civ"`
	Leader    string `json:"leader,omitempty"`
	Team      int    `json:"team"`
	Alive     bool   `json:"alive"`
	Placement int    `json:"placement"`
}
