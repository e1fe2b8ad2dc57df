package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ElementalEngine/core-api-backend/internal/models"
	"github.com/ElementalEngine/core-api-backend/internal/rating"
	"github.com/ElementalEngine/core-api-backend/internal/repository"
	"github.com/ElementalEngine/core-api-backend/pkg/logger"
)

// Options carries the rating-policy knobs of the engine.
type Options struct {
	// MinSubPoints is the credit floor for substitutes that entered.
	MinSubPoints int
	// LeaderboardMinGames is the games cutoff for leaderboard rows.
	LeaderboardMinGames int
}

// MatchService owns the pending-match lifecycle: idempotent ingestion,
// the mutation operations, the approval transaction, and the
// leaderboard projection.
type MatchService struct {
	pending   PendingMatchStore
	validated ValidatedMatchStore
	stats     StatsStore
	users     IdentityDirectory
	committer ApprovalCommitter
	parser    SaveParser
	archive   SaveArchive
	cache     LeaderboardCache
	env       *rating.Env

	minSubPoints int
	minGames     int

	// approveMu serializes approvals process-wide: a rating run must
	// never interleave with a commit that has not yet advanced the
	// affected players' prior skill state. No other operation takes it.
	approveMu sync.Mutex
}

func NewMatchService(
	pending PendingMatchStore,
	validated ValidatedMatchStore,
	stats StatsStore,
	users IdentityDirectory,
	committer ApprovalCommitter,
	parser SaveParser,
	archive SaveArchive,
	cache LeaderboardCache,
	env *rating.Env,
	opts Options,
) *MatchService {
	return &MatchService{
		pending:      pending,
		validated:    validated,
		stats:        stats,
		users:        users,
		committer:    committer,
		parser:       parser,
		archive:      archive,
		cache:        cache,
		env:          env,
		minSubPoints: opts.MinSubPoints,
		minGames:     opts.LeaderboardMinGames,
	}
}

func parseMatchID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return parsed, nil
}

func wrapValidation(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

// loadPending fetches a pending match or reports ErrNotFound.
func (s *MatchService) loadPending(id uuid.UUID) (*models.PendingMatch, error) {
	m, err := s.pending.FindByID(id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound
	}
	return m, nil
}

// saveHash computes the stable content fingerprint of a parsed match:
// title, map type, and the ordered (civ, leader) pairs.
func saveHash(parsed *models.ParsedMatch) string {
	parts := make([]string, 0, len(parsed.Players)+2)
	parts = append(parts, parsed.Game, parsed.MapType)
	for i := range parsed.Players {
		parts = append(parts, parsed.Players[i].Civ+parsed.Players[i].Leader)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

// CreateFromSave parses a raw save file, archives it, and hands the
// structured fields to CreateFromParsed.
func (s *MatchService) CreateFromSave(data []byte, reporterID string, isCloud bool, messageID string) (*models.PendingMatch, error) {
	parsed, err := s.parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	logger.Info("Parsed save file", "game", parsed.Game, "players", len(parsed.Players))

	m, err := s.CreateFromParsed(parsed, reporterID, isCloud, messageID)
	if err != nil {
		return nil, err
	}

	if s.archive != nil && !m.Repeated {
		if _, err := s.archive.Store(m.SaveHash, data); err != nil {
			// The archive is an audit convenience, not part of the record.
			logger.Warn("Failed to archive save file", "matchId", m.ID, "error", err)
		}
	}
	return m, nil
}

// CreateFromParsed ingests structured match fields. Ingestion is
// idempotent on the content fingerprint: a repeated submission returns
// the existing record annotated as a repeat, with no side effects.
func (s *MatchService) CreateFromParsed(parsed *models.ParsedMatch, reporterID string, isCloud bool, messageID string) (*models.PendingMatch, error) {
	if len(parsed.Players) == 0 {
		return nil, validationf("match has no players")
	}

	hash := saveHash(parsed)
	existing, err := s.pending.FindBySaveHash(hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.Repeated = true
		logger.Info("Duplicate match submission", "matchId", existing.ID)
		return existing, nil
	}

	m := &models.PendingMatch{
		ID:            uuid.New(),
		Game:          parsed.Game,
		Turn:          parsed.Turn,
		Age:           parsed.Age,
		MapType:       parsed.MapType,
		GameMode:      parsed.GameMode,
		IsCloud:       isCloud,
		ParserVersion: parsed.ParserVersion,
		MessageIDs:    []string{messageID},
		CreatedAt:     time.Now().UTC(),
		SaveHash:      hash,
		ReporterID:    reporterID,
	}
	m.Players = make([]models.MatchPlayer, len(parsed.Players))
	for i, p := range parsed.Players {
		m.Players[i] = models.MatchPlayer{
			SteamID:   p.SteamID,
			UserName:  p.UserName,
			Civ:       p.Civ,
			Leader:    p.Leader,
			Team:      p.Team,
			Alive:     p.Alive,
			Placement: p.Placement,
		}
	}

	if err := s.resolveIdentities(m); err != nil {
		return nil, err
	}
	if err := s.recomputeRatings(m); err != nil {
		return nil, err
	}
	if err := s.pending.Insert(m); err != nil {
		return nil, err
	}

	logger.Info("Pending match created", "matchId", m.ID, "game", m.Game, "reporter", reporterID)
	return m, nil
}

// resolveIdentities binds every seat with a known platform account to
// its persistent identity. Misses leave the seat unbound.
func (s *MatchService) resolveIdentities(m *models.PendingMatch) error {
	for i := range m.Players {
		p := &m.Players[i]
		if p.SteamID == "" || p.SteamID == "-1" {
			continue
		}
		discordID, err := s.users.SteamToDiscord(p.SteamID)
		if err != nil {
			return err
		}
		p.DiscordID = discordID
	}
	return nil
}

// Get returns a match by id, preferring the pending record. The second
// result reports whether the match came from validated storage.
func (s *MatchService) Get(id string) (*models.PendingMatch, bool, error) {
	matchID, err := parseMatchID(id)
	if err != nil {
		return nil, false, err
	}

	m, err := s.pending.FindByID(matchID)
	if err != nil {
		return nil, false, err
	}
	if m != nil {
		return m, false, nil
	}

	v, err := s.validated.FindByID(matchID)
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, ErrNotFound
	}
	return v, true, nil
}

// AppendMessageIDs appends correlation ids to the pending record.
func (s *MatchService) AppendMessageIDs(id string, messageIDs []string) (*models.PendingMatch, error) {
	matchID, err := parseMatchID(id)
	if err != nil {
		return nil, err
	}

	m, err := s.loadPending(matchID)
	if err != nil {
		return nil, err
	}

	m.MessageIDs = append(m.MessageIDs, messageIDs...)
	return s.store(m)
}

// Update applies a typed partial update to the pending record. An empty
// patch is rejected.
func (s *MatchService) Update(id string, patch *models.MatchPatch) (*models.PendingMatch, error) {
	matchID, err := parseMatchID(id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, validationf("empty update payload")
	}

	found, err := s.pending.ApplyPatch(matchID, patch)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}

	logger.Info("Updated match", "matchId", matchID)
	return s.loadPending(matchID)
}

// ChangeOrder applies a per-team placement string ("2 1 3": one 1-based
// rank per distinct team) to every seat and recomputes ratings. The
// token count must equal the number of distinct teams.
func (s *MatchService) ChangeOrder(id, newOrder, messageID string) (*models.PendingMatch, error) {
	matchID, err := parseMatchID(id)
	if err != nil {
		return nil, err
	}

	m, err := s.loadPending(matchID)
	if err != nil {
		return nil, err
	}

	tokens := strings.Fields(newOrder)
	numTeams := m.DistinctTeams()
	if len(tokens) != numTeams {
		return nil, validationf("new order has %d entries, match has %d teams", len(tokens), numTeams)
	}

	ranks := make([]int, len(tokens))
	for i, tok := range tokens {
		rank, err := strconv.Atoi(tok)
		if err != nil || rank < 1 {
			return nil, validationf("placement %q is not a positive number", tok)
		}
		ranks[i] = rank - 1
	}

	for i := range m.Players {
		team := m.Players[i].Team
		if team < 0 || team >= len(ranks) {
			return nil, validationf("player team %d has no placement entry", team)
		}
		m.Players[i].Placement = ranks[team]
	}

	if err := s.recomputeRatings(m); err != nil {
		return nil, err
	}
	m.MessageIDs = append(m.MessageIDs, messageID)

	logger.Info("Changed placement order", "matchId", m.ID, "order", newOrder)
	return s.store(m)
}

// ToggleQuit flips the quit flag on the first seat bound to the given
// identity. A match without that identity is left unchanged.
func (s *MatchService) ToggleQuit(id, quitterDiscordID, messageID string) (*models.PendingMatch, error) {
	matchID, err := parseMatchID(id)
	if err != nil {
		return nil, err
	}

	m, err := s.loadPending(matchID)
	if err != nil {
		return nil, err
	}

	for i := range m.Players {
		if m.Players[i].DiscordID == quitterDiscordID {
			m.Players[i].Quit = !m.Players[i].Quit
			break
		}
	}
	m.MessageIDs = append(m.MessageIDs, messageID)

	logger.Info("Toggled quit flag", "matchId", m.ID, "player", quitterDiscordID)
	return s.store(m)
}

// AssignDiscordID binds a persistent identity to a seat. slot is
// 1-based. Binding changes who is ranked, so ratings are recomputed.
func (s *MatchService) AssignDiscordID(id string, slot int, discordID, messageID string) (*models.PendingMatch, error) {
	matchID, err := parseMatchID(id)
	if err != nil {
		return nil, err
	}

	m, err := s.loadPending(matchID)
	if err != nil {
		return nil, err
	}

	if slot < 1 || slot > len(m.Players) {
		return nil, validationf("player slot %d out of range 1..%d", slot, len(m.Players))
	}

	steamID, err := s.users.DiscordToSteam(discordID)
	if err != nil {
		return nil, err
	}

	p := &m.Players[slot-1]
	p.DiscordID = discordID
	p.SteamID = steamID

	if err := s.recomputeRatings(m); err != nil {
		return nil, err
	}
	m.MessageIDs = append(m.MessageIDs, messageID)

	logger.Info("Assigned identity", "matchId", m.ID, "slot", slot, "discordId", discordID)
	return s.store(m)
}

// AssignSub records a substitution at the 0-based slot: the seat is
// marked as the substitute who entered, and a new row for the original
// player who left is inserted immediately after it, cloning the seat's
// civ, leader, team, placement and alive state.
func (s *MatchService) AssignSub(id string, slot int, subOutDiscordID, messageID string) (*models.PendingMatch, error) {
	matchID, err := parseMatchID(id)
	if err != nil {
		return nil, err
	}

	m, err := s.loadPending(matchID)
	if err != nil {
		return nil, err
	}

	if slot < 0 || slot >= len(m.Players) {
		return nil, validationf("sub-in slot %d out of range 0..%d", slot, len(m.Players)-1)
	}

	steamID, err := s.users.DiscordToSteam(subOutDiscordID)
	if err != nil {
		return nil, err
	}

	m.Players[slot].IsSub = true
	subbedOut := models.MatchPlayer{
		SteamID:   steamID,
		DiscordID: subOutDiscordID,
		Civ:       m.Players[slot].Civ,
		Leader:    m.Players[slot].Leader,
		Team:      m.Players[slot].Team,
		Alive:     m.Players[slot].Alive,
		Placement: m.Players[slot].Placement,
		SubbedOut: true,
	}
	m.Players = append(m.Players[:slot+1], append([]models.MatchPlayer{subbedOut}, m.Players[slot+1:]...)...)

	if err := s.recomputeRatings(m); err != nil {
		return nil, err
	}
	m.MessageIDs = append(m.MessageIDs, messageID)

	logger.Info("Recorded substitution", "matchId", m.ID, "slot", slot, "subOut", subOutDiscordID)
	return s.store(m)
}

// RemoveSub undoes a substitution. slot is the index of the
// substituted-out row (1-based by construction, since it always follows
// the seat it vacated); the preceding seat loses its substitute mark
// and the row is removed.
func (s *MatchService) RemoveSub(id string, slot int, messageID string) (*models.PendingMatch, error) {
	matchID, err := parseMatchID(id)
	if err != nil {
		return nil, err
	}

	m, err := s.loadPending(matchID)
	if err != nil {
		return nil, err
	}

	if slot < 1 || slot >= len(m.Players) || !m.Players[slot].SubbedOut {
		return nil, validationf("slot %d is not a substituted-out player", slot)
	}

	m.Players[slot-1].IsSub = false
	m.Players = append(m.Players[:slot], m.Players[slot+1:]...)

	if err := s.recomputeRatings(m); err != nil {
		return nil, err
	}
	if messageID != "" {
		m.MessageIDs = append(m.MessageIDs, messageID)
	}

	logger.Info("Removed substitution", "matchId", m.ID, "slot", slot)
	return s.store(m)
}

// DeletePending drops a pending match without approving it.
func (s *MatchService) DeletePending(id string) (*models.PendingMatch, error) {
	matchID, err := parseMatchID(id)
	if err != nil {
		return nil, err
	}

	m, err := s.loadPending(matchID)
	if err != nil {
		return nil, err
	}

	found, err := s.pending.Delete(matchID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}

	logger.Info("Pending match removed", "matchId", matchID)
	return m, nil
}

// Approve is the terminal operation: it recomputes final ratings,
// stamps the approval, and commits every aggregate-stats row, the
// validated snapshot, and the pending-row removal as one atomic unit.
// At most one approval runs at a time process-wide.
func (s *MatchService) Approve(id, approverDiscordID string) (*models.ValidatedMatch, error) {
	s.approveMu.Lock()
	defer s.approveMu.Unlock()

	matchID, err := parseMatchID(id)
	if err != nil {
		return nil, err
	}

	m, err := s.loadPending(matchID)
	if err != nil {
		return nil, err
	}

	for i := range m.Players {
		if !m.Players[i].Linked() {
			return nil, validationf("player %q has no linked identity", m.Players[i].UserName)
		}
	}
	if m.DistinctTeams() < 2 {
		return nil, validationf("match has fewer than 2 teams")
	}

	now := time.Now().UTC()
	commit := &repository.ApprovalCommit{PendingID: m.ID}

	for _, space := range statSpaces {
		rows, err := s.updateSpace(m, space)
		if err != nil {
			return nil, err
		}
		store, err := s.storeFor(m, space)
		if err != nil {
			return nil, wrapValidation(err)
		}
		for i := range m.Players {
			commit.Stats = append(commit.Stats, repository.StatUpsert{
				Store: store,
				Row:   finalStatRow(&m.Players[i], rows[i], spaceDelta(&m.Players[i], space), now),
			})
		}
	}

	for i := range m.Players {
		if m.Players[i].IsSub {
			commit.SubsIn = append(commit.SubsIn, m.Players[i].DiscordID)
		}
	}

	m.ApprovedAt = &now
	m.ApproverID = approverDiscordID
	commit.Match = m

	if err := s.committer.Commit(commit); err != nil {
		logger.Error("Approval commit failed", "matchId", m.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrTransaction, err)
	}

	s.invalidateLeaderboards(m)
	logger.Info("Match approved", "matchId", m.ID, "approver", approverDiscordID)
	return m, nil
}

func (s *MatchService) invalidateLeaderboards(m *models.PendingMatch) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(statSpaces))
	for _, space := range statSpaces {
		store, err := s.storeFor(m, space)
		if err != nil {
			continue
		}
		keys = append(keys, store.Key())
	}
	s.cache.Invalidate(keys...)
}

// Leaderboard returns the ranked projection over one stats store: up to
// 100 rows above the games cutoff, best mean first, ties broken by
// lower uncertainty.
func (s *MatchService) Leaderboard(isCloud bool, game, gameMode string, seasonal, combined bool) ([]models.LeaderboardEntry, error) {
	store, err := repository.ResolveStatStore(isCloud, gameMode, game, seasonal, combined)
	if err != nil {
		return nil, wrapValidation(err)
	}

	if s.cache != nil {
		if entries, ok := s.cache.Get(store.Key()); ok {
			return entries, nil
		}
	}

	entries, err := s.stats.Leaderboard(store, s.minGames, 100)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(store.Key(), entries)
	}
	return entries, nil
}

// store persists the whole mutable state of a pending match.
func (s *MatchService) store(m *models.PendingMatch) (*models.PendingMatch, error) {
	found, err := s.pending.Replace(m)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return m, nil
}
