package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/ElementalEngine/core-api-backend/internal/models"
	"github.com/ElementalEngine/core-api-backend/internal/rating"
	"github.com/ElementalEngine/core-api-backend/internal/repository"
)

// In-memory fakes for the storage contracts.

type fakePendingStore struct {
	matches map[uuid.UUID]*models.PendingMatch
	byHash  map[string]uuid.UUID
	inserts int
}

func newFakePendingStore() *fakePendingStore {
	return &fakePendingStore{
		matches: make(map[uuid.UUID]*models.PendingMatch),
		byHash:  make(map[string]uuid.UUID),
	}
}

func clone(m *models.PendingMatch) *models.PendingMatch {
	c := *m
	c.Players = append([]models.MatchPlayer(nil), m.Players...)
	c.MessageIDs = append([]string(nil), m.MessageIDs...)
	return &c
}

func (f *fakePendingStore) Insert(m *models.PendingMatch) error {
	f.inserts++
	f.matches[m.ID] = clone(m)
	f.byHash[m.SaveHash] = m.ID
	return nil
}

func (f *fakePendingStore) FindByID(id uuid.UUID) (*models.PendingMatch, error) {
	m, ok := f.matches[id]
	if !ok {
		return nil, nil
	}
	return clone(m), nil
}

func (f *fakePendingStore) FindBySaveHash(hash string) (*models.PendingMatch, error) {
	id, ok := f.byHash[hash]
	if !ok {
		return nil, nil
	}
	return clone(f.matches[id]), nil
}

func (f *fakePendingStore) Replace(m *models.PendingMatch) (bool, error) {
	if _, ok := f.matches[m.ID]; !ok {
		return false, nil
	}
	f.matches[m.ID] = clone(m)
	return true, nil
}

func (f *fakePendingStore) ApplyPatch(id uuid.UUID, patch *models.MatchPatch) (bool, error) {
	m, ok := f.matches[id]
	if !ok {
		return false, nil
	}
	if patch.Players != nil {
		m.Players = append([]models.MatchPlayer(nil), *patch.Players...)
	}
	if patch.Flagged != nil {
		m.Flagged = *patch.Flagged
	}
	if patch.FlaggedBy != nil {
		m.FlaggedBy = *patch.FlaggedBy
	}
	return true, nil
}

func (f *fakePendingStore) Delete(id uuid.UUID) (bool, error) {
	m, ok := f.matches[id]
	if !ok {
		return false, nil
	}
	delete(f.byHash, m.SaveHash)
	delete(f.matches, id)
	return true, nil
}

type fakeValidatedStore struct {
	matches map[uuid.UUID]*models.ValidatedMatch
}

func (f *fakeValidatedStore) FindByID(id uuid.UUID) (*models.ValidatedMatch, error) {
	if f.matches == nil {
		return nil, nil
	}
	return f.matches[id], nil
}

type fakeStatsStore struct {
	rows        map[string]*models.PlayerStats
	leaderboard []models.LeaderboardEntry
}

func statsKey(store repository.StatStore, userID string) string {
	return store.Key() + "|" + userID
}

func (f *fakeStatsStore) Find(store repository.StatStore, userID string) (*models.PlayerStats, error) {
	row, ok := f.rows[statsKey(store, userID)]
	if !ok {
		return nil, nil
	}
	c := *row
	return &c, nil
}

func (f *fakeStatsStore) Leaderboard(store repository.StatStore, minGames, limit int) ([]models.LeaderboardEntry, error) {
	return f.leaderboard, nil
}

type fakeCommitter struct {
	commits []*repository.ApprovalCommit
	fail    error
}

func (f *fakeCommitter) Commit(c *repository.ApprovalCommit) error {
	if f.fail != nil {
		return f.fail
	}
	f.commits = append(f.commits, c)
	return nil
}

type fakeDirectory struct {
	steamToDiscord map[string]string
	discordToSteam map[string]string
}

func (f *fakeDirectory) SteamToDiscord(steamID string) (string, error) {
	return f.steamToDiscord[steamID], nil
}

func (f *fakeDirectory) DiscordToSteam(discordID string) (string, error) {
	return f.discordToSteam[discordID], nil
}

type fakeCache struct {
	entries     map[string][]models.LeaderboardEntry
	invalidated []string
}

func (f *fakeCache) Get(key string) ([]models.LeaderboardEntry, bool) {
	e, ok := f.entries[key]
	return e, ok
}

func (f *fakeCache) Set(key string, entries []models.LeaderboardEntry) {
	if f.entries == nil {
		f.entries = make(map[string][]models.LeaderboardEntry)
	}
	f.entries[key] = entries
}

func (f *fakeCache) Invalidate(keys ...string) {
	f.invalidated = append(f.invalidated, keys...)
}

type fixture struct {
	svc       *MatchService
	pending   *fakePendingStore
	stats     *fakeStatsStore
	committer *fakeCommitter
	cache     *fakeCache
	directory *fakeDirectory
}

func newFixture() *fixture {
	f := &fixture{
		pending:   newFakePendingStore(),
		stats:     &fakeStatsStore{rows: make(map[string]*models.PlayerStats)},
		committer: &fakeCommitter{},
		cache:     &fakeCache{},
		directory: &fakeDirectory{
			steamToDiscord: map[string]string{
				"steam-1": "discord-1",
				"steam-2": "discord-2",
				"steam-3": "discord-3",
				"steam-4": "discord-4",
			},
			discordToSteam: map[string]string{
				"discord-1": "steam-1",
				"discord-2": "steam-2",
				"discord-3": "steam-3",
				"discord-4": "steam-4",
				"discord-5": "steam-5",
			},
		},
	}
	env := rating.NewEnv(1200, 400, 200, 4, 0.05)
	f.svc = NewMatchService(
		f.pending, &fakeValidatedStore{}, f.stats, f.directory,
		f.committer, nil, nil, f.cache, env,
		Options{MinSubPoints: 0, LeaderboardMinGames: 2},
	)
	return f
}

func ffaParsed(n int) *models.ParsedMatch {
	parsed := &models.ParsedMatch{
		Game:          models.GameCiv6,
		Turn:          212,
		MapType:       "Pangaea",
		GameMode:      "FFA",
		ParserVersion: "1.4.0",
	}
	for i := 0; i < n; i++ {
		parsed.Players = append(parsed.Players, models.ParsedPlayer{
			SteamID:   fmt.Sprintf("steam-%d", i+1),
			UserName:  fmt.Sprintf("player-%d", i+1),
			Civ:       fmt.Sprintf("civ-%d", i+1),
			Team:      i,
			Alive:     true,
			Placement: i,
		})
	}
	return parsed
}

func mustCreate(t *testing.T, f *fixture, parsed *models.ParsedMatch) *models.PendingMatch {
	t.Helper()
	m, err := f.svc.CreateFromParsed(parsed, "reporter-1", false, "msg-1")
	if err != nil {
		t.Fatalf("CreateFromParsed: %v", err)
	}
	return m
}

func TestCreateFromParsed_ResolvesIdentitiesAndPreviewsDeltas(t *testing.T) {
	f := newFixture()
	m := mustCreate(t, f, ffaParsed(4))

	if m.Repeated {
		t.Error("fresh submission should not be marked repeated")
	}
	if m.SaveHash == "" {
		t.Error("save hash missing")
	}
	for i, p := range m.Players {
		if p.DiscordID == "" {
			t.Errorf("player %d not resolved to a persistent identity", i)
		}
	}
	if m.Players[0].Delta <= 0 {
		t.Errorf("winner preview delta should be positive, got %d", m.Players[0].Delta)
	}
	if m.Players[3].Delta >= 0 {
		t.Errorf("last place preview delta should be negative, got %d", m.Players[3].Delta)
	}
	if m.Players[0].SeasonDelta == 0 || m.Players[0].CombinedDelta == 0 {
		t.Error("all three ranking spaces should carry deltas")
	}
}

func TestCreateFromParsed_DuplicateIsIdempotent(t *testing.T) {
	f := newFixture()
	first := mustCreate(t, f, ffaParsed(4))

	second, err := f.svc.CreateFromParsed(ffaParsed(4), "reporter-2", false, "msg-2")
	if err != nil {
		t.Fatalf("duplicate submission errored: %v", err)
	}
	if !second.Repeated {
		t.Error("duplicate should be marked repeated")
	}
	if second.ID != first.ID {
		t.Errorf("duplicate should return the existing record: %s vs %s", second.ID, first.ID)
	}
	if f.pending.inserts != 1 {
		t.Errorf("duplicate must not insert, got %d inserts", f.pending.inserts)
	}
}

func TestCreateFromParsed_NoPlayersRejected(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateFromParsed(&models.ParsedMatch{Game: models.GameCiv6}, "r", false, "m")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("want ErrValidation, got %v", err)
	}
}

func TestGet_BadID(t *testing.T) {
	f := newFixture()
	if _, _, err := f.svc.Get("not-a-uuid"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("want ErrInvalidID, got %v", err)
	}
	if _, _, err := f.svc.Get(uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestChangeOrder_RewritesPlacements(t *testing.T) {
	f := newFixture()
	m := mustCreate(t, f, ffaParsed(3))

	got, err := f.svc.ChangeOrder(m.ID.String(), "3 1 2", "msg-2")
	if err != nil {
		t.Fatalf("ChangeOrder: %v", err)
	}

	wantPlacements := []int{2, 0, 1}
	for i, p := range got.Players {
		if p.Placement != wantPlacements[i] {
			t.Errorf("player %d placement = %d, want %d", i, p.Placement, wantPlacements[i])
		}
	}
	if got.Players[1].Delta <= 0 {
		t.Errorf("new winner should gain, got %d", got.Players[1].Delta)
	}
	if got.Players[0].Delta >= 0 {
		t.Errorf("demoted player should lose, got %d", got.Players[0].Delta)
	}
}

func TestChangeOrder_WrongTokenCountLeavesRecordUnchanged(t *testing.T) {
	f := newFixture()
	m := mustCreate(t, f, ffaParsed(3))

	_, err := f.svc.ChangeOrder(m.ID.String(), "1 2", "msg-2")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}

	stored, _, err := f.svc.Get(m.ID.String())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	for i, p := range stored.Players {
		if p.Placement != m.Players[i].Placement {
			t.Errorf("rejected reorder must not change placements, player %d: %d vs %d",
				i, p.Placement, m.Players[i].Placement)
		}
	}
}

func TestChangeOrder_NonNumericToken(t *testing.T) {
	f := newFixture()
	m := mustCreate(t, f, ffaParsed(3))

	if _, err := f.svc.ChangeOrder(m.ID.String(), "1 x 3", "msg-2"); !errors.Is(err, ErrValidation) {
		t.Errorf("want ErrValidation, got %v", err)
	}
}

func TestToggleQuit_FlipsFlag(t *testing.T) {
	f := newFixture()
	m := mustCreate(t, f, ffaParsed(3))

	got, err := f.svc.ToggleQuit(m.ID.String(), "discord-2", "msg-2")
	if err != nil {
		t.Fatalf("ToggleQuit: %v", err)
	}
	if !got.Players[1].Quit {
		t.Error("quit flag should be set")
	}

	got, err = f.svc.ToggleQuit(m.ID.String(), "discord-2", "msg-3")
	if err != nil {
		t.Fatalf("ToggleQuit: %v", err)
	}
	if got.Players[1].Quit {
		t.Error("second toggle should clear the flag")
	}
}

func TestAssignDiscordID_BindsSeat(t *testing.T) {
	f := newFixture()
	parsed := ffaParsed(3)
	parsed.Players[2].SteamID = "-1" // unresolved seat
	m := mustCreate(t, f, parsed)

	if m.Players[2].DiscordID != "" {
		t.Fatal("seat 3 should start unbound")
	}

	got, err := f.svc.AssignDiscordID(m.ID.String(), 3, "discord-5", "msg-2")
	if err != nil {
		t.Fatalf("AssignDiscordID: %v", err)
	}
	if got.Players[2].DiscordID != "discord-5" || got.Players[2].SteamID != "steam-5" {
		t.Errorf("seat not bound: %+v", got.Players[2])
	}
	if got.Players[2].Delta == 0 {
		t.Error("newly bound seat should carry a preview delta")
	}

	if _, err := f.svc.AssignDiscordID(m.ID.String(), 4, "discord-5", "msg-3"); !errors.Is(err, ErrValidation) {
		t.Errorf("out-of-range slot: want ErrValidation, got %v", err)
	}
	if _, err := f.svc.AssignDiscordID(m.ID.String(), 0, "discord-5", "msg-3"); !errors.Is(err, ErrValidation) {
		t.Errorf("slot 0: want ErrValidation, got %v", err)
	}
}

func TestAssignSub_InsertsClonedRowAfterSlot(t *testing.T) {
	f := newFixture()
	m := mustCreate(t, f, ffaParsed(3))

	got, err := f.svc.AssignSub(m.ID.String(), 1, "discord-5", "msg-2")
	if err != nil {
		t.Fatalf("AssignSub: %v", err)
	}

	if len(got.Players) != 4 {
		t.Fatalf("expected 4 rows after substitution, got %d", len(got.Players))
	}
	in, out := got.Players[1], got.Players[2]
	if !in.IsSub {
		t.Error("slot 1 should be marked as the substitute that entered")
	}
	if !out.SubbedOut || out.DiscordID != "discord-5" || out.SteamID != "steam-5" {
		t.Errorf("row after the slot should be the substituted-out player: %+v", out)
	}
	if out.Civ != in.Civ || out.Team != in.Team || out.Placement != in.Placement {
		t.Errorf("substituted-out row must clone the seat: in=%+v out=%+v", in, out)
	}
	if got.Players[3].SteamID != "steam-3" {
		t.Errorf("trailing seats must shift intact, got %+v", got.Players[3])
	}
}

func TestRemoveSub_RoundTrip(t *testing.T) {
	f := newFixture()
	m := mustCreate(t, f, ffaParsed(3))

	withSub, err := f.svc.AssignSub(m.ID.String(), 1, "discord-5", "msg-2")
	if err != nil {
		t.Fatalf("AssignSub: %v", err)
	}

	got, err := f.svc.RemoveSub(withSub.ID.String(), 2, "msg-3")
	if err != nil {
		t.Fatalf("RemoveSub: %v", err)
	}

	if len(got.Players) != 3 {
		t.Fatalf("expected 3 rows after removal, got %d", len(got.Players))
	}
	if got.Players[1].IsSub {
		t.Error("substitute mark should be cleared")
	}
	for i, p := range got.Players {
		if p.SteamID != m.Players[i].SteamID {
			t.Errorf("seat %d should match the original composition: %s vs %s",
				i, p.SteamID, m.Players[i].SteamID)
		}
	}
}

func TestRemoveSub_RejectsNonSubSlot(t *testing.T) {
	f := newFixture()
	m := mustCreate(t, f, ffaParsed(3))

	if _, err := f.svc.RemoveSub(m.ID.String(), 1, "msg-2"); !errors.Is(err, ErrValidation) {
		t.Errorf("want ErrValidation, got %v", err)
	}
	if _, err := f.svc.RemoveSub(m.ID.String(), 0, "msg-2"); !errors.Is(err, ErrValidation) {
		t.Errorf("slot 0 can never follow a seat: want ErrValidation, got %v", err)
	}
}

func TestUpdate_EmptyPatchRejected(t *testing.T) {
	f := newFixture()
	m := mustCreate(t, f, ffaParsed(3))

	if _, err := f.svc.Update(m.ID.String(), &models.MatchPatch{}); !errors.Is(err, ErrValidation) {
		t.Errorf("want ErrValidation, got %v", err)
	}

	flagged := true
	by := "discord-1"
	got, err := f.svc.Update(m.ID.String(), &models.MatchPatch{Flagged: &flagged, FlaggedBy: &by})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.Flagged || got.FlaggedBy != "discord-1" {
		t.Errorf("patch not applied: %+v", got)
	}
}

func TestApprove_RejectsUnboundSeat(t *testing.T) {
	f := newFixture()
	parsed := ffaParsed(3)
	parsed.Players[1].SteamID = "-1"
	m := mustCreate(t, f, parsed)

	_, err := f.svc.Approve(m.ID.String(), "approver-1")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
	if len(f.committer.commits) != 0 {
		t.Error("nothing may be committed for a rejected approval")
	}
}

func TestApprove_RejectsSingleTeam(t *testing.T) {
	f := newFixture()
	parsed := ffaParsed(3)
	for i := range parsed.Players {
		parsed.Players[i].Team = 0
	}
	m := mustCreate(t, f, parsed)

	for i, p := range m.Players {
		if p.Delta != 0 || p.SeasonDelta != 0 || p.CombinedDelta != 0 {
			t.Errorf("seat %d: a single-team match carries no rating signal, got deltas %d/%d/%d",
				i, p.Delta, p.SeasonDelta, p.CombinedDelta)
		}
	}

	if _, err := f.svc.Approve(m.ID.String(), "approver-1"); !errors.Is(err, ErrValidation) {
		t.Errorf("want ErrValidation, got %v", err)
	}
}

func TestApprove_CommitCoversAllSpacesAndSeats(t *testing.T) {
	f := newFixture()
	m := mustCreate(t, f, ffaParsed(4))

	approved, err := f.svc.Approve(m.ID.String(), "approver-1")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if approved.ApprovedAt == nil || approved.ApproverID != "approver-1" {
		t.Errorf("approval stamp missing: %+v", approved)
	}
	if len(f.committer.commits) != 1 {
		t.Fatalf("expected one commit, got %d", len(f.committer.commits))
	}

	commit := f.committer.commits[0]
	if commit.PendingID != m.ID {
		t.Errorf("commit must remove the pending row: %s vs %s", commit.PendingID, m.ID)
	}
	if want := 3 * 4; len(commit.Stats) != want {
		t.Errorf("expected %d stat upserts (3 spaces x 4 seats), got %d", want, len(commit.Stats))
	}

	stores := make(map[string]bool)
	for _, u := range commit.Stats {
		stores[u.Store.Key()] = true
		if u.Row.Games != 1 {
			t.Errorf("first approved game should set games=1, got %d", u.Row.Games)
		}
	}
	if len(stores) != 3 {
		t.Errorf("expected 3 distinct stat stores, got %v", stores)
	}

	if len(f.cache.invalidated) == 0 {
		t.Error("approval should invalidate cached leaderboards")
	}
}

func TestApprove_SubCountersAndDeltaPolicy(t *testing.T) {
	f := newFixture()
	m := mustCreate(t, f, ffaParsed(3))

	withSub, err := f.svc.AssignSub(m.ID.String(), 2, "discord-5", "msg-2")
	if err != nil {
		t.Fatalf("AssignSub: %v", err)
	}

	approved, err := f.svc.Approve(withSub.ID.String(), "approver-1")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	commit := f.committer.commits[0]
	if len(commit.SubsIn) != 1 || commit.SubsIn[0] != "discord-3" {
		t.Errorf("substitute-in counter should target the entering player, got %v", commit.SubsIn)
	}

	// Seat 2 entered as a sub in last place; the floor keeps it at the
	// configured minimum. Seat 3 left in last place; it may only lose.
	if approved.Players[2].Delta < 0 {
		t.Errorf("sub-in delta below floor: %d", approved.Players[2].Delta)
	}
	if approved.Players[3].Delta > 0 {
		t.Errorf("sub-out delta above cap: %d", approved.Players[3].Delta)
	}
}

func TestApprove_CommitFailureLeavesPendingIntact(t *testing.T) {
	f := newFixture()
	m := mustCreate(t, f, ffaParsed(3))
	f.committer.fail = errors.New("connection reset")

	_, err := f.svc.Approve(m.ID.String(), "approver-1")
	if !errors.Is(err, ErrTransaction) {
		t.Fatalf("want ErrTransaction, got %v", err)
	}

	stored, fromValidated, err := f.svc.Get(m.ID.String())
	if err != nil {
		t.Fatalf("Get after failed approval: %v", err)
	}
	if fromValidated {
		t.Error("match must still be pending after a failed commit")
	}
	if stored.ApprovedAt != nil {
		t.Error("stored record must carry no approval stamp")
	}
	if len(f.cache.invalidated) != 0 {
		t.Error("failed approval must not invalidate caches")
	}
}

func TestDeletePending(t *testing.T) {
	f := newFixture()
	m := mustCreate(t, f, ffaParsed(3))

	if _, err := f.svc.DeletePending(m.ID.String()); err != nil {
		t.Fatalf("DeletePending: %v", err)
	}
	if _, _, err := f.svc.Get(m.ID.String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted match should be gone, got %v", err)
	}
	if _, err := f.svc.DeletePending(m.ID.String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: want ErrNotFound, got %v", err)
	}
}

func TestAppendMessageIDs(t *testing.T) {
	f := newFixture()
	m := mustCreate(t, f, ffaParsed(3))

	got, err := f.svc.AppendMessageIDs(m.ID.String(), []string{"msg-2", "msg-3"})
	if err != nil {
		t.Fatalf("AppendMessageIDs: %v", err)
	}
	if len(got.MessageIDs) != 3 {
		t.Errorf("expected 3 message ids, got %v", got.MessageIDs)
	}
}

func TestLeaderboard_CacheReadThrough(t *testing.T) {
	f := newFixture()
	f.stats.leaderboard = []models.LeaderboardEntry{
		{UserID: "discord-1", Rating: 1310, Games: 9, Wins: 5},
	}

	first, err := f.svc.Leaderboard(false, models.GameCiv6, "FFA", false, false)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(first) != 1 || first[0].UserID != "discord-1" {
		t.Fatalf("unexpected leaderboard: %+v", first)
	}

	// A second read is served from cache even if the store changes.
	f.stats.leaderboard = nil
	second, err := f.svc.Leaderboard(false, models.GameCiv6, "FFA", false, false)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(second) != 1 {
		t.Errorf("second read should hit the cache, got %+v", second)
	}
}

func TestLeaderboard_UnknownGameRejected(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Leaderboard(false, "civ5", "FFA", false, false); !errors.Is(err, ErrValidation) {
		t.Errorf("want ErrValidation, got %v", err)
	}
}
