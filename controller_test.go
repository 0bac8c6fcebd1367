package main

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

type fakeBroadcaster struct {
	mu          sync.Mutex
	roomMsgs    map[string][]any
	sessionMsgs map[string][]any
	members     map[string]map[string]bool
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{
		roomMsgs:    make(map[string][]any),
		sessionMsgs: make(map[string][]any),
		members:     make(map[string]map[string]bool),
	}
}

func (f *fakeBroadcaster) Join(roomCode, sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[roomCode] == nil {
		f.members[roomCode] = make(map[string]bool)
	}
	f.members[roomCode][sessionID] = true
}

func (f *fakeBroadcaster) Leave(roomCode, sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[roomCode], sessionID)
}

func (f *fakeBroadcaster) Drop(roomCode string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members, roomCode)
}

func (f *fakeBroadcaster) ToRoom(roomCode string, msg any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomMsgs[roomCode] = append(f.roomMsgs[roomCode], msg)
}

func (f *fakeBroadcaster) ToSession(sessionID string, msg any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionMsgs[sessionID] = append(f.sessionMsgs[sessionID], msg)
}

func newTestGame(t *testing.T) (*Game, *fakeBroadcaster, *Store) {
	t.Helper()

	store, err := openStore(filepath.Join(t.TempDir(), "stop.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cast := newFakeBroadcaster()
	game := newGame(&Config{dbPath: "test"}, store, cast)
	return game, cast, store
}

func createTestRoom(t *testing.T, game *Game, cast *fakeBroadcaster, sessionID, name string) string {
	t.Helper()

	if err := game.CreateRoom(context.Background(), sessionID, name); err != nil {
		t.Fatalf("create room: %v", err)
	}

	cast.mu.Lock()
	defer cast.mu.Unlock()
	for _, msg := range cast.sessionMsgs[sessionID] {
		if created, ok := msg.(RoomCreatedMessage); ok {
			return created.RoomCode
		}
	}
	t.Fatal("no room_created message delivered")
	return ""
}

func readRoom(t *testing.T, store *Store, code string) Room {
	t.Helper()
	room, err := getRoom(context.Background(), store.sqlDB, code)
	if err != nil {
		t.Fatalf("read room %s: %v", code, err)
	}
	return room
}

func readPlayers(t *testing.T, store *Store, code string) []Player {
	t.Helper()
	players, err := listPlayers(context.Background(), store.sqlDB, code)
	if err != nil {
		t.Fatalf("read players: %v", err)
	}
	return players
}

func countAnswers(t *testing.T, store *Store, code string) int {
	t.Helper()
	var count int
	err := store.sqlDB.QueryRow(`SELECT COUNT(*) FROM answers WHERE room_code = ?`, code).Scan(&count)
	if err != nil {
		t.Fatalf("count answers: %v", err)
	}
	return count
}

func errKindOf(t *testing.T, err error) errKind {
	t.Helper()
	var action *actionError
	if !errors.As(err, &action) {
		t.Fatalf("expected an action error, got %v", err)
	}
	return action.kind
}

// playRound drives a room to the validation state with one category and
// returns the drawn letter. submit maps session ID to an answer suffix; the
// drawn letter is prepended so the answer stays valid, and an empty suffix
// submits a blank answer.
func playRound(t *testing.T, game *Game, store *Store, code, hostID string, submit map[string]string) string {
	t.Helper()
	ctx := context.Background()

	if err := game.UpdateCategories(ctx, hostID, code, []string{"Fruta"}); err != nil {
		t.Fatalf("update categories: %v", err)
	}
	if err := game.StartRound(ctx, hostID, code); err != nil {
		t.Fatalf("start round: %v", err)
	}

	letter := readRoom(t, store, code).Letter
	if letter == "" {
		t.Fatal("no letter drawn")
	}

	for sessionID, suffix := range submit {
		answer := ""
		if suffix != "" {
			answer = letter + suffix
		}
		if err := game.SubmitAnswers(ctx, sessionID, code, []string{answer}); err != nil {
			t.Fatalf("submit answers for %s: %v", sessionID, err)
		}
	}
	if err := game.StopGame(ctx, hostID, code); err != nil {
		t.Fatalf("stop game: %v", err)
	}
	return letter
}

func TestCreateRoomHostInvariant(t *testing.T) {
	game, cast, store := newTestGame(t)
	code := createTestRoom(t, game, cast, "host-1", "Alice")

	room := readRoom(t, store, code)
	if room.State != stateWaiting {
		t.Fatalf("expected waiting state, got %q", room.State)
	}
	if room.HostID != "host-1" {
		t.Fatalf("expected host-1, got %q", room.HostID)
	}
	if len(code) != 8 {
		t.Fatalf("expected an 8-character room code, got %q", code)
	}

	hosts := 0
	for _, player := range readPlayers(t, store, code) {
		if player.IsHost {
			hosts++
			if player.ID != room.HostID {
				t.Fatalf("host flag on %q but room host is %q", player.ID, room.HostID)
			}
		}
	}
	if hosts != 1 {
		t.Fatalf("expected exactly one host, got %d", hosts)
	}
}

func TestJoinRoomRejectsDuplicateName(t *testing.T) {
	game, cast, _ := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")

	if err := game.JoinRoom(ctx, "player-2", code, "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	err := game.JoinRoom(ctx, "player-3", code, "Bob")
	if err == nil {
		t.Fatal("expected duplicate name rejection")
	}
	if kind := errKindOf(t, err); kind != errInvalidState {
		t.Fatalf("unexpected error kind %d", kind)
	}
}

func TestJoinRoomRejectsUnknownRoomAndWrongState(t *testing.T) {
	game, cast, _ := newTestGame(t)
	ctx := context.Background()

	err := game.JoinRoom(ctx, "player-2", "NOPE0000", "Bob")
	if kind := errKindOf(t, err); kind != errNotFound {
		t.Fatalf("expected NotFound, got kind %d", kind)
	}

	code := createTestRoom(t, game, cast, "host-1", "Alice")
	if err := game.StartRound(ctx, "host-1", code); err != nil {
		t.Fatalf("start: %v", err)
	}
	err = game.JoinRoom(ctx, "player-2", code, "Bob")
	if kind := errKindOf(t, err); kind != errInvalidState {
		t.Fatalf("expected InvalidState, got kind %d", kind)
	}
}

func TestStartRoundAuthorizationAndState(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")
	if err := game.JoinRoom(ctx, "player-2", code, "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	err := game.StartRound(ctx, "player-2", code)
	if kind := errKindOf(t, err); kind != errUnauthorized {
		t.Fatalf("expected Unauthorized, got kind %d", kind)
	}

	if err := game.StartRound(ctx, "host-1", code); err != nil {
		t.Fatalf("start: %v", err)
	}
	room := readRoom(t, store, code)
	if room.State != statePlaying || room.Round != 1 || room.Letter == "" {
		t.Fatalf("unexpected room after start: %+v", room)
	}

	// A duplicate start must be rejected, not corrupt the round counter.
	err = game.StartRound(ctx, "host-1", code)
	if kind := errKindOf(t, err); kind != errInvalidState {
		t.Fatalf("expected InvalidState, got kind %d", kind)
	}
	if again := readRoom(t, store, code); again.Round != 1 {
		t.Fatalf("round counter corrupted: %d", again.Round)
	}
}

func TestStopGameAllowedForAnyPlayer(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")
	if err := game.JoinRoom(ctx, "player-2", code, "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := game.StartRound(ctx, "host-1", code); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := game.StopGame(ctx, "player-2", code); err != nil {
		t.Fatalf("stop by non-host: %v", err)
	}
	if room := readRoom(t, store, code); room.State != stateValidation {
		t.Fatalf("expected validation state, got %q", room.State)
	}
}

func TestStopGameBroadcastsMatrixWithDefaults(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")
	if err := game.JoinRoom(ctx, "player-2", code, "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Bob never submits; his row must still appear with empty entries.
	playRound(t, game, store, code, "host-1", nil)

	cast.mu.Lock()
	defer cast.mu.Unlock()
	var stopped *GameStoppedMessage
	for _, msg := range cast.roomMsgs[code] {
		if m, ok := msg.(GameStoppedMessage); ok {
			stopped = &m
		}
	}
	if stopped == nil {
		t.Fatal("no game_stopped broadcast")
	}
	if len(stopped.AllAnswers) != 2 {
		t.Fatalf("expected 2 matrix rows, got %d", len(stopped.AllAnswers))
	}
	for _, row := range stopped.AllAnswers {
		if len(row.Answers) != 1 {
			t.Fatalf("expected 1 matrix column, got %d", len(row.Answers))
		}
		if row.Answers[0] != "" {
			t.Fatalf("expected empty default entry, got %q", row.Answers[0])
		}
	}
}

func TestCalculateScoresAccumulates(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")
	if err := game.JoinRoom(ctx, "player-2", code, "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Both players answer the same word, so each earns the repeated rate.
	playRound(t, game, store, code, "host-1", map[string]string{
		"host-1":   "anana",
		"player-2": "anana",
	})

	if err := game.CalculateScores(ctx, "host-1", code); err != nil {
		t.Fatalf("calculate scores: %v", err)
	}
	if room := readRoom(t, store, code); room.State != stateScoring {
		t.Fatalf("expected scoring state, got %q", room.State)
	}

	for _, player := range readPlayers(t, store, code) {
		if player.Score != 5 {
			t.Fatalf("%s: expected 5 points for a shared answer, got %d", player.Name, player.Score)
		}
	}

	cast.mu.Lock()
	defer cast.mu.Unlock()
	var scored *ScoresCalculatedMessage
	for _, msg := range cast.roomMsgs[code] {
		if m, ok := msg.(ScoresCalculatedMessage); ok {
			scored = &m
		}
	}
	if scored == nil {
		t.Fatal("no scores_calculated broadcast")
	}
	if scored.Scores["host-1"] != 5 || scored.Scores["player-2"] != 5 {
		t.Fatalf("unexpected score totals: %v", scored.Scores)
	}
	for _, result := range scored.DetailedResults {
		if result.Reason != "repeated" || result.Points != 5 {
			t.Fatalf("expected repeated/5, got %q/%d", result.Reason, result.Points)
		}
	}
}

func TestCalculateScoresRequiresValidationState(t *testing.T) {
	game, cast, _ := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")

	err := game.CalculateScores(ctx, "host-1", code)
	if kind := errKindOf(t, err); kind != errInvalidState {
		t.Fatalf("expected InvalidState, got kind %d", kind)
	}
}

func TestInvalidateAnswerCyclesBackToValid(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")

	playRound(t, game, store, code, "host-1", map[string]string{"host-1": "anana"})

	expected := []string{validationHalf, validationInvalid, validationValid}
	for _, want := range expected {
		if err := game.InvalidateAnswer(ctx, "host-1", code, "host-1", 0); err != nil {
			t.Fatalf("invalidate: %v", err)
		}
		room := readRoom(t, store, code)
		answer, err := getAnswer(ctx, store.sqlDB, code, "host-1", room.Round, "Fruta")
		if err != nil {
			t.Fatalf("read answer: %v", err)
		}
		if answer.ValidationState != want {
			t.Fatalf("expected %q, got %q", want, answer.ValidationState)
		}
	}
}

func TestInvalidateAnswerConflictsAndAuthorization(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")
	if err := game.JoinRoom(ctx, "player-2", code, "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	playRound(t, game, store, code, "host-1", map[string]string{"host-1": "ola"})

	err := game.InvalidateAnswer(ctx, "player-2", code, "host-1", 0)
	if kind := errKindOf(t, err); kind != errUnauthorized {
		t.Fatalf("expected Unauthorized, got kind %d", kind)
	}

	// Bob submitted nothing, so there is no answer row to cycle.
	err = game.InvalidateAnswer(ctx, "host-1", code, "player-2", 0)
	if kind := errKindOf(t, err); kind != errValidationConflict {
		t.Fatalf("expected ValidationConflict, got kind %d", kind)
	}

	err = game.InvalidateAnswer(ctx, "host-1", code, "host-1", 7)
	if kind := errKindOf(t, err); kind != errValidationConflict {
		t.Fatalf("expected ValidationConflict for out-of-range index, got kind %d", kind)
	}
}

func TestReconnectRemapsIdentityAndAnswers(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")
	if err := game.JoinRoom(ctx, "bob-1", code, "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	playRound(t, game, store, code, "host-1", map[string]string{
		"host-1": "",
		"bob-1":  "ola",
	})
	if err := game.CalculateScores(ctx, "host-1", code); err != nil {
		t.Fatalf("calculate scores: %v", err)
	}
	bobScore := 0
	for _, player := range readPlayers(t, store, code) {
		if player.Name == "Bob" {
			bobScore = player.Score
		}
	}
	if bobScore != pointsUnique {
		t.Fatalf("expected %d points for a unique answer, got %d", pointsUnique, bobScore)
	}

	if err := game.Attach(ctx, "bob-2", code, "Bob"); err != nil {
		t.Fatalf("attach: %v", err)
	}

	players := readPlayers(t, store, code)
	if len(players) != 2 {
		t.Fatalf("reconnect created a duplicate player: %d records", len(players))
	}
	for _, player := range players {
		if player.Name != "Bob" {
			continue
		}
		if player.ID != "bob-2" {
			t.Fatalf("identity not remapped: %q", player.ID)
		}
		if player.Score != bobScore {
			t.Fatalf("score lost on reconnect: had %d, got %d", bobScore, player.Score)
		}
	}

	room := readRoom(t, store, code)
	if _, err := getAnswer(ctx, store.sqlDB, code, "bob-2", room.Round, "Fruta"); err != nil {
		t.Fatalf("answers not re-parented: %v", err)
	}
	if _, err := getAnswer(ctx, store.sqlDB, code, "bob-1", room.Round, "Fruta"); !errors.Is(err, errStoreNotFound) {
		t.Fatalf("old identity still owns answers: %v", err)
	}

	cast.mu.Lock()
	defer cast.mu.Unlock()
	found := false
	for _, msg := range cast.sessionMsgs["bob-2"] {
		if _, ok := msg.(PlayerReconnectedMessage); ok {
			found = true
		}
	}
	if !found {
		t.Fatal("reconnecting session never received player_reconnected")
	}
}

func TestHostReconnectUpdatesRoomHost(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")

	if err := game.Attach(ctx, "host-2", code, "Alice"); err != nil {
		t.Fatalf("attach: %v", err)
	}

	room := readRoom(t, store, code)
	if room.HostID != "host-2" {
		t.Fatalf("room host not remapped: %q", room.HostID)
	}
	hosts := 0
	for _, player := range readPlayers(t, store, code) {
		if player.IsHost {
			hosts++
			if player.ID != "host-2" {
				t.Fatalf("host flag on wrong identity: %q", player.ID)
			}
		}
	}
	if hosts != 1 {
		t.Fatalf("expected exactly one host, got %d", hosts)
	}
}

func TestNewMatchResetsEverythingButTheRoom(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")
	if err := game.JoinRoom(ctx, "player-2", code, "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	playRound(t, game, store, code, "host-1", map[string]string{
		"host-1":   "ola",
		"player-2": "",
	})
	if err := game.CalculateScores(ctx, "host-1", code); err != nil {
		t.Fatalf("calculate scores: %v", err)
	}

	if err := game.NewMatch(ctx, "host-1", code); err != nil {
		t.Fatalf("new match: %v", err)
	}

	room := readRoom(t, store, code)
	if room.State != stateWaiting || room.Round != 0 || room.Letter != "" {
		t.Fatalf("room not reset: %+v", room)
	}
	if len(room.UsedLetters) != 0 {
		t.Fatalf("used letters not cleared: %v", room.UsedLetters)
	}
	if room.HostID != "host-1" {
		t.Fatalf("host lost on reset: %q", room.HostID)
	}
	if len(room.Categories) != 1 || room.Categories[0] != "Fruta" {
		t.Fatalf("categories lost on reset: %v", room.Categories)
	}

	for _, player := range readPlayers(t, store, code) {
		if player.Score != 0 {
			t.Fatalf("%s score not zeroed: %d", player.Name, player.Score)
		}
	}
	if count := countAnswers(t, store, code); count != 0 {
		t.Fatalf("expected zero answers after reset, got %d", count)
	}
}

func TestKickPlayerRemovesStateAndNotifiesTarget(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")
	if err := game.JoinRoom(ctx, "player-2", code, "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	playRound(t, game, store, code, "host-1", map[string]string{"player-2": "ola"})

	err := game.KickPlayer(ctx, "host-1", code, "host-1")
	if kind := errKindOf(t, err); kind != errUnauthorized {
		t.Fatalf("expected self-kick rejection, got kind %d", kind)
	}

	if err := game.KickPlayer(ctx, "host-1", code, "player-2"); err != nil {
		t.Fatalf("kick: %v", err)
	}

	if players := readPlayers(t, store, code); len(players) != 1 {
		t.Fatalf("target not removed: %d players", len(players))
	}
	if count := countAnswers(t, store, code); count != 0 {
		t.Fatalf("target answers not removed: %d", count)
	}

	cast.mu.Lock()
	defer cast.mu.Unlock()
	found := false
	for _, msg := range cast.sessionMsgs["player-2"] {
		if _, ok := msg.(KickedFromRoomMessage); ok {
			found = true
		}
	}
	if !found {
		t.Fatal("kicked player never received kicked_from_room")
	}
}

func TestLeaveRoomPromotesNewHost(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")
	if err := game.JoinRoom(ctx, "player-2", code, "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := game.LeaveRoom(ctx, "host-1", code); err != nil {
		t.Fatalf("leave: %v", err)
	}

	room := readRoom(t, store, code)
	if room.HostID != "player-2" {
		t.Fatalf("host not handed over: %q", room.HostID)
	}
	players := readPlayers(t, store, code)
	if len(players) != 1 || !players[0].IsHost {
		t.Fatalf("unexpected players after handover: %+v", players)
	}
}

func TestLeaveRoomLastPlayerDestroysRoom(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")

	if err := game.LeaveRoom(ctx, "host-1", code); err != nil {
		t.Fatalf("leave: %v", err)
	}

	if _, err := getRoom(ctx, store.sqlDB, code); !errors.Is(err, errStoreNotFound) {
		t.Fatalf("room still addressable: %v", err)
	}
}

func TestCloseRoomLeavesNothingAddressable(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")
	if err := game.JoinRoom(ctx, "player-2", code, "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	playRound(t, game, store, code, "host-1", map[string]string{"player-2": "ola"})

	err := game.CloseRoom(ctx, "player-2", code)
	if kind := errKindOf(t, err); kind != errUnauthorized {
		t.Fatalf("expected Unauthorized close, got kind %d", kind)
	}

	if err := game.CloseRoom(ctx, "host-1", code); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := getRoom(ctx, store.sqlDB, code); !errors.Is(err, errStoreNotFound) {
		t.Fatalf("room still addressable: %v", err)
	}
	if players := readPlayers(t, store, code); len(players) != 0 {
		t.Fatalf("players still addressable: %d", len(players))
	}
	if count := countAnswers(t, store, code); count != 0 {
		t.Fatalf("answers still addressable: %d", count)
	}

	cast.mu.Lock()
	defer cast.mu.Unlock()
	found := false
	for _, msg := range cast.roomMsgs[code] {
		if _, ok := msg.(RoomClosedMessage); ok {
			found = true
		}
	}
	if !found {
		t.Fatal("no room_closed broadcast before deletion")
	}
}

func TestSubmitAnswersTruncatesToCategoryList(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")

	if err := game.UpdateCategories(ctx, "host-1", code, []string{"Fruta", "Animal"}); err != nil {
		t.Fatalf("update categories: %v", err)
	}
	if err := game.StartRound(ctx, "host-1", code); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := game.SubmitAnswers(ctx, "host-1", code, []string{"a", "b", "c", "d"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if count := countAnswers(t, store, code); count != 2 {
		t.Fatalf("expected answers truncated to 2 categories, got %d", count)
	}

	// Re-submission replaces, never duplicates.
	if err := game.SubmitAnswers(ctx, "host-1", code, []string{"x"}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if count := countAnswers(t, store, code); count != 1 {
		t.Fatalf("expected replacement on resubmit, got %d rows", count)
	}

	room := readRoom(t, store, code)
	answer, err := getAnswer(ctx, store.sqlDB, code, "host-1", room.Round, "Fruta")
	if err != nil {
		t.Fatalf("read answer: %v", err)
	}
	if answer.Text != "x" {
		t.Fatalf("expected replaced answer, got %q", answer.Text)
	}
}

func TestUpdateCategoriesOnlyWhileWaiting(t *testing.T) {
	game, cast, _ := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")

	if err := game.StartRound(ctx, "host-1", code); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := game.UpdateCategories(ctx, "host-1", code, []string{"Fruta"})
	if kind := errKindOf(t, err); kind != errInvalidState {
		t.Fatalf("expected InvalidState, got kind %d", kind)
	}
}

func TestNextRoundClearsLetterKeepsScores(t *testing.T) {
	game, cast, store := newTestGame(t)
	ctx := context.Background()
	code := createTestRoom(t, game, cast, "host-1", "Alice")

	playRound(t, game, store, code, "host-1", map[string]string{"host-1": "ola"})
	if err := game.CalculateScores(ctx, "host-1", code); err != nil {
		t.Fatalf("calculate scores: %v", err)
	}

	if err := game.NextRound(ctx, "host-1", code); err != nil {
		t.Fatalf("next round: %v", err)
	}

	room := readRoom(t, store, code)
	if room.State != stateWaiting || room.Letter != "" {
		t.Fatalf("room not ready for next round: %+v", room)
	}
	if room.Round != 1 {
		t.Fatalf("round counter must survive next_round, got %d", room.Round)
	}
	if len(room.UsedLetters) != 1 {
		t.Fatalf("used letters must survive next_round, got %v", room.UsedLetters)
	}
}
