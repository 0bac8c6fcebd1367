package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Action error taxonomy. Every kind is recovered at the action boundary and
// surfaced as an error notice to the invoking session only.
type errKind int

const (
	errNotFound errKind = iota
	errUnauthorized
	errInvalidState
	errValidationConflict
)

type actionError struct {
	kind    errKind
	message string
}

func (e *actionError) Error() string {
	return e.message
}

func notFound(message string) error {
	return &actionError{kind: errNotFound, message: message}
}

func unauthorized(message string) error {
	return &actionError{kind: errUnauthorized, message: message}
}

func invalidState(message string) error {
	return &actionError{kind: errInvalidState, message: message}
}

func validationConflict(message string) error {
	return &actionError{kind: errValidationConflict, message: message}
}

// Broadcaster delivers outbound events to connected sessions and manages
// room fan-out groups. The WebSocket hub implements it; tests use a fake.
type Broadcaster interface {
	Join(roomCode, sessionID string)
	Leave(roomCode, sessionID string)
	Drop(roomCode string)
	ToRoom(roomCode string, msg any)
	ToSession(sessionID string, msg any)
}

// Game orchestrates the round state machine. Actions on the same room are
// serialized by a per-room lock; actions on distinct rooms run in parallel.
// Each action executes inside one store transaction and emits its events
// only after a successful commit.
type Game struct {
	cfg   *Config
	store *Store
	cast  Broadcaster

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newGame(cfg *Config, store *Store, cast Broadcaster) *Game {
	return &Game{
		cfg:   cfg,
		store: store,
		cast:  cast,
		locks: make(map[string]*sync.Mutex),
	}
}

func (g *Game) lockRoom(code string) *sync.Mutex {
	g.mu.Lock()
	lock, ok := g.locks[code]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[code] = lock
	}
	g.mu.Unlock()

	lock.Lock()
	return lock
}

func (g *Game) dropLock(code string) {
	g.mu.Lock()
	delete(g.locks, code)
	g.mu.Unlock()
}

// authorize checks whether the actor may perform an action on the room.
func authorize(room Room, actorID string, hostOnly bool) error {
	if hostOnly && room.HostID != actorID {
		return unauthorized("Only the host can do that")
	}
	return nil
}

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func newRoomCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}
	out := make([]byte, 8)
	for i := range out {
		out[i] = roomCodeAlphabet[int(buf[i])%len(roomCodeAlphabet)]
	}
	return string(out), nil
}

// newSessionID mints a transport session identity for one connection.
func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return fmt.Sprintf("%x", buf), nil
}

func playerInfo(player Player) PlayerInfo {
	return PlayerInfo{
		ID:     player.ID,
		Name:   player.Name,
		Score:  player.Score,
		IsHost: player.IsHost,
	}
}

func playersInfo(players []Player) []PlayerInfo {
	out := make([]PlayerInfo, 0, len(players))
	for _, player := range players {
		out = append(out, playerInfo(player))
	}
	return out
}

func roomInfo(room Room, players []Player) RoomInfo {
	return RoomInfo{
		Code:         room.Code,
		HostID:       room.HostID,
		State:        room.State,
		CurrentRound: room.Round,
		Letter:       room.Letter,
		Categories:   room.Categories,
		Players:      playersInfo(players),
	}
}

// answerMatrix builds the per-player, per-category matrix for the round,
// defaulting missing entries to empty strings.
func answerMatrix(players []Player, answers []Answer, categories []string) []PlayerAnswers {
	categoryIndex := make(map[string]int, len(categories))
	for i, category := range categories {
		categoryIndex[category] = i
	}

	rows := make(map[string][]string, len(players))
	order := make([]string, 0, len(players))
	for _, player := range players {
		rows[player.ID] = make([]string, len(categories))
		order = append(order, player.ID)
	}

	for _, answer := range answers {
		row, ok := rows[answer.PlayerID]
		if !ok {
			continue
		}
		if index, ok := categoryIndex[answer.Category]; ok {
			row[index] = answer.Text
		}
	}

	matrix := make([]PlayerAnswers, 0, len(order))
	for _, id := range order {
		matrix = append(matrix, PlayerAnswers{PlayerID: id, Answers: rows[id]})
	}
	return matrix
}

// CreateRoom creates a room in the waiting state with the caller as host.
func (g *Game) CreateRoom(ctx context.Context, sessionID, playerName string) error {
	var room Room
	var host Player

	err := g.store.withTx(ctx, func(tx *sql.Tx) error {
		code := ""
		for attempt := 0; attempt < 10; attempt++ {
			candidate, err := newRoomCode()
			if err != nil {
				return err
			}
			exists, err := roomExists(ctx, tx, candidate)
			if err != nil {
				return err
			}
			if !exists {
				code = candidate
				break
			}
		}
		if code == "" {
			return fmt.Errorf("room code space exhausted")
		}

		room = Room{
			Code:       code,
			HostID:     sessionID,
			State:      stateWaiting,
			Categories: append([]string(nil), defaultCategories...),
		}
		if err := insertRoom(ctx, tx, room); err != nil {
			return err
		}

		host = Player{
			ID:       sessionID,
			RoomCode: code,
			Name:     playerName,
			IsHost:   true,
		}
		return insertPlayer(ctx, tx, host)
	})
	if err != nil {
		return err
	}

	g.cast.Join(room.Code, sessionID)
	g.cast.ToSession(sessionID, RoomCreatedMessage{
		Type:     "room_created",
		RoomCode: room.Code,
		Player:   playerInfo(host),
		Room:     roomInfo(room, []Player{host}),
	})

	logf(g.cfg, "STOP: Room %s created by %q", room.Code, playerName)

	return nil
}

// JoinRoom adds a new non-host player to a waiting room. Display names must
// be unique within the room so that reconnect matching stays unambiguous.
func (g *Game) JoinRoom(ctx context.Context, sessionID, roomCode, playerName string) error {
	lock := g.lockRoom(roomCode)
	defer lock.Unlock()

	var room Room
	var player Player
	var players []Player

	err := g.store.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		room, err = getRoom(ctx, tx, roomCode)
		if errors.Is(err, errStoreNotFound) {
			return notFound(fmt.Sprintf("Room %s not found", roomCode))
		}
		if err != nil {
			return err
		}
		if room.State != stateWaiting {
			return invalidState("Game already in progress")
		}

		if _, err := getPlayerByName(ctx, tx, roomCode, playerName); err == nil {
			return invalidState("That name is already taken in this room")
		} else if !errors.Is(err, errStoreNotFound) {
			return err
		}

		player = Player{
			ID:       sessionID,
			RoomCode: roomCode,
			Name:     playerName,
		}
		if err := insertPlayer(ctx, tx, player); err != nil {
			return err
		}

		players, err = listPlayers(ctx, tx, roomCode)
		return err
	})
	if err != nil {
		return err
	}

	// Broadcast before joining the fan-out group so the new player does not
	// receive their own join notice.
	g.cast.ToRoom(roomCode, PlayerJoinedMessage{
		Type:    "player_joined",
		Player:  playerInfo(player),
		Players: playersInfo(players),
	})
	g.cast.Join(roomCode, sessionID)
	g.cast.ToSession(sessionID, RoomJoinedMessage{
		Type:     "room_joined",
		RoomCode: roomCode,
		Player:   playerInfo(player),
		Room:     roomInfo(room, players),
	})

	logf(g.cfg, "STOP: %q joined room %s", playerName, roomCode)

	return nil
}

// Attach resolves a transport session against a room. A player with the
// same display name but a different identity is a reconnection: the old
// identity is remapped in place and every historical answer is re-parented.
// Unknown names just attach to the fan-out group; joining is a separate
// action.
func (g *Game) Attach(ctx context.Context, sessionID, roomCode, playerName string) error {
	lock := g.lockRoom(roomCode)
	defer lock.Unlock()

	var reconnected bool
	var player Player
	var room Room
	var players []Player

	err := g.store.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		room, err = getRoom(ctx, tx, roomCode)
		if errors.Is(err, errStoreNotFound) {
			return notFound(fmt.Sprintf("Room %s not found", roomCode))
		}
		if err != nil {
			return err
		}

		// Already known under this identity; nothing to resolve.
		if _, err := getPlayer(ctx, tx, sessionID); err == nil {
			return nil
		} else if !errors.Is(err, errStoreNotFound) {
			return err
		}

		if playerName == "" {
			return nil
		}

		existing, err := getPlayerByName(ctx, tx, roomCode, playerName)
		if errors.Is(err, errStoreNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if existing.ID == sessionID {
			return nil
		}

		if err := remapPlayerID(ctx, tx, existing.ID, sessionID); err != nil {
			return err
		}
		if existing.IsHost {
			room.HostID = sessionID
			if err := updateRoom(ctx, tx, room); err != nil {
				return err
			}
		}
		count, err := reassignAnswers(ctx, tx, roomCode, existing.ID, sessionID)
		if err != nil {
			return err
		}

		reconnected = true
		player = existing
		player.ID = sessionID

		players, err = listPlayers(ctx, tx, roomCode)
		if err != nil {
			return err
		}

		logf(g.cfg, "STOP: %q reconnected to room %s (%d answers re-parented)", playerName, roomCode, count)

		return nil
	})
	if err != nil {
		return err
	}

	g.cast.Join(roomCode, sessionID)

	if reconnected {
		g.cast.ToSession(sessionID, PlayerReconnectedMessage{
			Type:   "player_reconnected",
			Player: playerInfo(player),
			Room:   roomInfo(room, players),
		})
		g.cast.ToRoom(roomCode, PlayersUpdatedMessage{
			Type:    "players_updated",
			Players: playersInfo(players),
		})
	}

	return nil
}

// UpdateCategories replaces the room's ordered category list. Host-only,
// and only while the room is waiting.
func (g *Game) UpdateCategories(ctx context.Context, sessionID, roomCode string, categories []string) error {
	lock := g.lockRoom(roomCode)
	defer lock.Unlock()

	cleaned := make([]string, 0, len(categories))
	for _, category := range categories {
		category = strings.TrimSpace(category)
		if category == "" || strings.Contains(category, ",") {
			return invalidState("Invalid category name")
		}
		cleaned = append(cleaned, category)
	}
	if len(cleaned) == 0 {
		return invalidState("At least one category is required")
	}

	err := g.store.withTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoom(ctx, tx, roomCode)
		if errors.Is(err, errStoreNotFound) {
			return notFound(fmt.Sprintf("Room %s not found", roomCode))
		}
		if err != nil {
			return err
		}
		if err := authorize(room, sessionID, true); err != nil {
			return err
		}
		if room.State != stateWaiting {
			return invalidState("Categories can only be changed between rounds")
		}

		room.Categories = cleaned
		return updateRoom(ctx, tx, room)
	})
	if err != nil {
		return err
	}

	g.cast.ToRoom(roomCode, CategoriesUpdatedMessage{
		Type:       "categories_updated",
		Categories: cleaned,
	})

	return nil
}

// StartRound transitions waiting → playing: bumps the round number, draws a
// fresh letter, and announces the round to the room.
func (g *Game) StartRound(ctx context.Context, sessionID, roomCode string) error {
	lock := g.lockRoom(roomCode)
	defer lock.Unlock()

	var room Room

	err := g.store.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		room, err = getRoom(ctx, tx, roomCode)
		if errors.Is(err, errStoreNotFound) {
			return notFound(fmt.Sprintf("Room %s not found", roomCode))
		}
		if err != nil {
			return err
		}
		if err := authorize(room, sessionID, true); err != nil {
			return err
		}
		if room.State != stateWaiting {
			return invalidState("Round already in progress")
		}

		letter, used, err := drawLetter(room.UsedLetters)
		if err != nil {
			return err
		}

		room.Round++
		room.Letter = letter
		room.UsedLetters = used
		room.State = statePlaying

		return updateRoom(ctx, tx, room)
	})
	if err != nil {
		return err
	}

	g.cast.ToRoom(roomCode, RoundStartingMessage{
		Type:       "round_starting",
		Countdown:  3,
		Letter:     room.Letter,
		Round:      room.Round,
		Categories: room.Categories,
	})

	logf(g.cfg, "STOP: Round %d started in room %s with letter %s", room.Round, roomCode, room.Letter)

	return nil
}

// SubmitAnswers upserts the caller's answers for the current round, aligned
// to the category list. Re-submission replaces earlier answers.
func (g *Game) SubmitAnswers(ctx context.Context, sessionID, roomCode string, answers []string) error {
	lock := g.lockRoom(roomCode)
	defer lock.Unlock()

	return g.store.withTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoom(ctx, tx, roomCode)
		if errors.Is(err, errStoreNotFound) {
			return notFound(fmt.Sprintf("Room %s not found", roomCode))
		}
		if err != nil {
			return err
		}
		if room.State != statePlaying {
			return invalidState("No round in progress")
		}

		player, err := getPlayer(ctx, tx, sessionID)
		if errors.Is(err, errStoreNotFound) || (err == nil && player.RoomCode != roomCode) {
			return notFound("You are not in this room")
		}
		if err != nil {
			return err
		}

		if err := deleteAnswersForRound(ctx, tx, roomCode, sessionID, room.Round); err != nil {
			return err
		}

		for i, text := range answers {
			if i >= len(room.Categories) {
				break
			}
			answer := Answer{
				RoomCode:        roomCode,
				PlayerID:        sessionID,
				Round:           room.Round,
				Category:        room.Categories[i],
				Text:            strings.TrimSpace(text),
				ValidationState: validationValid,
			}
			if err := upsertAnswer(ctx, tx, answer); err != nil {
				return err
			}
		}

		return nil
	})
}

// StopGame transitions playing → validation. Any current player of the room
// may stop the round; the answer matrix and automatic validation results are
// broadcast for collective review.
func (g *Game) StopGame(ctx context.Context, sessionID, roomCode string) error {
	lock := g.lockRoom(roomCode)
	defer lock.Unlock()

	var stoppedBy Player
	var matrix []PlayerAnswers
	var invalidated []AutoInvalidated
	var repeated []AutoRepeated

	err := g.store.withTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoom(ctx, tx, roomCode)
		if errors.Is(err, errStoreNotFound) {
			return notFound(fmt.Sprintf("Room %s not found", roomCode))
		}
		if err != nil {
			return err
		}
		if room.State != statePlaying {
			return invalidState("No round in progress")
		}

		stoppedBy, err = getPlayer(ctx, tx, sessionID)
		if errors.Is(err, errStoreNotFound) || (err == nil && stoppedBy.RoomCode != roomCode) {
			return notFound("You are not in this room")
		}
		if err != nil {
			return err
		}

		room.State = stateValidation
		if err := updateRoom(ctx, tx, room); err != nil {
			return err
		}

		answers, err := listAnswers(ctx, tx, roomCode, room.Round)
		if err != nil {
			return err
		}
		players, err := listPlayers(ctx, tx, roomCode)
		if err != nil {
			return err
		}

		answers, invalidated, repeated = autoValidate(answers, room.Categories, room.Letter)
		for _, answer := range answers {
			if answer.ValidationState == validationInvalid {
				if err := updateAnswerValidation(ctx, tx, answer); err != nil {
					return err
				}
			}
		}

		matrix = answerMatrix(players, answers, room.Categories)
		return nil
	})
	if err != nil {
		return err
	}

	g.cast.ToRoom(roomCode, GameStoppedMessage{
		Type:            "game_stopped",
		StoppedBy:       stoppedBy.Name,
		PlayerID:        sessionID,
		AllAnswers:      matrix,
		AutoInvalidated: invalidated,
		AutoRepeated:    repeated,
	})

	logf(g.cfg, "STOP: Round stopped by %q in room %s", stoppedBy.Name, roomCode)

	return nil
}

// InvalidateAnswer cycles one answer's validation state during review:
// valid → half → invalid → valid. Host-only.
func (g *Game) InvalidateAnswer(ctx context.Context, sessionID, roomCode, targetPlayerID string, categoryIndex int) error {
	lock := g.lockRoom(roomCode)
	defer lock.Unlock()

	var answer Answer

	err := g.store.withTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoom(ctx, tx, roomCode)
		if errors.Is(err, errStoreNotFound) {
			return notFound(fmt.Sprintf("Room %s not found", roomCode))
		}
		if err != nil {
			return err
		}
		if err := authorize(room, sessionID, true); err != nil {
			return err
		}
		if room.State != stateValidation {
			return invalidState("Answers can only be validated during review")
		}
		if categoryIndex < 0 || categoryIndex >= len(room.Categories) {
			return validationConflict("No such category")
		}

		category := room.Categories[categoryIndex]
		answer, err = getAnswer(ctx, tx, roomCode, targetPlayerID, room.Round, category)
		if errors.Is(err, errStoreNotFound) {
			return validationConflict("No such answer")
		}
		if err != nil {
			return err
		}

		answer.ValidationState = cycleValidation(answer.ValidationState)
		return updateAnswerValidation(ctx, tx, answer)
	})
	if err != nil {
		return err
	}

	g.cast.ToRoom(roomCode, AnswerValidationChangedMessage{
		Type:            "answer_validation_changed",
		PlayerID:        targetPlayerID,
		CategoryIndex:   categoryIndex,
		ValidationState: answer.ValidationState,
		Invalidated:     answer.Invalidated(),
	})

	return nil
}

// CalculateScores transitions validation → scoring: resolves points for
// every answer of the round and folds them into cumulative player scores.
func (g *Game) CalculateScores(ctx context.Context, sessionID, roomCode string) error {
	lock := g.lockRoom(roomCode)
	defer lock.Unlock()

	var totals map[string]int
	var results []AnswerResult
	var players []Player
	var matrix []PlayerAnswers

	err := g.store.withTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoom(ctx, tx, roomCode)
		if errors.Is(err, errStoreNotFound) {
			return notFound(fmt.Sprintf("Room %s not found", roomCode))
		}
		if err != nil {
			return err
		}
		if err := authorize(room, sessionID, true); err != nil {
			return err
		}
		if room.State != stateValidation {
			return invalidState("Scores can only be calculated after review")
		}

		room.State = stateScoring
		if err := updateRoom(ctx, tx, room); err != nil {
			return err
		}

		answers, err := listAnswers(ctx, tx, roomCode, room.Round)
		if err != nil {
			return err
		}
		players, err = listPlayers(ctx, tx, roomCode)
		if err != nil {
			return err
		}

		answers, totals, results = scoreRound(answers, room.Categories, room.Letter)

		// Every current player appears in the totals, even with no answers.
		for _, player := range players {
			if _, ok := totals[player.ID]; !ok {
				totals[player.ID] = 0
			}
		}

		for _, answer := range answers {
			if err := updateAnswerPoints(ctx, tx, answer); err != nil {
				return err
			}
		}
		for i := range players {
			points := totals[players[i].ID]
			if points == 0 {
				continue
			}
			if err := addScore(ctx, tx, players[i].ID, points); err != nil {
				return err
			}
			players[i].Score += points
		}

		matrix = answerMatrix(players, answers, room.Categories)
		return nil
	})
	if err != nil {
		return err
	}

	g.cast.ToRoom(roomCode, ScoresCalculatedMessage{
		Type:            "scores_calculated",
		Scores:          totals,
		DetailedResults: results,
		Players:         playersInfo(players),
		AllAnswers:      matrix,
	})

	logf(g.cfg, "STOP: Scores calculated for room %s", roomCode)

	return nil
}

// NextRound returns the room to waiting for another round, keeping scores,
// round number, and category list.
func (g *Game) NextRound(ctx context.Context, sessionID, roomCode string) error {
	lock := g.lockRoom(roomCode)
	defer lock.Unlock()

	err := g.store.withTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoom(ctx, tx, roomCode)
		if errors.Is(err, errStoreNotFound) {
			return notFound(fmt.Sprintf("Room %s not found", roomCode))
		}
		if err != nil {
			return err
		}
		if err := authorize(room, sessionID, true); err != nil {
			return err
		}

		room.State = stateWaiting
		room.Letter = ""
		return updateRoom(ctx, tx, room)
	})
	if err != nil {
		return err
	}

	g.cast.ToRoom(roomCode, ReadyForNextRoundMessage{Type: "ready_for_next_round"})

	return nil
}

// NewMatch performs a full reset: scores zeroed, round counter and letter
// history cleared, all answers deleted. Room code, host, and categories
// survive.
func (g *Game) NewMatch(ctx context.Context, sessionID, roomCode string) error {
	lock := g.lockRoom(roomCode)
	defer lock.Unlock()

	var players []Player

	err := g.store.withTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoom(ctx, tx, roomCode)
		if errors.Is(err, errStoreNotFound) {
			return notFound(fmt.Sprintf("Room %s not found", roomCode))
		}
		if err != nil {
			return err
		}
		if err := authorize(room, sessionID, true); err != nil {
			return err
		}

		if err := resetScores(ctx, tx, roomCode); err != nil {
			return err
		}

		room.State = stateWaiting
		room.Round = 0
		room.Letter = ""
		room.UsedLetters = nil
		if err := updateRoom(ctx, tx, room); err != nil {
			return err
		}

		if err := deleteAnswersForRoom(ctx, tx, roomCode); err != nil {
			return err
		}

		players, err = listPlayers(ctx, tx, roomCode)
		return err
	})
	if err != nil {
		return err
	}

	g.cast.ToRoom(roomCode, MatchResetMessage{
		Type:    "match_reset",
		Players: playersInfo(players),
	})

	logf(g.cfg, "STOP: New match started in room %s", roomCode)

	return nil
}

// KickPlayer removes a player and their answers from the room. Host-only;
// the host cannot kick themselves. The target is notified separately from
// the rest of the room.
func (g *Game) KickPlayer(ctx context.Context, sessionID, roomCode, targetPlayerID string) error {
	lock := g.lockRoom(roomCode)
	defer lock.Unlock()

	var target Player
	var players []Player

	err := g.store.withTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoom(ctx, tx, roomCode)
		if errors.Is(err, errStoreNotFound) {
			return notFound(fmt.Sprintf("Room %s not found", roomCode))
		}
		if err != nil {
			return err
		}
		if err := authorize(room, sessionID, true); err != nil {
			return err
		}
		if targetPlayerID == sessionID {
			return unauthorized("You cannot kick yourself")
		}

		target, err = getPlayer(ctx, tx, targetPlayerID)
		if errors.Is(err, errStoreNotFound) || (err == nil && target.RoomCode != roomCode) {
			return notFound("Player not found in this room")
		}
		if err != nil {
			return err
		}

		if err := deletePlayer(ctx, tx, targetPlayerID); err != nil {
			return err
		}
		if err := deleteAnswersForPlayer(ctx, tx, roomCode, targetPlayerID); err != nil {
			return err
		}

		players, err = listPlayers(ctx, tx, roomCode)
		return err
	})
	if err != nil {
		return err
	}

	g.cast.ToSession(targetPlayerID, KickedFromRoomMessage{
		Type:    "kicked_from_room",
		Message: "You have been removed from the room by the host",
	})
	g.cast.Leave(roomCode, targetPlayerID)
	g.cast.ToRoom(roomCode, PlayerKickedMessage{
		Type:       "player_kicked",
		PlayerID:   targetPlayerID,
		PlayerName: target.Name,
		Players:    playersInfo(players),
	})

	logf(g.cfg, "STOP: %q kicked from room %s", target.Name, roomCode)

	return nil
}

// LeaveRoom removes the caller from their room. The last player out
// destroys the room; a departing host hands the role to the next player.
func (g *Game) LeaveRoom(ctx context.Context, sessionID, roomCode string) error {
	lock := g.lockRoom(roomCode)
	defer lock.Unlock()

	var leaver Player
	var remaining []Player
	var newHost *Player
	var destroyed bool

	err := g.store.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		leaver, err = getPlayer(ctx, tx, sessionID)
		if errors.Is(err, errStoreNotFound) || (err == nil && leaver.RoomCode != roomCode) {
			return notFound("You are not in this room")
		}
		if err != nil {
			return err
		}

		if err := deletePlayer(ctx, tx, sessionID); err != nil {
			return err
		}

		remaining, err = listPlayers(ctx, tx, roomCode)
		if err != nil {
			return err
		}

		if len(remaining) == 0 {
			destroyed = true
			if err := deleteRoom(ctx, tx, roomCode); err != nil {
				return err
			}
			return deleteAnswersForRoom(ctx, tx, roomCode)
		}

		if leaver.IsHost {
			promoted := remaining[0]
			promoted.IsHost = true
			if err := updatePlayer(ctx, tx, promoted); err != nil {
				return err
			}

			room, err := getRoom(ctx, tx, roomCode)
			if err != nil {
				return err
			}
			room.HostID = promoted.ID
			if err := updateRoom(ctx, tx, room); err != nil {
				return err
			}

			remaining[0] = promoted
			newHost = &promoted
		}

		return nil
	})
	if err != nil {
		return err
	}

	g.cast.Leave(roomCode, sessionID)

	if destroyed {
		g.cast.Drop(roomCode)
		g.dropLock(roomCode)
		logf(g.cfg, "STOP: Room %s deleted (no players left)", roomCode)
		return nil
	}

	if newHost != nil {
		g.cast.ToRoom(roomCode, HostChangedMessage{
			Type:        "host_changed",
			NewHostID:   newHost.ID,
			NewHostName: newHost.Name,
		})
	}
	g.cast.ToRoom(roomCode, PlayerLeftMessage{
		Type:       "player_left",
		PlayerID:   sessionID,
		PlayerName: leaver.Name,
		Players:    playersInfo(remaining),
	})

	return nil
}

// CloseRoom destroys the room and everything in it. Host-only. The closure
// notice goes out before the fan-out group is dropped.
func (g *Game) CloseRoom(ctx context.Context, sessionID, roomCode string) error {
	lock := g.lockRoom(roomCode)
	defer lock.Unlock()

	err := g.store.withTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoom(ctx, tx, roomCode)
		if errors.Is(err, errStoreNotFound) {
			return notFound(fmt.Sprintf("Room %s not found", roomCode))
		}
		if err != nil {
			return err
		}
		if err := authorize(room, sessionID, true); err != nil {
			return err
		}

		if err := deleteRoom(ctx, tx, roomCode); err != nil {
			return err
		}
		if err := deletePlayersForRoom(ctx, tx, roomCode); err != nil {
			return err
		}
		return deleteAnswersForRoom(ctx, tx, roomCode)
	})
	if err != nil {
		return err
	}

	g.cast.ToRoom(roomCode, RoomClosedMessage{Type: "room_closed"})
	g.cast.Drop(roomCode)
	g.dropLock(roomCode)

	logf(g.cfg, "STOP: Room %s closed by host", roomCode)

	return nil
}

// Chat re-broadcasts a message to the room. No state effect.
func (g *Game) Chat(sessionID, roomCode, playerName, message string) {
	g.cast.ToRoom(roomCode, ChatMessage{
		Type:       "chat_message",
		PlayerName: playerName,
		Message:    message,
	})
}
