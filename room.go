package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Room lifecycle states.
const (
	stateWaiting    = "waiting"
	statePlaying    = "playing"
	stateValidation = "validation"
	stateScoring    = "scoring"
)

// Validation states for a single answer.
const (
	validationValid   = "valid"
	validationHalf    = "half"
	validationInvalid = "invalid"
)

var defaultCategories = []string{"Nome", "Animal", "Cidade", "Objeto", "Cor", "Comida"}

// Room is one isolated game session, addressed by its 8-character code.
type Room struct {
	Code        string
	HostID      string
	State       string
	Round       int
	Letter      string
	Categories  []string
	UsedLetters []string
}

// Player is a participant of exactly one room. The ID is the transport
// session identity and is remapped in place on reconnect.
type Player struct {
	ID       string
	RoomCode string
	Name     string
	Score    int
	IsHost   bool
}

// Answer is one player's answer for one category of one round.
type Answer struct {
	RoomCode        string
	PlayerID        string
	Round           int
	Category        string
	Text            string
	Points          int
	ValidationState string
}

// Invalidated reports whether this answer is excluded from scoring.
func (a *Answer) Invalidated() bool {
	return a.ValidationState == validationInvalid
}

func joinList(values []string) string {
	return strings.Join(values, ",")
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, ",")
}

func getRoom(ctx context.Context, q dbtx, code string) (Room, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT code, host_id, state, round, letter, categories, used_letters
		   FROM rooms
		  WHERE code = ?`,
		code,
	)

	var room Room
	var categories string
	var usedLetters string
	err := row.Scan(&room.Code, &room.HostID, &room.State, &room.Round, &room.Letter, &categories, &usedLetters)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Room{}, errStoreNotFound
		}
		return Room{}, fmt.Errorf("get room: %w", err)
	}
	room.Categories = splitList(categories)
	room.UsedLetters = splitList(usedLetters)
	return room, nil
}

func roomExists(ctx context.Context, q dbtx, code string) (bool, error) {
	var found int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE code = ?`, code).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check room: %w", err)
	}
	return true, nil
}

func insertRoom(ctx context.Context, q dbtx, room Room) error {
	_, err := q.ExecContext(
		ctx,
		`INSERT INTO rooms (code, host_id, state, round, letter, categories, used_letters)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		room.Code,
		room.HostID,
		room.State,
		room.Round,
		room.Letter,
		joinList(room.Categories),
		joinList(room.UsedLetters),
	)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func updateRoom(ctx context.Context, q dbtx, room Room) error {
	_, err := q.ExecContext(
		ctx,
		`UPDATE rooms
		    SET host_id = ?, state = ?, round = ?, letter = ?, categories = ?, used_letters = ?
		  WHERE code = ?`,
		room.HostID,
		room.State,
		room.Round,
		room.Letter,
		joinList(room.Categories),
		joinList(room.UsedLetters),
		room.Code,
	)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}

func deleteRoom(ctx context.Context, q dbtx, code string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM rooms WHERE code = ?`, code); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

func getPlayer(ctx context.Context, q dbtx, id string) (Player, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT id, room_code, name, score, is_host FROM players WHERE id = ?`,
		id,
	)

	var player Player
	err := row.Scan(&player.ID, &player.RoomCode, &player.Name, &player.Score, &player.IsHost)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Player{}, errStoreNotFound
		}
		return Player{}, fmt.Errorf("get player: %w", err)
	}
	return player, nil
}

func getPlayerByName(ctx context.Context, q dbtx, roomCode, name string) (Player, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT id, room_code, name, score, is_host FROM players WHERE room_code = ? AND name = ?`,
		roomCode,
		name,
	)

	var player Player
	err := row.Scan(&player.ID, &player.RoomCode, &player.Name, &player.Score, &player.IsHost)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Player{}, errStoreNotFound
		}
		return Player{}, fmt.Errorf("get player by name: %w", err)
	}
	return player, nil
}

func listPlayers(ctx context.Context, q dbtx, roomCode string) ([]Player, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT id, room_code, name, score, is_host
		   FROM players
		  WHERE room_code = ?
		  ORDER BY rowid ASC`,
		roomCode,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		var player Player
		if err := rows.Scan(&player.ID, &player.RoomCode, &player.Name, &player.Score, &player.IsHost); err != nil {
			return nil, fmt.Errorf("list players: %w", err)
		}
		players = append(players, player)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return players, nil
}

func insertPlayer(ctx context.Context, q dbtx, player Player) error {
	_, err := q.ExecContext(
		ctx,
		`INSERT INTO players (id, room_code, name, score, is_host) VALUES (?, ?, ?, ?, ?)`,
		player.ID,
		player.RoomCode,
		player.Name,
		player.Score,
		player.IsHost,
	)
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func updatePlayer(ctx context.Context, q dbtx, player Player) error {
	_, err := q.ExecContext(
		ctx,
		`UPDATE players SET room_code = ?, name = ?, score = ?, is_host = ? WHERE id = ?`,
		player.RoomCode,
		player.Name,
		player.Score,
		player.IsHost,
		player.ID,
	)
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	return nil
}

// remapPlayerID moves a player record to a new transport identity in place.
func remapPlayerID(ctx context.Context, q dbtx, oldID, newID string) error {
	_, err := q.ExecContext(ctx, `UPDATE players SET id = ? WHERE id = ?`, newID, oldID)
	if err != nil {
		return fmt.Errorf("remap player id: %w", err)
	}
	return nil
}

func deletePlayer(ctx context.Context, q dbtx, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM players WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	return nil
}

func deletePlayersForRoom(ctx context.Context, q dbtx, roomCode string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM players WHERE room_code = ?`, roomCode); err != nil {
		return fmt.Errorf("delete players: %w", err)
	}
	return nil
}

func resetScores(ctx context.Context, q dbtx, roomCode string) error {
	if _, err := q.ExecContext(ctx, `UPDATE players SET score = 0 WHERE room_code = ?`, roomCode); err != nil {
		return fmt.Errorf("reset scores: %w", err)
	}
	return nil
}

func addScore(ctx context.Context, q dbtx, playerID string, points int) error {
	_, err := q.ExecContext(ctx, `UPDATE players SET score = score + ? WHERE id = ?`, points, playerID)
	if err != nil {
		return fmt.Errorf("add score: %w", err)
	}
	return nil
}

func getAnswer(ctx context.Context, q dbtx, roomCode, playerID string, round int, category string) (Answer, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT room_code, player_id, round, category, answer, points, validation_state
		   FROM answers
		  WHERE room_code = ? AND player_id = ? AND round = ? AND category = ?`,
		roomCode,
		playerID,
		round,
		category,
	)

	var answer Answer
	err := row.Scan(&answer.RoomCode, &answer.PlayerID, &answer.Round, &answer.Category,
		&answer.Text, &answer.Points, &answer.ValidationState)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Answer{}, errStoreNotFound
		}
		return Answer{}, fmt.Errorf("get answer: %w", err)
	}
	return answer, nil
}

func listAnswers(ctx context.Context, q dbtx, roomCode string, round int) ([]Answer, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT room_code, player_id, round, category, answer, points, validation_state
		   FROM answers
		  WHERE room_code = ? AND round = ?
		  ORDER BY player_id, category`,
		roomCode,
		round,
	)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []Answer
	for rows.Next() {
		var answer Answer
		if err := rows.Scan(&answer.RoomCode, &answer.PlayerID, &answer.Round, &answer.Category,
			&answer.Text, &answer.Points, &answer.ValidationState); err != nil {
			return nil, fmt.Errorf("list answers: %w", err)
		}
		answers = append(answers, answer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return answers, nil
}

// upsertAnswer replaces any prior answer for the same composite key.
func upsertAnswer(ctx context.Context, q dbtx, answer Answer) error {
	_, err := q.ExecContext(
		ctx,
		`INSERT INTO answers (room_code, player_id, round, category, answer, points, validation_state)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (room_code, player_id, round, category)
		 DO UPDATE SET answer = excluded.answer, points = excluded.points,
		               validation_state = excluded.validation_state`,
		answer.RoomCode,
		answer.PlayerID,
		answer.Round,
		answer.Category,
		answer.Text,
		answer.Points,
		answer.ValidationState,
	)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

func updateAnswerValidation(ctx context.Context, q dbtx, answer Answer) error {
	_, err := q.ExecContext(
		ctx,
		`UPDATE answers SET validation_state = ?
		  WHERE room_code = ? AND player_id = ? AND round = ? AND category = ?`,
		answer.ValidationState,
		answer.RoomCode,
		answer.PlayerID,
		answer.Round,
		answer.Category,
	)
	if err != nil {
		return fmt.Errorf("update answer validation: %w", err)
	}
	return nil
}

func updateAnswerPoints(ctx context.Context, q dbtx, answer Answer) error {
	_, err := q.ExecContext(
		ctx,
		`UPDATE answers SET points = ?
		  WHERE room_code = ? AND player_id = ? AND round = ? AND category = ?`,
		answer.Points,
		answer.RoomCode,
		answer.PlayerID,
		answer.Round,
		answer.Category,
	)
	if err != nil {
		return fmt.Errorf("update answer points: %w", err)
	}
	return nil
}

// reassignAnswers re-parents every answer of oldID across all rounds to newID.
func reassignAnswers(ctx context.Context, q dbtx, roomCode, oldID, newID string) (int64, error) {
	res, err := q.ExecContext(
		ctx,
		`UPDATE answers SET player_id = ? WHERE room_code = ? AND player_id = ?`,
		newID,
		roomCode,
		oldID,
	)
	if err != nil {
		return 0, fmt.Errorf("reassign answers: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign answers: %w", err)
	}
	return count, nil
}

func deleteAnswersForPlayer(ctx context.Context, q dbtx, roomCode, playerID string) error {
	_, err := q.ExecContext(
		ctx,
		`DELETE FROM answers WHERE room_code = ? AND player_id = ?`,
		roomCode,
		playerID,
	)
	if err != nil {
		return fmt.Errorf("delete player answers: %w", err)
	}
	return nil
}

func deleteAnswersForRound(ctx context.Context, q dbtx, roomCode, playerID string, round int) error {
	_, err := q.ExecContext(
		ctx,
		`DELETE FROM answers WHERE room_code = ? AND player_id = ? AND round = ?`,
		roomCode,
		playerID,
		round,
	)
	if err != nil {
		return fmt.Errorf("delete round answers: %w", err)
	}
	return nil
}

func deleteAnswersForRoom(ctx context.Context, q dbtx, roomCode string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM answers WHERE room_code = ?`, roomCode); err != nil {
		return fmt.Errorf("delete room answers: %w", err)
	}
	return nil
}
