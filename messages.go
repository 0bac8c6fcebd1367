package main

// ClientMessage is the inbound action envelope. Which fields are required
// depends on Type and is checked by validateMessage before dispatch.
type ClientMessage struct {
	Type           string   `json:"type"`                       // action name
	RoomCode       string   `json:"room_code,omitempty"`        // all room actions
	PlayerName     string   `json:"player_name,omitempty"`      // create_room / join_room / attach / chat
	Categories     []string `json:"categories,omitempty"`       // update_categories
	Answers        []string `json:"answers,omitempty"`          // submit_answers
	TargetPlayerID string   `json:"target_player_id,omitempty"` // invalidate_answer / kick_player
	CategoryIndex  *int     `json:"category_index,omitempty"`   // invalidate_answer
	Message        string   `json:"message,omitempty"`          // send_chat_message
}

// PlayerInfo is the client-facing projection of a Player.
type PlayerInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	IsHost bool   `json:"isHost"`
}

// RoomInfo is the client-facing projection of a Room.
type RoomInfo struct {
	Code         string       `json:"id"`
	HostID       string       `json:"host"`
	State        string       `json:"gameState"`
	CurrentRound int          `json:"currentRound"`
	Letter       string       `json:"currentLetter"`
	Categories   []string     `json:"categories"`
	Players      []PlayerInfo `json:"players"`
}

// PlayerAnswers is one row of the per-round answer matrix, aligned to the
// room's category list.
type PlayerAnswers struct {
	PlayerID string   `json:"playerId"`
	Answers  []string `json:"answers"`
}

type RoomCreatedMessage struct {
	Type     string     `json:"type"` // "room_created"
	RoomCode string     `json:"room_id"`
	Player   PlayerInfo `json:"player"`
	Room     RoomInfo   `json:"room"`
}

type RoomJoinedMessage struct {
	Type     string     `json:"type"` // "room_joined"
	RoomCode string     `json:"room_id"`
	Player   PlayerInfo `json:"player"`
	Room     RoomInfo   `json:"room"`
}

type PlayerJoinedMessage struct {
	Type    string       `json:"type"` // "player_joined"
	Player  PlayerInfo   `json:"player"`
	Players []PlayerInfo `json:"players"`
}

type PlayersUpdatedMessage struct {
	Type    string       `json:"type"` // "players_updated"
	Players []PlayerInfo `json:"players"`
}

// PlayerReconnectedMessage is sent only to the reconnecting session with its
// resolved identity and room snapshot.
type PlayerReconnectedMessage struct {
	Type   string     `json:"type"` // "player_reconnected"
	Player PlayerInfo `json:"player"`
	Room   RoomInfo   `json:"room"`
}

type CategoriesUpdatedMessage struct {
	Type       string   `json:"type"` // "categories_updated"
	Categories []string `json:"categories"`
}

type RoundStartingMessage struct {
	Type       string   `json:"type"` // "round_starting"
	Countdown  int      `json:"countdown"`
	Letter     string   `json:"letter"`
	Round      int      `json:"round"`
	Categories []string `json:"categories"`
}

type GameStoppedMessage struct {
	Type            string            `json:"type"` // "game_stopped"
	StoppedBy       string            `json:"stopped_by"`
	PlayerID        string            `json:"player_id"`
	AllAnswers      []PlayerAnswers   `json:"all_answers"`
	AutoInvalidated []AutoInvalidated `json:"auto_invalidated"`
	AutoRepeated    []AutoRepeated    `json:"auto_repeated"`
}

// AnswerValidationChangedMessage is a single-answer delta, not a snapshot.
type AnswerValidationChangedMessage struct {
	Type            string `json:"type"` // "answer_validation_changed"
	PlayerID        string `json:"player_id"`
	CategoryIndex   int    `json:"category_index"`
	ValidationState string `json:"validation_state"`
	Invalidated     bool   `json:"invalidated"`
}

type ScoresCalculatedMessage struct {
	Type            string          `json:"type"` // "scores_calculated"
	Scores          map[string]int  `json:"scores"`
	DetailedResults []AnswerResult  `json:"detailed_results"`
	Players         []PlayerInfo    `json:"players"`
	AllAnswers      []PlayerAnswers `json:"all_answers"`
}

type ReadyForNextRoundMessage struct {
	Type string `json:"type"` // "ready_for_next_round"
}

type MatchResetMessage struct {
	Type    string       `json:"type"` // "match_reset"
	Players []PlayerInfo `json:"players"`
}

type PlayerLeftMessage struct {
	Type       string       `json:"type"` // "player_left"
	PlayerID   string       `json:"player_id"`
	PlayerName string       `json:"player_name"`
	Players    []PlayerInfo `json:"players"`
}

type HostChangedMessage struct {
	Type        string `json:"type"` // "host_changed"
	NewHostID   string `json:"new_host_id"`
	NewHostName string `json:"new_host_name"`
}

type PlayerKickedMessage struct {
	Type       string       `json:"type"` // "player_kicked"
	PlayerID   string       `json:"player_id"`
	PlayerName string       `json:"player_name"`
	Players    []PlayerInfo `json:"players"`
}

// KickedFromRoomMessage goes only to the kicked session.
type KickedFromRoomMessage struct {
	Type    string `json:"type"` // "kicked_from_room"
	Message string `json:"message"`
}

type RoomClosedMessage struct {
	Type string `json:"type"` // "room_closed"
}

type ChatMessage struct {
	Type       string `json:"type"` // "chat_message"
	PlayerName string `json:"player_name"`
	Message    string `json:"message"`
}

// ErrorMessage is delivered only to the invoking session, never broadcast.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
