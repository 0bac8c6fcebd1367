// Stopbox Stop! Game
//
// A room of players races against each other to produce words starting with
// a drawn letter, one per category. Any player can call "Stop!", freezing
// the round. The room then reviews everyone's answers together, the host
// can veto or half-score individual answers, and the round is scored:
// unique valid answers earn 10 points, answers shared with another player
// earn 5, half-score answers earn 5, everything else earns 0.
//
// Features:
// - One WebSocket endpoint: $path/ws; all actions flow over it as JSON
// - Rooms identified by random 8-char codes with server-side collision retry
// - The room creator is the host; only the host advances the state machine
// - Reconnects resolved by display name; scores and answers survive them
// - Letters never repeat until the whole alphabet has been drawn
// - Host can kick players, edit categories, and reset the whole match
// - In-browser QR button to share a room link, backed by go-qrcode
// - All room state lives in SQLite, one transaction per action

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

type Client struct {
	conn      *websocket.Conn
	send      chan any
	sessionID string
}

// Hub is the broadcast gateway: it tracks connected sessions and the room
// fan-out groups they have joined. Dropping a connection here is advisory
// only and never touches the store.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Client
	rooms    map[string]map[string]*Client
}

func newHub() *Hub {
	return &Hub{
		sessions: make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[c.sessionID] = c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.sessions[c.sessionID]; !ok || current != c {
		return
	}
	h.dropClientLocked(c)
}

// dropClientLocked assumes h.mu is already held.
func (h *Hub) dropClientLocked(c *Client) {
	delete(h.sessions, c.sessionID)
	for code, members := range h.rooms {
		if members[c.sessionID] == c {
			delete(members, c.sessionID)
			if len(members) == 0 {
				delete(h.rooms, code)
			}
		}
	}
	close(c.send)
}

// Join adds a session to a room's fan-out group.
func (h *Hub) Join(roomCode, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	members, ok := h.rooms[roomCode]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomCode] = members
	}
	members[sessionID] = client
}

// Leave removes a session from a room's fan-out group without closing it.
func (h *Hub) Leave(roomCode, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomCode]
	if !ok {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(h.rooms, roomCode)
	}
}

// Drop discards a room's fan-out group. Connections stay open.
func (h *Hub) Drop(roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.rooms, roomCode)
}

// ToRoom delivers msg to every session joined to the room.
func (h *Hub) ToRoom(roomCode string, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.rooms[roomCode] {
		select {
		case client.send <- msg:
		default:
			h.dropClientLocked(client)
		}
	}
}

// ToSession delivers msg to one session only.
func (h *Hub) ToSession(sessionID string, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	select {
	case client.send <- msg:
	default:
		h.dropClientLocked(client)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// validateMessage checks the required fields of each action before dispatch.
func validateMessage(msg ClientMessage) string {
	switch msg.Type {
	case "create_room":
		if strings.TrimSpace(msg.PlayerName) == "" {
			return "player_name is required"
		}
	case "join_room", "attach":
		if msg.RoomCode == "" {
			return "room_code is required"
		}
		if msg.Type == "join_room" && strings.TrimSpace(msg.PlayerName) == "" {
			return "player_name is required"
		}
	case "update_categories":
		if msg.RoomCode == "" {
			return "room_code is required"
		}
		if len(msg.Categories) == 0 {
			return "categories is required"
		}
	case "submit_answers":
		if msg.RoomCode == "" {
			return "room_code is required"
		}
	case "invalidate_answer":
		if msg.RoomCode == "" {
			return "room_code is required"
		}
		if msg.TargetPlayerID == "" {
			return "target_player_id is required"
		}
		if msg.CategoryIndex == nil || *msg.CategoryIndex < 0 {
			return "category_index is required"
		}
	case "kick_player":
		if msg.RoomCode == "" {
			return "room_code is required"
		}
		if msg.TargetPlayerID == "" {
			return "target_player_id is required"
		}
	case "start_round", "stop_game", "calculate_scores", "next_round", "new_match", "leave_room", "close_room":
		if msg.RoomCode == "" {
			return "room_code is required"
		}
	case "send_chat_message":
		if msg.RoomCode == "" || msg.Message == "" {
			return "room_code and message are required"
		}
	default:
		return "unknown action"
	}
	return ""
}

func (c *Client) dispatch(cfg *Config, game *Game, msg ClientMessage) {
	if problem := validateMessage(msg); problem != "" {
		game.cast.ToSession(c.sessionID, ErrorMessage{Type: "error", Message: problem})
		return
	}

	ctx := context.Background()
	name := strings.TrimSpace(msg.PlayerName)
	code := strings.ToUpper(strings.TrimSpace(msg.RoomCode))

	var err error
	switch msg.Type {
	case "create_room":
		err = game.CreateRoom(ctx, c.sessionID, name)
	case "join_room":
		err = game.JoinRoom(ctx, c.sessionID, code, name)
	case "attach":
		err = game.Attach(ctx, c.sessionID, code, name)
	case "update_categories":
		err = game.UpdateCategories(ctx, c.sessionID, code, msg.Categories)
	case "start_round":
		err = game.StartRound(ctx, c.sessionID, code)
	case "submit_answers":
		err = game.SubmitAnswers(ctx, c.sessionID, code, msg.Answers)
	case "stop_game":
		err = game.StopGame(ctx, c.sessionID, code)
	case "invalidate_answer":
		err = game.InvalidateAnswer(ctx, c.sessionID, code, msg.TargetPlayerID, *msg.CategoryIndex)
	case "calculate_scores":
		err = game.CalculateScores(ctx, c.sessionID, code)
	case "next_round":
		err = game.NextRound(ctx, c.sessionID, code)
	case "new_match":
		err = game.NewMatch(ctx, c.sessionID, code)
	case "kick_player":
		err = game.KickPlayer(ctx, c.sessionID, code, msg.TargetPlayerID)
	case "leave_room":
		err = game.LeaveRoom(ctx, c.sessionID, code)
	case "close_room":
		err = game.CloseRoom(ctx, c.sessionID, code)
	case "send_chat_message":
		game.Chat(c.sessionID, code, name, msg.Message)
	}

	if err == nil {
		return
	}

	var action *actionError
	if errors.As(err, &action) {
		game.cast.ToSession(c.sessionID, ErrorMessage{Type: "error", Message: action.message})
		return
	}

	logf(cfg, "STOP: Action %q failed: %v", msg.Type, err)
	game.cast.ToSession(c.sessionID, ErrorMessage{Type: "error", Message: "Something went wrong, please try again"})
}

func (c *Client) readPump(cfg *Config, game *Game, hub *Hub) {
	defer func() {
		hub.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.dispatch(cfg, game, msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func serveStopWS(cfg *Config, game *Game, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sessionID, err := newSessionID()
		if err != nil {
			http.Error(w, "unable to assign session id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:      conn,
			send:      make(chan any, 8),
			sessionID: sessionID,
		}

		hub.register(client)

		go client.writePump()
		client.readPump(cfg, game, hub)
	}
}

func serveStopPage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		_, _ = w.Write([]byte(newPage("Stop!", "Stop!")))
	}
}

// QR handler: generates a PNG QR code for the current room URL.
func stopQRHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := ps.ByName("code")
	if code == "" {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:code/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// registerStopGame sets up routes so that:
//   - $path                 → game client page
//   - $path/ws              → WebSocket carrying every game action
//   - $path/room/:code      → room client page
//   - $path/room/:code/qr   → PNG QR code for that room URL
func registerStopGame(cfg *Config, path string, mux *httprouter.Router, store *Store) {
	hub := newHub()
	game := newGame(cfg, store, hub)

	mux.GET(cfg.prefix+path, serveStopPage(cfg))

	mux.GET(cfg.prefix+path+"/ws", serveStopWS(cfg, game, hub))

	mux.GET(cfg.prefix+path+"/room/:code", serveStopPage(cfg))

	mux.GET(cfg.prefix+path+"/room/:code/qr", stopQRHandler)
}
