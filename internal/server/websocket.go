package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// connState is the per-connection dispatcher state: identity from the auth
// handshake plus the engine the player last joined. Handlers run to
// completion, broadcasts included, before the next message on the same
// connection is read.
type connState struct {
	connectionID string
	playerID     string
	socket       *websocket.Conn
	engine       *SessionManager // set by join_queue, or at auth for a live session
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()
	connectionID := uuid.New().String()
	log.Printf("New connection: %s", connectionID)
	defer s.rateLimiter.Forget(connectionID)

	// Phase 1: the first message must be auth, within a bounded wait.
	c, err := s.authenticate(ctx, socket, connectionID)
	if err != nil {
		log.Printf("Connection %s closed before auth: %v", connectionID, err)
		return
	}

	defer s.cleanupConnection(c)

	// Phase 2: message loop. One handler finishes before the next read.
	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.Printf("Connection %s read error: %v", connectionID, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", connectionID)
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			s.sendErrorFor(socket, ctx, ErrRateLimited)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", connectionID, err)
			s.sendError(socket, ctx, "Invalid JSON", "INVALID_JSON")
			continue
		}

		switch msg.Type {
		case "ping":
			s.handlePing(socket, ctx, c)

		case "auth":
			s.sendErrorFor(socket, ctx, ErrAlreadyAuthed)

		case "join_queue":
			s.handleJoinQueue(socket, ctx, c, msg.Payload)

		case "move":
			s.handleMove(socket, ctx, c, msg.Payload)

		case "resign":
			s.handleResign(socket, ctx, c)

		default:
			log.Printf("Unknown message type '%s' from %s", msg.Type, connectionID)
			s.sendError(socket, ctx, fmt.Sprintf("Unknown message type: %s", msg.Type), "UNKNOWN_TYPE")
		}
	}
}

// authenticate waits for the mandatory auth message. A missing id is
// filled in with a server-assigned one; a later handshake for the same id
// displaces the earlier connection.
func (s *Server) authenticate(ctx context.Context, socket *websocket.Conn, connectionID string) (*connState, error) {
	authCtx, cancel := context.WithTimeout(ctx, s.cfg.AuthTimeout)
	defer cancel()

	msgType, data, err := socket.Read(authCtx)
	if err != nil {
		return nil, fmt.Errorf("waiting for auth: %w", err)
	}
	if msgType != websocket.MessageText {
		socket.Close(websocket.StatusUnsupportedData, "Expected text auth message")
		return nil, ErrAuthRequired
	}

	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "auth" {
		s.sendErrorFor(socket, ctx, ErrAuthRequired)
		socket.Close(websocket.StatusPolicyViolation, "Auth required")
		return nil, ErrAuthRequired
	}

	var req AuthRequest
	if len(msg.Payload) > 0 {
		// A malformed payload is tolerated; the id is assigned instead.
		json.Unmarshal(msg.Payload, &req)
	}
	playerID := req.UserID
	if playerID == "" {
		playerID = uuid.New().String()
	}

	if displaced := s.registry.Register(playerID, socket); displaced != nil {
		s.send(displaced, context.Background(), ServerMessage{
			Type: "error",
			Payload: ErrorMessage{
				Message: "You connected from somewhere else",
				Code:    "DISCONNECTED_ELSEWHERE",
			},
		})
		// CloseNow skips the close handshake: a displaced peer that stopped
		// reading must not stall this connection's auth_ok.
		displaced.CloseNow()
	}

	log.Printf("Player %s authenticated on connection %s. Active connections: %d",
		playerID, connectionID, s.registry.Count())

	c := &connState{connectionID: connectionID, playerID: playerID, socket: socket}

	// A replacement connection inherits the player's live session, so a
	// move works right away without re-sending join_queue.
	for _, engine := range s.engines {
		if _, _, ok := engine.Snapshot(playerID); ok {
			c.engine = engine
			break
		}
	}

	s.send(socket, ctx, ServerMessage{Type: "auth_ok", Payload: AuthOkResponse{UserID: playerID}})
	return c, nil
}

// cleanupConnection runs on every exit path of the read loop: normal
// close, read error, and after an internal failure. The registry check
// makes it a no-op for displaced handles and for a second invocation, so
// nobody is double-forfeited or double-requeued.
func (s *Server) cleanupConnection(c *connState) {
	if !s.registry.Unregister(c.playerID, c.socket) {
		log.Printf("Connection %s was not the live handle for %s, skipping cleanup", c.connectionID, c.playerID)
		return
	}
	log.Printf("Player %s disconnected (connection %s)", c.playerID, c.connectionID)

	for _, engine := range s.engines {
		if rem := engine.Remove(c.playerID); rem != nil {
			s.notifyForfeit(engine, rem, "Opponent disconnected")
		}
	}
}
