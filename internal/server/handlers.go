package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/coder/websocket"

	"matchboard-server/internal/game"
)

func (s *Server) handlePing(socket *websocket.Conn, ctx context.Context, c *connState) {
	response := ServerMessage{
		Type:    "pong",
		Payload: struct{}{},
	}
	if err := s.send(socket, ctx, response); err != nil {
		log.Printf("Failed to send pong to %s: %v", c.connectionID, err)
	}
}

func (s *Server) handleJoinQueue(socket *websocket.Conn, ctx context.Context, c *connState, payload json.RawMessage) {
	var req JoinQueueRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendError(socket, ctx, "Invalid join_queue payload", "INVALID_PAYLOAD")
			return
		}
	}

	gameName := req.Game
	if gameName == "" {
		gameName = "chess"
	}
	engine, ok := s.engines[gameName]
	if !ok {
		s.sendErrorFor(socket, ctx, ErrUnknownGame)
		return
	}

	// A player belongs to at most one session at any instant, across
	// variants: switching variants is allowed from the queue, not from a
	// live session.
	if c.engine != nil && c.engine != engine {
		if _, _, inSession := c.engine.Snapshot(c.playerID); inSession {
			s.sendError(socket, ctx, "Already in a game on another variant", "ALREADY_IN_SESSION")
			return
		}
		c.engine.Remove(c.playerID)
	}
	c.engine = engine

	pairing := engine.Enqueue(c.playerID)
	if pairing == nil {
		// Queued (or a no-op); the client hears back on match_found.
		return
	}
	s.announcePairing(engine, pairing)
}

func (s *Server) handleMove(socket *websocket.Conn, ctx context.Context, c *connState, payload json.RawMessage) {
	if c.engine == nil {
		s.sendErrorFor(socket, ctx, ErrNotInSession)
		return
	}

	// The envelope only carries the session id; the rule engine parses the
	// game-specific move fields from the same payload.
	var env MoveEnvelope
	if len(payload) > 0 {
		json.Unmarshal(payload, &env)
	}

	res, err := c.engine.ApplyMove(c.playerID, env.SessionID, payload)
	if err != nil {
		s.sendMoveFailure(socket, ctx, c, err)
		return
	}

	// Mutation is committed; everything from here on is notification. The
	// state-changed broadcast always precedes the game-ended one, and uses
	// the view taken while the move still held the engine lock.
	update := GameUpdateMessage{
		SessionID: res.Session.ID,
		LastMove:  payload,
		State:     res.View,
	}
	for _, p := range res.Players {
		if p != nil {
			s.sendToPlayer(p.PlayerID, ServerMessage{Type: "game_update", Payload: update})
		}
	}

	if res.Outcome.Over {
		s.announceGameOver(c.engine, res)
	}
}

// sendMoveFailure resynchronizes the sender after a refused move. Turn
// violations and rule rejections echo the authoritative state snapshot;
// everything else is a plain error message.
func (s *Server) sendMoveFailure(socket *websocket.Conn, ctx context.Context, c *connState, err error) {
	var rejected *game.RejectedError
	reason := ""
	switch {
	case errors.As(err, &rejected):
		reason = rejected.Reason
	case errors.Is(err, ErrNotYourTurn):
		reason = "Not your turn"
	default:
		s.sendErrorFor(socket, ctx, err)
		return
	}

	sessionID, view, ok := c.engine.Snapshot(c.playerID)
	if !ok {
		s.sendErrorFor(socket, ctx, ErrNotInSession)
		return
	}
	s.send(socket, ctx, ServerMessage{
		Type: "move_rejected",
		Payload: MoveRejectedMessage{
			SessionID: sessionID,
			Reason:    reason,
			State:     view,
		},
	})
}

func (s *Server) handleResign(socket *websocket.Conn, ctx context.Context, c *connState) {
	if c.engine == nil {
		s.sendErrorFor(socket, ctx, ErrNotInSession)
		return
	}

	// Voluntary forfeit takes the same path as a disconnect; the only
	// difference is that the resigner's connection stays open.
	rem := c.engine.Remove(c.playerID)
	if rem == nil {
		s.sendErrorFor(socket, ctx, ErrNotInSession)
		return
	}
	log.Printf("Player %s resigned session %s", c.playerID, rem.Session.ID)
	s.notifyForfeit(c.engine, rem, "Opponent resigned")
}

// announcePairing notifies both players of a freshly paired session and
// starts it. A pairing that filled the open session instead sends
// opponent_joined to the occupant, who already knows their session id.
func (s *Server) announcePairing(engine *SessionManager, p *Pairing) {
	sess := p.Session
	matchFound := func(opponentID string, role game.Role) ServerMessage {
		return ServerMessage{
			Type: "match_found",
			Payload: MatchFoundMessage{
				SessionID:  sess.ID,
				Game:       sess.Rules.Name(),
				Role:       sess.Rules.RoleName(role),
				OpponentID: opponentID,
				Status:     string(StatusPaired),
				State:      sess.State.View(),
			},
		}
	}

	if p.FilledOpen {
		s.sendToPlayer(p.Second, matchFound(p.First, game.RoleSecond))
		s.sendToPlayer(p.First, ServerMessage{
			Type:    "opponent_joined",
			Payload: OpponentJoinedMessage{SessionID: sess.ID, OpponentID: p.Second},
		})
	} else {
		s.sendToPlayer(p.First, matchFound(p.Second, game.RoleFirst))
		s.sendToPlayer(p.Second, matchFound(p.First, game.RoleSecond))
	}

	engine.StartSession(sess.ID)
}

// announceGameOver sends each participant their result plus where the
// requeue algorithm placed them, then settles any placement that paired.
func (s *Server) announceGameOver(engine *SessionManager, res *MoveResult) {
	result := "WIN"
	if res.Outcome.Draw {
		result = "DRAW"
	}
	winnerID := WinnerID(res.Players, res.Outcome)

	for _, p := range res.Players {
		if p == nil {
			continue
		}
		msg := GameOverMessage{
			SessionID: res.Session.ID,
			Result:    result,
			Winner:    winnerID,
			Reason:    res.Outcome.Reason,
		}
		if pl := res.Placements[p.PlayerID]; pl != nil {
			msg.NextSessionID = pl.Session.ID
			msg.NextStatus = string(pl.Status)
			msg.NextRole = pl.Session.Rules.RoleName(pl.Role)
		}
		s.sendToPlayer(p.PlayerID, ServerMessage{Type: "game_over", Payload: msg})
	}

	for joiner, pl := range res.Placements {
		if pl.Status != StatusPaired {
			continue
		}
		s.sendToPlayer(pl.PairedWith, ServerMessage{
			Type:    "opponent_joined",
			Payload: OpponentJoinedMessage{SessionID: pl.Session.ID, OpponentID: joiner},
		})
		engine.StartSession(pl.Session.ID)
	}
}

// notifyForfeit tells the surviving opponent they won by forfeit and where
// they were requeued. Exactly one notification per removal: a second
// removal for the same player yields no Removal at all.
func (s *Server) notifyForfeit(engine *SessionManager, rem *Removal, reason string) {
	if rem.Opponent == "" {
		// Nobody left to notify, the session was simply torn down.
		return
	}

	msg := GameOverMessage{
		SessionID: rem.Session.ID,
		Result:    "WIN",
		Winner:    rem.Opponent,
		Reason:    reason,
	}
	if pl := rem.Placement; pl != nil {
		msg.NextSessionID = pl.Session.ID
		msg.NextStatus = string(pl.Status)
		msg.NextRole = pl.Session.Rules.RoleName(pl.Role)
	}
	s.sendToPlayer(rem.Opponent, ServerMessage{Type: "game_over", Payload: msg})

	if pl := rem.Placement; pl != nil && pl.Status == StatusPaired {
		s.sendToPlayer(pl.PairedWith, ServerMessage{
			Type:    "opponent_joined",
			Payload: OpponentJoinedMessage{SessionID: pl.Session.ID, OpponentID: rem.Opponent},
		})
		engine.StartSession(pl.Session.ID)
	}
}

func (s *Server) send(socket *websocket.Conn, ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	return socket.Write(ctx, websocket.MessageText, data)
}

// sendToPlayer is best-effort: a peer whose connection already dropped is
// logged and skipped, never escalated.
func (s *Server) sendToPlayer(playerID string, msg ServerMessage) {
	conn := s.registry.Lookup(playerID)
	if conn == nil {
		log.Printf("No connection for player %s, dropping %s", playerID, msg.Type)
		return
	}
	if err := s.send(conn, context.Background(), msg); err != nil {
		log.Printf("Failed to send %s to %s: %v", msg.Type, playerID, err)
	}
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, message, code string) {
	response := ServerMessage{
		Type: "error",
		Payload: ErrorMessage{
			Message: message,
			Code:    code,
		},
	}
	if err := s.send(socket, ctx, response); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}

func (s *Server) sendErrorFor(socket *websocket.Conn, ctx context.Context, err error) {
	s.sendError(socket, ctx, errorMessage(err), errorCode(err))
}
