package server

import "encoding/json"

// ============================================================================
// ERROR RESPONSES
// ============================================================================
// tygo:generate
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// AUTH (auth)
// ============================================================================
// tygo:generate
type AuthRequest struct {
	UserID string `json:"userId,omitempty"` // server-assigned when omitted
}

// tygo:generate
type AuthOkResponse struct {
	UserID string `json:"userId"`
}

// ============================================================================
// JOIN QUEUE (join_queue)
// ============================================================================
// tygo:generate
type JoinQueueRequest struct {
	Game string `json:"game,omitempty"` // "chess" (default) or "tictactoe"
}

// ============================================================================
// MOVE (move)
// ============================================================================
// The move descriptor itself is game-specific and parsed by the rule
// engine; the server only reads the session id off the same payload.
// tygo:generate
type MoveEnvelope struct {
	SessionID string `json:"sessionId,omitempty"`
}

// ============================================================================
// RESIGN (resign)
// ============================================================================
// tygo:generate
type ResignRequest struct {
	SessionID string `json:"sessionId,omitempty"`
}

// ============================================================================
// MATCH FOUND (match_found broadcast)
// ============================================================================
// tygo:generate
type MatchFoundMessage struct {
	SessionID  string `json:"sessionId"`
	Game       string `json:"game"`
	Role       string `json:"role"`
	OpponentID string `json:"opponentId"`
	Status     string `json:"status"`
	State      any    `json:"state"`
}

// ============================================================================
// OPPONENT JOINED (opponent_joined broadcast)
// ============================================================================
// tygo:generate
type OpponentJoinedMessage struct {
	SessionID  string `json:"sessionId"`
	OpponentID string `json:"opponentId"`
}

// ============================================================================
// GAME UPDATE (game_update broadcast)
// ============================================================================
// tygo:generate
type GameUpdateMessage struct {
	SessionID string          `json:"sessionId"`
	LastMove  json.RawMessage `json:"lastMove"`
	State     any             `json:"state"`
}

// ============================================================================
// MOVE REJECTED (move_rejected)
// ============================================================================
// State is the authoritative pre-move snapshot so the client can resync.
// tygo:generate
type MoveRejectedMessage struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
	State     any    `json:"state"`
}

// ============================================================================
// GAME OVER (game_over broadcast)
// ============================================================================
// tygo:generate
type GameOverMessage struct {
	SessionID     string `json:"sessionId"`
	Result        string `json:"result"` // "WIN" or "DRAW"
	Winner        string `json:"winner,omitempty"`
	Reason        string `json:"reason"`
	NextSessionID string `json:"nextSessionId,omitempty"`
	NextStatus    string `json:"nextStatus,omitempty"`
	NextRole      string `json:"nextRole,omitempty"`
}

// ============================================================================
// HEALTH (/health)
// ============================================================================
// tygo:generate
type HealthResponse struct {
	Status         string         `json:"status"`
	Connections    int            `json:"connections"`
	ActiveSessions map[string]int `json:"activeSessions"`
	QueueDepth     map[string]int `json:"queueDepth"`
}
