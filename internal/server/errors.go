package server

import (
	"errors"
	"strings"
)

// Error taxonomy for the wire. Every error carries a machine code prefix
// followed by a human-readable message; all of them are recoverable and are
// only ever reported to the offending sender.
var (
	ErrAuthRequired   = errors.New("AUTH_REQUIRED: First message must be auth")
	ErrAlreadyAuthed  = errors.New("ALREADY_AUTHENTICATED: Connection already authenticated")
	ErrUnknownGame    = errors.New("UNKNOWN_GAME: No such game variant")
	ErrRoomFull       = errors.New("ROOM_FULL: Session already has two players")
	ErrNotInSession   = errors.New("NOT_IN_SESSION: No active game session")
	ErrNotYourTurn    = errors.New("NOT_YOUR_TURN: Not your turn")
	ErrGameNotStarted = errors.New("GAME_NOT_STARTED: Game has not started yet")
	ErrGameFinished   = errors.New("GAME_FINISHED: Session already finished")
	ErrPlayerNotFound = errors.New("PLAYER_NOT_FOUND: No connection for player")
	ErrRateLimited    = errors.New("RATE_LIMITED: Too many messages, slow down")
)

// errorCode extracts the "CODE" half of a "CODE: message" error. Errors
// without a code prefix report as SERVER_ERROR.
func errorCode(err error) string {
	msg := err.Error()
	idx := strings.Index(msg, ":")
	if idx <= 0 {
		return "SERVER_ERROR"
	}
	code := msg[:idx]
	if strings.ContainsAny(code, " \t") {
		return "SERVER_ERROR"
	}
	return code
}

// errorMessage extracts the human-readable half of a "CODE: message" error.
func errorMessage(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx > 0 && !strings.ContainsAny(msg[:idx], " \t") {
		return msg[idx+2:]
	}
	return msg
}
