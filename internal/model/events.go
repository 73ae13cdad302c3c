package model

import "encoding/json"

// Client -> server event names.
const (
	EventJoinRoom     = "join_room"
	EventRejoinRoom   = "rejoin_room"
	EventStartGame    = "start_game"
	EventSubmitAnswer = "submit_answer"
	EventNextQuestion = "next_question"
	EventPing         = "ping"
)

// Server -> client event names.
const (
	EventSessionInfo       = "session_info"
	EventLobbyState        = "lobby_state"
	EventQuestion          = "question"
	EventAnswerAck         = "answer_ack"
	EventPhaseUpdate       = "phase_update"
	EventReveal            = "reveal"
	EventLeaderboardUpdate = "leaderboard_update"
	EventGameEnd           = "game_end"
	EventPong              = "pong"
	EventError             = "error"
)

// ClientEvents is the closed set of inbound event names. Anything outside it
// is rejected before payload parsing.
var ClientEvents = map[string]bool{
	EventJoinRoom:     true,
	EventRejoinRoom:   true,
	EventStartGame:    true,
	EventSubmitAnswer: true,
	EventNextQuestion: true,
	EventPing:         true,
}

// Envelope is the wire frame for both directions: {event, payload, ts}.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ts      int64           `json:"ts,omitempty"`
}

// Error codes delivered in error payloads.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeRoomNotFound    = "ROOM_NOT_FOUND"
	CodeInvalidState    = "INVALID_STATE"
	CodeNotHost         = "NOT_HOST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeRoomFull        = "ROOM_FULL"
	CodeNicknameTaken   = "NICKNAME_TAKEN"
	CodeRateLimited     = "RATE_LIMITED"
	CodeMessageTooLarge = "MESSAGE_TOO_LARGE"
	CodeFeatureDisabled = "FEATURE_DISABLED"
	CodeRoomClosed      = "ROOM_CLOSED"
)

// Answer acknowledgment statuses. Delivered on answer_ack so clients can tell
// a throttled submit apart from an invalid one.
const (
	AckAccepted     = "accepted"
	AckDuplicate    = "duplicate"
	AckInvalid      = "invalid"
	AckTooLate      = "too_late"
	AckRateLimited  = "rate_limited"
	AckUnauthorized = "unauthorized"
)
