package model

import "errors"

// Role of a joining participant.
const (
	RoleHost   = "host"
	RolePlayer = "player"
)

// MinReconnectKeyLen is enforced at the protocol boundary so obviously bogus
// keys never reach room logic.
const MinReconnectKeyLen = 16

// RoomSettings are the per-room game options chosen by the host at creation.
type RoomSettings struct {
	GameMode string `json:"gameMode"`
	TimerSec int    `json:"timerSec"`
}

// JoinRoomPayload is the inbound payload for join_room. Hosts carry a deck
// reference (or an inline imported deck) plus settings; players carry a room code.
type JoinRoomPayload struct {
	Role     string        `json:"role"`
	RoomCode string        `json:"roomCode,omitempty"`
	PlayerID string        `json:"playerId,omitempty"`
	Nickname string        `json:"nickname"`
	DeckID   string        `json:"deckId,omitempty"`
	Deck     *ImportedDeck `json:"deck,omitempty"`
	GameMode string        `json:"gameMode,omitempty"`
	TimerSec int           `json:"timerSec,omitempty"`
}

func (p *JoinRoomPayload) Validate() error {
	if p.Role != RoleHost && p.Role != RolePlayer {
		return errors.New("role must be host or player")
	}
	if p.Role == RoleHost && p.DeckID == "" && p.Deck == nil {
		return errors.New("host must provide deckId or deck")
	}
	if p.Role == RolePlayer && p.RoomCode == "" {
		return errors.New("roomCode required")
	}
	return nil
}

// RejoinRoomPayload is the inbound payload for rejoin_room.
type RejoinRoomPayload struct {
	RoomCode     string `json:"roomCode"`
	PlayerID     string `json:"playerId"`
	ReconnectKey string `json:"reconnectKey"`
	Nickname     string `json:"nickname,omitempty"`
}

func (p *RejoinRoomPayload) Validate() error {
	if p.RoomCode == "" || p.PlayerID == "" {
		return errors.New("roomCode and playerId required")
	}
	if len(p.ReconnectKey) < MinReconnectKeyLen {
		return errors.New("reconnectKey too short")
	}
	return nil
}

// StartGamePayload is the inbound payload for start_game (host only).
type StartGamePayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

func (p *StartGamePayload) Validate() error {
	if p.RoomCode == "" || p.PlayerID == "" {
		return errors.New("roomCode and playerId required")
	}
	return nil
}

// SubmitAnswerPayload is the inbound payload for submit_answer.
type SubmitAnswerPayload struct {
	RoomCode           string `json:"roomCode"`
	PlayerID           string `json:"playerId"`
	QuestionInstanceID string `json:"questionInstanceId"`
	Choice             string `json:"choice"`
}

func (p *SubmitAnswerPayload) Validate() error {
	if p.RoomCode == "" || p.PlayerID == "" || p.QuestionInstanceID == "" {
		return errors.New("roomCode, playerId and questionInstanceId required")
	}
	if !ValidChoice(p.Choice) {
		return errors.New("choice must be one of A, B, C, D")
	}
	return nil
}

// NextQuestionPayload is the inbound payload for next_question (host only).
type NextQuestionPayload struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

func (p *NextQuestionPayload) Validate() error {
	if p.RoomCode == "" || p.PlayerID == "" {
		return errors.New("roomCode and playerId required")
	}
	return nil
}

// PingPayload echoes a client timestamp for latency measurement.
type PingPayload struct {
	Ts int64 `json:"ts"`
}

// SessionInfo is sent to a socket right after a successful bind. It always
// carries the player's current reconnect key.
type SessionInfo struct {
	RoomCode     string `json:"roomCode"`
	PlayerID     string `json:"playerId"`
	ReconnectKey string `json:"reconnectKey"`
}

// PlayerPublic is the roster view of a player, safe to broadcast.
type PlayerPublic struct {
	PlayerID  string `json:"playerId"`
	Nickname  string `json:"nickname"`
	Connected bool   `json:"connected"`
	Score     int    `json:"score"`
	Role      string `json:"role"`
}

// HostRef identifies the room host in lobby broadcasts.
type HostRef struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
}

// LobbyState is the full room snapshot broadcast on membership changes.
type LobbyState struct {
	RoomCode string         `json:"roomCode"`
	State    string         `json:"state"`
	Host     *HostRef       `json:"host"`
	Players  []PlayerPublic `json:"players"`
	Deck     *DeckSummary   `json:"deck"`
	Settings RoomSettings   `json:"settings"`
}

// QuestionPayload announces an active question. Correct answer and explanation
// are withheld until reveal. AlreadyAnswered/YourChoice are set only on the
// targeted snapshot a rejoining player receives.
type QuestionPayload struct {
	RoomCode           string  `json:"roomCode"`
	Index              int     `json:"index"`
	Total              int     `json:"total"`
	QuestionInstanceID string  `json:"questionInstanceId"`
	QuestionID         string  `json:"questionId"`
	Prompt             string  `json:"prompt"`
	Choices            Choices `json:"choices"`
	ServerStartTs      int64   `json:"serverStartTs"`
	TimeLimitMs        int64   `json:"timeLimitMs"`
	AlreadyAnswered    bool    `json:"alreadyAnswered,omitempty"`
	YourChoice         string  `json:"yourChoice,omitempty"`
}

// AnswerAck acknowledges a submit_answer to the submitting socket only.
type AnswerAck struct {
	RoomCode           string `json:"roomCode"`
	QuestionInstanceID string `json:"questionInstanceId"`
	Status             string `json:"status"`
	ReceivedTs         int64  `json:"receivedTs"`
}

// PhaseUpdate announces a phase change and how long it will last.
type PhaseUpdate struct {
	RoomCode   string `json:"roomCode"`
	State      string `json:"state"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// RevealResult is one player's outcome within a reveal broadcast.
type RevealResult struct {
	PlayerID      string `json:"playerId"`
	Choice        string `json:"choice"`
	Correct       bool   `json:"correct"`
	PointsAwarded int    `json:"pointsAwarded"`
	TotalScore    int    `json:"totalScore"`
}

// RevealPayload discloses the correct choice and per-player outcomes.
type RevealPayload struct {
	RoomCode           string         `json:"roomCode"`
	QuestionInstanceID string         `json:"questionInstanceId"`
	Correct            string         `json:"correct"`
	Explanation        string         `json:"explanation"`
	Results            []RevealResult `json:"results"`
}

// RankingEntry is one row of a leaderboard.
type RankingEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// LeaderboardPayload is broadcast after each reveal.
type LeaderboardPayload struct {
	RoomCode string         `json:"roomCode"`
	Rankings []RankingEntry `json:"rankings"`
	IsFinal  bool           `json:"isFinal"`
}

// GameEndPayload carries the final rankings once the deck is exhausted.
type GameEndPayload struct {
	RoomCode      string         `json:"roomCode"`
	FinalRankings []RankingEntry `json:"finalRankings"`
	EndedTs       int64          `json:"endedTs"`
}

// PongPayload echoes the client timestamp alongside the server clock.
type PongPayload struct {
	Ts       int64 `json:"ts"`
	ServerTs int64 `json:"serverTs"`
}

// ErrorPayload is the generic rejection event.
type ErrorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
