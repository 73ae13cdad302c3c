package game

import (
	"crypto/subtle"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quizrally/internal/config"
	"quizrally/internal/model"
)

// Room owns one game session. Every mutation happens under mu, held for the
// full duration of the event or timer handler that triggered it; different
// rooms share no mutable state and run fully independently.
//
// Phase timers are time.AfterFunc handles guarded by a generation counter:
// transitioning out-of-band bumps the generation, so a timer that fires late
// re-checks both the generation and the phase it was scheduled for and
// becomes a no-op instead of a double transition.
type Room struct {
	code    string
	cfg     config.Game
	log     zerolog.Logger
	onClose func(code string)

	mu            sync.Mutex
	phase         Phase
	resumePhase   Phase
	hostID        string
	deck          *model.Deck
	settings      model.RoomSettings
	questionIndex int
	current       *questionInstance
	players       map[string]*Player
	order         []string
	createdAt     time.Time
	lastActive    time.Time
	phaseTimer    *time.Timer
	timerGen      uint64
	graceTimer    *time.Timer
	graceGen      uint64
	closed        bool
}

func newRoom(code string, deck *model.Deck, settings model.RoomSettings, cfg config.Game, log zerolog.Logger, onClose func(string)) *Room {
	now := time.Now()
	return &Room{
		code:          code,
		cfg:           cfg,
		log:           log.With().Str("room", code).Logger(),
		onClose:       onClose,
		phase:         PhaseLobby,
		deck:          deck,
		settings:      settings,
		questionIndex: -1,
		players:       make(map[string]*Player),
		createdAt:     now,
		lastActive:    now,
	}
}

// Code returns the room's join code. Immutable after creation.
func (r *Room) Code() string { return r.code }

// State returns the room's current phase.
func (r *Room) State() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// PlayerCount returns the number of player records, connected or not.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Expired reports whether the room should be reaped: already closed, or no
// state-changing activity within the idle threshold.
func (r *Room) Expired(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed || now.Sub(r.lastActive) > r.cfg.IdleThreshold
}

// Close cancels all pending timers and marks the room dead. Safe to call more
// than once.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

func (r *Room) closeLocked() {
	if r.closed {
		return
	}
	r.closed = true
	r.stopPhaseTimer()
	r.stopGraceTimer()
	r.log.Info().Msg("room closed")
}

func (r *Room) touch(now time.Time) {
	r.lastActive = now
}

// bindHost creates the host player record and binds the creating socket.
// Called exactly once, by the registry, right after the room is created.
func (r *Room) bindHost(conn Sender, playerID, nickname string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	host := &Player{
		ID:           playerID,
		Nickname:     nickname,
		Role:         model.RoleHost,
		ReconnectKey: newReconnectKey(),
		JoinedAt:     time.Now(),
		conn:         conn,
	}
	r.hostID = playerID
	r.players[playerID] = host
	r.order = append(r.order, playerID)

	r.sendSessionInfo(conn, host)
	r.broadcast(model.EventLobbyState, r.lobbyState())
	return host
}

// Join admits a new player. Fresh joins are only accepted in the lobby and
// while the room is paused waiting for its host; everything else is
// rejoin-only.
func (r *Room) Join(conn Sender, playerID, nickname string) (*Player, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errRoomNotFound()
	}
	if !r.phase.Accepts(model.EventJoinRoom) {
		return nil, errInvalidState("Cannot join right now")
	}

	nick := SanitizeNickname(nickname)
	if nick == "" {
		return nil, errValidation("Nickname required")
	}
	if playerID != "" {
		if _, exists := r.players[playerID]; exists {
			// Existing identities rebind only via rejoin_room with the
			// player's reconnect key.
			return nil, errUnauthorized("Player already exists; rejoin with reconnect key")
		}
	}
	if len(r.players) >= r.cfg.MaxPlayers {
		return nil, &Error{Code: model.CodeRoomFull, Message: "Room is full"}
	}
	for _, p := range r.players {
		if strings.EqualFold(p.Nickname, nick) {
			return nil, &Error{Code: model.CodeNicknameTaken, Message: "Nickname already taken"}
		}
	}

	if playerID == "" {
		playerID = "player_" + uuid.NewString()
	}
	now := time.Now()
	player := &Player{
		ID:           playerID,
		Nickname:     nick,
		Role:         model.RolePlayer,
		ReconnectKey: newReconnectKey(),
		JoinedAt:     now,
		conn:         conn,
	}
	r.players[playerID] = player
	r.order = append(r.order, playerID)
	r.touch(now)
	r.log.Info().Str("player", playerID).Msg("player joined")

	r.sendSessionInfo(conn, player)
	r.broadcast(model.EventLobbyState, r.lobbyState())
	return player, nil
}

// Rejoin rebinds a socket to an existing player identity. The caller must
// present the player's reconnect key; a mismatch (or an unknown player id) is
// rejected as unauthorized without revealing which check failed.
func (r *Room) Rejoin(conn Sender, playerID, key, nickname string) (*Player, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errRoomNotFound()
	}

	player := r.players[playerID]
	if player == nil || subtle.ConstantTimeCompare([]byte(player.ReconnectKey), []byte(key)) != 1 {
		return nil, errUnauthorized("Reconnect key mismatch")
	}

	if nickname != "" {
		if nick := SanitizeNickname(nickname); nick != "" && !r.nicknameTaken(nick, playerID) {
			player.Nickname = nick
		}
	}

	now := time.Now()
	player.conn = conn
	r.touch(now)
	r.log.Info().Str("player", playerID).Msg("player rejoined")

	if r.phase == PhasePaused && playerID == r.hostID {
		r.resumeFromPause(now)
	}

	r.sendSessionInfo(conn, player)
	r.sendTo(conn, model.EventLobbyState, r.lobbyState())
	if r.phase == PhaseQuestion && r.current != nil {
		q := r.questionPayload()
		if sub, ok := r.current.Submissions[playerID]; ok {
			q.AlreadyAnswered = true
			q.YourChoice = sub.Choice
		}
		r.sendTo(conn, model.EventQuestion, q)
	}
	r.broadcast(model.EventLobbyState, r.lobbyState())
	return player, nil
}

// Start begins a new round: scores reset, deck rewinds, first question goes
// out. Host only.
func (r *Room) Start(conn Sender, playerID string) *Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errRoomNotFound()
	}
	if !r.phase.Accepts(model.EventStartGame) {
		return errInvalidState("Cannot start game in this state")
	}
	if err := r.requireHost(conn, playerID); err != nil {
		return err
	}

	now := time.Now()
	for _, p := range r.players {
		p.Score = 0
	}
	r.questionIndex = -1
	r.touch(now)
	r.log.Info().Msg("game started")
	r.startQuestion(now)
	return nil
}

// Advance is the host's phase-aware skip: COLLECT jumps to REVEAL, REVEAL to
// LEADERBOARD, and LEADERBOARD starts the next question (or ends the game).
func (r *Room) Advance(conn Sender, playerID string) *Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errRoomNotFound()
	}
	if !r.phase.Accepts(model.EventNextQuestion) {
		return errInvalidState("Cannot advance now")
	}
	if err := r.requireHost(conn, playerID); err != nil {
		return err
	}

	now := time.Now()
	r.touch(now)
	switch r.phase {
	case PhaseCollect:
		r.enterReveal(now)
	case PhaseReveal:
		r.enterLeaderboard(now)
	default:
		r.startQuestion(now)
	}
	return nil
}

// Submit records an answer for the current question instance. The returned
// status is delivered as an answer_ack; a non-nil error takes precedence and
// is delivered as an error event instead.
func (r *Room) Submit(conn Sender, playerID, instanceID, choice string) (string, int64, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	ts := now.UnixMilli()

	if r.closed {
		return "", ts, errRoomNotFound()
	}
	if !r.phase.Accepts(model.EventSubmitAnswer) || r.current == nil {
		return "", ts, errInvalidState("Not accepting answers")
	}

	player := r.players[playerID]
	if player == nil || player.conn != conn {
		return model.AckUnauthorized, ts, nil
	}
	if instanceID != r.current.ID || !model.ValidChoice(choice) {
		return model.AckInvalid, ts, nil
	}
	if _, dup := r.current.Submissions[playerID]; dup {
		return model.AckDuplicate, ts, nil
	}
	if now.After(r.current.deadline()) {
		return model.AckTooLate, ts, nil
	}

	r.current.record(playerID, choice, now)
	r.touch(now)
	return model.AckAccepted, ts, nil
}

// HandleDisconnect clears the player binding for a dropped socket. A host
// drop mid-game pauses the room and arms the rejoin grace timer; if it fires
// before the host returns, the room notifies everyone and destroys itself.
func (r *Room) HandleDisconnect(conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	var player *Player
	for _, id := range r.order {
		if p := r.players[id]; p != nil && p.conn == conn {
			player = p
			break
		}
	}
	if player == nil {
		return
	}
	player.conn = nil
	r.log.Info().Str("player", player.ID).Msg("socket dropped")

	if player.ID == r.hostID && r.phase != PhaseLobby && r.phase != PhaseGameEnd && r.phase != PhasePaused {
		r.resumePhase = r.phase
		r.phase = PhasePaused
		r.stopPhaseTimer()
		r.broadcast(model.EventPhaseUpdate, model.PhaseUpdate{
			RoomCode:   r.code,
			State:      string(PhasePaused),
			DurationMs: r.cfg.HostGrace.Milliseconds(),
		})
		r.broadcast(model.EventLobbyState, r.lobbyState())
		r.armGraceTimer()
		return
	}
	r.broadcast(model.EventLobbyState, r.lobbyState())
}

// requireHost enforces both halves of host authorization: the socket must be
// the one currently bound to the claimed player id, and that id must be the
// room's host. Binding is checked first so an impersonation attempt reads as
// unauthorized, not as a host-role failure.
func (r *Room) requireHost(conn Sender, playerID string) *Error {
	player := r.players[playerID]
	if player == nil || player.conn != conn {
		return errUnauthorized("Socket is not bound to this player")
	}
	if playerID != r.hostID {
		return errNotHost("Only the host can do that")
	}
	return nil
}

func (r *Room) nicknameTaken(nick, selfID string) bool {
	for _, p := range r.players {
		if p.ID != selfID && strings.EqualFold(p.Nickname, nick) {
			return true
		}
	}
	return false
}

// --- phase transitions (all called with mu held) ---

func (r *Room) startQuestion(now time.Time) {
	r.questionIndex++
	if r.questionIndex >= len(r.deck.Items) {
		r.enterGameEnd(now)
		return
	}

	item := r.deck.Items[r.questionIndex]
	limit := r.timeLimitFor(item)
	r.current = newQuestionInstance(item, limit, now)
	r.phase = PhaseQuestion
	r.touch(now)

	r.broadcast(model.EventPhaseUpdate, model.PhaseUpdate{
		RoomCode:   r.code,
		State:      string(PhaseQuestion),
		DurationMs: limit.Milliseconds(),
	})
	r.broadcast(model.EventQuestion, r.questionPayload())
	r.log.Debug().Int("index", r.questionIndex).Str("instance", r.current.ID).Msg("question started")

	// Slack past the deadline so a submission racing the timer is judged by
	// its own timestamp, not by timer jitter.
	r.schedulePhaseTimer(limit+timerSlack, PhaseQuestion, r.enterCollect)
}

func (r *Room) enterCollect(now time.Time) {
	r.phase = PhaseCollect
	r.touch(now)
	r.broadcast(model.EventPhaseUpdate, model.PhaseUpdate{
		RoomCode:   r.code,
		State:      string(PhaseCollect),
		DurationMs: r.cfg.CollectDelay.Milliseconds(),
	})
	r.schedulePhaseTimer(r.cfg.CollectDelay, PhaseCollect, r.enterReveal)
}

func (r *Room) enterReveal(now time.Time) {
	r.phase = PhaseReveal
	r.touch(now)

	results := make([]model.RevealResult, 0, len(r.current.Submissions))
	for _, id := range r.order {
		player := r.players[id]
		if player == nil {
			continue
		}
		sub, ok := r.current.Submissions[id]
		if !ok {
			continue
		}
		correct := sub.Choice == r.current.Item.Correct
		points := Score(correct, sub.ReceivedAt.Sub(r.current.StartedAt), r.current.TimeLimit)
		player.Score += points
		results = append(results, model.RevealResult{
			PlayerID:      id,
			Choice:        sub.Choice,
			Correct:       correct,
			PointsAwarded: points,
			TotalScore:    player.Score,
		})
	}

	r.broadcast(model.EventPhaseUpdate, model.PhaseUpdate{
		RoomCode:   r.code,
		State:      string(PhaseReveal),
		DurationMs: r.cfg.RevealDelay.Milliseconds(),
	})
	r.broadcast(model.EventReveal, model.RevealPayload{
		RoomCode:           r.code,
		QuestionInstanceID: r.current.ID,
		Correct:            r.current.Item.Correct,
		Explanation:        r.current.Item.Explanation,
		Results:            results,
	})
	r.schedulePhaseTimer(r.cfg.RevealDelay, PhaseReveal, r.enterLeaderboard)
}

func (r *Room) enterLeaderboard(now time.Time) {
	r.phase = PhaseLeaderboard
	r.touch(now)
	isFinal := r.questionIndex == len(r.deck.Items)-1

	r.broadcast(model.EventPhaseUpdate, model.PhaseUpdate{
		RoomCode:   r.code,
		State:      string(PhaseLeaderboard),
		DurationMs: r.cfg.LeaderboardDelay.Milliseconds(),
	})
	r.broadcast(model.EventLeaderboardUpdate, model.LeaderboardPayload{
		RoomCode: r.code,
		Rankings: r.rankings(),
		IsFinal:  isFinal,
	})
	r.schedulePhaseTimer(r.cfg.LeaderboardDelay, PhaseLeaderboard, r.startQuestion)
}

func (r *Room) enterGameEnd(now time.Time) {
	r.phase = PhaseGameEnd
	r.touch(now)
	r.current = nil
	r.stopPhaseTimer()
	r.broadcast(model.EventPhaseUpdate, model.PhaseUpdate{
		RoomCode: r.code,
		State:    string(PhaseGameEnd),
	})
	r.broadcast(model.EventGameEnd, model.GameEndPayload{
		RoomCode:      r.code,
		FinalRankings: r.rankings(),
		EndedTs:       now.UnixMilli(),
	})
	r.log.Info().Msg("game ended")
}

func (r *Room) resumeFromPause(now time.Time) {
	r.stopGraceTimer()
	prev := r.resumePhase
	if prev == "" || r.current == nil {
		prev = PhaseLobby
	}
	r.phase = prev
	r.resumePhase = ""
	r.log.Info().Str("phase", string(prev)).Msg("host returned, room resumed")
	r.broadcast(model.EventPhaseUpdate, model.PhaseUpdate{
		RoomCode: r.code,
		State:    string(prev),
	})

	switch prev {
	case PhaseQuestion:
		remaining := r.current.deadline().Add(timerSlack).Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		r.schedulePhaseTimer(remaining, PhaseQuestion, r.enterCollect)
	case PhaseCollect:
		r.schedulePhaseTimer(r.cfg.CollectDelay, PhaseCollect, r.enterReveal)
	case PhaseReveal:
		r.schedulePhaseTimer(r.cfg.RevealDelay, PhaseReveal, r.enterLeaderboard)
	case PhaseLeaderboard:
		r.schedulePhaseTimer(r.cfg.LeaderboardDelay, PhaseLeaderboard, r.startQuestion)
	}
}

// --- timers ---

// schedulePhaseTimer replaces the room's pending phase timer. The callback
// re-validates the generation and the phase it was scheduled in, so a handle
// that was superseded by a manual host advance fires as a no-op.
func (r *Room) schedulePhaseTimer(d time.Duration, expect Phase, fire func(now time.Time)) {
	r.stopPhaseTimer()
	r.timerGen++
	gen := r.timerGen
	r.phaseTimer = time.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed || gen != r.timerGen || r.phase != expect {
			return
		}
		fire(time.Now())
	})
}

func (r *Room) stopPhaseTimer() {
	r.timerGen++
	if r.phaseTimer != nil {
		r.phaseTimer.Stop()
		r.phaseTimer = nil
	}
}

func (r *Room) armGraceTimer() {
	r.stopGraceTimer()
	r.graceGen++
	gen := r.graceGen
	r.graceTimer = time.AfterFunc(r.cfg.HostGrace, func() {
		r.mu.Lock()
		if r.closed || gen != r.graceGen || r.phase != PhasePaused {
			r.mu.Unlock()
			return
		}
		r.log.Info().Msg("host grace window expired")
		r.broadcast(model.EventError, model.ErrorPayload{
			Code:    model.CodeRoomClosed,
			Message: "Host did not return in time",
		})
		r.closeLocked()
		onClose := r.onClose
		code := r.code
		r.mu.Unlock()

		if onClose != nil {
			onClose(code)
		}
	})
}

func (r *Room) stopGraceTimer() {
	r.graceGen++
	if r.graceTimer != nil {
		r.graceTimer.Stop()
		r.graceTimer = nil
	}
}

// --- payload builders and fan-out (mu held) ---

func (r *Room) timeLimitFor(item model.DeckItem) time.Duration {
	sec := item.TimeLimitSec
	if r.settings.TimerSec > 0 {
		sec = r.settings.TimerSec
	}
	return clampTimeLimit(time.Duration(sec) * time.Second)
}

func (r *Room) questionPayload() model.QuestionPayload {
	return model.QuestionPayload{
		RoomCode:           r.code,
		Index:              r.questionIndex,
		Total:              len(r.deck.Items),
		QuestionInstanceID: r.current.ID,
		QuestionID:         r.current.Item.ID,
		Prompt:             r.current.Item.Question,
		Choices:            r.current.Item.Choices,
		ServerStartTs:      r.current.StartedAt.UnixMilli(),
		TimeLimitMs:        r.current.TimeLimit.Milliseconds(),
	}
}

func (r *Room) lobbyState() model.LobbyState {
	ls := model.LobbyState{
		RoomCode: r.code,
		State:    string(r.phase),
		Settings: r.settings,
		Players:  make([]model.PlayerPublic, 0, len(r.order)),
	}
	if host := r.players[r.hostID]; host != nil {
		ls.Host = &model.HostRef{PlayerID: host.ID, Nickname: host.Nickname}
	}
	for _, id := range r.order {
		if p := r.players[id]; p != nil {
			ls.Players = append(ls.Players, p.public())
		}
	}
	if r.deck != nil {
		s := r.deck.Summary()
		ls.Deck = &s
	}
	return ls
}

// rankings sorts by score descending; ties keep join order (stable sort over
// the insertion-ordered roster).
func (r *Room) rankings() []model.RankingEntry {
	entries := make([]model.RankingEntry, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		if p == nil {
			continue
		}
		entries = append(entries, model.RankingEntry{
			PlayerID: p.ID,
			Nickname: p.Nickname,
			Score:    p.Score,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func (r *Room) sendSessionInfo(conn Sender, player *Player) {
	r.sendTo(conn, model.EventSessionInfo, model.SessionInfo{
		RoomCode:     r.code,
		PlayerID:     player.ID,
		ReconnectKey: player.ReconnectKey,
	})
}

func (r *Room) sendTo(conn Sender, event string, payload any) {
	data, err := model.MarshalEnvelope(event, payload)
	if err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("marshal failed")
		return
	}
	conn.Enqueue(data)
}

// broadcast serializes once and fans out to every bound socket in the room.
// Disconnected players are skipped; a full peer buffer drops the frame for
// that peer rather than blocking the room.
func (r *Room) broadcast(event string, payload any) {
	data, err := model.MarshalEnvelope(event, payload)
	if err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("marshal failed")
		return
	}
	for _, id := range r.order {
		p := r.players[id]
		if p == nil || p.conn == nil {
			continue
		}
		p.conn.Enqueue(data)
	}
}
