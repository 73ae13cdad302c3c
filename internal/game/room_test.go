package game

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizrally/internal/config"
	"quizrally/internal/model"
)

// fakeConn captures everything enqueued toward one peer.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeConn) Enqueue(data []byte) bool {
	f.mu.Lock()
	f.frames = append(f.frames, data)
	f.mu.Unlock()
	return true
}

// payloads returns every payload received for the named event, in order.
func (f *fakeConn) payloads(t *testing.T, event string) []json.RawMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []json.RawMessage
	for _, frame := range f.frames {
		var env model.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		if env.Event == event {
			out = append(out, env.Payload)
		}
	}
	return out
}

func (f *fakeConn) lastPayload(t *testing.T, event string, v any) bool {
	t.Helper()
	ps := f.payloads(t, event)
	if len(ps) == 0 {
		return false
	}
	require.NoError(t, json.Unmarshal(ps[len(ps)-1], v))
	return true
}

func testGameConfig() config.Game {
	return config.Game{
		HostGrace:        time.Minute,
		IdleThreshold:    10 * time.Minute,
		ReapInterval:     time.Minute,
		CollectDelay:     time.Minute,
		RevealDelay:      time.Minute,
		LeaderboardDelay: time.Minute,
		MaxPlayers:       4,
	}
}

func testDeck() *model.Deck {
	return &model.Deck{
		ID:    "test_deck",
		Title: "Test Deck",
		Items: []model.DeckItem{
			{
				ID:       "q1",
				Question: "First?",
				Choices:  model.Choices{A: "a", B: "b", C: "c", D: "d"},
				Correct:  "A",

				TimeLimitSec: 20,
			},
			{
				ID:           "q2",
				Question:     "Second?",
				Choices:      model.Choices{A: "a", B: "b", C: "c", D: "d"},
				Correct:      "C",
				TimeLimitSec: 20,
			},
		},
	}
}

func newTestRoom(t *testing.T, cfg config.Game) (*Room, *fakeConn, *Player) {
	t.Helper()
	hostConn := &fakeConn{}
	room := newRoom("ABCDE", testDeck(), model.RoomSettings{GameMode: "classic"}, cfg, zerolog.Nop(), nil)
	host := room.bindHost(hostConn, "host_1", "Quizmaster")
	t.Cleanup(room.Close)
	return room, hostConn, host
}

func join(t *testing.T, room *Room, nickname string) (*fakeConn, *Player) {
	t.Helper()
	conn := &fakeConn{}
	player, gerr := room.Join(conn, "", nickname)
	require.Nil(t, gerr)
	return conn, player
}

func TestJoinBroadcastsRoster(t *testing.T) {
	room, hostConn, host := newTestRoom(t, testGameConfig())
	conn, player := join(t, room, "alice")

	var session model.SessionInfo
	require.True(t, conn.lastPayload(t, model.EventSessionInfo, &session))
	assert.Equal(t, "ABCDE", session.RoomCode)
	assert.Equal(t, player.ID, session.PlayerID)
	assert.GreaterOrEqual(t, len(session.ReconnectKey), model.MinReconnectKeyLen)

	var lobby model.LobbyState
	require.True(t, hostConn.lastPayload(t, model.EventLobbyState, &lobby))
	assert.Equal(t, string(PhaseLobby), lobby.State)
	require.NotNil(t, lobby.Host)
	assert.Equal(t, host.ID, lobby.Host.PlayerID)
	require.Len(t, lobby.Players, 2)
	assert.Equal(t, "alice", lobby.Players[1].Nickname)
	require.NotNil(t, lobby.Deck)
	assert.Equal(t, 2, lobby.Deck.Count)
}

func TestJoinSanitizesNickname(t *testing.T) {
	room, _, _ := newTestRoom(t, testGameConfig())
	conn := &fakeConn{}

	player, gerr := room.Join(conn, "", "  <b>bob</b>!  ")
	require.Nil(t, gerr)
	assert.Equal(t, "bbobb", player.Nickname)
}

func TestJoinRejectsDuplicateNickname(t *testing.T) {
	room, _, _ := newTestRoom(t, testGameConfig())
	join(t, room, "alice")

	_, gerr := room.Join(&fakeConn{}, "", "ALICE")
	require.NotNil(t, gerr)
	assert.Equal(t, model.CodeNicknameTaken, gerr.Code)
}

func TestJoinRejectsExistingPlayerID(t *testing.T) {
	room, _, _ := newTestRoom(t, testGameConfig())
	_, player := join(t, room, "alice")

	_, gerr := room.Join(&fakeConn{}, player.ID, "mallory")
	require.NotNil(t, gerr)
	assert.Equal(t, model.CodeUnauthorized, gerr.Code)
}

func TestJoinRejectsWhenFull(t *testing.T) {
	cfg := testGameConfig()
	cfg.MaxPlayers = 2
	room, _, _ := newTestRoom(t, cfg)
	join(t, room, "alice")

	_, gerr := room.Join(&fakeConn{}, "", "bob")
	require.NotNil(t, gerr)
	assert.Equal(t, model.CodeRoomFull, gerr.Code)
}

func TestStartRequiresHost(t *testing.T) {
	room, hostConn, host := newTestRoom(t, testGameConfig())
	conn, player := join(t, room, "alice")

	gerr := room.Start(conn, player.ID)
	require.NotNil(t, gerr)
	assert.Equal(t, model.CodeNotHost, gerr.Code)

	// A foreign socket claiming the host id fails the binding check.
	gerr = room.Start(&fakeConn{}, host.ID)
	require.NotNil(t, gerr)
	assert.Equal(t, model.CodeUnauthorized, gerr.Code)

	require.Nil(t, room.Start(hostConn, host.ID))
	assert.Equal(t, PhaseQuestion, room.State())
}

func TestStartBroadcastsQuestion(t *testing.T) {
	room, hostConn, host := newTestRoom(t, testGameConfig())
	conn, _ := join(t, room, "alice")
	require.Nil(t, room.Start(hostConn, host.ID))

	var q model.QuestionPayload
	require.True(t, conn.lastPayload(t, model.EventQuestion, &q))
	assert.Equal(t, 0, q.Index)
	assert.Equal(t, 2, q.Total)
	assert.Equal(t, "q1", q.QuestionID)
	assert.NotEmpty(t, q.QuestionInstanceID)
	assert.Equal(t, int64(20000), q.TimeLimitMs)
	assert.Empty(t, q.YourChoice)
}

func TestSubmitLifecycle(t *testing.T) {
	room, hostConn, host := newTestRoom(t, testGameConfig())
	conn, player := join(t, room, "alice")
	require.Nil(t, room.Start(hostConn, host.ID))

	var q model.QuestionPayload
	require.True(t, conn.lastPayload(t, model.EventQuestion, &q))

	// Unknown socket for this player id.
	status, _, gerr := room.Submit(&fakeConn{}, player.ID, q.QuestionInstanceID, "A")
	require.Nil(t, gerr)
	assert.Equal(t, model.AckUnauthorized, status)

	// Stale instance id.
	status, _, gerr = room.Submit(conn, player.ID, "qinst_bogus", "A")
	require.Nil(t, gerr)
	assert.Equal(t, model.AckInvalid, status)

	status, _, gerr = room.Submit(conn, player.ID, q.QuestionInstanceID, "A")
	require.Nil(t, gerr)
	assert.Equal(t, model.AckAccepted, status)

	// The first accepted answer is final.
	status, _, gerr = room.Submit(conn, player.ID, q.QuestionInstanceID, "B")
	require.Nil(t, gerr)
	assert.Equal(t, model.AckDuplicate, status)
}

func TestSubmitTooLate(t *testing.T) {
	room, hostConn, host := newTestRoom(t, testGameConfig())
	conn, player := join(t, room, "alice")
	require.Nil(t, room.Start(hostConn, host.ID))

	var q model.QuestionPayload
	require.True(t, conn.lastPayload(t, model.EventQuestion, &q))

	room.mu.Lock()
	room.current.StartedAt = time.Now().Add(-room.current.TimeLimit - time.Second)
	room.mu.Unlock()

	status, _, gerr := room.Submit(conn, player.ID, q.QuestionInstanceID, "A")
	require.Nil(t, gerr)
	assert.Equal(t, model.AckTooLate, status)
}

func TestSubmitOutsideQuestionPhase(t *testing.T) {
	room, _, _ := newTestRoom(t, testGameConfig())
	conn, player := join(t, room, "alice")

	_, _, gerr := room.Submit(conn, player.ID, "qinst_x", "A")
	require.NotNil(t, gerr)
	assert.Equal(t, model.CodeInvalidState, gerr.Code)
}

func TestFullGameCycle(t *testing.T) {
	room, hostConn, host := newTestRoom(t, testGameConfig())
	aliceConn, alice := join(t, room, "alice")
	bobConn, bob := join(t, room, "bob")
	require.Nil(t, room.Start(hostConn, host.ID))

	var q model.QuestionPayload
	require.True(t, aliceConn.lastPayload(t, model.EventQuestion, &q))

	status, _, _ := room.Submit(aliceConn, alice.ID, q.QuestionInstanceID, "A")
	assert.Equal(t, model.AckAccepted, status)
	status, _, _ = room.Submit(bobConn, bob.ID, q.QuestionInstanceID, "B")
	assert.Equal(t, model.AckAccepted, status)

	room.mu.Lock()
	room.enterCollect(time.Now())
	room.mu.Unlock()
	assert.Equal(t, PhaseCollect, room.State())

	// Host skips the collect window.
	require.Nil(t, room.Advance(hostConn, host.ID))
	assert.Equal(t, PhaseReveal, room.State())

	var reveal model.RevealPayload
	require.True(t, aliceConn.lastPayload(t, model.EventReveal, &reveal))
	assert.Equal(t, "A", reveal.Correct)
	require.Len(t, reveal.Results, 2)

	byPlayer := map[string]model.RevealResult{}
	for _, res := range reveal.Results {
		byPlayer[res.PlayerID] = res
	}
	assert.True(t, byPlayer[alice.ID].Correct)
	assert.GreaterOrEqual(t, byPlayer[alice.ID].PointsAwarded, 500)
	assert.False(t, byPlayer[bob.ID].Correct)
	assert.Equal(t, 0, byPlayer[bob.ID].PointsAwarded)

	require.Nil(t, room.Advance(hostConn, host.ID))
	assert.Equal(t, PhaseLeaderboard, room.State())

	var lb model.LeaderboardPayload
	require.True(t, bobConn.lastPayload(t, model.EventLeaderboardUpdate, &lb))
	assert.False(t, lb.IsFinal)
	require.GreaterOrEqual(t, len(lb.Rankings), 2)
	assert.Equal(t, alice.ID, lb.Rankings[0].PlayerID)
	assert.Equal(t, 1, lb.Rankings[0].Rank)

	// Next question.
	require.Nil(t, room.Advance(hostConn, host.ID))
	assert.Equal(t, PhaseQuestion, room.State())
	require.True(t, aliceConn.lastPayload(t, model.EventQuestion, &q))
	assert.Equal(t, 1, q.Index)
	assert.Equal(t, "q2", q.QuestionID)

	room.mu.Lock()
	room.enterCollect(time.Now())
	room.mu.Unlock()
	require.Nil(t, room.Advance(hostConn, host.ID))
	require.Nil(t, room.Advance(hostConn, host.ID))

	require.True(t, bobConn.lastPayload(t, model.EventLeaderboardUpdate, &lb))
	assert.True(t, lb.IsFinal)

	// Advancing past the final leaderboard ends the game.
	require.Nil(t, room.Advance(hostConn, host.ID))
	assert.Equal(t, PhaseGameEnd, room.State())

	var end model.GameEndPayload
	require.True(t, aliceConn.lastPayload(t, model.EventGameEnd, &end))
	require.GreaterOrEqual(t, len(end.FinalRankings), 2)
	assert.Equal(t, alice.ID, end.FinalRankings[0].PlayerID)
	assert.NotZero(t, end.EndedTs)
}

func TestRestartResetsScores(t *testing.T) {
	room, hostConn, host := newTestRoom(t, testGameConfig())
	conn, player := join(t, room, "alice")
	require.Nil(t, room.Start(hostConn, host.ID))

	var q model.QuestionPayload
	require.True(t, conn.lastPayload(t, model.EventQuestion, &q))
	room.Submit(conn, player.ID, q.QuestionInstanceID, "A")

	room.mu.Lock()
	room.enterCollect(time.Now())
	room.enterReveal(time.Now())
	room.mu.Unlock()
	assert.Greater(t, player.Score, 0)

	room.mu.Lock()
	room.phase = PhaseGameEnd
	room.mu.Unlock()

	require.Nil(t, room.Start(hostConn, host.ID))
	assert.Equal(t, 0, player.Score)

	require.True(t, conn.lastPayload(t, model.EventQuestion, &q))
	assert.Equal(t, 0, q.Index)
}

func TestRejoinRestoresSessionAndSnapshot(t *testing.T) {
	room, hostConn, host := newTestRoom(t, testGameConfig())
	conn, player := join(t, room, "alice")
	key := player.ReconnectKey
	require.Nil(t, room.Start(hostConn, host.ID))

	var q model.QuestionPayload
	require.True(t, conn.lastPayload(t, model.EventQuestion, &q))
	room.Submit(conn, player.ID, q.QuestionInstanceID, "B")

	room.HandleDisconnect(conn)
	assert.False(t, player.Connected())

	fresh := &fakeConn{}
	rejoined, gerr := room.Rejoin(fresh, player.ID, key, "")
	require.Nil(t, gerr)
	assert.Same(t, player, rejoined)
	assert.True(t, player.Connected())

	var snap model.QuestionPayload
	require.True(t, fresh.lastPayload(t, model.EventQuestion, &snap))
	assert.Equal(t, q.QuestionInstanceID, snap.QuestionInstanceID)
	assert.True(t, snap.AlreadyAnswered)
	assert.Equal(t, "B", snap.YourChoice)
}

func TestRejoinRejectsBadKey(t *testing.T) {
	room, _, _ := newTestRoom(t, testGameConfig())
	_, player := join(t, room, "alice")

	_, gerr := room.Rejoin(&fakeConn{}, player.ID, "wrong-key-wrong-key", "")
	require.NotNil(t, gerr)
	assert.Equal(t, model.CodeUnauthorized, gerr.Code)

	_, gerr = room.Rejoin(&fakeConn{}, "player_unknown", player.ReconnectKey, "")
	require.NotNil(t, gerr)
	assert.Equal(t, model.CodeUnauthorized, gerr.Code)
}

func TestHostDisconnectPausesAndResumes(t *testing.T) {
	room, hostConn, host := newTestRoom(t, testGameConfig())
	conn, player := join(t, room, "alice")
	require.Nil(t, room.Start(hostConn, host.ID))

	var q model.QuestionPayload
	require.True(t, conn.lastPayload(t, model.EventQuestion, &q))

	room.HandleDisconnect(hostConn)
	assert.Equal(t, PhasePaused, room.State())

	var pu model.PhaseUpdate
	require.True(t, conn.lastPayload(t, model.EventPhaseUpdate, &pu))
	assert.Equal(t, string(PhasePaused), pu.State)

	// Submissions are rejected while paused.
	_, _, gerr := room.Submit(conn, player.ID, q.QuestionInstanceID, "A")
	require.NotNil(t, gerr)
	assert.Equal(t, model.CodeInvalidState, gerr.Code)

	fresh := &fakeConn{}
	_, gerr = room.Rejoin(fresh, host.ID, host.ReconnectKey, "")
	require.Nil(t, gerr)
	assert.Equal(t, PhaseQuestion, room.State())

	// The same question instance is still live after the resume.
	status, _, gerr := room.Submit(conn, player.ID, q.QuestionInstanceID, "A")
	require.Nil(t, gerr)
	assert.Equal(t, model.AckAccepted, status)
}

func TestPlayerDisconnectDoesNotPause(t *testing.T) {
	room, hostConn, host := newTestRoom(t, testGameConfig())
	conn, player := join(t, room, "alice")
	require.Nil(t, room.Start(hostConn, host.ID))

	room.HandleDisconnect(conn)
	assert.Equal(t, PhaseQuestion, room.State())
	assert.False(t, player.Connected())

	var lobby model.LobbyState
	require.True(t, hostConn.lastPayload(t, model.EventLobbyState, &lobby))
	assert.False(t, lobby.Players[1].Connected)
	assert.True(t, host.Connected())
}

func TestHostGraceExpiryClosesRoom(t *testing.T) {
	cfg := testGameConfig()
	cfg.HostGrace = 30 * time.Millisecond

	closed := make(chan string, 1)
	hostConn := &fakeConn{}
	room := newRoom("ABCDE", testDeck(), model.RoomSettings{}, cfg, zerolog.Nop(), func(code string) {
		closed <- code
	})
	host := room.bindHost(hostConn, "host_1", "Quizmaster")
	conn, _ := join(t, room, "alice")
	require.Nil(t, room.Start(hostConn, host.ID))

	room.HandleDisconnect(hostConn)
	assert.Equal(t, PhasePaused, room.State())

	select {
	case code := <-closed:
		assert.Equal(t, "ABCDE", code)
	case <-time.After(2 * time.Second):
		t.Fatal("grace expiry never fired")
	}

	var errPayload model.ErrorPayload
	require.True(t, conn.lastPayload(t, model.EventError, &errPayload))
	assert.Equal(t, model.CodeRoomClosed, errPayload.Code)
	assert.True(t, room.Expired(time.Now()))
}

func TestHostReturnCancelsGrace(t *testing.T) {
	cfg := testGameConfig()
	cfg.HostGrace = 50 * time.Millisecond

	closed := make(chan string, 1)
	hostConn := &fakeConn{}
	room := newRoom("ABCDE", testDeck(), model.RoomSettings{}, cfg, zerolog.Nop(), func(code string) {
		closed <- code
	})
	host := room.bindHost(hostConn, "host_1", "Quizmaster")
	t.Cleanup(room.Close)
	require.Nil(t, room.Start(hostConn, host.ID))

	room.HandleDisconnect(hostConn)
	fresh := &fakeConn{}
	_, gerr := room.Rejoin(fresh, host.ID, host.ReconnectKey, "")
	require.Nil(t, gerr)

	select {
	case <-closed:
		t.Fatal("grace fired after host returned")
	case <-time.After(150 * time.Millisecond):
	}
	assert.Equal(t, PhaseQuestion, room.State())
}

func TestTimerTransitionsRefreshActivity(t *testing.T) {
	room, hostConn, host := newTestRoom(t, testGameConfig())
	join(t, room, "alice")
	require.Nil(t, room.Start(hostConn, host.ID))

	// A game advancing purely on timers, with nobody sending events, must
	// still count as activity so the reaper never destroys a live room.
	transitions := []func(time.Time){
		room.enterCollect,
		room.enterReveal,
		room.enterLeaderboard,
		room.startQuestion,
		room.enterGameEnd,
	}
	for i, fire := range transitions {
		stale := time.Now().Add(-room.cfg.IdleThreshold - time.Hour)
		room.mu.Lock()
		room.lastActive = stale
		fire(time.Now())
		room.mu.Unlock()
		assert.False(t, room.Expired(time.Now()), "transition %d left the room reapable", i)
	}
}

func TestSanitizeNickname(t *testing.T) {
	assert.Equal(t, "alice", SanitizeNickname("alice"))
	assert.Equal(t, "a-b c", SanitizeNickname("  a-b c  "))
	assert.Equal(t, "scriptxss", SanitizeNickname("<script>xss</script>"))
	assert.Equal(t, "", SanitizeNickname("!!!"))
	assert.Len(t, SanitizeNickname("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), maxNicknameLen)
}
