package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quizrally/internal/catalog"
	"quizrally/internal/config"
	"quizrally/internal/game"
	"quizrally/internal/metrics"
	"quizrally/internal/model"
	"quizrally/internal/ratelimit"
)

const catalogTimeout = 3 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Server owns the websocket endpoint: it upgrades connections, runs their
// pumps, and dispatches every inbound frame to the room layer.
type Server struct {
	registry *game.Registry
	decks    catalog.Catalog
	hub      *Hub
	sink     metrics.Sink
	flags    config.Flags
	policies map[ratelimit.Category]ratelimit.Policy
	log      zerolog.Logger
}

func NewServer(registry *game.Registry, decks catalog.Catalog, hub *Hub, sink metrics.Sink, flags config.Flags, log zerolog.Logger) *Server {
	return &Server{
		registry: registry,
		decks:    decks,
		hub:      hub,
		sink:     sink,
		flags:    flags,
		policies: ratelimit.DefaultPolicies(),
		log:      log,
	}
}

// ServeWS handles GET /ws.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(wsConn, s.log)
	s.hub.add(c)
	go c.writePump()
	s.readPump(c)
}

// readPump drives the connection: one frame in, one dispatch, under the
// connection's own goroutine. Room handlers run inline here, so a single
// socket can never have two of its events in flight at once.
func (s *Server) readPump(c *client) {
	defer func() {
		s.hub.remove(c)
		c.shutdown()
		if c.roomCode != "" {
			if room, ok := s.registry.Lookup(c.roomCode); ok {
				room.HandleDisconnect(c)
			}
		}
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	limiter := ratelimit.New(s.policies)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				s.sendError(c, model.CodeMessageTooLarge, "Frame exceeds size limit")
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		s.dispatch(c, limiter, data)
	}
}

func (s *Server) dispatch(c *client, limiter *ratelimit.Limiter, data []byte) {
	now := time.Now()
	if !limiter.Allow(ratelimit.CategoryMessage, now) {
		s.sendError(c, model.CodeRateLimited, "Too many messages")
		return
	}

	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
		s.sendError(c, model.CodeValidation, "Malformed envelope")
		return
	}
	if !model.ClientEvents[env.Event] {
		s.sendError(c, model.CodeValidation, "Unknown event: "+env.Event)
		return
	}

	s.sink.RecordMessage(env.Event)
	start := time.Now()
	defer func() {
		s.sink.RecordHandlerDuration(time.Since(start))
	}()

	switch env.Event {
	case model.EventPing:
		s.handlePing(c, env.Payload)
	case model.EventJoinRoom:
		s.handleJoin(c, limiter, env.Payload, now)
	case model.EventRejoinRoom:
		s.handleRejoin(c, limiter, env.Payload, now)
	case model.EventStartGame:
		s.handleStart(c, env.Payload)
	case model.EventSubmitAnswer:
		s.handleSubmit(c, limiter, env.Payload, now)
	case model.EventNextQuestion:
		s.handleNext(c, env.Payload)
	}
}

func (s *Server) handlePing(c *client, raw json.RawMessage) {
	var p model.PingPayload
	if len(raw) > 0 {
		json.Unmarshal(raw, &p)
	}
	s.send(c, model.EventPong, model.PongPayload{Ts: p.Ts, ServerTs: time.Now().UnixMilli()})
}

func (s *Server) handleJoin(c *client, limiter *ratelimit.Limiter, raw json.RawMessage, now time.Time) {
	if !limiter.Allow(ratelimit.CategoryJoin, now) {
		s.sendError(c, model.CodeRateLimited, "Too many join attempts")
		return
	}
	if !s.flags.Multiplayer {
		s.sendError(c, model.CodeFeatureDisabled, "Multiplayer is disabled")
		return
	}

	var p model.JoinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.sendError(c, model.CodeValidation, "Malformed join_room payload")
		return
	}
	if err := p.Validate(); err != nil {
		s.sendError(c, model.CodeValidation, err.Error())
		return
	}
	if c.roomCode != "" {
		s.sendError(c, model.CodeInvalidState, "Connection already bound to a room")
		return
	}

	if p.Role == model.RoleHost {
		s.handleHostJoin(c, &p)
		return
	}

	room, ok := s.registry.Lookup(p.RoomCode)
	if !ok {
		s.sendError(c, model.CodeRoomNotFound, "Room not found")
		return
	}
	player, gerr := room.Join(c, p.PlayerID, p.Nickname)
	if gerr != nil {
		s.sendError(c, gerr.Code, gerr.Message)
		return
	}
	c.roomCode = room.Code()
	c.playerID = player.ID
}

func (s *Server) handleHostJoin(c *client, p *model.JoinRoomPayload) {
	deck, gerr := s.resolveDeck(p)
	if gerr != nil {
		s.sendError(c, gerr.Code, gerr.Message)
		return
	}

	settings := model.RoomSettings{GameMode: p.GameMode, TimerSec: p.TimerSec}
	if settings.GameMode == "" {
		settings.GameMode = "classic"
	}
	room, host, gerr := s.registry.CreateRoom(c, p.PlayerID, p.Nickname, deck, settings)
	if gerr != nil {
		s.sendError(c, gerr.Code, gerr.Message)
		return
	}
	c.roomCode = room.Code()
	c.playerID = host.ID
}

func (s *Server) resolveDeck(p *model.JoinRoomPayload) (*model.Deck, *game.Error) {
	if p.Deck != nil {
		deck, ok := model.NormalizeImported(p.Deck)
		if !ok {
			return nil, &game.Error{Code: model.CodeValidation, Message: "Imported deck has no playable questions"}
		}
		return deck, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
	defer cancel()
	deck, err := s.decks.Lookup(ctx, p.DeckID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &game.Error{Code: model.CodeValidation, Message: "Unknown deckId"}
		}
		s.log.Error().Err(err).Str("deck", p.DeckID).Msg("catalog lookup failed")
		return nil, &game.Error{Code: model.CodeValidation, Message: "Deck lookup failed"}
	}
	return deck, nil
}

func (s *Server) handleRejoin(c *client, limiter *ratelimit.Limiter, raw json.RawMessage, now time.Time) {
	if !limiter.Allow(ratelimit.CategoryJoin, now) {
		s.sendError(c, model.CodeRateLimited, "Too many join attempts")
		return
	}

	var p model.RejoinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.sendError(c, model.CodeValidation, "Malformed rejoin_room payload")
		return
	}
	if err := p.Validate(); err != nil {
		s.sendError(c, model.CodeValidation, err.Error())
		return
	}
	if c.roomCode != "" {
		s.sendError(c, model.CodeInvalidState, "Connection already bound to a room")
		return
	}

	room, ok := s.registry.Lookup(p.RoomCode)
	if !ok {
		s.sendError(c, model.CodeRoomNotFound, "Room not found")
		return
	}
	player, gerr := room.Rejoin(c, p.PlayerID, p.ReconnectKey, p.Nickname)
	if gerr != nil {
		s.sendError(c, gerr.Code, gerr.Message)
		return
	}
	c.roomCode = room.Code()
	c.playerID = player.ID
}

func (s *Server) handleStart(c *client, raw json.RawMessage) {
	var p model.StartGamePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.sendError(c, model.CodeValidation, "Malformed start_game payload")
		return
	}
	if err := p.Validate(); err != nil {
		s.sendError(c, model.CodeValidation, err.Error())
		return
	}

	room, gerr := s.boundRoom(c, p.RoomCode, p.PlayerID)
	if gerr != nil {
		s.sendError(c, gerr.Code, gerr.Message)
		return
	}
	if gerr := room.Start(c, p.PlayerID); gerr != nil {
		s.sendError(c, gerr.Code, gerr.Message)
	}
}

func (s *Server) handleNext(c *client, raw json.RawMessage) {
	var p model.NextQuestionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.sendError(c, model.CodeValidation, "Malformed next_question payload")
		return
	}
	if err := p.Validate(); err != nil {
		s.sendError(c, model.CodeValidation, err.Error())
		return
	}

	room, gerr := s.boundRoom(c, p.RoomCode, p.PlayerID)
	if gerr != nil {
		s.sendError(c, gerr.Code, gerr.Message)
		return
	}
	if gerr := room.Advance(c, p.PlayerID); gerr != nil {
		s.sendError(c, gerr.Code, gerr.Message)
	}
}

func (s *Server) handleSubmit(c *client, limiter *ratelimit.Limiter, raw json.RawMessage, now time.Time) {
	var p model.SubmitAnswerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.sendError(c, model.CodeValidation, "Malformed submit_answer payload")
		return
	}
	if err := p.Validate(); err != nil {
		s.sendError(c, model.CodeValidation, err.Error())
		return
	}

	if !limiter.Allow(ratelimit.CategoryAnswer, now) {
		s.sendAck(c, &p, model.AckRateLimited, now.UnixMilli())
		return
	}
	room, gerr := s.boundRoom(c, p.RoomCode, p.PlayerID)
	if gerr != nil {
		if gerr.Code == model.CodeUnauthorized {
			s.sendAck(c, &p, model.AckUnauthorized, now.UnixMilli())
			return
		}
		s.sendError(c, gerr.Code, gerr.Message)
		return
	}

	status, receivedTs, gerr := room.Submit(c, p.PlayerID, p.QuestionInstanceID, p.Choice)
	if gerr != nil {
		s.sendError(c, gerr.Code, gerr.Message)
		return
	}
	s.sendAck(c, &p, status, receivedTs)
}

// boundRoom resolves the room for an in-room event and enforces the
// connection-level binding: the claimed (roomCode, playerId) must match what
// this socket bound at join or rejoin time. Rooms re-check the socket against
// the player record themselves; this is the cheap outer gate.
func (s *Server) boundRoom(c *client, roomCode, playerID string) (*game.Room, *game.Error) {
	if c.roomCode == "" || !strings.EqualFold(roomCode, c.roomCode) || playerID != c.playerID {
		return nil, &game.Error{Code: model.CodeUnauthorized, Message: "Connection is not bound to this player"}
	}
	room, ok := s.registry.Lookup(c.roomCode)
	if !ok {
		return nil, &game.Error{Code: model.CodeRoomNotFound, Message: "Room not found"}
	}
	return room, nil
}

func (s *Server) sendAck(c *client, p *model.SubmitAnswerPayload, status string, receivedTs int64) {
	s.send(c, model.EventAnswerAck, model.AnswerAck{
		RoomCode:           game.NormalizeCode(p.RoomCode),
		QuestionInstanceID: p.QuestionInstanceID,
		Status:             status,
		ReceivedTs:         receivedTs,
	})
}

func (s *Server) sendError(c *client, code, message string) {
	s.send(c, model.EventError, model.ErrorPayload{Code: code, Message: message})
}

func (s *Server) send(c *client, event string, payload any) {
	data, err := model.MarshalEnvelope(event, payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("marshal failed")
		return
	}
	c.Enqueue(data)
}
