package game

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quizrally/internal/config"
	"quizrally/internal/model"
)

// Room codes avoid I, O, 0 and 1 so they survive being read out loud or
// copied from a projector.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeLength   = 5

	maxCodeAttempts = 100
)

// Registry is the process-wide index of live rooms. It only guards the
// code-to-room map; all game state lives inside each room behind its own
// lock, and the registry never calls into a room while holding its own.
type Registry struct {
	cfg config.Game
	log zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry(cfg config.Game, log zerolog.Logger) *Registry {
	return &Registry{
		cfg:   cfg,
		log:   log,
		rooms: make(map[string]*Room),
	}
}

// CreateRoom allocates a room with a fresh code, binds the creating socket as
// its host, and returns the room alongside the host's player record.
func (g *Registry) CreateRoom(conn Sender, hostID, nickname string, deck *model.Deck, settings model.RoomSettings) (*Room, *Player, *Error) {
	nick := SanitizeNickname(nickname)
	if nick == "" {
		nick = "Host"
	}
	if hostID == "" {
		hostID = "host_" + newReconnectKey()[:8]
	}

	g.mu.Lock()
	code, ok := g.uniqueCode()
	if !ok {
		g.mu.Unlock()
		return nil, nil, &Error{Code: model.CodeValidation, Message: "Could not allocate a room code"}
	}
	room := newRoom(code, deck, settings, g.cfg, g.log, g.Remove)
	g.rooms[code] = room
	g.mu.Unlock()

	host := room.bindHost(conn, hostID, nick)
	g.log.Info().Str("room", code).Msg("room created")
	return room, host, nil
}

// Lookup finds a room by code. Codes are matched case-insensitively.
func (g *Registry) Lookup(code string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[NormalizeCode(code)]
	return room, ok
}

// Remove drops a room from the index and closes it. Idempotent.
func (g *Registry) Remove(code string) {
	g.mu.Lock()
	room, ok := g.rooms[NormalizeCode(code)]
	if ok {
		delete(g.rooms, NormalizeCode(code))
	}
	g.mu.Unlock()

	if ok {
		room.Close()
	}
}

// Len returns the number of registered rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Run reaps idle and closed rooms on a fixed interval until ctx is done.
func (g *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.reap(now)
		}
	}
}

func (g *Registry) reap(now time.Time) {
	g.mu.Lock()
	var expired []*Room
	for code, room := range g.rooms {
		if room.Expired(now) {
			delete(g.rooms, code)
			expired = append(expired, room)
		}
	}
	g.mu.Unlock()

	for _, room := range expired {
		g.log.Info().Str("room", room.Code()).Msg("reaping idle room")
		room.Close()
	}
}

// CloseAll tears down every room; used during shutdown.
func (g *Registry) CloseAll() {
	g.mu.Lock()
	rooms := make([]*Room, 0, len(g.rooms))
	for code, room := range g.rooms {
		delete(g.rooms, code)
		rooms = append(rooms, room)
	}
	g.mu.Unlock()

	for _, room := range rooms {
		room.Close()
	}
}

// NormalizeCode uppercases and trims a client-supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// uniqueCode draws codes until one is unused. Caller holds mu.
func (g *Registry) uniqueCode() (string, bool) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := randomCode()
		if _, taken := g.rooms[code]; !taken {
			return code, true
		}
	}
	return "", false
}

func randomCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		panic("room code entropy unavailable: " + err.Error())
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out)
}
