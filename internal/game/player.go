package game

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"quizrally/internal/model"
)

// Sender is the write side of a bound socket. Enqueue must not block; it
// reports false when the peer's buffer is full or the connection is gone.
type Sender interface {
	Enqueue(data []byte) bool
}

// Player is one participant's persistent record within a room. It outlives
// its socket: conn is nil while the player is disconnected, and the record is
// only dropped when the room itself is destroyed.
type Player struct {
	ID           string
	Nickname     string
	Role         string
	Score        int
	ReconnectKey string
	JoinedAt     time.Time

	conn Sender
}

// Connected reports whether the player currently has a bound socket.
func (p *Player) Connected() bool {
	return p.conn != nil
}

func (p *Player) public() model.PlayerPublic {
	return model.PlayerPublic{
		PlayerID:  p.ID,
		Nickname:  p.Nickname,
		Connected: p.conn != nil,
		Score:     p.Score,
		Role:      p.Role,
	}
}

// newReconnectKey mints the per-player rebind secret. It is generated exactly
// once, when the player record is created.
func newReconnectKey() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		panic("reconnect key entropy unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

var nicknameStrip = regexp.MustCompile(`[^\w\- ]+`)

const maxNicknameLen = 20

// SanitizeNickname strips everything outside word characters, dashes and
// spaces, trims, and caps the length. An empty result means the nickname is
// unusable.
func SanitizeNickname(raw string) string {
	safe := strings.TrimSpace(nicknameStrip.ReplaceAllString(raw, ""))
	if len(safe) > maxNicknameLen {
		safe = safe[:maxNicknameLen]
	}
	return safe
}
