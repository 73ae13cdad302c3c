package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Flags are the server feature gates.
type Flags struct {
	Multiplayer bool
	Analytics   bool
}

// Game holds the tunable room-lifecycle timings.
type Game struct {
	HostGrace        time.Duration
	IdleThreshold    time.Duration
	ReapInterval     time.Duration
	CollectDelay     time.Duration
	RevealDelay      time.Duration
	LeaderboardDelay time.Duration
	MaxPlayers       int
}

// Config is the full server configuration, read once at startup.
type Config struct {
	Port     string
	MongoURI string
	RedisURI string
	LogLevel string
	Flags    Flags
	Game     Game
}

// Load reads configuration from the environment, falling back to defaults
// suitable for local development.
func Load() Config {
	return Config{
		Port:     envString("PORT", "8080"),
		MongoURI: os.Getenv("MONGO_URI"),
		RedisURI: strings.TrimPrefix(os.Getenv("REDIS_URI"), "redis://"),
		LogLevel: envString("LOG_LEVEL", "info"),
		Flags: Flags{
			Multiplayer: envBool("FEATURE_MULTIPLAYER", true),
			Analytics:   envBool("FEATURE_ANALYTICS", false),
		},
		Game: Game{
			HostGrace:        envDurationMs("HOST_REJOIN_GRACE_MS", 60*time.Second),
			IdleThreshold:    envDurationMs("ROOM_IDLE_MS", 10*time.Minute),
			ReapInterval:     envDurationMs("ROOM_REAP_INTERVAL_MS", time.Minute),
			CollectDelay:     envDurationMs("COLLECT_DELAY_MS", 2*time.Second),
			RevealDelay:      envDurationMs("REVEAL_DELAY_MS", 4*time.Second),
			LeaderboardDelay: envDurationMs("LEADERBOARD_DELAY_MS", 8*time.Second),
			MaxPlayers:       envInt("ROOM_MAX_PLAYERS", 32),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDurationMs(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
