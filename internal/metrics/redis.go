package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisCountKey = "quizrally:metrics:events"
	redisOpWait   = 2 * time.Second
)

// RedisSink mirrors event counters into a Redis hash so aggregate traffic
// survives restarts and can be read across instances. Writes are best effort;
// a Redis outage is logged once per failure and never slows the hot path.
type RedisSink struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewRedisSink(client *redis.Client, log zerolog.Logger) *RedisSink {
	return &RedisSink{client: client, log: log}
}

func (s *RedisSink) RecordMessage(event string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), redisOpWait)
		defer cancel()
		if err := s.client.HIncrBy(ctx, redisCountKey, event, 1).Err(); err != nil {
			s.log.Debug().Err(err).Str("event", event).Msg("redis metrics write failed")
		}
	}()
}

// RecordHandlerDuration is a no-op for the Redis sink; percentiles only make
// sense per process and stay in the in-memory tracker.
func (s *RedisSink) RecordHandlerDuration(time.Duration) {}

// Counts reads back the aggregated event counters.
func (s *RedisSink) Counts(ctx context.Context) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, redisCountKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for event, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[event] = n
	}
	return out, nil
}
