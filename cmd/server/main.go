package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizrally/internal/catalog"
	"quizrally/internal/config"
	"quizrally/internal/game"
	"quizrally/internal/metrics"
	"quizrally/internal/transport/rest"
	"quizrally/internal/transport/ws"
)

func main() {
	godotenv.Load()
	cfg := config.Load()

	log := newLogger(cfg.LogLevel)
	log.Info().Str("port", cfg.Port).Msg("starting quizrally server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Deck catalog: MongoDB when configured, otherwise the built-in decks.
	var decks catalog.Catalog
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatal().Err(err).Msg("mongodb connect failed")
		}
		defer mongoClient.Disconnect(context.Background())

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := mongoClient.Ping(pingCtx, nil); err != nil {
			pingCancel()
			log.Fatal().Err(err).Msg("mongodb ping failed")
		}
		pingCancel()
		log.Info().Msg("connected to mongodb")
		decks = catalog.NewMongo(mongoClient)
	} else {
		log.Info().Msg("MONGO_URI not set, serving built-in decks")
		decks = catalog.NewMemory(catalog.BuiltinDecks()...)
	}

	// Metrics: the in-memory tracker always runs; Redis mirroring is opt-in.
	tracker := metrics.NewTracker()
	var sink metrics.Sink = tracker
	if cfg.Flags.Analytics && cfg.RedisURI != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
		defer rdb.Close()

		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed, analytics sink disabled")
		} else {
			log.Info().Msg("connected to redis")
			sink = metrics.Multi{tracker, metrics.NewRedisSink(rdb, log)}
		}
	}

	registry := game.NewRegistry(cfg.Game, log)
	go registry.Run(ctx)

	hub := ws.NewHub()
	wsServer := ws.NewServer(registry, decks, hub, sink, cfg.Flags, log)

	router := rest.NewRouter(&rest.Container{
		Registry: registry,
		Decks:    decks,
		Tracker:  tracker,
		WSHub:    hub,
		WSServer: wsServer,
		Log:      log,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router.Handler(),
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	// Drain order: stop advertising readiness, then drop live sockets and
	// rooms, then let the HTTP server finish in-flight requests.
	router.SetDraining()
	cancel()
	hub.CloseAll()
	registry.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
