// Command seed upserts the built-in decks into MongoDB so a database-backed
// deployment starts with playable content.
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizrally/internal/catalog"
)

func main() {
	godotenv.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		log.Fatal().Msg("MONGO_URI is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb connect failed")
	}
	defer client.Disconnect(context.Background())

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal().Err(err).Msg("mongodb ping failed")
	}

	decks := catalog.BuiltinDecks()
	if err := catalog.NewMongo(client).Seed(ctx, decks); err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}
	for _, d := range decks {
		log.Info().Str("deck", d.ID).Int("items", len(d.Items)).Msg("seeded")
	}
}
