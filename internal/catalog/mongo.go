package catalog

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizrally/internal/model"
)

const (
	databaseName   = "quizrally"
	deckCollection = "decks"
)

// Mongo serves decks from MongoDB.
type Mongo struct {
	collection *mongo.Collection
}

func NewMongo(client *mongo.Client) *Mongo {
	return &Mongo{
		collection: client.Database(databaseName).Collection(deckCollection),
	}
}

func (m *Mongo) Lookup(ctx context.Context, id string) (*model.Deck, error) {
	var deck model.Deck
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&deck)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &deck, nil
}

func (m *Mongo) List(ctx context.Context) ([]model.DeckSummary, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1, "title": 1, "items": 1}).SetSort(bson.M{"_id": 1})
	cursor, err := m.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []model.DeckSummary
	for cursor.Next(ctx) {
		var deck model.Deck
		if err := cursor.Decode(&deck); err != nil {
			return nil, err
		}
		out = append(out, deck.Summary())
	}
	return out, cursor.Err()
}

// Seed upserts decks by id. Used by the seed command.
func (m *Mongo) Seed(ctx context.Context, decks []*model.Deck) error {
	for _, deck := range decks {
		_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": deck.ID}, deck, options.Replace().SetUpsert(true))
		if err != nil {
			return err
		}
	}
	return nil
}
