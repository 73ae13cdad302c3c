package catalog

import "quizrally/internal/model"

// BuiltinDecks returns the decks shipped with the server so it is playable
// without any database or import step.
func BuiltinDecks() []*model.Deck {
	return []*model.Deck{
		{
			ID:    "bio_mastery",
			Title: "Biology Mastery",
			Items: []model.DeckItem{
				{
					ID:       "bio_q1",
					Question: "Which organelle produces most of a cell's ATP?",
					Choices: model.Choices{
						A: "Ribosome",
						B: "Mitochondrion",
						C: "Golgi apparatus",
						D: "Lysosome",
					},
					Correct:      "B",
					Explanation:  "Mitochondria run oxidative phosphorylation, the main ATP source.",
					TimeLimitSec: 20,
				},
				{
					ID:       "bio_q2",
					Question: "What molecule carries amino acids to the ribosome?",
					Choices: model.Choices{
						A: "mRNA",
						B: "rRNA",
						C: "tRNA",
						D: "DNA polymerase",
					},
					Correct:      "C",
					Explanation:  "Transfer RNA pairs its anticodon with the mRNA codon.",
					TimeLimitSec: 20,
				},
				{
					ID:       "bio_q3",
					Question: "During which phase of mitosis do chromosomes align at the cell equator?",
					Choices: model.Choices{
						A: "Prophase",
						B: "Metaphase",
						C: "Anaphase",
						D: "Telophase",
					},
					Correct:      "B",
					Explanation:  "Metaphase lines chromosomes up on the metaphase plate.",
					TimeLimitSec: 15,
				},
				{
					ID:       "bio_q4",
					Question: "Which blood cells are primarily responsible for producing antibodies?",
					Choices: model.Choices{
						A: "B lymphocytes",
						B: "Erythrocytes",
						C: "Platelets",
						D: "Neutrophils",
					},
					Correct:      "A",
					Explanation:  "Plasma cells differentiated from B cells secrete antibodies.",
					TimeLimitSec: 20,
				},
				{
					ID:       "bio_q5",
					Question: "Photosynthesis takes place in which structure?",
					Choices: model.Choices{
						A: "Nucleus",
						B: "Vacuole",
						C: "Chloroplast",
						D: "Cell wall",
					},
					Correct:      "C",
					Explanation:  "Chloroplasts hold the chlorophyll that captures light energy.",
					TimeLimitSec: 15,
				},
			},
		},
		{
			ID:    "world_capitals",
			Title: "World Capitals",
			Items: []model.DeckItem{
				{
					ID:       "cap_q1",
					Question: "What is the capital of Australia?",
					Choices: model.Choices{
						A: "Sydney",
						B: "Melbourne",
						C: "Canberra",
						D: "Perth",
					},
					Correct:      "C",
					TimeLimitSec: 15,
				},
				{
					ID:       "cap_q2",
					Question: "What is the capital of Canada?",
					Choices: model.Choices{
						A: "Toronto",
						B: "Ottawa",
						C: "Vancouver",
						D: "Montreal",
					},
					Correct:      "B",
					TimeLimitSec: 15,
				},
				{
					ID:       "cap_q3",
					Question: "What is the capital of Brazil?",
					Choices: model.Choices{
						A: "Rio de Janeiro",
						B: "Sao Paulo",
						C: "Salvador",
						D: "Brasilia",
					},
					Correct:      "D",
					TimeLimitSec: 15,
				},
			},
		},
	}
}
