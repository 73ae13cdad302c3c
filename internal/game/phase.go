package game

import "quizrally/internal/model"

// Phase is a room's position in the question/answer/reveal cycle.
type Phase string

const (
	PhaseLobby       Phase = "LOBBY"
	PhaseQuestion    Phase = "QUESTION_ACTIVE"
	PhaseCollect     Phase = "COLLECT"
	PhaseReveal      Phase = "REVEAL"
	PhaseLeaderboard Phase = "LEADERBOARD"
	PhaseGameEnd     Phase = "GAME_END"
	PhasePaused      Phase = "PAUSED_HOST_DISCONNECTED"
)

// transitions lists every legal phase edge. Anything else is a no-op guarded
// by a state check in the handler that requested it.
var transitions = map[Phase][]Phase{
	PhaseLobby:       {PhaseQuestion},
	PhaseQuestion:    {PhaseCollect, PhasePaused},
	PhaseCollect:     {PhaseReveal, PhasePaused},
	PhaseReveal:      {PhaseLeaderboard, PhasePaused},
	PhaseLeaderboard: {PhaseQuestion, PhaseGameEnd, PhasePaused},
	PhaseGameEnd:     {PhaseQuestion},
	PhasePaused:      {PhaseLobby, PhaseQuestion, PhaseCollect, PhaseReveal, PhaseLeaderboard},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// admission maps each phase to the client events a room accepts in it.
// rejoin_room is accepted everywhere; fresh joins only before or between games.
var admission = map[Phase]map[string]bool{
	PhaseLobby: {
		model.EventJoinRoom:   true,
		model.EventRejoinRoom: true,
		model.EventStartGame:  true,
	},
	PhaseQuestion: {
		model.EventSubmitAnswer: true,
		model.EventRejoinRoom:   true,
	},
	PhaseCollect: {
		model.EventRejoinRoom:   true,
		model.EventNextQuestion: true,
	},
	PhaseReveal: {
		model.EventRejoinRoom:   true,
		model.EventNextQuestion: true,
	},
	PhaseLeaderboard: {
		model.EventRejoinRoom:   true,
		model.EventNextQuestion: true,
	},
	PhasePaused: {
		model.EventRejoinRoom: true,
		model.EventJoinRoom:   true,
	},
	PhaseGameEnd: {
		model.EventRejoinRoom: true,
		model.EventStartGame:  true,
	},
}

// Accepts reports whether a room in the given phase handles the event.
func (p Phase) Accepts(event string) bool {
	return admission[p][event]
}
