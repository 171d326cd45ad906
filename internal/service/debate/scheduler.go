package debate

import (
	model "github.com/zhouzirui/debate-arena/backend/internal/model/debate"
)

// TurnPlan is the scheduler's verdict for one tick: who speaks next, the
// round that turn belongs to, and whether the session is finished instead.
type TurnPlan struct {
	// Next indexes the participant list. Meaningless when Terminate is set.
	Next int
	// Round the produced turn will be stamped with.
	Round int
	// Terminate reports that the round limit blocks any further turn.
	Terminate bool
}

// PlanTurn decides the next turn from the participant list, the transcript,
// the current round and the configured round limit. It is a pure function:
// it never mutates its inputs and has no side effects.
//
// Interventions are invisible to rotation: only ordinary and summary
// entries count as chat history. An empty chat history opens the session
// with participant 0 (the moderator, by configuration convention) in round
// 1. Otherwise rotation strictly follows list order, wrapping modulo the
// participant count. Whenever the wrap lands back on the moderator the
// current round is closed: the session terminates if the round limit is
// already reached, else the round counter advances with the moderator's
// turn.
func PlanTurn(participants []model.Participant, transcript []model.Message, currentRound, roundLimit int) TurnPlan {
	history := chatHistory(transcript)
	if len(history) == 0 {
		return TurnPlan{Next: 0, Round: 1}
	}

	last := history[len(history)-1]
	next := (participantIndex(participants, last.ParticipantID) + 1) % len(participants)

	round := currentRound
	if next == 0 {
		if currentRound >= roundLimit {
			return TurnPlan{Round: currentRound, Terminate: true}
		}
		round++
	}

	return TurnPlan{Next: next, Round: round}
}

// chatHistory filters the transcript down to rotation-relevant entries.
func chatHistory(transcript []model.Message) []model.Message {
	history := make([]model.Message, 0, len(transcript))
	for _, msg := range transcript {
		if msg.Kind == model.KindIntervention {
			continue
		}
		history = append(history, msg)
	}
	return history
}

func participantIndex(participants []model.Participant, id string) int {
	for i, p := range participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}
