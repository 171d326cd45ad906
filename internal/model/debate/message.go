package debate

import "time"

// MessageKind tags a transcript entry by origin.
type MessageKind string

const (
	// KindText is an ordinary participant turn.
	KindText MessageKind = "text"
	// KindSummary is a moderator turn.
	KindSummary MessageKind = "summary"
	// KindIntervention is an out-of-band injection by the human operator.
	// Interventions are excluded from turn rotation bookkeeping.
	KindIntervention MessageKind = "intervention"
)

// InterventionAuthor is the sentinel participant id recorded on operator
// injections, which have no real authoring participant.
const InterventionAuthor = "operator"

// Message is one append-only entry in the session transcript.
type Message struct {
	ID            string      `json:"id"`
	ParticipantID string      `json:"participantId"`
	Content       string      `json:"content"`
	Kind          MessageKind `json:"kind"`
	Round         int         `json:"round"`
	Tokens        int         `json:"tokens"`
	Cost          float64     `json:"cost"`
	CreatedAt     time.Time   `json:"createdAt"`
}
