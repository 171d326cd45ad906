package debate

import "time"

// Status is the session lifecycle state. Completed is terminal.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Config captures everything fixed at session start. Participants keep
// their list order for turn rotation; the model binding of a participant is
// the only field that may be rebound afterwards, via the explicit
// change-model control.
type Config struct {
	Topic        string        `json:"topic"`
	RoundLimit   int           `json:"roundLimit"`
	AutoFinish   bool          `json:"autoFinish"`
	Participants []Participant `json:"participants"`
}

// Session is the externally visible snapshot of one debate's state.
type Session struct {
	ID           string        `json:"id"`
	Topic        string        `json:"topic"`
	RoundLimit   int           `json:"roundLimit"`
	AutoFinish   bool          `json:"autoFinish"`
	Participants []Participant `json:"participants"`
	Status       Status        `json:"status"`
	Round        int           `json:"round"`
	Transcript   []Message     `json:"transcript"`
	TotalTokens  int           `json:"totalTokens"`
	TotalCost    float64       `json:"totalCost"`
	AwaitingID   string        `json:"awaitingId,omitempty"`
	LastError    string        `json:"lastError,omitempty"`
	SemiAuto     bool          `json:"semiAuto"`
	StartedAt    *time.Time    `json:"startedAt,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}
